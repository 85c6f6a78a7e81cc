package dataobjects

import (
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/dchest/uniuri"
	"github.com/gbl08ma/sqalx"
)

// JobPriority is the priority of a JobCard
type JobPriority string

const (
	// JobPriorityCritical is safety critical work, to be done immediately
	JobPriorityCritical JobPriority = "CRITICAL"
	// JobPriorityHigh must be completed within 24 hours
	JobPriorityHigh JobPriority = "HIGH"
	// JobPriorityMedium must be completed within 72 hours
	JobPriorityMedium JobPriority = "MEDIUM"
	// JobPriorityLow must be completed within a week
	JobPriorityLow JobPriority = "LOW"
)

// JobStatus is the status of a JobCard
type JobStatus string

const (
	// JobOpen is a job card that has not been started
	JobOpen JobStatus = "OPEN"
	// JobInProgress is a job card being worked on
	JobInProgress JobStatus = "IN_PROGRESS"
	// JobClosed is a finished job card
	JobClosed JobStatus = "CLOSED"
)

// JobCard is a maintenance work order for a train
type JobCard struct {
	ID          string
	Number      string
	TrainID     string
	Priority    JobPriority
	Status      JobStatus
	Title       string
	Description string
	FaultCode   string
	CreatedAt   time.Time
}

// IsOpen returns whether the job card still needs work
func (card *JobCard) IsOpen() bool {
	return card.Status == JobOpen || card.Status == JobInProgress
}

// NewEmergencyJobCardNumber returns a random job card number for cards created by emergency handling
func NewEmergencyJobCardNumber() string {
	return "EMG-" + uniuri.NewLenChars(8, []byte("0123456789ABCDEFGHJKLMNPQRSTUVWXYZ"))
}

// GetOpenJobCards returns the job cards of the given train which are not closed
func GetOpenJobCards(node sqalx.Node, trainID string) ([]*JobCard, error) {
	s := sdb.Select().
		Where(sq.Eq{"train_id": trainID}).
		Where(sq.Eq{"status": []string{string(JobOpen), string(JobInProgress)}})
	return getJobCardsWithSelect(node, s)
}

// GetJobCards returns all job cards of the given train
func GetJobCards(node sqalx.Node, trainID string) ([]*JobCard, error) {
	return getJobCardsWithSelect(node, sdb.Select().Where(sq.Eq{"train_id": trainID}))
}

func getJobCardsWithSelect(node sqalx.Node, sbuilder sq.SelectBuilder) ([]*JobCard, error) {
	cards := []*JobCard{}

	tx, err := node.Beginx()
	if err != nil {
		return cards, err
	}
	defer tx.Commit() // read-only tx

	rows, err := sbuilder.Columns("id", "number", "train_id", "priority", "status", "title", "description", "fault_code", "created_at").
		From("job_card").
		OrderBy("created_at ASC").
		RunWith(tx).Query()
	if err != nil {
		return cards, wrapDBError(err, "getJobCardsWithSelect")
	}
	defer rows.Close()

	for rows.Next() {
		var card JobCard
		err := rows.Scan(
			&card.ID,
			&card.Number,
			&card.TrainID,
			&card.Priority,
			&card.Status,
			&card.Title,
			&card.Description,
			&card.FaultCode,
			&card.CreatedAt)
		if err != nil {
			return cards, wrapDBError(err, "getJobCardsWithSelect")
		}
		cards = append(cards, &card)
	}
	if err := rows.Err(); err != nil {
		return cards, wrapDBError(err, "getJobCardsWithSelect")
	}
	return cards, nil
}

// Update adds or updates the job card
func (card *JobCard) Update(node sqalx.Node) error {
	tx, err := node.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = sdb.Insert("job_card").
		Columns("id", "number", "train_id", "priority", "status", "title", "description", "fault_code", "created_at").
		Values(card.ID, card.Number, card.TrainID, string(card.Priority), string(card.Status),
			card.Title, card.Description, card.FaultCode, card.CreatedAt).
		Suffix("ON CONFLICT (id) DO UPDATE SET priority = ?, status = ?, title = ?, description = ?",
			string(card.Priority), string(card.Status), card.Title, card.Description).
		RunWith(tx).Exec()
	if err != nil {
		return wrapDBError(err, "AddJobCard")
	}
	return tx.Commit()
}
