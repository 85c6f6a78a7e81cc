package dataobjects

import (
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/gbl08ma/sqalx"
)

// StablingPosition is a record of where a train is stabled in the depot
type StablingPosition struct {
	TrainID string
	Bay     string
	// ShuntingMinutes is the time needed to move the train from its bay to a departure-ready position
	ShuntingMinutes int
	RecordedAt      time.Time
}

// GetStablingPosition returns the most recent stabling record for the given train
func GetStablingPosition(node sqalx.Node, trainID string) (*StablingPosition, error) {
	tx, err := node.Beginx()
	if err != nil {
		return nil, err
	}
	defer tx.Commit() // read-only tx

	rows, err := sdb.Select("train_id", "bay", "shunting_minutes", "recorded_at").
		From("stabling_position").
		Where(sq.Eq{"train_id": trainID}).
		OrderBy("recorded_at DESC").
		Limit(1).
		RunWith(tx).Query()
	if err != nil {
		return nil, wrapDBError(err, "GetStablingPosition")
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, wrapDBError(err, "GetStablingPosition")
		}
		return nil, notFound("stabling position for train", trainID)
	}
	var position StablingPosition
	err = rows.Scan(
		&position.TrainID,
		&position.Bay,
		&position.ShuntingMinutes,
		&position.RecordedAt)
	if err != nil {
		return nil, wrapDBError(err, "GetStablingPosition")
	}
	return &position, nil
}

// Update adds the stabling record
func (position *StablingPosition) Update(node sqalx.Node) error {
	tx, err := node.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = sdb.Insert("stabling_position").
		Columns("train_id", "bay", "shunting_minutes", "recorded_at").
		Values(position.TrainID, position.Bay, position.ShuntingMinutes, position.RecordedAt).
		Suffix("ON CONFLICT (train_id, recorded_at) DO UPDATE SET bay = ?, shunting_minutes = ?",
			position.Bay, position.ShuntingMinutes).
		RunWith(tx).Exec()
	if err != nil {
		return wrapDBError(err, "AddStablingPosition")
	}
	return tx.Commit()
}
