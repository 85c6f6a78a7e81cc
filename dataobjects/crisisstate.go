package dataobjects

import (
	"database/sql/driver"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/gbl08ma/sqalx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

// CrisisStatus is the status of a CrisisState
type CrisisStatus string

const (
	// CrisisActive is an ongoing crisis. There is at most one active crisis at any time
	CrisisActive CrisisStatus = "ACTIVE"
	// CrisisResolved is a crisis that has ended
	CrisisResolved CrisisStatus = "RESOLVED"
)

// CrisisActionKind identifies a mitigation action taken during a crisis
type CrisisActionKind string

const (
	// ActionDeployStandby is the deployment of standby trains into service
	ActionDeployStandby CrisisActionKind = "DEPLOY_STANDBY"
	// ActionReassignRoute is the move of trains from low-demand to critical routes
	ActionReassignRoute CrisisActionKind = "REASSIGN_ROUTE"
	// ActionReduceFrequency is the advice to increase headways on low-demand routes
	ActionReduceFrequency CrisisActionKind = "REDUCE_FREQUENCY"
	// ActionExpediteRepairs is the instruction to prioritize repairs of withdrawn trains
	ActionExpediteRepairs CrisisActionKind = "EXPEDITE_REPAIRS"
)

// CrisisAction is one mitigation action of a crisis
type CrisisAction struct {
	Kind      CrisisActionKind `json:"kind"`
	Time      time.Time        `json:"time"`
	TrainIDs  []string         `json:"trainIds,omitempty"`
	FromRoute string           `json:"fromRoute,omitempty"`
	ToRoute   string           `json:"toRoute,omitempty"`
	Routes    []string         `json:"routes,omitempty"`
	Count     int              `json:"count"`
	Note      string           `json:"note,omitempty"`
}

// CrisisActions is the ordered action log of a crisis
type CrisisActions []CrisisAction

// Scan implements the sql.Scanner interface.
func (a *CrisisActions) Scan(value interface{}) error {
	return scanJSON(value, a)
}

// Value implements the driver.Valuer interface.
func (a CrisisActions) Value() (driver.Value, error) {
	if a == nil {
		return []byte("[]"), nil
	}
	return jsonValue(a)
}

// CrisisState is a fleet-wide degraded-capacity incident
type CrisisState struct {
	ID               string
	ActivatedAt      time.Time
	WithdrawalCount  int
	TriggeringTrains []string
	FleetSize        int
	MinimumRequired  int
	ServiceDeficit   int
	Actions          CrisisActions
	Status           CrisisStatus
	ResolvedAt       time.Time
	Resolved         bool
	ResolvedBy       string
	ResolutionNotes  string
	UpdatedAt        time.Time
}

var crisisStateColumns = []string{"id", "activated_at", "withdrawal_count", "triggering_trains",
	"fleet_size", "minimum_required", "service_deficit", "actions", "status",
	"resolved_at", "resolved_by", "resolution_notes", "updated_at"}

// GetCrisisStates returns all crises, most recent first
func GetCrisisStates(node sqalx.Node) ([]*CrisisState, error) {
	return getCrisisStatesWithSelect(node, sdb.Select())
}

// GetActiveCrisisState returns the active crisis, or an error satisfying IsNotFound if there is none
func GetActiveCrisisState(node sqalx.Node) (*CrisisState, error) {
	states, err := getCrisisStatesWithSelect(node, sdb.Select().Where(sq.Eq{"status": string(CrisisActive)}))
	if err != nil {
		return nil, err
	}
	if len(states) == 0 {
		return nil, notFound("crisis state", "active")
	}
	return states[0], nil
}

// GetCrisisState returns the CrisisState with the given ID
func GetCrisisState(node sqalx.Node, id string) (*CrisisState, error) {
	states, err := getCrisisStatesWithSelect(node, sdb.Select().Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, err
	}
	if len(states) == 0 {
		return nil, notFound("crisis state", id)
	}
	return states[0], nil
}

func getCrisisStatesWithSelect(node sqalx.Node, sbuilder sq.SelectBuilder) ([]*CrisisState, error) {
	states := []*CrisisState{}

	tx, err := node.Beginx()
	if err != nil {
		return states, err
	}
	defer tx.Commit() // read-only tx

	rows, err := sbuilder.Columns(crisisStateColumns...).
		From("crisis_state").
		OrderBy("activated_at DESC").
		RunWith(tx).Query()
	if err != nil {
		return states, wrapDBError(err, "getCrisisStatesWithSelect")
	}
	defer rows.Close()

	for rows.Next() {
		state, err := scanCrisisState(rows)
		if err != nil {
			return states, wrapDBError(err, "getCrisisStatesWithSelect")
		}
		states = append(states, state)
	}
	if err := rows.Err(); err != nil {
		return states, wrapDBError(err, "getCrisisStatesWithSelect")
	}
	return states, nil
}

func scanCrisisState(rows sq.RowScanner, extra ...interface{}) (*CrisisState, error) {
	var state CrisisState
	var triggering pq.StringArray
	var resolvedAt pq.NullTime
	dest := []interface{}{
		&state.ID,
		&state.ActivatedAt,
		&state.WithdrawalCount,
		&triggering,
		&state.FleetSize,
		&state.MinimumRequired,
		&state.ServiceDeficit,
		&state.Actions,
		&state.Status,
		&resolvedAt,
		&state.ResolvedBy,
		&state.ResolutionNotes,
		&state.UpdatedAt,
	}
	err := rows.Scan(append(dest, extra...)...)
	if err != nil {
		return nil, err
	}
	state.TriggeringTrains = triggering
	state.ResolvedAt = resolvedAt.Time
	state.Resolved = resolvedAt.Valid
	return &state, nil
}

// MergeCrisisState creates state as the active crisis or, if a crisis is already active,
// adds the withdrawal count and triggering trains of state to it.
// It returns the resulting active crisis and whether it was created by this call.
// The decision is made by the database in a single statement, guarded by the
// unique index on active crises, so concurrent callers never create two active crises
func MergeCrisisState(node sqalx.Node, state *CrisisState) (*CrisisState, bool, error) {
	tx, err := node.Beginx()
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	rows, err := sdb.Insert("crisis_state").
		Columns("id", "activated_at", "withdrawal_count", "triggering_trains",
			"fleet_size", "minimum_required", "service_deficit", "actions", "status",
			"resolved_at", "resolved_by", "resolution_notes", "updated_at").
		Values(state.ID, state.ActivatedAt, state.WithdrawalCount, pq.StringArray(state.TriggeringTrains),
			state.FleetSize, state.MinimumRequired, state.ServiceDeficit, state.Actions, string(CrisisActive),
			nil, "", "", state.UpdatedAt).
		Suffix("ON CONFLICT (status) WHERE status = 'ACTIVE' DO UPDATE SET " +
			"withdrawal_count = crisis_state.withdrawal_count + EXCLUDED.withdrawal_count, " +
			"triggering_trains = crisis_state.triggering_trains || EXCLUDED.triggering_trains, " +
			"updated_at = EXCLUDED.updated_at " +
			"RETURNING id, activated_at, withdrawal_count, triggering_trains, " +
			"fleet_size, minimum_required, service_deficit, actions, status, " +
			"resolved_at, resolved_by, resolution_notes, updated_at, (xmax = 0)").
		RunWith(tx).Query()
	if err != nil {
		return nil, false, wrapDBError(err, "MergeCrisisState")
	}

	if !rows.Next() {
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, false, wrapDBError(err, "MergeCrisisState")
		}
		return nil, false, errors.New("MergeCrisisState: no row returned")
	}
	var created bool
	merged, err := scanCrisisState(rows, &created)
	rows.Close()
	if err != nil {
		return nil, false, wrapDBError(err, "MergeCrisisState")
	}
	return merged, created, tx.Commit()
}

// Update adds or updates the crisis state.
// The withdrawal count and triggering trains of an existing crisis are only changed by MergeCrisisState
func (state *CrisisState) Update(node sqalx.Node) error {
	tx, err := node.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	resolvedAt := pq.NullTime{
		Time:  state.ResolvedAt,
		Valid: state.Resolved,
	}

	_, err = sdb.Insert("crisis_state").
		Columns(crisisStateColumns...).
		Values(state.ID, state.ActivatedAt, state.WithdrawalCount, pq.StringArray(state.TriggeringTrains),
			state.FleetSize, state.MinimumRequired, state.ServiceDeficit, state.Actions, string(state.Status),
			resolvedAt, state.ResolvedBy, state.ResolutionNotes, state.UpdatedAt).
		Suffix("ON CONFLICT (id) DO UPDATE SET "+
			"service_deficit = ?, actions = ?, status = ?, resolved_at = ?, resolved_by = ?, "+
			"resolution_notes = ?, updated_at = ?",
			state.ServiceDeficit, state.Actions, string(state.Status), resolvedAt, state.ResolvedBy,
			state.ResolutionNotes, state.UpdatedAt).
		RunWith(tx).Exec()
	if err != nil {
		return wrapDBError(err, "UpdateCrisisState")
	}
	return tx.Commit()
}
