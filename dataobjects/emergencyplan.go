package dataobjects

import (
	"database/sql/driver"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/gbl08ma/sqalx"
	"github.com/lib/pq"
)

// PlanStatus is the approval status of an EmergencyPlan
type PlanStatus string

const (
	// PlanPending is a plan awaiting an operator decision
	PlanPending PlanStatus = "PENDING"
	// PlanApproved is a plan approved by an operator, not yet carried out
	PlanApproved PlanStatus = "APPROVED"
	// PlanRejected is a plan discarded by an operator
	PlanRejected PlanStatus = "REJECTED"
	// PlanExecuted is a plan whose replacement train has been deployed
	PlanExecuted PlanStatus = "EXECUTED"
)

// Active returns whether a plan with this status still counts as the plan of its emergency log
func (s PlanStatus) Active() bool {
	return s != PlanRejected
}

// Readiness is the breakdown of the time a train needs before entering revenue service
type Readiness struct {
	CrewNotification int `json:"crewNotification"`
	Shunting         int `json:"shunting"`
	SafetyCheck      int `json:"safetyCheck"`
}

// Total returns the readiness time in minutes
func (r Readiness) Total() int {
	return r.CrewNotification + r.Shunting + r.SafetyCheck
}

// Duration returns the readiness time as a Duration
func (r Readiness) Duration() time.Duration {
	return time.Duration(r.Total()) * time.Minute
}

// Scan implements the sql.Scanner interface.
func (r *Readiness) Scan(value interface{}) error {
	return scanJSON(value, r)
}

// Value implements the driver.Valuer interface.
func (r Readiness) Value() (driver.Value, error) {
	return jsonValue(r)
}

// StepKind identifies a step of the emergency execution script
type StepKind string

const (
	// StepNotifyCrew is the notification of the replacement train's crew
	StepNotifyCrew StepKind = "NOTIFY_CREW"
	// StepShunt is the movement from the stabling bay to the departure position
	StepShunt StepKind = "SHUNT"
	// StepSafetyCheck is the pre-departure safety check
	StepSafetyCheck StepKind = "SAFETY_CHECK"
	// StepDeploy is the entry into revenue service
	StepDeploy StepKind = "DEPLOY"
)

// ExecutionStep is one step of the script an operator follows to carry out a plan
type ExecutionStep struct {
	Order       int      `json:"order"`
	Kind        StepKind `json:"kind"`
	Description string   `json:"description"`
	Minutes     int      `json:"minutes"`
}

// ExecutionSteps is an ordered execution script
type ExecutionSteps []ExecutionStep

// Scan implements the sql.Scanner interface.
func (s *ExecutionSteps) Scan(value interface{}) error {
	return scanJSON(value, s)
}

// Value implements the driver.Valuer interface.
func (s ExecutionSteps) Value() (driver.Value, error) {
	return jsonValue(s)
}

// FallbackOption is a ranked alternative to the primary replacement train
type FallbackOption struct {
	Label            string   `json:"label"`
	TrainID          string   `json:"trainId"`
	ReadinessMinutes int      `json:"readinessMinutes"`
	Reasons          []string `json:"reasons"`
}

// FallbackOptions is a ranked list of fallbacks
type FallbackOptions []FallbackOption

// Scan implements the sql.Scanner interface.
func (f *FallbackOptions) Scan(value interface{}) error {
	return scanJSON(value, f)
}

// Value implements the driver.Valuer interface.
func (f FallbackOptions) Value() (driver.Value, error) {
	return jsonValue(f)
}

// EmergencyPlan is a proposal to replace a withdrawn train
type EmergencyPlan struct {
	ID                 string
	EmergencyLogID     string
	WithdrawnTrainID   string
	ReplacementTrainID string
	RouteID            string
	DeploymentMinutes  int
	Readiness          Readiness
	Reasoning          []string
	Steps              ExecutionSteps
	Fallbacks          FallbackOptions
	Status             PlanStatus
	CreatedAt          time.Time
	DecidedAt          time.Time
	Decided            bool
	DecidedBy          string
	Notes              string
}

// GetEmergencyPlan returns the EmergencyPlan with the given ID
func GetEmergencyPlan(node sqalx.Node, id string) (*EmergencyPlan, error) {
	plans, err := getEmergencyPlansWithSelect(node, sdb.Select().Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, err
	}
	if len(plans) == 0 {
		return nil, notFound("emergency plan", id)
	}
	return plans[0], nil
}

// GetEmergencyPlansForLog returns all plans made for the given emergency log, oldest first
func GetEmergencyPlansForLog(node sqalx.Node, logID string) ([]*EmergencyPlan, error) {
	return getEmergencyPlansWithSelect(node, sdb.Select().Where(sq.Eq{"emergency_log_id": logID}))
}

func getEmergencyPlansWithSelect(node sqalx.Node, sbuilder sq.SelectBuilder) ([]*EmergencyPlan, error) {
	plans := []*EmergencyPlan{}

	tx, err := node.Beginx()
	if err != nil {
		return plans, err
	}
	defer tx.Commit() // read-only tx

	rows, err := sbuilder.Columns("id", "emergency_log_id", "withdrawn_train_id", "replacement_train_id",
		"route_id", "deployment_minutes", "readiness", "reasoning", "steps", "fallbacks",
		"status", "created_at", "decided_at", "decided_by", "notes").
		From("emergency_plan").
		OrderBy("created_at ASC").
		RunWith(tx).Query()
	if err != nil {
		return plans, wrapDBError(err, "getEmergencyPlansWithSelect")
	}
	defer rows.Close()

	for rows.Next() {
		var plan EmergencyPlan
		var reasoning pq.StringArray
		var decidedAt pq.NullTime
		err := rows.Scan(
			&plan.ID,
			&plan.EmergencyLogID,
			&plan.WithdrawnTrainID,
			&plan.ReplacementTrainID,
			&plan.RouteID,
			&plan.DeploymentMinutes,
			&plan.Readiness,
			&reasoning,
			&plan.Steps,
			&plan.Fallbacks,
			&plan.Status,
			&plan.CreatedAt,
			&decidedAt,
			&plan.DecidedBy,
			&plan.Notes)
		if err != nil {
			return plans, wrapDBError(err, "getEmergencyPlansWithSelect")
		}
		plan.Reasoning = reasoning
		plan.DecidedAt = decidedAt.Time
		plan.Decided = decidedAt.Valid
		plans = append(plans, &plan)
	}
	if err := rows.Err(); err != nil {
		return plans, wrapDBError(err, "getEmergencyPlansWithSelect")
	}
	return plans, nil
}

// Update adds or updates the plan
func (plan *EmergencyPlan) Update(node sqalx.Node) error {
	tx, err := node.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	decidedAt := pq.NullTime{
		Time:  plan.DecidedAt,
		Valid: plan.Decided,
	}

	_, err = sdb.Insert("emergency_plan").
		Columns("id", "emergency_log_id", "withdrawn_train_id", "replacement_train_id",
			"route_id", "deployment_minutes", "readiness", "reasoning", "steps", "fallbacks",
			"status", "created_at", "decided_at", "decided_by", "notes").
		Values(plan.ID, plan.EmergencyLogID, plan.WithdrawnTrainID, plan.ReplacementTrainID,
			plan.RouteID, plan.DeploymentMinutes, plan.Readiness, pq.StringArray(plan.Reasoning), plan.Steps, plan.Fallbacks,
			string(plan.Status), plan.CreatedAt, decidedAt, plan.DecidedBy, plan.Notes).
		Suffix("ON CONFLICT (id) DO UPDATE SET status = ?, decided_at = ?, decided_by = ?, notes = ?",
			string(plan.Status), decidedAt, plan.DecidedBy, plan.Notes).
		RunWith(tx).Exec()
	if err != nil {
		return wrapDBError(err, "AddEmergencyPlan")
	}
	return tx.Commit()
}
