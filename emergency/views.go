package emergency

import (
	"strings"

	"github.com/railops/fleetcrisis/dataobjects"
)

// PlanView is the detail of a plan together with the breakdown it was made for
type PlanView struct {
	Plan         *dataobjects.EmergencyPlan
	EmergencyLog *dataobjects.EmergencyLog
}

// GetPlan returns the plan with the given ID and its breakdown
func (h *Handler) GetPlan(planID string) (*PlanView, error) {
	const op = "GetPlan"
	tx, err := h.begin(op)
	if err != nil {
		return nil, err
	}
	defer tx.Commit() // read-only tx

	plan, err := tx.GetEmergencyPlan(planID)
	if err != nil {
		return nil, storeError(op, "emergency plan", planID, err)
	}
	elog, err := tx.GetEmergencyLog(plan.EmergencyLogID)
	if err != nil {
		return nil, storeError(op, "emergency log", plan.EmergencyLogID, err)
	}
	return &PlanView{Plan: plan, EmergencyLog: elog}, nil
}

// EmergencyView is a breakdown with every plan made for it, oldest first
type EmergencyView struct {
	EmergencyLog *dataobjects.EmergencyLog
	Plans        []*dataobjects.EmergencyPlan
}

// ActivePlan returns the plan that was not rejected, if any
func (v *EmergencyView) ActivePlan() *dataobjects.EmergencyPlan {
	for _, plan := range v.Plans {
		if plan.Status.Active() {
			return plan
		}
	}
	return nil
}

// GetEmergency returns the breakdown with the given ID and its plans
func (h *Handler) GetEmergency(emergencyLogID string) (*EmergencyView, error) {
	const op = "GetEmergency"
	tx, err := h.begin(op)
	if err != nil {
		return nil, err
	}
	defer tx.Commit() // read-only tx

	elog, err := tx.GetEmergencyLog(emergencyLogID)
	if err != nil {
		return nil, storeError(op, "emergency log", emergencyLogID, err)
	}
	plans, err := tx.GetEmergencyPlansForLog(elog.ID)
	if err != nil {
		return nil, storeError(op, "emergency plan", "", err)
	}
	return &EmergencyView{EmergencyLog: elog, Plans: plans}, nil
}

// ListEmergencies returns the breakdowns on record, most recent first, optionally only the active ones
func (h *Handler) ListEmergencies(activeOnly bool) ([]*dataobjects.EmergencyLog, error) {
	const op = "ListEmergencies"
	tx, err := h.begin(op)
	if err != nil {
		return nil, err
	}
	defer tx.Commit() // read-only tx

	var logs []*dataobjects.EmergencyLog
	if activeOnly {
		logs, err = tx.GetActiveEmergencyLogs()
	} else {
		logs, err = tx.GetEmergencyLogs()
	}
	if err != nil {
		return nil, storeError(op, "emergency log", "", err)
	}
	return logs, nil
}

// EvaluateTrain reads the current state of a train and applies the eligibility rules to it
func (h *Handler) EvaluateTrain(trainID string) (*Eligibility, error) {
	const op = "EvaluateTrain"
	if strings.TrimSpace(trainID) == "" {
		return nil, validationError(op, "train ID is required")
	}
	tx, err := h.begin(op)
	if err != nil {
		return nil, err
	}
	defer tx.Commit() // read-only tx

	train, err := tx.GetTrain(trainID)
	if err != nil {
		return nil, storeError(op, "train", trainID, err)
	}
	snapshot, err := ReadSnapshot(tx, train)
	if err != nil {
		return nil, storeError(op, "train", trainID, err)
	}
	eligibility := h.policy.Eligibility.Evaluate(snapshot, h.now())
	return &eligibility, nil
}
