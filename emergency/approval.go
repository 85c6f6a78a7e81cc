package emergency

import (
	"fmt"
	"strings"

	"github.com/railops/fleetcrisis/dataobjects"
)

// ApprovePlan applies an operator decision to a pending plan.
// An approved plan puts its replacement train in service on the plan's route and becomes
// executed; a rejected plan changes nothing in the fleet. Plans that are not pending cannot
// be decided again
func (h *Handler) ApprovePlan(planID string, approved bool, approvedBy, notes string) (*dataobjects.EmergencyPlan, error) {
	const op = "ApprovePlan"
	if strings.TrimSpace(planID) == "" {
		return nil, validationError(op, "plan ID is required")
	}
	if strings.TrimSpace(approvedBy) == "" {
		return nil, validationError(op, "approvedBy is required")
	}
	now := h.now()

	tx, err := h.begin(op)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	plan, err := tx.GetEmergencyPlan(planID)
	if err != nil {
		return nil, storeError(op, "emergency plan", planID, err)
	}
	if plan.Status != dataobjects.PlanPending {
		return nil, invalidStateError(op, "emergency plan", plan.ID,
			fmt.Sprintf("plan is %s, only pending plans can be decided", plan.Status))
	}

	event := Event{
		Time:           now,
		Audience:       AudienceOperators,
		TrainIDs:       []string{plan.WithdrawnTrainID, plan.ReplacementTrainID},
		EmergencyLogID: plan.EmergencyLogID,
		PlanID:         plan.ID,
		RouteID:        plan.RouteID,
	}

	if approved {
		train, err := tx.GetTrain(plan.ReplacementTrainID)
		if err != nil {
			return nil, storeError(op, "train", plan.ReplacementTrainID, err)
		}
		if !train.Status.InStandbyPool() {
			return nil, invalidStateError(op, "train", train.ID,
				fmt.Sprintf("replacement train is %s, no longer in the standby pool", train.Status))
		}
		if err := tx.UpdateTrainStatus(train.ID, dataobjects.TrainInService); err != nil {
			return nil, storeError(op, "train", train.ID, err)
		}
		if plan.RouteID != "" {
			if _, err := h.reassignRoute(tx, train.ID, plan.RouteID, dataobjects.AssignmentRevenue, now); err != nil {
				return nil, storeError(op, "route assignment", train.ID, err)
			}
		}
		plan.Status = dataobjects.PlanExecuted
		event.Kind = EventPlanExecuted
		event.Severity = dataobjects.SeverityMedium
		event.Title = "Train " + train.ID + " deployed"
		event.Message = fmt.Sprintf("Plan %s approved by %s: train %s deployed to replace train %s", plan.ID, approvedBy, train.ID, plan.WithdrawnTrainID)
		if plan.RouteID != "" {
			event.Message += " on route " + plan.RouteID
		}
	} else {
		plan.Status = dataobjects.PlanRejected
		event.Kind = EventPlanRejected
		event.Severity = dataobjects.SeverityHigh
		event.Title = "Plan for train " + plan.WithdrawnTrainID + " rejected"
		event.Message = fmt.Sprintf("Plan %s rejected by %s. The breakdown of train %s needs a new plan", plan.ID, approvedBy, plan.WithdrawnTrainID)
	}
	if notes != "" {
		event.Message += ": " + notes
	}

	plan.Decided = true
	plan.DecidedAt = now
	plan.DecidedBy = approvedBy
	plan.Notes = notes
	if err := tx.UpdateEmergencyPlan(plan); err != nil {
		return nil, storeError(op, "emergency plan", plan.ID, err)
	}

	if err := h.commit(op, tx, []Event{event}); err != nil {
		return nil, err
	}
	h.logger.Printf("Plan %s %s by %s", plan.ID, plan.Status, approvedBy)
	return plan, nil
}
