package emergency

import (
	"fmt"
	"sort"
	"strings"
	"time"

	altmath "github.com/pkg/math"
	"github.com/railops/fleetcrisis/dataobjects"
	"github.com/thoas/go-funk"
)

// CrisisOptimizationPlan is the result of a fleet-wide reoptimization
type CrisisOptimizationPlan struct {
	CrisisID         string
	Actions          dataobjects.CrisisActions
	DeployedTrains   []string
	ReassignedTrains []string
	InitialDeficit   int
	RemainingDeficit int
	GeneratedAt      time.Time
}

// FullFleetReoptimization reallocates the whole fleet during a crisis: eligible standby trains
// are deployed (except those awaiting the decision on a pending plan), trains on low-demand routes are moved to the most critical route and, if that
// is not enough, reduced frequencies are advised. Repairs of withdrawn trains are always expedited.
// Actions are applied to the fleet and appended to the action log of the active crisis
func (h *Handler) FullFleetReoptimization() (*CrisisOptimizationPlan, error) {
	const op = "FullFleetReoptimization"
	now := h.now()

	tx, err := h.begin(op)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	state, err := tx.GetActiveCrisisState()
	if err != nil {
		if dataobjects.IsNotFound(err) {
			return nil, invalidStateError(op, "crisis state", "", "no crisis is active")
		}
		return nil, storeError(op, "crisis state", "", err)
	}

	_, _, deficit, err := h.fleetDeficit(tx)
	if err != nil {
		return nil, storeError(op, "train", "", err)
	}
	plan := &CrisisOptimizationPlan{
		CrisisID:         state.ID,
		Actions:          dataobjects.CrisisActions{},
		DeployedTrains:   []string{},
		ReassignedTrains: []string{},
		InitialDeficit:   deficit,
		GeneratedAt:      now,
	}
	criticalRoutes := h.policy.Crisis.CriticalRoutes

	// 1. deploy every eligible standby train not held as the replacement of a pending plan
	ranked, _, err := h.rankCandidates(tx, now)
	if err != nil {
		return nil, storeError(op, "", "", err)
	}
	reserved, err := pendingReplacements(tx)
	if err != nil {
		return nil, storeError(op, "emergency plan", "", err)
	}
	candidates := []Eligibility{}
	for _, candidate := range ranked {
		if funk.ContainsString(reserved, candidate.TrainID) {
			h.logger.Printf("Train %s held for a pending emergency plan, not deployed", candidate.TrainID)
			continue
		}
		candidates = append(candidates, candidate)
	}
	deployRoutes := []string{}
	for i, candidate := range candidates {
		if err := tx.UpdateTrainStatus(candidate.TrainID, dataobjects.TrainInService); err != nil {
			return nil, storeError(op, "train", candidate.TrainID, err)
		}
		if len(criticalRoutes) > 0 {
			route := criticalRoutes[i%len(criticalRoutes)]
			if _, err := h.reassignRoute(tx, candidate.TrainID, route, dataobjects.AssignmentRevenue, now); err != nil {
				return nil, storeError(op, "route assignment", candidate.TrainID, err)
			}
			if !funk.ContainsString(deployRoutes, route) {
				deployRoutes = append(deployRoutes, route)
			}
		}
		plan.DeployedTrains = append(plan.DeployedTrains, candidate.TrainID)
	}
	if len(plan.DeployedTrains) > 0 {
		plan.Actions = append(plan.Actions, dataobjects.CrisisAction{
			Kind:     dataobjects.ActionDeployStandby,
			Time:     now,
			TrainIDs: plan.DeployedTrains,
			Routes:   deployRoutes,
			Count:    len(plan.DeployedTrains),
			Note:     "eligible standby trains deployed immediately",
		})
	}

	// 2. move trains from low-demand routes to the most critical route
	reassignCount := 0
	if len(criticalRoutes) > 0 && len(h.policy.Crisis.LowDemandRoutes) > 0 {
		lowDemand, err := h.lowDemandTrains(tx)
		if err != nil {
			return nil, storeError(op, "route assignment", "", err)
		}
		reassignCount = altmath.Min(deficit, len(lowDemand))
		for _, assignment := range lowDemand[:reassignCount] {
			if _, err := h.reassignRoute(tx, assignment.TrainID, criticalRoutes[0], dataobjects.AssignmentReassigned, now); err != nil {
				return nil, storeError(op, "route assignment", assignment.TrainID, err)
			}
			plan.ReassignedTrains = append(plan.ReassignedTrains, assignment.TrainID)
			plan.Actions = append(plan.Actions, dataobjects.CrisisAction{
				Kind:      dataobjects.ActionReassignRoute,
				Time:      now,
				TrainIDs:  []string{assignment.TrainID},
				FromRoute: assignment.RouteID,
				ToRoute:   criticalRoutes[0],
				Count:     1,
			})
		}
	}

	// 3. advise reduced frequencies for the deficit that remains
	plan.RemainingDeficit = altmath.Max(0, deficit-reassignCount)
	if plan.RemainingDeficit > 0 {
		plan.Actions = append(plan.Actions, dataobjects.CrisisAction{
			Kind:   dataobjects.ActionReduceFrequency,
			Time:   now,
			Routes: h.policy.Crisis.LowDemandRoutes,
			Count:  plan.RemainingDeficit,
			Note:   fmt.Sprintf("still %d trains short, reduce frequency on low-demand routes", plan.RemainingDeficit),
		})
	}

	// 4. expedite repairs of every withdrawn train
	withdrawn, err := tx.GetTrainsWithStatus(dataobjects.TrainEmergencyWithdrawn)
	if err != nil {
		return nil, storeError(op, "train", "", err)
	}
	withdrawnIDs := make([]string, len(withdrawn))
	for i, train := range withdrawn {
		withdrawnIDs[i] = train.ID
	}
	plan.Actions = append(plan.Actions, dataobjects.CrisisAction{
		Kind:     dataobjects.ActionExpediteRepairs,
		Time:     now,
		TrainIDs: withdrawnIDs,
		Count:    len(withdrawnIDs),
		Note:     "prioritize maintenance of withdrawn trains",
	})

	state.Actions = append(state.Actions, plan.Actions...)
	state.ServiceDeficit = plan.RemainingDeficit
	state.UpdatedAt = now
	if err := tx.UpdateCrisisState(state); err != nil {
		return nil, storeError(op, "crisis state", state.ID, err)
	}

	event := Event{
		Kind:     EventCrisisReoptimized,
		Time:     now,
		Severity: dataobjects.SeverityHigh,
		Title:    "Fleet reoptimized",
		Message: fmt.Sprintf("%d standby trains deployed, %d trains moved to critical routes, remaining deficit %d. Expedite repairs of: %s.",
			len(plan.DeployedTrains), len(plan.ReassignedTrains), plan.RemainingDeficit, strings.Join(withdrawnIDs, ", ")),
		Audience: AudienceOperators,
		TrainIDs: append(append([]string{}, plan.DeployedTrains...), plan.ReassignedTrains...),
		CrisisID: state.ID,
	}
	if err := h.commit(op, tx, []Event{event}); err != nil {
		return nil, err
	}
	h.logger.Printf("Crisis %s reoptimized: %d deployed, %d reassigned, deficit %d -> %d",
		state.ID, len(plan.DeployedTrains), len(plan.ReassignedTrains), deficit, plan.RemainingDeficit)
	return plan, nil
}

// pendingReplacements returns the replacement trains of the pending plans of active emergencies
func pendingReplacements(tx Store) ([]string, error) {
	logs, err := tx.GetActiveEmergencyLogs()
	if err != nil {
		return nil, err
	}
	trainIDs := []string{}
	for _, elog := range logs {
		plans, err := tx.GetEmergencyPlansForLog(elog.ID)
		if err != nil {
			return nil, err
		}
		for _, plan := range plans {
			if plan.Status == dataobjects.PlanPending && !funk.ContainsString(trainIDs, plan.ReplacementTrainID) {
				trainIDs = append(trainIDs, plan.ReplacementTrainID)
			}
		}
	}
	return trainIDs, nil
}

// lowDemandTrains returns the active assignments of in-service trains on low-demand routes, by train ID
func (h *Handler) lowDemandTrains(tx Store) ([]*dataobjects.RouteAssignment, error) {
	assignments, err := tx.GetActiveRouteAssignments(h.policy.Crisis.LowDemandRoutes...)
	if err != nil {
		return nil, err
	}
	inService, err := tx.GetTrainsWithStatus(dataobjects.TrainInService)
	if err != nil {
		return nil, err
	}
	inServiceIDs := make([]string, len(inService))
	for i, train := range inService {
		inServiceIDs[i] = train.ID
	}

	result := []*dataobjects.RouteAssignment{}
	for _, assignment := range assignments {
		if funk.ContainsString(inServiceIDs, assignment.TrainID) {
			result = append(result, assignment)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].TrainID < result[j].TrainID
	})
	return result, nil
}

// ReassignRoute closes the active route assignment of a train, if any, and opens a new one
// on the given route. Both happen in one transaction, so the train never has two active assignments
func (h *Handler) ReassignRoute(trainID, routeID string, assignmentType dataobjects.AssignmentType) (*dataobjects.RouteAssignment, error) {
	const op = "ReassignRoute"
	trainID = strings.TrimSpace(trainID)
	routeID = strings.TrimSpace(routeID)
	if trainID == "" {
		return nil, validationError(op, "train ID is required")
	}
	if routeID == "" {
		return nil, validationError(op, "route ID is required")
	}
	if assignmentType == "" {
		assignmentType = dataobjects.AssignmentRevenue
	}
	switch assignmentType {
	case dataobjects.AssignmentRevenue, dataobjects.AssignmentStandby, dataobjects.AssignmentReassigned:
	default:
		return nil, validationError(op, fmt.Sprintf("unknown assignment type %q", assignmentType))
	}

	tx, err := h.begin(op)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.GetTrain(trainID); err != nil {
		return nil, storeError(op, "train", trainID, err)
	}
	assignment, err := h.reassignRoute(tx, trainID, routeID, assignmentType, h.now())
	if err != nil {
		return nil, storeError(op, "route assignment", trainID, err)
	}
	if err := h.commit(op, tx, nil); err != nil {
		return nil, err
	}
	return assignment, nil
}

func (h *Handler) reassignRoute(node Store, trainID, routeID string, assignmentType dataobjects.AssignmentType, now time.Time) (*dataobjects.RouteAssignment, error) {
	tx, err := node.Beginx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.CloseActiveRouteAssignment(trainID, now); err != nil {
		return nil, err
	}
	id, err := newID()
	if err != nil {
		return nil, err
	}
	assignment := &dataobjects.RouteAssignment{
		ID:        id,
		TrainID:   trainID,
		RouteID:   routeID,
		Type:      assignmentType,
		StartTime: now,
		Status:    dataobjects.AssignmentActive,
	}
	if err := tx.CreateRouteAssignment(assignment); err != nil {
		return nil, err
	}
	return assignment, tx.Commit()
}

// ReduceFrequency records a reduction of the service frequency of a route, linked to the
// active crisis if there is one, and announces it to the public. The route must be designated
// in the crisis policy or have trains assigned to it
func (h *Handler) ReduceFrequency(routeID string, headway time.Duration, reason string) (*dataobjects.FrequencyAdjustment, error) {
	const op = "ReduceFrequency"
	routeID = strings.TrimSpace(routeID)
	if routeID == "" {
		return nil, validationError(op, "route ID is required")
	}
	if headway <= 0 {
		return nil, validationError(op, "headway must be positive")
	}
	now := h.now()

	tx, err := h.begin(op)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if !h.policy.Crisis.IsRoute(routeID) {
		assignments, err := tx.GetActiveRouteAssignments(routeID)
		if err != nil {
			return nil, storeError(op, "route assignment", "", err)
		}
		if len(assignments) == 0 {
			return nil, validationError(op, fmt.Sprintf("unknown route %q", routeID))
		}
	}

	id, err := newID()
	if err != nil {
		return nil, storeError(op, "", "", err)
	}
	adjustment := &dataobjects.FrequencyAdjustment{
		ID:      id,
		RouteID: routeID,
		Time:    now,
		Headway: dataobjects.Duration(headway),
		Reason:  reason,
	}
	crisis, err := tx.GetActiveCrisisState()
	if err != nil && !dataobjects.IsNotFound(err) {
		return nil, storeError(op, "crisis state", "", err)
	}
	if crisis != nil {
		adjustment.CrisisID = crisis.ID
	}
	if err := tx.CreateFrequencyAdjustment(adjustment); err != nil {
		return nil, storeError(op, "frequency adjustment", id, err)
	}

	message := fmt.Sprintf("Trains on route %s will run every %d minutes", routeID, int(headway.Minutes()))
	if reason != "" {
		message += " due to " + reason
	}
	event := Event{
		Kind:     EventFrequencyReduced,
		Time:     now,
		Severity: dataobjects.SeverityMedium,
		Title:    "Reduced service on route " + routeID,
		Message:  message + ". We apologize for the inconvenience.",
		Audience: AudiencePublic,
		CrisisID: adjustment.CrisisID,
		RouteID:  routeID,
	}
	if err := h.commit(op, tx, []Event{event}); err != nil {
		return nil, err
	}
	h.logger.Printf("Headway of route %s set to %s", routeID, headway)
	return adjustment, nil
}
