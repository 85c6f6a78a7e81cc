package emergency

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/hako/durafmt"
	"github.com/railops/fleetcrisis/dataobjects"
)

// MaxFallbacks is the number of ranked alternatives kept in a plan besides the primary replacement
const MaxFallbacks = 3

// MaxLocationLength is the maximum length, in characters, of the location of a breakdown
const MaxLocationLength = 200

var fallbackLabels = []string{"B", "C", "D"}

// BreakdownAlert is the signal that a train broke down
type BreakdownAlert struct {
	TrainID     string
	FaultCode   string
	Severity    dataobjects.Severity
	Location    string
	Description string
	ReportedBy  string
	// AffectedRoute is used as the route of the plan when the train has no active route assignment
	AffectedRoute string
}

// BreakdownResult is the outcome of HandleBreakdown
type BreakdownResult struct {
	EmergencyLogID string
	PlanGenerated  bool
	PlanID         string
	// CrisisMode is whether a crisis is active after the breakdown was handled
	CrisisMode bool
	// CrisisActivated is whether the breakdown started a new crisis
	CrisisActivated bool
	CrisisID        string
}

func (alert *BreakdownAlert) normalize() error {
	alert.TrainID = strings.TrimSpace(alert.TrainID)
	alert.FaultCode = strings.TrimSpace(alert.FaultCode)
	alert.AffectedRoute = strings.TrimSpace(alert.AffectedRoute)
	if alert.TrainID == "" {
		return validationError("HandleBreakdown", "train ID is required")
	}
	if alert.FaultCode == "" {
		return validationError("HandleBreakdown", "fault code is required")
	}
	if alert.Severity == "" {
		alert.Severity = dataobjects.SeverityCritical
	}
	if !alert.Severity.Valid() {
		return validationError("HandleBreakdown", fmt.Sprintf("unknown severity %q", alert.Severity))
	}
	if utf8.RuneCountInString(alert.Location) > MaxLocationLength {
		return validationError("HandleBreakdown", fmt.Sprintf("location longer than %d characters", MaxLocationLength))
	}
	return nil
}

// HandleBreakdown withdraws the train named in the alert, records the breakdown with a
// critical job card and proposes a replacement plan using the fastest eligible standby train.
// When there is no eligible train, or the breakdown is part of a cascade, crisis mode is
// activated. Either everything is persisted or nothing is
func (h *Handler) HandleBreakdown(alert BreakdownAlert) (*BreakdownResult, error) {
	const op = "HandleBreakdown"
	if err := alert.normalize(); err != nil {
		return nil, err
	}
	now := h.now()

	tx, err := h.begin(op)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	train, err := tx.GetTrain(alert.TrainID)
	if err != nil {
		return nil, storeError(op, "train", alert.TrainID, err)
	}
	if train.Status == dataobjects.TrainEmergencyWithdrawn {
		return nil, invalidStateError(op, "train", train.ID, "train is already withdrawn")
	}

	logID, err := newID()
	if err != nil {
		return nil, storeError(op, "", "", err)
	}
	elog := &dataobjects.EmergencyLog{
		ID:          logID,
		TrainID:     train.ID,
		FaultCode:   alert.FaultCode,
		Severity:    alert.Severity,
		Location:    alert.Location,
		Description: alert.Description,
		ReportedBy:  alert.ReportedBy,
		Time:        now,
		Status:      dataobjects.EmergencyActive,
	}
	if err := tx.CreateEmergencyLog(elog); err != nil {
		return nil, storeError(op, "emergency log", logID, err)
	}
	if err := tx.UpdateTrainStatus(train.ID, dataobjects.TrainEmergencyWithdrawn); err != nil {
		return nil, storeError(op, "train", train.ID, err)
	}
	if _, err := tx.CloseActiveRouteAssignment(train.ID, now); err != nil {
		return nil, storeError(op, "route assignment", train.ID, err)
	}

	cardID, err := newID()
	if err != nil {
		return nil, storeError(op, "", "", err)
	}
	card := &dataobjects.JobCard{
		ID:          cardID,
		Number:      dataobjects.NewEmergencyJobCardNumber(),
		TrainID:     train.ID,
		Priority:    dataobjects.JobPriorityCritical,
		Status:      dataobjects.JobOpen,
		Title:       "Emergency withdrawal: " + alert.FaultCode,
		Description: breakdownDescription(elog),
		FaultCode:   alert.FaultCode,
		CreatedAt:   now,
	}
	if err := tx.CreateJobCard(card); err != nil {
		return nil, storeError(op, "job card", cardID, err)
	}
	h.logger.Printf("Breakdown of train %s logged as %s (fault %s, severity %s), job card %s created",
		train.ID, elog.ID, elog.FaultCode, elog.Severity, card.Number)

	candidates, evaluated, err := h.rankCandidates(tx, now)
	if err != nil {
		return nil, storeError(op, "", "", err)
	}

	result := &BreakdownResult{EmergencyLogID: elog.ID}
	events := []Event{}

	var plan *dataobjects.EmergencyPlan
	if len(candidates) > 0 {
		plan, err = h.buildPlan(elog, h.planRoute(train.CurrentRoute, alert.AffectedRoute), candidates, evaluated, now)
		if err != nil {
			return nil, storeError(op, "", "", err)
		}
		if err := tx.CreateEmergencyPlan(plan); err != nil {
			return nil, storeError(op, "emergency plan", plan.ID, err)
		}
		result.PlanGenerated = true
		result.PlanID = plan.ID
		h.logger.Printf("Emergency plan %s: replace %s with %s in %d minutes, %d fallbacks",
			plan.ID, train.ID, plan.ReplacementTrainID, plan.DeploymentMinutes, len(plan.Fallbacks))
	} else {
		h.logger.Printf("No eligible replacement for train %s among %d standby trains", train.ID, evaluated)
	}

	crisis, created, crisisEvents, err := h.consultCrisis(tx, train.ID, len(candidates) == 0, now)
	if err != nil {
		return nil, err
	}
	events = append(events, crisisEvents...)
	if crisis != nil {
		result.CrisisMode = true
		result.CrisisActivated = created
		result.CrisisID = crisis.ID
	}

	events = append([]Event{breakdownEvent(elog, plan, result, now)}, events...)
	if err := h.commit(op, tx, events); err != nil {
		return nil, err
	}

	if created && h.policy.Crisis.AutoReoptimize {
		if _, err := h.FullFleetReoptimization(); err != nil {
			h.logger.Println("Automatic reoptimization after crisis activation failed:", err)
		}
	}
	return result, nil
}

// consultCrisis decides whether the breakdown of trainID activates or escalates a crisis.
// It returns the active crisis, or nil if there is none, and whether it was created
func (h *Handler) consultCrisis(tx Store, trainID string, noCandidates bool, now time.Time) (*dataobjects.CrisisState, bool, []Event, error) {
	const op = "HandleBreakdown"
	active, err := tx.GetActiveCrisisState()
	if err != nil && !dataobjects.IsNotFound(err) {
		return nil, false, nil, storeError(op, "crisis state", "", err)
	}

	switch {
	case noCandidates || active != nil:
		return h.activateCrisis(tx, op, []string{trainID}, now)
	default:
		since := now.Add(-h.policy.Crisis.CascadeWindow)
		logs, err := tx.GetActiveBreakdownsSince(since)
		if err != nil {
			return nil, false, nil, storeError(op, "emergency log", "", err)
		}
		if len(logs) < h.policy.Crisis.CascadeThreshold {
			return nil, false, nil, nil
		}
		h.logger.Printf("Cascading failure: %d active breakdowns since %s", len(logs), since.Format(time.RFC3339))
		return h.activateCrisis(tx, op, breakdownTrains(logs), now)
	}
}

// rankCandidates evaluates every train in the standby pool and returns the eligible ones,
// fastest first, along with the number of trains evaluated
func (h *Handler) rankCandidates(tx Store, now time.Time) ([]Eligibility, int, error) {
	trains, err := tx.GetTrainsWithStatus(dataobjects.StandbyPool...)
	if err != nil {
		return nil, 0, err
	}
	snapshots, err := ReadSnapshots(tx, trains)
	if err != nil {
		return nil, 0, err
	}

	results := h.evaluateAll(snapshots, now)
	eligible := []Eligibility{}
	for _, result := range results {
		if result.Eligible {
			eligible = append(eligible, result)
		}
	}
	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].ReadinessMinutes == eligible[j].ReadinessMinutes {
			return eligible[i].TrainID < eligible[j].TrainID
		}
		return eligible[i].ReadinessMinutes < eligible[j].ReadinessMinutes
	})
	return eligible, len(trains), nil
}

// evaluateAll evaluates the snapshots concurrently. Results are in the same order as the snapshots
func (h *Handler) evaluateAll(snapshots []*TrainSnapshot, now time.Time) []Eligibility {
	results := make([]Eligibility, len(snapshots))
	var wg sync.WaitGroup
	for i := range snapshots {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = h.policy.Eligibility.Evaluate(snapshots[i], now)
		}(i)
	}
	wg.Wait()
	return results
}

// planRoute picks the route for a replacement train
func (h *Handler) planRoute(currentRoute, affectedRoute string) string {
	switch {
	case currentRoute != "":
		return currentRoute
	case affectedRoute != "":
		return affectedRoute
	case len(h.policy.Crisis.CriticalRoutes) > 0:
		return h.policy.Crisis.CriticalRoutes[0]
	}
	return ""
}

func (h *Handler) buildPlan(elog *dataobjects.EmergencyLog, route string, candidates []Eligibility, evaluated int, now time.Time) (*dataobjects.EmergencyPlan, error) {
	id, err := newID()
	if err != nil {
		return nil, err
	}
	primary := candidates[0]

	reasoning := []string{
		fmt.Sprintf("fastest of %d eligible trains out of %d in the standby pool", len(candidates), evaluated),
	}
	reasoning = append(reasoning, primary.Reasons...)

	fallbacks := dataobjects.FallbackOptions{}
	for i, candidate := range candidates[1:] {
		if i >= MaxFallbacks {
			break
		}
		fallbacks = append(fallbacks, dataobjects.FallbackOption{
			Label:            fallbackLabels[i],
			TrainID:          candidate.TrainID,
			ReadinessMinutes: candidate.ReadinessMinutes,
			Reasons:          candidate.Reasons,
		})
	}

	return &dataobjects.EmergencyPlan{
		ID:                 id,
		EmergencyLogID:     elog.ID,
		WithdrawnTrainID:   elog.TrainID,
		ReplacementTrainID: primary.TrainID,
		RouteID:            route,
		DeploymentMinutes:  primary.ReadinessMinutes,
		Readiness:          primary.Readiness,
		Reasoning:          reasoning,
		Steps:              executionSteps(elog.TrainID, primary, route),
		Fallbacks:          fallbacks,
		Status:             dataobjects.PlanPending,
		CreatedAt:          now,
	}, nil
}

// executionSteps returns the script to deploy the replacement train. Step durations come
// from the readiness estimate of the replacement
func executionSteps(withdrawnTrainID string, replacement Eligibility, route string) dataobjects.ExecutionSteps {
	destination := "into service"
	if route != "" {
		destination = "on route " + route
	}
	r := replacement.Readiness
	return dataobjects.ExecutionSteps{
		{
			Order:       1,
			Kind:        dataobjects.StepNotifyCrew,
			Description: fmt.Sprintf("Notify the crew of train %s to prepare for deployment", replacement.TrainID),
			Minutes:     r.CrewNotification,
		},
		{
			Order:       2,
			Kind:        dataobjects.StepShunt,
			Description: fmt.Sprintf("Shunt train %s from its stabling bay to the departure position", replacement.TrainID),
			Minutes:     r.Shunting,
		},
		{
			Order:       3,
			Kind:        dataobjects.StepSafetyCheck,
			Description: fmt.Sprintf("Carry out the pre-departure safety check of train %s", replacement.TrainID),
			Minutes:     r.SafetyCheck,
		},
		{
			Order:       4,
			Kind:        dataobjects.StepDeploy,
			Description: fmt.Sprintf("Deploy train %s %s to replace train %s", replacement.TrainID, destination, withdrawnTrainID),
			Minutes:     0,
		},
	}
}

// Replan runs a new planning pass for an active breakdown whose plans were all rejected
func (h *Handler) Replan(emergencyLogID string) (*BreakdownResult, error) {
	const op = "Replan"
	if strings.TrimSpace(emergencyLogID) == "" {
		return nil, validationError(op, "emergency log ID is required")
	}
	now := h.now()

	tx, err := h.begin(op)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	elog, err := tx.GetEmergencyLog(emergencyLogID)
	if err != nil {
		return nil, storeError(op, "emergency log", emergencyLogID, err)
	}
	if elog.Status != dataobjects.EmergencyActive {
		return nil, invalidStateError(op, "emergency log", elog.ID, "emergency is resolved")
	}
	plans, err := tx.GetEmergencyPlansForLog(elog.ID)
	if err != nil {
		return nil, storeError(op, "emergency plan", "", err)
	}
	route := ""
	for _, plan := range plans {
		if plan.Status.Active() {
			return nil, invalidStateError(op, "emergency plan", plan.ID, "emergency already has a plan that was not rejected")
		}
		route = plan.RouteID
	}
	if route == "" {
		route = h.planRoute("", "")
	}

	candidates, evaluated, err := h.rankCandidates(tx, now)
	if err != nil {
		return nil, storeError(op, "", "", err)
	}
	result := &BreakdownResult{EmergencyLogID: elog.ID}
	var plan *dataobjects.EmergencyPlan
	if len(candidates) > 0 {
		plan, err = h.buildPlan(elog, route, candidates, evaluated, now)
		if err != nil {
			return nil, storeError(op, "", "", err)
		}
		if err := tx.CreateEmergencyPlan(plan); err != nil {
			return nil, storeError(op, "emergency plan", plan.ID, err)
		}
		result.PlanGenerated = true
		result.PlanID = plan.ID
	}

	crisis, err := tx.GetActiveCrisisState()
	if err != nil && !dataobjects.IsNotFound(err) {
		return nil, storeError(op, "crisis state", "", err)
	}
	if crisis != nil {
		result.CrisisMode = true
		result.CrisisID = crisis.ID
	}

	event := breakdownEvent(elog, plan, result, now)
	event.Kind = EventReplanned
	event.Title = "Replanning for train " + elog.TrainID
	if err := h.commit(op, tx, []Event{event}); err != nil {
		return nil, err
	}
	h.logger.Printf("Replanned emergency %s: plan generated %v", elog.ID, result.PlanGenerated)
	return result, nil
}

func breakdownDescription(elog *dataobjects.EmergencyLog) string {
	description := fmt.Sprintf("Train %s withdrawn from service after fault %s (severity %s)", elog.TrainID, elog.FaultCode, elog.Severity)
	if elog.Location != "" {
		description += " at " + elog.Location
	}
	if elog.Description != "" {
		description += ": " + elog.Description
	}
	return description
}

func breakdownEvent(elog *dataobjects.EmergencyLog, plan *dataobjects.EmergencyPlan, result *BreakdownResult, now time.Time) Event {
	event := Event{
		Kind:           EventBreakdownHandled,
		Time:           now,
		Severity:       dataobjects.SeverityCritical,
		Title:          "Breakdown of train " + elog.TrainID,
		Audience:       AudienceOperators,
		TrainIDs:       []string{elog.TrainID},
		EmergencyLogID: elog.ID,
		CrisisID:       result.CrisisID,
	}
	message := breakdownDescription(elog) + ". "
	if plan != nil {
		event.PlanID = plan.ID
		event.RouteID = plan.RouteID
		event.TrainIDs = append(event.TrainIDs, plan.ReplacementTrainID)
		message += fmt.Sprintf("Proposed replacement: train %s, ready in %s", plan.ReplacementTrainID,
			durafmt.Parse(plan.Readiness.Duration()).String())
		if len(plan.Fallbacks) > 0 {
			labels := make([]string, len(plan.Fallbacks))
			for i, fallback := range plan.Fallbacks {
				labels[i] = fmt.Sprintf("%s: %s (%d min)", fallback.Label, fallback.TrainID, fallback.ReadinessMinutes)
			}
			message += ". Fallbacks " + strings.Join(labels, ", ")
		}
		message += ". Awaiting approval."
	} else {
		message += "No eligible replacement train is available."
	}
	if result.CrisisActivated {
		message += " Crisis mode activated."
	} else if result.CrisisMode {
		message += " Crisis mode is active."
	}
	event.Message = message
	return event
}

// breakdownTrains returns the distinct trains of logs, in the order they appear
func breakdownTrains(logs []*dataobjects.EmergencyLog) []string {
	seen := make(map[string]bool)
	trains := []string{}
	for _, elog := range logs {
		if !seen[elog.TrainID] {
			seen[elog.TrainID] = true
			trains = append(trains, elog.TrainID)
		}
	}
	return trains
}
