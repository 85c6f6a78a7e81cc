package emergency

import (
	"fmt"
	"strings"
	"time"

	"github.com/SaidinWoT/timespan"
	altmath "github.com/pkg/math"
	"github.com/railops/fleetcrisis/dataobjects"
)

// supersededResolution is the resolution recorded on breakdowns closed by the end of a crisis
const supersededResolution = "superseded by crisis resolution"

// DetectCascadingCrisis returns whether enough breakdowns are active within the trailing
// cascade window to consider the fleet in a cascading failure
func (h *Handler) DetectCascadingCrisis() (bool, error) {
	const op = "DetectCascadingCrisis"
	tx, err := h.begin(op)
	if err != nil {
		return false, err
	}
	defer tx.Commit() // read-only tx

	count, err := tx.CountActiveBreakdownsSince(h.now().Add(-h.policy.Crisis.CascadeWindow))
	if err != nil {
		return false, storeError(op, "emergency log", "", err)
	}
	return count >= h.policy.Crisis.CascadeThreshold, nil
}

// ActivateCrisisMode creates the active crisis for the given withdrawn trains or, if a crisis
// is already active, adds them to it. It returns the active crisis and whether it was created
func (h *Handler) ActivateCrisisMode(triggeringTrainIDs []string) (*dataobjects.CrisisState, bool, error) {
	const op = "ActivateCrisisMode"
	ids := []string{}
	for _, id := range triggeringTrainIDs {
		id = strings.TrimSpace(id)
		if id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, false, validationError(op, "at least one triggering train is required")
	}

	tx, err := h.begin(op)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	state, created, events, err := h.activateCrisis(tx, op, ids, h.now())
	if err != nil {
		return nil, false, err
	}
	if err := h.commit(op, tx, events); err != nil {
		return nil, false, err
	}
	return state, created, nil
}

// fleetDeficit returns the fleet counts, the minimum number of trains required for service
// and how many trains short of it the fleet is
func (h *Handler) fleetDeficit(tx Store) (dataobjects.FleetCounts, int, int, error) {
	trains, err := tx.GetTrains()
	if err != nil {
		return dataobjects.FleetCounts{}, 0, 0, err
	}
	counts := dataobjects.CountFleet(trains)
	minimum := h.policy.Crisis.MinimumRequired(counts.Total)
	deficit := altmath.Max(0, minimum-(counts.InService+counts.Available))
	return counts, minimum, deficit, nil
}

func (h *Handler) activateCrisis(tx Store, op string, trainIDs []string, now time.Time) (*dataobjects.CrisisState, bool, []Event, error) {
	counts, minimum, deficit, err := h.fleetDeficit(tx)
	if err != nil {
		return nil, false, nil, storeError(op, "train", "", err)
	}
	id, err := newID()
	if err != nil {
		return nil, false, nil, storeError(op, "", "", err)
	}

	state, created, err := tx.MergeCrisisState(&dataobjects.CrisisState{
		ID:               id,
		ActivatedAt:      now,
		WithdrawalCount:  len(trainIDs),
		TriggeringTrains: trainIDs,
		FleetSize:        counts.Total,
		MinimumRequired:  minimum,
		ServiceDeficit:   deficit,
		Actions:          dataobjects.CrisisActions{},
		Status:           dataobjects.CrisisActive,
		UpdatedAt:        now,
	})
	if err != nil {
		return nil, false, nil, storeError(op, "crisis state", id, err)
	}

	var event Event
	if created {
		h.logger.Printf("Crisis %s activated by trains %s: fleet %d, %d in service, %d available, %d required, deficit %d",
			state.ID, strings.Join(trainIDs, ", "), counts.Total, counts.InService, counts.Available, minimum, deficit)
		event = Event{
			Kind:     EventCrisisActivated,
			Severity: dataobjects.SeverityCritical,
			Title:    "Crisis mode activated",
			Message: fmt.Sprintf("Crisis mode activated after the withdrawal of %s. %d of %d trains available for service, %d required (deficit of %d).",
				strings.Join(trainIDs, ", "), counts.InService+counts.Available, counts.Total, minimum, deficit),
			AllChannels: true,
		}
	} else {
		h.logger.Printf("Crisis %s escalated by trains %s: %d withdrawals", state.ID, strings.Join(trainIDs, ", "), state.WithdrawalCount)
		event = Event{
			Kind:     EventCrisisEscalated,
			Severity: dataobjects.SeverityHigh,
			Title:    "Crisis escalated",
			Message: fmt.Sprintf("Crisis escalated after the withdrawal of %s. %d trains withdrawn since the crisis began.",
				strings.Join(trainIDs, ", "), state.WithdrawalCount),
		}
	}
	event.Time = now
	event.Audience = AudienceOperators
	event.TrainIDs = trainIDs
	event.CrisisID = state.ID
	return state, created, []Event{event}, nil
}

// CrisisStatusView describes the crisis situation of the fleet
type CrisisStatusView struct {
	Active bool
	// Crisis is the active crisis, nil if there is none
	Crisis          *dataobjects.CrisisState
	Fleet           dataobjects.FleetCounts
	MinimumRequired int
	// ServiceDeficit is computed from the current fleet, independently of the active crisis
	ServiceDeficit int
	// RecentBreakdowns are the active breakdowns within the cascade window
	RecentBreakdowns []*dataobjects.EmergencyLog
	CascadeDetected  bool
	GeneratedAt      time.Time
}

// CrisisStatus returns the current crisis situation of the fleet
func (h *Handler) CrisisStatus() (*CrisisStatusView, error) {
	const op = "CrisisStatus"
	now := h.now()
	tx, err := h.begin(op)
	if err != nil {
		return nil, err
	}
	defer tx.Commit() // read-only tx

	view := &CrisisStatusView{GeneratedAt: now}
	view.Crisis, err = tx.GetActiveCrisisState()
	if err != nil && !dataobjects.IsNotFound(err) {
		return nil, storeError(op, "crisis state", "", err)
	}
	view.Active = view.Crisis != nil

	view.Fleet, view.MinimumRequired, view.ServiceDeficit, err = h.fleetDeficit(tx)
	if err != nil {
		return nil, storeError(op, "train", "", err)
	}

	window := timespan.New(now.Add(-h.policy.Crisis.CascadeWindow), h.policy.Crisis.CascadeWindow)
	logs, err := tx.GetActiveBreakdownsSince(window.Start())
	if err != nil {
		return nil, storeError(op, "emergency log", "", err)
	}
	view.RecentBreakdowns = []*dataobjects.EmergencyLog{}
	for _, elog := range logs {
		if !elog.Time.After(window.End()) {
			view.RecentBreakdowns = append(view.RecentBreakdowns, elog)
		}
	}
	view.CascadeDetected = len(view.RecentBreakdowns) >= h.policy.Crisis.CascadeThreshold
	return view, nil
}

// ResolveCrisis ends the active crisis and resolves every breakdown still active
func (h *Handler) ResolveCrisis(resolvedBy, notes string) (*dataobjects.CrisisState, error) {
	const op = "ResolveCrisis"
	if strings.TrimSpace(resolvedBy) == "" {
		return nil, validationError(op, "resolvedBy is required")
	}
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

	logs, err := tx.GetActiveEmergencyLogs()
	if err != nil {
		return nil, storeError(op, "emergency log", "", err)
	}
	for _, elog := range logs {
		resolveLog(elog, resolvedBy, supersededResolution, now)
		if err := tx.UpdateEmergencyLog(elog); err != nil {
			return nil, storeError(op, "emergency log", elog.ID, err)
		}
	}

	state.Status = dataobjects.CrisisResolved
	state.Resolved = true
	state.ResolvedAt = now
	state.ResolvedBy = resolvedBy
	state.ResolutionNotes = notes
	state.UpdatedAt = now
	if err := tx.UpdateCrisisState(state); err != nil {
		return nil, storeError(op, "crisis state", state.ID, err)
	}

	events := []Event{
		{
			Kind:     EventCrisisResolved,
			Time:     now,
			Severity: dataobjects.SeverityMedium,
			Title:    "Crisis resolved",
			Message: fmt.Sprintf("Crisis %s resolved by %s after %s, %d active breakdowns closed.",
				state.ID, resolvedBy, now.Sub(state.ActivatedAt).Round(time.Minute), len(logs)),
			Audience: AudienceOperators,
			CrisisID: state.ID,
		},
		{
			Kind:     EventCrisisResolved,
			Time:     now,
			Severity: dataobjects.SeverityLow,
			Title:    "Service restored",
			Message:  "Normal service has been restored across the network.",
			Audience: AudiencePublic,
			CrisisID: state.ID,
		},
	}
	if err := h.commit(op, tx, events); err != nil {
		return nil, err
	}
	h.logger.Printf("Crisis %s resolved by %s, %d breakdowns superseded", state.ID, resolvedBy, len(logs))
	return state, nil
}

// ResolveEmergency marks a breakdown as resolved
func (h *Handler) ResolveEmergency(emergencyLogID, resolvedBy, resolution string) (*dataobjects.EmergencyLog, error) {
	const op = "ResolveEmergency"
	if strings.TrimSpace(emergencyLogID) == "" {
		return nil, validationError(op, "emergency log ID is required")
	}
	if strings.TrimSpace(resolvedBy) == "" {
		return nil, validationError(op, "resolvedBy is required")
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
	if elog.Status == dataobjects.EmergencyResolved {
		return nil, invalidStateError(op, "emergency log", elog.ID, "emergency is already resolved")
	}
	resolveLog(elog, resolvedBy, resolution, now)
	if err := tx.UpdateEmergencyLog(elog); err != nil {
		return nil, storeError(op, "emergency log", elog.ID, err)
	}

	event := Event{
		Kind:           EventEmergencyResolved,
		Time:           now,
		Severity:       dataobjects.SeverityLow,
		Title:          "Breakdown of train " + elog.TrainID + " resolved",
		Message:        fmt.Sprintf("Breakdown %s of train %s resolved by %s: %s", elog.ID, elog.TrainID, resolvedBy, resolution),
		Audience:       AudienceOperators,
		TrainIDs:       []string{elog.TrainID},
		EmergencyLogID: elog.ID,
	}
	if err := h.commit(op, tx, []Event{event}); err != nil {
		return nil, err
	}
	return elog, nil
}

func resolveLog(elog *dataobjects.EmergencyLog, resolvedBy, resolution string, now time.Time) {
	elog.Status = dataobjects.EmergencyResolved
	elog.Resolved = true
	elog.ResolvedAt = now
	elog.ResolvedBy = resolvedBy
	elog.Resolution = resolution
}
