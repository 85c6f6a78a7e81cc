package emergency_test

import (
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/railops/fleetcrisis/dataobjects"
	"github.com/railops/fleetcrisis/emergency"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleBreakdownProposesFastestReplacement(t *testing.T) {
	f := newFixture(t, testPolicy())
	f.standardFleet()

	result := f.breakdown("T-17")
	assert.True(t, result.PlanGenerated)
	assert.False(t, result.CrisisMode)
	assert.False(t, result.CrisisActivated)
	assert.NotEmpty(t, result.EmergencyLogID)

	view, err := f.handler.GetPlan(result.PlanID)
	require.NoError(t, err)
	plan := view.Plan
	assert.Equal(t, "T-17", plan.WithdrawnTrainID)
	assert.Equal(t, "T-20", plan.ReplacementTrainID)
	assert.Equal(t, "R-1", plan.RouteID)
	assert.Equal(t, 21, plan.DeploymentMinutes)
	assert.Equal(t, dataobjects.Readiness{CrewNotification: 5, Shunting: 12, SafetyCheck: 4}, plan.Readiness)
	assert.Equal(t, dataobjects.PlanPending, plan.Status)
	assert.NotEmpty(t, plan.Reasoning)

	require.Len(t, plan.Fallbacks, 1)
	assert.Equal(t, "B", plan.Fallbacks[0].Label)
	assert.Equal(t, "T-21", plan.Fallbacks[0].TrainID)
	assert.Equal(t, 24, plan.Fallbacks[0].ReadinessMinutes)

	require.Len(t, plan.Steps, 4)
	kinds := []dataobjects.StepKind{}
	minutes := 0
	for _, step := range plan.Steps {
		kinds = append(kinds, step.Kind)
		minutes += step.Minutes
	}
	assert.Equal(t, []dataobjects.StepKind{
		dataobjects.StepNotifyCrew, dataobjects.StepShunt, dataobjects.StepSafetyCheck, dataobjects.StepDeploy}, kinds)
	assert.Equal(t, plan.DeploymentMinutes, minutes)

	assert.Equal(t, result.EmergencyLogID, view.EmergencyLog.ID)
	assert.Equal(t, dataobjects.SeverityCritical, view.EmergencyLog.Severity)
	assert.Equal(t, dataobjects.EmergencyActive, view.EmergencyLog.Status)
	assert.Equal(t, fixtureNow, view.EmergencyLog.Time)
}

func TestHandleBreakdownWithdrawsTrain(t *testing.T) {
	f := newFixture(t, testPolicy())
	f.standardFleet()

	f.breakdown("T-17")

	assert.Equal(t, dataobjects.TrainEmergencyWithdrawn, f.trainStatus("T-17"))
	assert.Equal(t, dataobjects.TrainStandby, f.trainStatus("T-20"))

	_, err := f.store.GetActiveRouteAssignment("T-17")
	assert.True(t, dataobjects.IsNotFound(err))

	cards, err := f.store.GetJobCards("T-17")
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, dataobjects.JobPriorityCritical, cards[0].Priority)
	assert.Equal(t, dataobjects.JobOpen, cards[0].Status)
	assert.Equal(t, "TRACTION_FAILURE", cards[0].FaultCode)
	assert.True(t, strings.HasPrefix(cards[0].Number, "EMG-"))

	assert.Equal(t, []emergency.EventKind{emergency.EventBreakdownHandled}, f.events.kinds())
}

func TestHandleBreakdownRouteFallback(t *testing.T) {
	f := newFixture(t, testPolicy())
	f.standardFleet()
	f.train("T-30", dataobjects.TrainInService)

	result, err := f.handler.HandleBreakdown(emergency.BreakdownAlert{
		TrainID:       "T-30",
		FaultCode:     "DOOR_FAULT",
		Severity:      dataobjects.SeverityHigh,
		AffectedRoute: "R-9",
	})
	require.NoError(t, err)

	view, err := f.handler.GetPlan(result.PlanID)
	require.NoError(t, err)
	assert.Equal(t, "R-9", view.Plan.RouteID)
	assert.Equal(t, dataobjects.SeverityHigh, view.EmergencyLog.Severity)
}

func TestHandleBreakdownValidation(t *testing.T) {
	f := newFixture(t, testPolicy())
	f.standardFleet()

	alerts := []emergency.BreakdownAlert{
		{FaultCode: "TRACTION_FAILURE"},
		{TrainID: "T-17"},
		{TrainID: "T-17", FaultCode: "TRACTION_FAILURE", Severity: "APOCALYPTIC"},
		{TrainID: "T-17", FaultCode: "TRACTION_FAILURE", Location: strings.Repeat("x", emergency.MaxLocationLength+1)},
	}
	for _, alert := range alerts {
		_, err := f.handler.HandleBreakdown(alert)
		assert.True(t, emergency.IsValidation(err), "alert %+v: %v", alert, err)
	}

	logs, err := f.handler.ListEmergencies(false)
	require.NoError(t, err)
	assert.Empty(t, logs)
	assert.Equal(t, dataobjects.TrainInService, f.trainStatus("T-17"))
	assert.Empty(t, f.events.kinds())
}

func TestHandleBreakdownUnknownTrain(t *testing.T) {
	f := newFixture(t, testPolicy())
	f.standardFleet()

	_, err := f.handler.HandleBreakdown(emergency.BreakdownAlert{TrainID: "T-99", FaultCode: "TRACTION_FAILURE"})
	assert.True(t, emergency.IsNotFound(err))
}

func TestHandleBreakdownAlreadyWithdrawn(t *testing.T) {
	f := newFixture(t, testPolicy())
	f.standardFleet()
	f.breakdown("T-17")

	_, err := f.handler.HandleBreakdown(emergency.BreakdownAlert{TrainID: "T-17", FaultCode: "TRACTION_FAILURE"})
	assert.True(t, emergency.IsInvalidState(err))

	logs, err := f.handler.ListEmergencies(false)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestHandleBreakdownWithoutReplacementActivatesCrisis(t *testing.T) {
	f := newFixture(t, testPolicy())
	f.inService("T-17", "R-1")
	f.train("T-22", dataobjects.TrainStandby)
	f.certificate("T-22", dataobjects.DepartmentSignalling, -2*time.Hour)

	result := f.breakdown("T-17")
	assert.False(t, result.PlanGenerated)
	assert.Empty(t, result.PlanID)
	assert.True(t, result.CrisisMode)
	assert.True(t, result.CrisisActivated)
	assert.NotEmpty(t, result.CrisisID)

	crisis, err := f.store.GetActiveCrisisState()
	require.NoError(t, err)
	assert.Equal(t, result.CrisisID, crisis.ID)
	assert.Equal(t, []string{"T-17"}, crisis.TriggeringTrains)
	assert.Equal(t, 1, crisis.WithdrawalCount)
	assert.Equal(t, 2, crisis.FleetSize)
	assert.Equal(t, 2, crisis.MinimumRequired)
	assert.Equal(t, 1, crisis.ServiceDeficit)

	assert.Equal(t, []emergency.EventKind{emergency.EventBreakdownHandled, emergency.EventCrisisActivated}, f.events.kinds())
}

func TestHandleBreakdownAutoReoptimize(t *testing.T) {
	require.True(t, emergency.DefaultPolicy().Crisis.AutoReoptimize)
	f := newFixture(t, reoptimizingPolicy())
	f.inService("T-17", "R-1")

	result := f.breakdown("T-17")
	require.True(t, result.CrisisActivated)

	crisis, err := f.store.GetActiveCrisisState()
	require.NoError(t, err)
	require.NotEmpty(t, crisis.Actions)
	assert.Equal(t, dataobjects.ActionExpediteRepairs, crisis.Actions[len(crisis.Actions)-1].Kind)
	assert.Contains(t, f.events.kinds(), emergency.EventCrisisReoptimized)
}

func TestCascadingBreakdowns(t *testing.T) {
	f := newFixture(t, testPolicy())
	f.standardFleet()

	first := f.breakdown("T-01")
	assert.False(t, first.CrisisMode)
	f.now = fixtureNow.Add(5 * time.Minute)
	second := f.breakdown("T-02")
	assert.False(t, second.CrisisMode)

	detected, err := f.handler.DetectCascadingCrisis()
	require.NoError(t, err)
	assert.False(t, detected)

	f.now = fixtureNow.Add(10 * time.Minute)
	third := f.breakdown("T-03")
	assert.True(t, third.PlanGenerated)
	assert.True(t, third.CrisisMode)
	assert.True(t, third.CrisisActivated)

	crisis, err := f.store.GetActiveCrisisState()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"T-01", "T-02", "T-03"}, crisis.TriggeringTrains)
	assert.Equal(t, 3, crisis.WithdrawalCount)

	detected, err = f.handler.DetectCascadingCrisis()
	require.NoError(t, err)
	assert.True(t, detected)

	// a breakdown during the crisis escalates it
	f.events.reset()
	fourth := f.breakdown("T-04")
	assert.True(t, fourth.CrisisMode)
	assert.False(t, fourth.CrisisActivated)
	assert.Equal(t, crisis.ID, fourth.CrisisID)
	assert.Equal(t, []emergency.EventKind{emergency.EventBreakdownHandled, emergency.EventCrisisEscalated}, f.events.kinds())

	crisis, err = f.store.GetActiveCrisisState()
	require.NoError(t, err)
	assert.Equal(t, 4, crisis.WithdrawalCount)

	crises, err := f.store.GetCrisisStates()
	require.NoError(t, err)
	assert.Len(t, crises, 1)

	f.now = fixtureNow.Add(52 * time.Minute)
	detected, err = f.handler.DetectCascadingCrisis()
	require.NoError(t, err)
	assert.False(t, detected)
}

func TestBreakdownsOutsideWindowDoNotCascade(t *testing.T) {
	f := newFixture(t, testPolicy())
	f.standardFleet()

	f.breakdown("T-01")
	f.now = fixtureNow.Add(40 * time.Minute)
	f.breakdown("T-02")
	f.now = fixtureNow.Add(45 * time.Minute)
	result := f.breakdown("T-03")

	assert.False(t, result.CrisisMode)
	_, err := f.store.GetActiveCrisisState()
	assert.True(t, dataobjects.IsNotFound(err))
}

type failingStore struct {
	emergency.Store
	err error
}

func (s *failingStore) Beginx() (emergency.Store, error) {
	tx, err := s.Store.Beginx()
	if err != nil {
		return nil, err
	}
	return &failingStore{Store: tx, err: s.err}, nil
}

func (s *failingStore) CreateJobCard(card *dataobjects.JobCard) error {
	return s.err
}

func TestHandleBreakdownIsAtomic(t *testing.T) {
	f := newFixture(t, testPolicy())
	f.standardFleet()
	handler := emergency.NewHandler(&failingStore{
		Store: f.store,
		err:   dataobjects.MarkTemporary(errors.New("connection reset by peer")),
	}, testPolicy(), f.events, nil)

	_, err := handler.HandleBreakdown(emergency.BreakdownAlert{TrainID: "T-17", FaultCode: "TRACTION_FAILURE"})
	require.Error(t, err)
	assert.True(t, emergency.IsDependencyFailure(err))
	var e *emergency.Error
	require.True(t, errors.As(err, &e))
	assert.True(t, e.Temporary())
	assert.Equal(t, "HandleBreakdown", e.Op)

	assert.Equal(t, dataobjects.TrainInService, f.trainStatus("T-17"))
	assignment, err := f.store.GetActiveRouteAssignment("T-17")
	require.NoError(t, err)
	assert.Equal(t, "R-1", assignment.RouteID)
	logs, err := f.store.GetEmergencyLogs()
	require.NoError(t, err)
	assert.Empty(t, logs)
	assert.Empty(t, f.events.kinds())

	// the store is usable afterwards
	result := f.breakdown("T-17")
	assert.True(t, result.PlanGenerated)
}

func TestReplanWithoutCandidates(t *testing.T) {
	f := newFixture(t, testPolicy())
	f.inService("T-17", "R-1")

	result := f.breakdown("T-17")
	require.True(t, result.CrisisActivated)

	f.events.reset()
	replan, err := f.handler.Replan(result.EmergencyLogID)
	require.NoError(t, err)
	assert.False(t, replan.PlanGenerated)
	assert.True(t, replan.CrisisMode)
	assert.False(t, replan.CrisisActivated)
	assert.Equal(t, []emergency.EventKind{emergency.EventReplanned}, f.events.kinds())

	crisis, err := f.store.GetActiveCrisisState()
	require.NoError(t, err)
	assert.Equal(t, 1, crisis.WithdrawalCount)
}

func TestReplanValidation(t *testing.T) {
	f := newFixture(t, testPolicy())
	f.standardFleet()

	_, err := f.handler.Replan(" ")
	assert.True(t, emergency.IsValidation(err))
	_, err = f.handler.Replan("missing")
	assert.True(t, emergency.IsNotFound(err))
}

func TestHandleBreakdownSkipsTrainsWithTooManyCriticalJobCards(t *testing.T) {
	f := newFixture(t, testPolicy())
	f.standardFleet()
	f.criticalJobCards("T-20", 4)
	f.criticalJobCards("T-21", 3)

	result := f.breakdown("T-17")
	require.True(t, result.PlanGenerated)

	view, err := f.handler.GetPlan(result.PlanID)
	require.NoError(t, err)
	assert.Equal(t, "T-21", view.Plan.ReplacementTrainID)
	assert.Equal(t, 24, view.Plan.DeploymentMinutes)
	assert.Empty(t, view.Plan.Fallbacks)
}

func TestHandleBreakdownRanksFallbacks(t *testing.T) {
	f := newFixture(t, testPolicy())
	f.inService("T-17", "R-1")
	// readiness is 9 minutes plus shunting
	for _, standby := range []struct {
		id       string
		shunting int
	}{{"T-35", 25}, {"T-33", 14}, {"T-32", 14}, {"T-34", 20}, {"T-31", 10}} {
		f.train(standby.id, dataobjects.TrainStandby)
		f.stabled(standby.id, "S-"+standby.id, standby.shunting)
	}

	result := f.breakdown("T-17")
	require.True(t, result.PlanGenerated)
	view, err := f.handler.GetPlan(result.PlanID)
	require.NoError(t, err)
	plan := view.Plan

	assert.Equal(t, "T-31", plan.ReplacementTrainID)
	assert.Equal(t, 19, plan.DeploymentMinutes)
	require.Len(t, plan.Fallbacks, emergency.MaxFallbacks)
	labels, trains, minutes := []string{}, []string{}, []int{}
	for _, fallback := range plan.Fallbacks {
		labels = append(labels, fallback.Label)
		trains = append(trains, fallback.TrainID)
		minutes = append(minutes, fallback.ReadinessMinutes)
	}
	assert.Equal(t, []string{"B", "C", "D"}, labels)
	assert.Equal(t, []string{"T-32", "T-33", "T-34"}, trains)
	assert.Equal(t, []int{23, 23, 29}, minutes)
}

func TestHandleBreakdownLocationLengthInCharacters(t *testing.T) {
	f := newFixture(t, testPolicy())
	f.standardFleet()

	_, err := f.handler.HandleBreakdown(emergency.BreakdownAlert{
		TrainID:   "T-01",
		FaultCode: "TRACTION_FAILURE",
		Location:  strings.Repeat("മ", emergency.MaxLocationLength),
	})
	require.NoError(t, err)

	_, err = f.handler.HandleBreakdown(emergency.BreakdownAlert{
		TrainID:   "T-02",
		FaultCode: "TRACTION_FAILURE",
		Location:  strings.Repeat("മ", emergency.MaxLocationLength+1),
	})
	assert.True(t, emergency.IsValidation(err))
}

func TestAutoReoptimizeKeepsPendingReplacement(t *testing.T) {
	f := newFixture(t, reoptimizingPolicy())
	f.standardFleet()

	f.breakdown("T-01")
	f.now = fixtureNow.Add(5 * time.Minute)
	f.breakdown("T-02")
	f.now = fixtureNow.Add(10 * time.Minute)
	third := f.breakdown("T-03")
	require.True(t, third.PlanGenerated)
	require.True(t, third.CrisisActivated)

	view, err := f.handler.GetPlan(third.PlanID)
	require.NoError(t, err)
	assert.Equal(t, "T-20", view.Plan.ReplacementTrainID)

	// the reoptimization deployed T-21 and left T-20 for the pending plans
	assert.Equal(t, dataobjects.TrainStandby, f.trainStatus("T-20"))
	assert.Equal(t, dataobjects.TrainInService, f.trainStatus("T-21"))
	crisis, err := f.store.GetActiveCrisisState()
	require.NoError(t, err)
	require.NotEmpty(t, crisis.Actions)
	assert.Equal(t, dataobjects.ActionDeployStandby, crisis.Actions[0].Kind)
	assert.Equal(t, []string{"T-21"}, crisis.Actions[0].TrainIDs)

	plan, err := f.handler.ApprovePlan(third.PlanID, true, "controller.silva", "")
	require.NoError(t, err)
	assert.Equal(t, dataobjects.PlanExecuted, plan.Status)
	assert.Equal(t, dataobjects.TrainInService, f.trainStatus("T-20"))
}
