package emergency_test

import (
	"testing"
	"time"

	"github.com/railops/fleetcrisis/dataobjects"
	"github.com/railops/fleetcrisis/emergency"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// depletedFleet has ten trains: three in service, one eligible standby train,
// one under maintenance and the given withdrawn trains.
// T-01 and T-05 run on the low-demand route R-9 when in service
func (f *fixture) depletedFleet(withdrawn ...string) {
	f.inService("T-01", "R-9")
	f.inService("T-02", "R-1")
	f.inService("T-03", "R-1")
	for _, id := range []string{"T-04", "T-05", "T-06", "T-07", "T-08"} {
		if contains(withdrawn, id) {
			f.train(id, dataobjects.TrainEmergencyWithdrawn)
		} else if id == "T-05" {
			f.inService(id, "R-9")
		} else {
			f.inService(id, "R-1")
		}
	}
	f.train("T-09", dataobjects.TrainStandby)
	f.stabled("T-09", "S-2", 6)
	f.train("T-10", dataobjects.TrainUnderMaintenance)
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func actionKinds(actions dataobjects.CrisisActions) []dataobjects.CrisisActionKind {
	kinds := []dataobjects.CrisisActionKind{}
	for _, action := range actions {
		kinds = append(kinds, action.Kind)
	}
	return kinds
}

func TestFullFleetReoptimizationRequiresCrisis(t *testing.T) {
	f := newFixture(t, testPolicy())
	f.standardFleet()

	_, err := f.handler.FullFleetReoptimization()
	assert.True(t, emergency.IsInvalidState(err))
}

func TestFullFleetReoptimization(t *testing.T) {
	f := newFixture(t, testPolicy())
	f.depletedFleet("T-04", "T-05", "T-06", "T-07", "T-08")
	_, _, err := f.handler.ActivateCrisisMode([]string{"T-08"})
	require.NoError(t, err)

	f.now = fixtureNow.Add(time.Minute)
	plan, err := f.handler.FullFleetReoptimization()
	require.NoError(t, err)

	// 3 in service + 1 available out of the 6 required
	assert.Equal(t, 2, plan.InitialDeficit)
	assert.Equal(t, 1, plan.RemainingDeficit)
	assert.Equal(t, []string{"T-09"}, plan.DeployedTrains)
	assert.Equal(t, []string{"T-01"}, plan.ReassignedTrains)

	require.Equal(t, []dataobjects.CrisisActionKind{
		dataobjects.ActionDeployStandby,
		dataobjects.ActionReassignRoute,
		dataobjects.ActionReduceFrequency,
		dataobjects.ActionExpediteRepairs,
	}, actionKinds(plan.Actions))
	assert.Equal(t, []string{"R-1"}, plan.Actions[0].Routes)
	assert.Equal(t, "R-9", plan.Actions[1].FromRoute)
	assert.Equal(t, "R-1", plan.Actions[1].ToRoute)
	assert.Equal(t, 1, plan.Actions[2].Count)
	assert.Equal(t, []string{"R-9"}, plan.Actions[2].Routes)
	assert.Equal(t, []string{"T-04", "T-05", "T-06", "T-07", "T-08"}, plan.Actions[3].TrainIDs)

	assert.Equal(t, dataobjects.TrainInService, f.trainStatus("T-09"))
	deployed, err := f.store.GetActiveRouteAssignment("T-09")
	require.NoError(t, err)
	assert.Equal(t, "R-1", deployed.RouteID)

	moved, err := f.store.GetActiveRouteAssignment("T-01")
	require.NoError(t, err)
	assert.Equal(t, "R-1", moved.RouteID)
	assert.Equal(t, dataobjects.AssignmentReassigned, moved.Type)
	history, err := f.store.GetRouteAssignments("T-01")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, dataobjects.AssignmentCompleted, history[0].Status)
	assert.Equal(t, "R-9", history[0].RouteID)

	crisis, err := f.store.GetActiveCrisisState()
	require.NoError(t, err)
	assert.Len(t, crisis.Actions, 4)
	assert.Equal(t, 1, crisis.ServiceDeficit)
	assert.Equal(t, 1, crisis.WithdrawalCount)

	kinds := f.events.kinds()
	assert.Equal(t, emergency.EventCrisisReoptimized, kinds[len(kinds)-1])
}

func TestFullFleetReoptimizationCoveredByReassignment(t *testing.T) {
	f := newFixture(t, testPolicy())
	f.depletedFleet("T-04", "T-06", "T-07", "T-08")
	_, _, err := f.handler.ActivateCrisisMode([]string{"T-08"})
	require.NoError(t, err)

	plan, err := f.handler.FullFleetReoptimization()
	require.NoError(t, err)

	assert.Equal(t, 1, plan.InitialDeficit)
	assert.Equal(t, 0, plan.RemainingDeficit)
	// T-01 and T-05 run on R-9, only one of them is needed
	assert.Equal(t, []string{"T-01"}, plan.ReassignedTrains)
	assert.Equal(t, []dataobjects.CrisisActionKind{
		dataobjects.ActionDeployStandby,
		dataobjects.ActionReassignRoute,
		dataobjects.ActionExpediteRepairs,
	}, actionKinds(plan.Actions))

	unmoved, err := f.store.GetActiveRouteAssignment("T-05")
	require.NoError(t, err)
	assert.Equal(t, "R-9", unmoved.RouteID)
}

func TestReassignRouteKeepsOneActiveAssignment(t *testing.T) {
	f := newFixture(t, testPolicy())
	f.standardFleet()

	assignment, err := f.handler.ReassignRoute("T-02", "R-5", "")
	require.NoError(t, err)
	assert.Equal(t, "R-5", assignment.RouteID)
	assert.Equal(t, dataobjects.AssignmentRevenue, assignment.Type)

	_, err = f.handler.ReassignRoute("T-02", "R-9", dataobjects.AssignmentReassigned)
	require.NoError(t, err)

	active, err := f.store.GetActiveRouteAssignments()
	require.NoError(t, err)
	count := 0
	for _, a := range active {
		if a.TrainID == "T-02" {
			count++
			assert.Equal(t, "R-9", a.RouteID)
		}
	}
	assert.Equal(t, 1, count)

	history, err := f.store.GetRouteAssignments("T-02")
	require.NoError(t, err)
	assert.Len(t, history, 3)

	train, err := f.store.GetTrain("T-02")
	require.NoError(t, err)
	assert.Equal(t, "R-9", train.CurrentRoute)
}

func TestReassignRouteValidation(t *testing.T) {
	f := newFixture(t, testPolicy())
	f.standardFleet()

	_, err := f.handler.ReassignRoute("T-02", " ", "")
	assert.True(t, emergency.IsValidation(err))
	_, err = f.handler.ReassignRoute("", "R-1", "")
	assert.True(t, emergency.IsValidation(err))
	_, err = f.handler.ReassignRoute("T-02", "R-1", "CHARTER")
	assert.True(t, emergency.IsValidation(err))
	_, err = f.handler.ReassignRoute("T-99", "R-1", "")
	assert.True(t, emergency.IsNotFound(err))
}

func TestReduceFrequency(t *testing.T) {
	f := newFixture(t, testPolicy())
	f.standardFleet()
	crisis, _, err := f.handler.ActivateCrisisMode([]string{"T-17"})
	require.NoError(t, err)
	f.events.reset()

	adjustment, err := f.handler.ReduceFrequency("R-9", 12*time.Minute, "rolling stock shortage")
	require.NoError(t, err)
	assert.Equal(t, crisis.ID, adjustment.CrisisID)
	assert.Equal(t, dataobjects.Duration(12*time.Minute), adjustment.Headway)

	stored, err := f.store.GetFrequencyAdjustments("R-9")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, adjustment.ID, stored[0].ID)

	require.Len(t, f.events.events, 1)
	event := f.events.events[0]
	assert.Equal(t, emergency.EventFrequencyReduced, event.Kind)
	assert.Equal(t, emergency.AudiencePublic, event.Audience)
	assert.Equal(t, "R-9", event.RouteID)
	assert.Contains(t, event.Message, "every 12 minutes")
}

func TestReduceFrequencyValidation(t *testing.T) {
	f := newFixture(t, testPolicy())

	_, err := f.handler.ReduceFrequency("R-404", 10*time.Minute, "")
	assert.True(t, emergency.IsValidation(err))
	_, err = f.handler.ReduceFrequency("R-1", 0, "")
	assert.True(t, emergency.IsValidation(err))

	adjustment, err := f.handler.ReduceFrequency("R-1", 8*time.Minute, "")
	require.NoError(t, err)
	assert.Empty(t, adjustment.CrisisID)
}

func TestReduceFrequencyOnAssignedRoute(t *testing.T) {
	f := newFixture(t, emergency.DefaultPolicy())
	f.standardFleet()

	adjustment, err := f.handler.ReduceFrequency("R-1", 10*time.Minute, "")
	require.NoError(t, err)
	assert.Equal(t, "R-1", adjustment.RouteID)

	_, err = f.handler.ReduceFrequency("R-404", 10*time.Minute, "")
	assert.True(t, emergency.IsValidation(err))
	_, err = f.handler.ReduceFrequency(" ", 10*time.Minute, "")
	assert.True(t, emergency.IsValidation(err))
}
