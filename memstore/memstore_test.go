package memstore

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/railops/fleetcrisis/dataobjects"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, time.March, 4, 8, 30, 0, 0, time.UTC)

func putTrain(t *testing.T, s *Store, id string, status dataobjects.TrainStatus) {
	require.NoError(t, s.PutTrain(&dataobjects.Train{ID: id, Status: status, UpdatedAt: now}))
}

func TestCommitMakesChangesVisible(t *testing.T) {
	s := New()
	putTrain(t, s, "T-01", dataobjects.TrainInService)

	tx, err := s.Beginx()
	require.NoError(t, err)
	require.NoError(t, tx.UpdateTrainStatus("T-01", dataobjects.TrainEmergencyWithdrawn))

	seen, err := tx.GetTrain("T-01")
	require.NoError(t, err)
	assert.Equal(t, dataobjects.TrainEmergencyWithdrawn, seen.Status)

	require.NoError(t, tx.Commit())

	train, err := s.GetTrain("T-01")
	require.NoError(t, err)
	assert.Equal(t, dataobjects.TrainEmergencyWithdrawn, train.Status)
}

func TestRollbackDiscardsChanges(t *testing.T) {
	s := New()
	putTrain(t, s, "T-01", dataobjects.TrainInService)

	tx, err := s.Beginx()
	require.NoError(t, err)
	require.NoError(t, tx.UpdateTrainStatus("T-01", dataobjects.TrainEmergencyWithdrawn))
	require.NoError(t, tx.CreateEmergencyLog(&dataobjects.EmergencyLog{ID: "L-1", TrainID: "T-01", Time: now, Status: dataobjects.EmergencyActive}))
	require.NoError(t, tx.Rollback())

	train, err := s.GetTrain("T-01")
	require.NoError(t, err)
	assert.Equal(t, dataobjects.TrainInService, train.Status)
	_, err = s.GetEmergencyLog("L-1")
	assert.True(t, dataobjects.IsNotFound(err))
}

func TestNestedTransactions(t *testing.T) {
	s := New()
	putTrain(t, s, "T-01", dataobjects.TrainStandby)

	tx, err := s.Beginx()
	require.NoError(t, err)
	nested, err := tx.Beginx()
	require.NoError(t, err)
	require.NoError(t, nested.UpdateTrainStatus("T-01", dataobjects.TrainInService))
	require.NoError(t, nested.Commit())

	// visible to the outer transaction, not yet committed
	seen, err := tx.GetTrain("T-01")
	require.NoError(t, err)
	assert.Equal(t, dataobjects.TrainInService, seen.Status)

	require.NoError(t, tx.Rollback())
	train, err := s.GetTrain("T-01")
	require.NoError(t, err)
	assert.Equal(t, dataobjects.TrainStandby, train.Status)
}

func TestFinishedTransaction(t *testing.T) {
	s := New()
	tx, err := s.Beginx()
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	assert.Equal(t, ErrNotInTransaction, tx.Commit())
	assert.Equal(t, ErrNotInTransaction, tx.Rollback())
	_, err = tx.GetTrains()
	assert.Equal(t, ErrNotInTransaction, err)
	assert.Equal(t, ErrNotInTransaction, s.Commit())

	// the lock was released
	tx, err = s.Beginx()
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())
}

func TestTransactionsAreSerialized(t *testing.T) {
	s := New()
	tx, err := s.Beginx()
	require.NoError(t, err)

	started := make(chan struct{})
	done := make(chan struct{})
	go func() {
		close(started)
		other, err := s.Beginx()
		if err == nil {
			other.Rollback()
		}
		close(done)
	}()
	<-started

	select {
	case <-done:
		t.Fatal("second transaction started while the first was open")
	case <-time.After(50 * time.Millisecond):
	}
	require.NoError(t, tx.Commit())
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second transaction did not start")
	}
}

func TestReadsReturnCopies(t *testing.T) {
	s := New()
	require.NoError(t, s.CreateEmergencyPlan(&dataobjects.EmergencyPlan{
		ID:             "P-1",
		EmergencyLogID: "L-1",
		Reasoning:      []string{"fastest"},
		Status:         dataobjects.PlanPending,
	}))

	plan, err := s.GetEmergencyPlan("P-1")
	require.NoError(t, err)
	plan.Reasoning[0] = "changed"
	plan.Status = dataobjects.PlanExecuted

	plan, err = s.GetEmergencyPlan("P-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"fastest"}, plan.Reasoning)
	assert.Equal(t, dataobjects.PlanPending, plan.Status)
}

func TestOneActivePlanPerLog(t *testing.T) {
	s := New()
	require.NoError(t, s.CreateEmergencyPlan(&dataobjects.EmergencyPlan{ID: "P-1", EmergencyLogID: "L-1", Status: dataobjects.PlanPending}))

	err := s.CreateEmergencyPlan(&dataobjects.EmergencyPlan{ID: "P-2", EmergencyLogID: "L-1", Status: dataobjects.PlanPending})
	assert.Equal(t, ErrConstraint, errors.Cause(err))

	require.NoError(t, s.UpdateEmergencyPlan(&dataobjects.EmergencyPlan{ID: "P-1", EmergencyLogID: "L-1", Status: dataobjects.PlanRejected}))
	require.NoError(t, s.CreateEmergencyPlan(&dataobjects.EmergencyPlan{ID: "P-2", EmergencyLogID: "L-1", Status: dataobjects.PlanPending}))

	plans, err := s.GetEmergencyPlansForLog("L-1")
	require.NoError(t, err)
	assert.Len(t, plans, 2)
}

func TestOneActiveAssignmentPerTrain(t *testing.T) {
	s := New()
	putTrain(t, s, "T-01", dataobjects.TrainInService)
	require.NoError(t, s.CreateRouteAssignment(&dataobjects.RouteAssignment{
		ID: "A-1", TrainID: "T-01", RouteID: "R-1", StartTime: now, Status: dataobjects.AssignmentActive}))

	err := s.CreateRouteAssignment(&dataobjects.RouteAssignment{
		ID: "A-2", TrainID: "T-01", RouteID: "R-2", StartTime: now, Status: dataobjects.AssignmentActive})
	assert.Equal(t, ErrConstraint, errors.Cause(err))

	train, err := s.GetTrain("T-01")
	require.NoError(t, err)
	assert.Equal(t, "R-1", train.CurrentRoute)

	closed, err := s.CloseActiveRouteAssignment("T-01", now.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, closed)
	closed, err = s.CloseActiveRouteAssignment("T-01", now.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, closed)

	train, err = s.GetTrain("T-01")
	require.NoError(t, err)
	assert.Empty(t, train.CurrentRoute)

	history, err := s.GetRouteAssignments("T-01")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].Ended)
	assert.Equal(t, now.Add(time.Hour), history[0].EndTime)
}

func TestMergeCrisisState(t *testing.T) {
	s := New()

	state, created, err := s.MergeCrisisState(&dataobjects.CrisisState{
		ID: "C-1", ActivatedAt: now, WithdrawalCount: 1, TriggeringTrains: []string{"T-01"}, Status: dataobjects.CrisisActive})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "C-1", state.ID)

	state, created, err = s.MergeCrisisState(&dataobjects.CrisisState{
		ID: "C-2", ActivatedAt: now, WithdrawalCount: 2, TriggeringTrains: []string{"T-02", "T-03"}, Status: dataobjects.CrisisActive})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "C-1", state.ID)
	assert.Equal(t, 3, state.WithdrawalCount)
	assert.Equal(t, []string{"T-01", "T-02", "T-03"}, state.TriggeringTrains)

	crises, err := s.GetCrisisStates()
	require.NoError(t, err)
	assert.Len(t, crises, 1)
}

func TestUpdateCrisisState(t *testing.T) {
	s := New()
	_, _, err := s.MergeCrisisState(&dataobjects.CrisisState{
		ID: "C-1", ActivatedAt: now, WithdrawalCount: 2, TriggeringTrains: []string{"T-01", "T-02"}, Status: dataobjects.CrisisActive})
	require.NoError(t, err)

	err = s.UpdateCrisisState(&dataobjects.CrisisState{ID: "C-2", ActivatedAt: now, Status: dataobjects.CrisisActive})
	assert.Equal(t, ErrConstraint, errors.Cause(err))

	active, err := s.GetActiveCrisisState()
	require.NoError(t, err)
	active.WithdrawalCount = 0
	active.TriggeringTrains = nil
	active.ServiceDeficit = 4
	require.NoError(t, s.UpdateCrisisState(active))

	active, err = s.GetActiveCrisisState()
	require.NoError(t, err)
	assert.Equal(t, 4, active.ServiceDeficit)
	assert.Equal(t, 2, active.WithdrawalCount)
	assert.Equal(t, []string{"T-01", "T-02"}, active.TriggeringTrains)

	active.Status = dataobjects.CrisisResolved
	active.Resolved = true
	require.NoError(t, s.UpdateCrisisState(active))
	_, err = s.GetActiveCrisisState()
	assert.True(t, dataobjects.IsNotFound(err))
}

func TestActiveBreakdownsSince(t *testing.T) {
	s := New()
	logs := []*dataobjects.EmergencyLog{
		{ID: "L-1", TrainID: "T-01", Time: now.Add(-40 * time.Minute), Status: dataobjects.EmergencyActive},
		{ID: "L-2", TrainID: "T-02", Time: now.Add(-30 * time.Minute), Status: dataobjects.EmergencyActive},
		{ID: "L-3", TrainID: "T-03", Time: now.Add(-10 * time.Minute), Status: dataobjects.EmergencyResolved},
		{ID: "L-4", TrainID: "T-04", Time: now, Status: dataobjects.EmergencyActive},
	}
	for _, l := range logs {
		require.NoError(t, s.CreateEmergencyLog(l))
	}

	recent, err := s.GetActiveBreakdownsSince(now.Add(-30 * time.Minute))
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "L-4", recent[0].ID)
	assert.Equal(t, "L-2", recent[1].ID)

	count, err := s.CountActiveBreakdownsSince(now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	active, err := s.GetActiveEmergencyLogs()
	require.NoError(t, err)
	assert.Len(t, active, 3)
}

func TestGetStablingPositionReturnsLatest(t *testing.T) {
	s := New()
	require.NoError(t, s.PutStablingPosition(&dataobjects.StablingPosition{TrainID: "T-09", Bay: "S-1", ShuntingMinutes: 3, RecordedAt: now.Add(-time.Hour)}))
	require.NoError(t, s.PutStablingPosition(&dataobjects.StablingPosition{TrainID: "T-09", Bay: "S-4", ShuntingMinutes: 9, RecordedAt: now}))

	position, err := s.GetStablingPosition("T-09")
	require.NoError(t, err)
	assert.Equal(t, "S-4", position.Bay)
	assert.Equal(t, 9, position.ShuntingMinutes)

	_, err = s.GetStablingPosition("T-10")
	assert.True(t, dataobjects.IsNotFound(err))
}

func TestGetTrainsWithStatus(t *testing.T) {
	s := New()
	putTrain(t, s, "T-03", dataobjects.TrainStandby)
	putTrain(t, s, "T-01", dataobjects.TrainDepotReady)
	putTrain(t, s, "T-02", dataobjects.TrainInService)

	pool, err := s.GetTrainsWithStatus(dataobjects.StandbyPool...)
	require.NoError(t, err)
	require.Len(t, pool, 2)
	assert.Equal(t, "T-01", pool[0].ID)
	assert.Equal(t, "T-03", pool[1].ID)

	all, err := s.GetTrains()
	require.NoError(t, err)
	assert.Len(t, all, 3)

	assert.Error(t, s.PutTrain(&dataobjects.Train{ID: "T-04", Status: "SCRAPPED"}))
	assert.True(t, dataobjects.IsNotFound(s.UpdateTrainStatus("T-99", dataobjects.TrainStandby)))
}
