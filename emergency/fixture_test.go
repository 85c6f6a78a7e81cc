package emergency_test

import (
	"sync"
	"testing"
	"time"

	"github.com/railops/fleetcrisis/dataobjects"
	"github.com/railops/fleetcrisis/emergency"
	"github.com/railops/fleetcrisis/memstore"
	"github.com/stretchr/testify/require"
)

var fixtureNow = time.Date(2024, time.March, 4, 8, 30, 0, 0, time.UTC)

type recorder struct {
	mu     sync.Mutex
	events []emergency.Event
}

func (r *recorder) Emit(event emergency.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) kinds() []emergency.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]emergency.EventKind, len(r.events))
	for i, event := range r.events {
		kinds[i] = event.Kind
	}
	return kinds
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

type fixture struct {
	t       *testing.T
	store   *memstore.Store
	handler *emergency.Handler
	events  *recorder
	now     time.Time
}

func newFixture(t *testing.T, policy emergency.Policy) *fixture {
	f := &fixture{
		t:      t,
		store:  memstore.New(),
		events: &recorder{},
		now:    fixtureNow,
	}
	f.handler = emergency.NewHandler(f.store, policy, f.events, nil)
	f.handler.SetClock(func() time.Time { return f.now })
	return f
}

// testPolicy designates R-1 as critical and R-9 as low-demand. Automatic reoptimization is
// off so that each test controls when the fleet is reallocated; reoptimizingPolicy turns it back on
func testPolicy() emergency.Policy {
	policy := reoptimizingPolicy()
	policy.Crisis.AutoReoptimize = false
	return policy
}

func reoptimizingPolicy() emergency.Policy {
	policy := emergency.DefaultPolicy()
	policy.Crisis.CriticalRoutes = []string{"R-1"}
	policy.Crisis.LowDemandRoutes = []string{"R-9"}
	return policy
}

func (f *fixture) train(id string, status dataobjects.TrainStatus) {
	require.NoError(f.t, f.store.PutTrain(&dataobjects.Train{
		ID:        id,
		Status:    status,
		UpdatedAt: f.now,
	}))
}

func (f *fixture) inService(id, route string) {
	f.train(id, dataobjects.TrainInService)
	require.NoError(f.t, f.store.CreateRouteAssignment(&dataobjects.RouteAssignment{
		ID:        "RA-" + id,
		TrainID:   id,
		RouteID:   route,
		Type:      dataobjects.AssignmentRevenue,
		StartTime: f.now.Add(-3 * time.Hour),
		Status:    dataobjects.AssignmentActive,
	}))
}

func (f *fixture) stabled(id, bay string, shunting int) {
	require.NoError(f.t, f.store.PutStablingPosition(&dataobjects.StablingPosition{
		TrainID:         id,
		Bay:             bay,
		ShuntingMinutes: shunting,
		RecordedAt:      f.now.Add(-time.Hour),
	}))
}

func (f *fixture) certificate(trainID string, department dataobjects.Department, expiresIn time.Duration) {
	require.NoError(f.t, f.store.PutFitnessCertificate(&dataobjects.FitnessCertificate{
		ID:         trainID + "-" + string(department),
		TrainID:    trainID,
		Department: department,
		IssuedAt:   f.now.Add(-90 * 24 * time.Hour),
		ExpiresAt:  f.now.Add(expiresIn),
	}))
}

func (f *fixture) criticalJobCards(trainID string, n int) {
	for i := 0; i < n; i++ {
		require.NoError(f.t, f.store.CreateJobCard(&dataobjects.JobCard{
			ID:        trainID + "-JC-" + string(rune('A'+i)),
			Number:    "JC-" + string(rune('A'+i)),
			TrainID:   trainID,
			Priority:  dataobjects.JobPriorityCritical,
			Status:    dataobjects.JobOpen,
			Title:     "Traction motor inspection",
			CreatedAt: f.now.Add(-time.Duration(i+1) * time.Hour),
		}))
	}
}

// standardFleet has T-17 in service on R-1, two eligible replacements T-20 (21 minutes)
// and T-21 (24 minutes), and T-22 whose signalling certificate expired
func (f *fixture) standardFleet() {
	for _, id := range []string{"T-01", "T-02", "T-03"} {
		f.inService(id, "R-1")
	}
	for _, id := range []string{"T-04", "T-05", "T-06"} {
		f.inService(id, "R-9")
	}
	f.inService("T-17", "R-1")

	f.train("T-20", dataobjects.TrainStandby)
	f.stabled("T-20", "S-3", 12)
	f.certificate("T-20", dataobjects.DepartmentRollingStock, 30*24*time.Hour)
	f.certificate("T-20", dataobjects.DepartmentSignalling, 30*24*time.Hour)

	f.train("T-21", dataobjects.TrainDepotReady)
	f.stabled("T-21", "D-1", 15)

	f.train("T-22", dataobjects.TrainStandby)
	f.stabled("T-22", "S-1", 2)
	f.certificate("T-22", dataobjects.DepartmentSignalling, -2*time.Hour)
}

func (f *fixture) breakdown(trainID string) *emergency.BreakdownResult {
	result, err := f.handler.HandleBreakdown(emergency.BreakdownAlert{
		TrainID:   trainID,
		FaultCode: "TRACTION_FAILURE",
		Location:  "Central station, platform 2",
	})
	require.NoError(f.t, err)
	return result
}

func (f *fixture) trainStatus(id string) dataobjects.TrainStatus {
	train, err := f.store.GetTrain(id)
	require.NoError(f.t, err)
	return train.Status
}
