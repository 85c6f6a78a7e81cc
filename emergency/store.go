package emergency

import (
	"time"

	"github.com/railops/fleetcrisis/dataobjects"
)

// Store is the persistence used by the emergency operations.
// Beginx starts a transaction (or a nested one, when called on a transaction);
// only the outermost Commit makes the changes durable and a Rollback of the outermost
// transaction discards every change made through it and its children.
// Missing objects are reported with errors satisfying dataobjects.IsNotFound and
// transient failures with errors satisfying dataobjects.IsTemporary
type Store interface {
	Beginx() (Store, error)
	Commit() error
	Rollback() error

	GetTrain(id string) (*dataobjects.Train, error)
	GetTrains() ([]*dataobjects.Train, error)
	GetTrainsWithStatus(statuses ...dataobjects.TrainStatus) ([]*dataobjects.Train, error)
	UpdateTrainStatus(id string, status dataobjects.TrainStatus) error

	GetFitnessCertificates(trainID string) ([]*dataobjects.FitnessCertificate, error)
	GetOpenJobCards(trainID string) ([]*dataobjects.JobCard, error)
	CreateJobCard(card *dataobjects.JobCard) error
	GetStablingPosition(trainID string) (*dataobjects.StablingPosition, error)

	CreateEmergencyLog(log *dataobjects.EmergencyLog) error
	GetEmergencyLog(id string) (*dataobjects.EmergencyLog, error)
	GetEmergencyLogs() ([]*dataobjects.EmergencyLog, error)
	GetActiveEmergencyLogs() ([]*dataobjects.EmergencyLog, error)
	GetActiveBreakdownsSince(since time.Time) ([]*dataobjects.EmergencyLog, error)
	CountActiveBreakdownsSince(since time.Time) (int, error)
	UpdateEmergencyLog(log *dataobjects.EmergencyLog) error

	CreateEmergencyPlan(plan *dataobjects.EmergencyPlan) error
	GetEmergencyPlan(id string) (*dataobjects.EmergencyPlan, error)
	GetEmergencyPlansForLog(logID string) ([]*dataobjects.EmergencyPlan, error)
	UpdateEmergencyPlan(plan *dataobjects.EmergencyPlan) error

	GetActiveCrisisState() (*dataobjects.CrisisState, error)
	// MergeCrisisState atomically creates state as the active crisis or merges its
	// withdrawal count and triggering trains into the existing active crisis
	MergeCrisisState(state *dataobjects.CrisisState) (*dataobjects.CrisisState, bool, error)
	UpdateCrisisState(state *dataobjects.CrisisState) error

	GetActiveRouteAssignment(trainID string) (*dataobjects.RouteAssignment, error)
	GetActiveRouteAssignments(routeIDs ...string) ([]*dataobjects.RouteAssignment, error)
	CloseActiveRouteAssignment(trainID string, at time.Time) (bool, error)
	CreateRouteAssignment(assignment *dataobjects.RouteAssignment) error

	CreateFrequencyAdjustment(adjustment *dataobjects.FrequencyAdjustment) error
}
