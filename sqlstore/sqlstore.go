// Package sqlstore exposes the Postgres persistence in dataobjects as an emergency.Store
package sqlstore

import (
	"time"

	"github.com/gbl08ma/sqalx"
	"github.com/railops/fleetcrisis/dataobjects"
	"github.com/railops/fleetcrisis/emergency"
)

// Store is an emergency.Store backed by a sqalx node
type Store struct {
	node sqalx.Node
}

var _ emergency.Store = (*Store)(nil)

// New returns a Store using the given node, usually the root node of the database
func New(node sqalx.Node) *Store {
	return &Store{node: node}
}

// Node returns the sqalx node used by the store
func (s *Store) Node() sqalx.Node {
	return s.node
}

// Beginx starts a transaction, nested if s is already a transaction
func (s *Store) Beginx() (emergency.Store, error) {
	tx, err := s.node.Beginx()
	if err != nil {
		return nil, dataobjects.MarkTemporary(err)
	}
	return &Store{node: tx}, nil
}

// Commit commits the transaction
func (s *Store) Commit() error {
	return s.node.Commit()
}

// Rollback rolls back the transaction
func (s *Store) Rollback() error {
	return s.node.Rollback()
}

func (s *Store) GetTrain(id string) (*dataobjects.Train, error) {
	return dataobjects.GetTrain(s.node, id)
}

func (s *Store) GetTrains() ([]*dataobjects.Train, error) {
	return dataobjects.GetTrains(s.node)
}

func (s *Store) GetTrainsWithStatus(statuses ...dataobjects.TrainStatus) ([]*dataobjects.Train, error) {
	return dataobjects.GetTrainsWithStatus(s.node, statuses...)
}

func (s *Store) UpdateTrainStatus(id string, status dataobjects.TrainStatus) error {
	return dataobjects.UpdateTrainStatus(s.node, id, status)
}

func (s *Store) GetFitnessCertificates(trainID string) ([]*dataobjects.FitnessCertificate, error) {
	return dataobjects.GetFitnessCertificates(s.node, trainID)
}

func (s *Store) GetOpenJobCards(trainID string) ([]*dataobjects.JobCard, error) {
	return dataobjects.GetOpenJobCards(s.node, trainID)
}

func (s *Store) CreateJobCard(card *dataobjects.JobCard) error {
	return card.Update(s.node)
}

func (s *Store) GetStablingPosition(trainID string) (*dataobjects.StablingPosition, error) {
	return dataobjects.GetStablingPosition(s.node, trainID)
}

func (s *Store) CreateEmergencyLog(log *dataobjects.EmergencyLog) error {
	return log.Update(s.node)
}

func (s *Store) GetEmergencyLog(id string) (*dataobjects.EmergencyLog, error) {
	return dataobjects.GetEmergencyLog(s.node, id)
}

func (s *Store) GetEmergencyLogs() ([]*dataobjects.EmergencyLog, error) {
	return dataobjects.GetEmergencyLogs(s.node)
}

func (s *Store) GetActiveEmergencyLogs() ([]*dataobjects.EmergencyLog, error) {
	return dataobjects.GetActiveEmergencyLogs(s.node)
}

func (s *Store) GetActiveBreakdownsSince(since time.Time) ([]*dataobjects.EmergencyLog, error) {
	return dataobjects.GetActiveBreakdownsSince(s.node, since)
}

func (s *Store) CountActiveBreakdownsSince(since time.Time) (int, error) {
	return dataobjects.CountActiveBreakdownsSince(s.node, since)
}

func (s *Store) UpdateEmergencyLog(log *dataobjects.EmergencyLog) error {
	return log.Update(s.node)
}

func (s *Store) CreateEmergencyPlan(plan *dataobjects.EmergencyPlan) error {
	return plan.Update(s.node)
}

func (s *Store) GetEmergencyPlan(id string) (*dataobjects.EmergencyPlan, error) {
	return dataobjects.GetEmergencyPlan(s.node, id)
}

func (s *Store) GetEmergencyPlansForLog(logID string) ([]*dataobjects.EmergencyPlan, error) {
	return dataobjects.GetEmergencyPlansForLog(s.node, logID)
}

func (s *Store) UpdateEmergencyPlan(plan *dataobjects.EmergencyPlan) error {
	return plan.Update(s.node)
}

func (s *Store) GetActiveCrisisState() (*dataobjects.CrisisState, error) {
	return dataobjects.GetActiveCrisisState(s.node)
}

func (s *Store) MergeCrisisState(state *dataobjects.CrisisState) (*dataobjects.CrisisState, bool, error) {
	return dataobjects.MergeCrisisState(s.node, state)
}

func (s *Store) UpdateCrisisState(state *dataobjects.CrisisState) error {
	return state.Update(s.node)
}

func (s *Store) GetActiveRouteAssignment(trainID string) (*dataobjects.RouteAssignment, error) {
	return dataobjects.GetActiveRouteAssignment(s.node, trainID)
}

func (s *Store) GetActiveRouteAssignments(routeIDs ...string) ([]*dataobjects.RouteAssignment, error) {
	return dataobjects.GetActiveRouteAssignments(s.node, routeIDs...)
}

func (s *Store) CloseActiveRouteAssignment(trainID string, at time.Time) (bool, error) {
	return dataobjects.CloseActiveRouteAssignment(s.node, trainID, at)
}

func (s *Store) CreateRouteAssignment(assignment *dataobjects.RouteAssignment) error {
	return assignment.Update(s.node)
}

func (s *Store) CreateFrequencyAdjustment(adjustment *dataobjects.FrequencyAdjustment) error {
	return adjustment.Update(s.node)
}
