package dataobjects

import (
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/gbl08ma/sqalx"
)

// TrainStatus is the operational status of a Train
type TrainStatus string

const (
	// TrainInService is a train running revenue service
	TrainInService TrainStatus = "IN_SERVICE"
	// TrainStandby is a fleet-ready train not in revenue service
	TrainStandby TrainStatus = "STANDBY"
	// TrainDepotReady is a train ready in the depot, also part of the standby pool
	TrainDepotReady TrainStatus = "DEPOT_READY"
	// TrainEmergencyWithdrawn is a train withdrawn from service after a breakdown
	TrainEmergencyWithdrawn TrainStatus = "EMERGENCY_WITHDRAWN"
	// TrainUnderMaintenance is a train in the maintenance depot
	TrainUnderMaintenance TrainStatus = "UNDER_MAINTENANCE"
)

// StandbyPool lists the statuses from which emergency replacements can be drawn
var StandbyPool = []TrainStatus{TrainStandby, TrainDepotReady}

// Valid returns whether s is a known status
func (s TrainStatus) Valid() bool {
	switch s {
	case TrainInService, TrainStandby, TrainDepotReady, TrainEmergencyWithdrawn, TrainUnderMaintenance:
		return true
	}
	return false
}

// InStandbyPool returns whether a train with this status can be used as a replacement
func (s TrainStatus) InStandbyPool() bool {
	return s == TrainStandby || s == TrainDepotReady
}

// Train is a trainset, identified by its fleet number (e.g. T-17)
type Train struct {
	ID     string
	Status TrainStatus
	// CurrentRoute is the route of the train's active RouteAssignment, empty if there is none
	CurrentRoute string
	Mileage      float64
	UpdatedAt    time.Time
}

// GetTrains returns a slice with all registered trains
func GetTrains(node sqalx.Node) ([]*Train, error) {
	return getTrainsWithSelect(node, sdb.Select())
}

// GetTrainsWithStatus returns the trains whose status is one of statuses
func GetTrainsWithStatus(node sqalx.Node, statuses ...TrainStatus) ([]*Train, error) {
	s := make([]string, len(statuses))
	for i := range statuses {
		s[i] = string(statuses[i])
	}
	return getTrainsWithSelect(node, sdb.Select().Where(sq.Eq{"train.status": s}))
}

// GetTrain returns the Train with the given ID
func GetTrain(node sqalx.Node, id string) (*Train, error) {
	trains, err := getTrainsWithSelect(node, sdb.Select().Where(sq.Eq{"train.id": id}))
	if err != nil {
		return nil, err
	}
	if len(trains) == 0 {
		return nil, notFound("train", id)
	}
	return trains[0], nil
}

func getTrainsWithSelect(node sqalx.Node, sbuilder sq.SelectBuilder) ([]*Train, error) {
	trains := []*Train{}

	tx, err := node.Beginx()
	if err != nil {
		return trains, err
	}
	defer tx.Commit() // read-only tx

	rows, err := sbuilder.Columns("train.id", "train.status", "route_assignment.route_id", "train.mileage", "train.updated_at").
		From("train").
		LeftJoin("route_assignment ON route_assignment.train_id = train.id AND route_assignment.status = 'ACTIVE'").
		OrderBy("train.id ASC").
		RunWith(tx).Query()
	if err != nil {
		return trains, wrapDBError(err, "getTrainsWithSelect")
	}
	defer rows.Close()

	for rows.Next() {
		var train Train
		var route sql.NullString
		err := rows.Scan(
			&train.ID,
			&train.Status,
			&route,
			&train.Mileage,
			&train.UpdatedAt)
		if err != nil {
			return trains, wrapDBError(err, "getTrainsWithSelect")
		}
		train.CurrentRoute = route.String
		trains = append(trains, &train)
	}
	if err := rows.Err(); err != nil {
		return trains, wrapDBError(err, "getTrainsWithSelect")
	}
	return trains, nil
}

// UpdateTrainStatus sets the status of the train with the given ID
func UpdateTrainStatus(node sqalx.Node, id string, status TrainStatus) error {
	if !status.Valid() {
		return fmt.Errorf("UpdateTrainStatus: invalid status %q", status)
	}
	tx, err := node.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := sdb.Update("train").
		Set("status", string(status)).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": id}).
		RunWith(tx).Exec()
	if err != nil {
		return wrapDBError(err, "UpdateTrainStatus")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return wrapDBError(err, "UpdateTrainStatus")
	}
	if affected == 0 {
		return notFound("train", id)
	}
	return tx.Commit()
}

// Update adds or updates the train
func (train *Train) Update(node sqalx.Node) error {
	tx, err := node.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = sdb.Insert("train").
		Columns("id", "status", "mileage", "updated_at").
		Values(train.ID, string(train.Status), train.Mileage, train.UpdatedAt).
		Suffix("ON CONFLICT (id) DO UPDATE SET status = ?, mileage = ?, updated_at = ?",
			string(train.Status), train.Mileage, train.UpdatedAt).
		RunWith(tx).Exec()
	if err != nil {
		return wrapDBError(err, "AddTrain")
	}
	return tx.Commit()
}

// FleetCounts summarizes the fleet by operational status
type FleetCounts struct {
	Total            int
	InService        int
	Available        int
	Withdrawn        int
	UnderMaintenance int
}

// CountFleet computes FleetCounts over trains
func CountFleet(trains []*Train) FleetCounts {
	counts := FleetCounts{Total: len(trains)}
	for _, train := range trains {
		switch train.Status {
		case TrainInService:
			counts.InService++
		case TrainStandby, TrainDepotReady:
			counts.Available++
		case TrainEmergencyWithdrawn:
			counts.Withdrawn++
		case TrainUnderMaintenance:
			counts.UnderMaintenance++
		}
	}
	return counts
}
