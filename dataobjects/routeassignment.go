package dataobjects

import (
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/gbl08ma/sqalx"
	"github.com/lib/pq"
)

// AssignmentType is the kind of a RouteAssignment
type AssignmentType string

const (
	// AssignmentRevenue is regular revenue service
	AssignmentRevenue AssignmentType = "REVENUE"
	// AssignmentStandby is a standby duty on a route
	AssignmentStandby AssignmentType = "STANDBY"
	// AssignmentReassigned is revenue service on a route the train was moved to during a crisis
	AssignmentReassigned AssignmentType = "REASSIGNED"
)

// AssignmentStatus is the status of a RouteAssignment
type AssignmentStatus string

const (
	// AssignmentActive is the current assignment of a train. A train has at most one
	AssignmentActive AssignmentStatus = "ACTIVE"
	// AssignmentCompleted is a closed assignment
	AssignmentCompleted AssignmentStatus = "COMPLETED"
)

// RouteAssignment binds a train to a route for a period of time
type RouteAssignment struct {
	ID        string
	TrainID   string
	RouteID   string
	Type      AssignmentType
	StartTime time.Time
	EndTime   time.Time
	Ended     bool
	Status    AssignmentStatus
}

// GetActiveRouteAssignment returns the active assignment of the given train
func GetActiveRouteAssignment(node sqalx.Node, trainID string) (*RouteAssignment, error) {
	assignments, err := getRouteAssignmentsWithSelect(node, sdb.Select().
		Where(sq.Eq{"train_id": trainID}).
		Where(sq.Eq{"status": string(AssignmentActive)}))
	if err != nil {
		return nil, err
	}
	if len(assignments) == 0 {
		return nil, notFound("active route assignment for train", trainID)
	}
	return assignments[0], nil
}

// GetActiveRouteAssignments returns every active assignment, optionally restricted to the given routes
func GetActiveRouteAssignments(node sqalx.Node, routeIDs ...string) ([]*RouteAssignment, error) {
	s := sdb.Select().Where(sq.Eq{"status": string(AssignmentActive)})
	if len(routeIDs) > 0 {
		s = s.Where(sq.Eq{"route_id": routeIDs})
	}
	return getRouteAssignmentsWithSelect(node, s)
}

// GetRouteAssignments returns the full assignment history of the given train
func GetRouteAssignments(node sqalx.Node, trainID string) ([]*RouteAssignment, error) {
	return getRouteAssignmentsWithSelect(node, sdb.Select().Where(sq.Eq{"train_id": trainID}))
}

func getRouteAssignmentsWithSelect(node sqalx.Node, sbuilder sq.SelectBuilder) ([]*RouteAssignment, error) {
	assignments := []*RouteAssignment{}

	tx, err := node.Beginx()
	if err != nil {
		return assignments, err
	}
	defer tx.Commit() // read-only tx

	rows, err := sbuilder.Columns("id", "train_id", "route_id", "type", "start_time", "end_time", "status").
		From("route_assignment").
		OrderBy("start_time ASC", "train_id ASC").
		RunWith(tx).Query()
	if err != nil {
		return assignments, wrapDBError(err, "getRouteAssignmentsWithSelect")
	}
	defer rows.Close()

	for rows.Next() {
		var assignment RouteAssignment
		var endTime pq.NullTime
		err := rows.Scan(
			&assignment.ID,
			&assignment.TrainID,
			&assignment.RouteID,
			&assignment.Type,
			&assignment.StartTime,
			&endTime,
			&assignment.Status)
		if err != nil {
			return assignments, wrapDBError(err, "getRouteAssignmentsWithSelect")
		}
		assignment.EndTime = endTime.Time
		assignment.Ended = endTime.Valid
		assignments = append(assignments, &assignment)
	}
	if err := rows.Err(); err != nil {
		return assignments, wrapDBError(err, "getRouteAssignmentsWithSelect")
	}
	return assignments, nil
}

// CloseActiveRouteAssignment completes the active assignment of the given train, if any,
// setting its end time to at. It returns whether an assignment was closed
func CloseActiveRouteAssignment(node sqalx.Node, trainID string, at time.Time) (bool, error) {
	tx, err := node.Beginx()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	result, err := sdb.Update("route_assignment").
		Set("status", string(AssignmentCompleted)).
		Set("end_time", at).
		Where(sq.Eq{"train_id": trainID}).
		Where(sq.Eq{"status": string(AssignmentActive)}).
		RunWith(tx).Exec()
	if err != nil {
		return false, wrapDBError(err, "CloseActiveRouteAssignment")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, wrapDBError(err, "CloseActiveRouteAssignment")
	}
	return affected > 0, tx.Commit()
}

// Update adds or updates the assignment
func (assignment *RouteAssignment) Update(node sqalx.Node) error {
	tx, err := node.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	endTime := pq.NullTime{
		Time:  assignment.EndTime,
		Valid: assignment.Ended,
	}

	_, err = sdb.Insert("route_assignment").
		Columns("id", "train_id", "route_id", "type", "start_time", "end_time", "status").
		Values(assignment.ID, assignment.TrainID, assignment.RouteID, string(assignment.Type),
			assignment.StartTime, endTime, string(assignment.Status)).
		Suffix("ON CONFLICT (id) DO UPDATE SET end_time = ?, status = ?",
			endTime, string(assignment.Status)).
		RunWith(tx).Exec()
	if err != nil {
		return wrapDBError(err, "AddRouteAssignment")
	}
	return tx.Commit()
}
