package dataobjects

import (
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/gbl08ma/sqalx"
)

// FrequencyAdjustment is a recorded change of the headway of a route
type FrequencyAdjustment struct {
	ID      string
	RouteID string
	Time    time.Time
	Headway Duration
	Reason  string
	// CrisisID is the crisis active when the adjustment was made, empty if there was none
	CrisisID string
}

// GetFrequencyAdjustments returns the adjustments made to the given route, most recent first
func GetFrequencyAdjustments(node sqalx.Node, routeID string) ([]*FrequencyAdjustment, error) {
	adjustments := []*FrequencyAdjustment{}

	tx, err := node.Beginx()
	if err != nil {
		return adjustments, err
	}
	defer tx.Commit() // read-only tx

	rows, err := sdb.Select("id", "route_id", "timestamp", "headway", "reason", "crisis_id").
		From("frequency_adjustment").
		Where(sq.Eq{"route_id": routeID}).
		OrderBy("timestamp DESC").
		RunWith(tx).Query()
	if err != nil {
		return adjustments, wrapDBError(err, "GetFrequencyAdjustments")
	}
	defer rows.Close()

	for rows.Next() {
		var adjustment FrequencyAdjustment
		var crisisID sql.NullString
		err := rows.Scan(
			&adjustment.ID,
			&adjustment.RouteID,
			&adjustment.Time,
			&adjustment.Headway,
			&adjustment.Reason,
			&crisisID)
		if err != nil {
			return adjustments, wrapDBError(err, "GetFrequencyAdjustments")
		}
		adjustment.CrisisID = crisisID.String
		adjustments = append(adjustments, &adjustment)
	}
	if err := rows.Err(); err != nil {
		return adjustments, wrapDBError(err, "GetFrequencyAdjustments")
	}
	return adjustments, nil
}

// Update adds or updates the adjustment
func (adjustment *FrequencyAdjustment) Update(node sqalx.Node) error {
	tx, err := node.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	crisisID := sql.NullString{
		String: adjustment.CrisisID,
		Valid:  adjustment.CrisisID != "",
	}

	_, err = sdb.Insert("frequency_adjustment").
		Columns("id", "route_id", "timestamp", "headway", "reason", "crisis_id").
		Values(adjustment.ID, adjustment.RouteID, adjustment.Time, adjustment.Headway, adjustment.Reason, crisisID).
		Suffix("ON CONFLICT (id) DO UPDATE SET headway = ?, reason = ?",
			adjustment.Headway, adjustment.Reason).
		RunWith(tx).Exec()
	if err != nil {
		return wrapDBError(err, "AddFrequencyAdjustment")
	}
	return tx.Commit()
}
