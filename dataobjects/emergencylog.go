package dataobjects

import (
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/gbl08ma/sqalx"
	"github.com/lib/pq"
)

// Severity is the severity of a breakdown
type Severity string

const (
	// SeverityLow is a minor fault
	SeverityLow Severity = "LOW"
	// SeverityMedium is a fault that degrades service
	SeverityMedium Severity = "MEDIUM"
	// SeverityHigh is a fault that stops the train soon
	SeverityHigh Severity = "HIGH"
	// SeverityCritical is a fault that stops the train immediately
	SeverityCritical Severity = "CRITICAL"
)

// Valid returns whether s is a known severity
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// EmergencyStatus is the status of an EmergencyLog
type EmergencyStatus string

const (
	// EmergencyActive is a breakdown still being handled
	EmergencyActive EmergencyStatus = "ACTIVE"
	// EmergencyResolved is a breakdown that has been dealt with
	EmergencyResolved EmergencyStatus = "RESOLVED"
)

// EmergencyLog is the record of one breakdown event
type EmergencyLog struct {
	ID          string
	TrainID     string
	FaultCode   string
	Severity    Severity
	Location    string
	Description string
	ReportedBy  string
	Time        time.Time
	Status      EmergencyStatus
	ResolvedAt  time.Time
	Resolved    bool
	ResolvedBy  string
	Resolution  string
}

// GetEmergencyLogs returns a slice with all registered emergency logs, most recent first
func GetEmergencyLogs(node sqalx.Node) ([]*EmergencyLog, error) {
	return getEmergencyLogsWithSelect(node, sdb.Select())
}

// GetActiveEmergencyLogs returns the emergency logs that have not been resolved
func GetActiveEmergencyLogs(node sqalx.Node) ([]*EmergencyLog, error) {
	s := sdb.Select().
		Where(sq.Eq{"status": string(EmergencyActive)})
	return getEmergencyLogsWithSelect(node, s)
}

// GetActiveBreakdownsSince returns the active emergency logs timestamped at or after since
func GetActiveBreakdownsSince(node sqalx.Node, since time.Time) ([]*EmergencyLog, error) {
	s := sdb.Select().
		Where(sq.Eq{"status": string(EmergencyActive)}).
		Where(sq.GtOrEq{"timestamp": since})
	return getEmergencyLogsWithSelect(node, s)
}

// CountActiveBreakdownsSince counts the active emergency logs timestamped at or after since
func CountActiveBreakdownsSince(node sqalx.Node, since time.Time) (int, error) {
	tx, err := node.Beginx()
	if err != nil {
		return 0, err
	}
	defer tx.Commit() // read-only tx

	rows, err := sdb.Select("COUNT(*)").
		From("emergency_log").
		Where(sq.Eq{"status": string(EmergencyActive)}).
		Where(sq.GtOrEq{"timestamp": since}).
		RunWith(tx).Query()
	if err != nil {
		return 0, wrapDBError(err, "CountActiveBreakdownsSince")
	}
	defer rows.Close()

	var count int
	if rows.Next() {
		err = rows.Scan(&count)
		if err != nil {
			return 0, wrapDBError(err, "CountActiveBreakdownsSince")
		}
	}
	return count, wrapDBError(rows.Err(), "CountActiveBreakdownsSince")
}

// GetEmergencyLog returns the EmergencyLog with the given ID
func GetEmergencyLog(node sqalx.Node, id string) (*EmergencyLog, error) {
	logs, err := getEmergencyLogsWithSelect(node, sdb.Select().Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, err
	}
	if len(logs) == 0 {
		return nil, notFound("emergency log", id)
	}
	return logs[0], nil
}

func getEmergencyLogsWithSelect(node sqalx.Node, sbuilder sq.SelectBuilder) ([]*EmergencyLog, error) {
	logs := []*EmergencyLog{}

	tx, err := node.Beginx()
	if err != nil {
		return logs, err
	}
	defer tx.Commit() // read-only tx

	rows, err := sbuilder.Columns("id", "train_id", "fault_code", "severity", "location", "description",
		"reported_by", "timestamp", "status", "resolved_at", "resolved_by", "resolution").
		From("emergency_log").
		OrderBy("timestamp DESC").
		RunWith(tx).Query()
	if err != nil {
		return logs, wrapDBError(err, "getEmergencyLogsWithSelect")
	}
	defer rows.Close()

	for rows.Next() {
		var log EmergencyLog
		var resolvedAt pq.NullTime
		err := rows.Scan(
			&log.ID,
			&log.TrainID,
			&log.FaultCode,
			&log.Severity,
			&log.Location,
			&log.Description,
			&log.ReportedBy,
			&log.Time,
			&log.Status,
			&resolvedAt,
			&log.ResolvedBy,
			&log.Resolution)
		if err != nil {
			return logs, wrapDBError(err, "getEmergencyLogsWithSelect")
		}
		log.ResolvedAt = resolvedAt.Time
		log.Resolved = resolvedAt.Valid
		logs = append(logs, &log)
	}
	if err := rows.Err(); err != nil {
		return logs, wrapDBError(err, "getEmergencyLogsWithSelect")
	}
	return logs, nil
}

// Update adds or updates the emergency log
func (log *EmergencyLog) Update(node sqalx.Node) error {
	tx, err := node.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	resolvedAt := pq.NullTime{
		Time:  log.ResolvedAt,
		Valid: log.Resolved,
	}

	_, err = sdb.Insert("emergency_log").
		Columns("id", "train_id", "fault_code", "severity", "location", "description",
			"reported_by", "timestamp", "status", "resolved_at", "resolved_by", "resolution").
		Values(log.ID, log.TrainID, log.FaultCode, string(log.Severity), log.Location, log.Description,
			log.ReportedBy, log.Time, string(log.Status), resolvedAt, log.ResolvedBy, log.Resolution).
		Suffix("ON CONFLICT (id) DO UPDATE SET status = ?, resolved_at = ?, resolved_by = ?, resolution = ?",
			string(log.Status), resolvedAt, log.ResolvedBy, log.Resolution).
		RunWith(tx).Exec()
	if err != nil {
		return wrapDBError(err, "AddEmergencyLog")
	}
	return tx.Commit()
}
