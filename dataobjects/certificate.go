package dataobjects

import (
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/SaidinWoT/timespan"
	"github.com/gbl08ma/sqalx"
)

// Department is the inspection department that issues a fitness certificate
type Department string

const (
	// DepartmentRollingStock issues rolling stock certificates
	DepartmentRollingStock Department = "ROLLING_STOCK"
	// DepartmentSignalling issues signalling certificates
	DepartmentSignalling Department = "SIGNALLING"
	// DepartmentTelecom issues telecom certificates
	DepartmentTelecom Department = "TELECOM"
)

// CertificateStatus is the status of a certificate, derived from its validity window
type CertificateStatus string

const (
	// CertificateValid is a certificate that does not expire soon
	CertificateValid CertificateStatus = "VALID"
	// CertificateExpiringSoon is a certificate within CertificateExpiringSoonWindow of its expiry
	CertificateExpiringSoon CertificateStatus = "EXPIRING_SOON"
	// CertificateExpired is a certificate past its expiry instant
	CertificateExpired CertificateStatus = "EXPIRED"
)

// CertificateExpiringSoonWindow is how long before expiry a certificate is considered to be expiring soon
const CertificateExpiringSoonWindow = 24 * time.Hour

// FitnessCertificate is a fitness certificate issued for a train by an inspection department
type FitnessCertificate struct {
	ID         string
	TrainID    string
	Department Department
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

// ExpiredAt returns whether the certificate is past its expiry instant at the given time
func (cert *FitnessCertificate) ExpiredAt(t time.Time) bool {
	return cert.ExpiresAt.Before(t)
}

// StatusAt derives the status of the certificate at the given time
func (cert *FitnessCertificate) StatusAt(t time.Time) CertificateStatus {
	if cert.ExpiredAt(t) {
		return CertificateExpired
	}
	if timespan.New(t, CertificateExpiringSoonWindow).ContainsTime(cert.ExpiresAt) {
		return CertificateExpiringSoon
	}
	return CertificateValid
}

// GetFitnessCertificates returns the certificates of the given train
func GetFitnessCertificates(node sqalx.Node, trainID string) ([]*FitnessCertificate, error) {
	certs := []*FitnessCertificate{}

	tx, err := node.Beginx()
	if err != nil {
		return certs, err
	}
	defer tx.Commit() // read-only tx

	rows, err := sdb.Select("id", "train_id", "department", "issued_at", "expires_at").
		From("fitness_certificate").
		Where(sq.Eq{"train_id": trainID}).
		OrderBy("expires_at ASC").
		RunWith(tx).Query()
	if err != nil {
		return certs, wrapDBError(err, "GetFitnessCertificates")
	}
	defer rows.Close()

	for rows.Next() {
		var cert FitnessCertificate
		err := rows.Scan(
			&cert.ID,
			&cert.TrainID,
			&cert.Department,
			&cert.IssuedAt,
			&cert.ExpiresAt)
		if err != nil {
			return certs, wrapDBError(err, "GetFitnessCertificates")
		}
		certs = append(certs, &cert)
	}
	if err := rows.Err(); err != nil {
		return certs, wrapDBError(err, "GetFitnessCertificates")
	}
	return certs, nil
}

// Update adds or updates the certificate
func (cert *FitnessCertificate) Update(node sqalx.Node) error {
	tx, err := node.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = sdb.Insert("fitness_certificate").
		Columns("id", "train_id", "department", "issued_at", "expires_at").
		Values(cert.ID, cert.TrainID, string(cert.Department), cert.IssuedAt, cert.ExpiresAt).
		Suffix("ON CONFLICT (id) DO UPDATE SET department = ?, issued_at = ?, expires_at = ?",
			string(cert.Department), cert.IssuedAt, cert.ExpiresAt).
		RunWith(tx).Exec()
	if err != nil {
		return wrapDBError(err, "AddFitnessCertificate")
	}
	return tx.Commit()
}
