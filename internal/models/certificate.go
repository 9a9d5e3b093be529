package models

import "time"

type CertificateStatus string

const (
	CertificateStatusValid    CertificateStatus = "valid"
	CertificateStatusUpcoming CertificateStatus = "upcoming"
	CertificateStatusExpired  CertificateStatus = "expired"
)

func (s CertificateStatus) Valid() bool {
	switch s {
	case CertificateStatusValid, CertificateStatusUpcoming, CertificateStatusExpired:
		return true
	}
	return false
}

type Certificate struct {
	ID                string
	CertificateNumber string
	CompanyID         string
	EquipmentID       string
	ServiceDate       time.Time
	RetestDate        time.Time
	Status            CertificateStatus
	Notes             string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewCertificate reads a certificate from a row returned by the store. Dates
// arrive as time.Time from SQL engines and as text from the REST backend.
func NewCertificate(r Row) Certificate {
	return Certificate{
		ID:                r.ID(),
		CertificateNumber: r.String("certificate_number"),
		CompanyID:         r.String("company_id"),
		EquipmentID:       r.String("equipment_id"),
		ServiceDate:       r.Time("service_date"),
		RetestDate:        r.Time("retest_date"),
		Status:            CertificateStatus(r.String("status")),
		Notes:             r.String("notes"),
		CreatedAt:         r.Time("created_at"),
		UpdatedAt:         r.Time("updated_at"),
	}
}
