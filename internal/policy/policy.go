// Package policy holds the certificate lifecycle rules.
package policy

import (
	"time"

	"github.com/bwservicing/certtrack/internal/models"
)

const (
	// RetestInterval is the fixed period between a service and its retest.
	RetestInterval = 364 * 24 * time.Hour
	// UpcomingWindow is how far ahead of the retest date a certificate is flagged.
	UpcomingWindow = 30 * 24 * time.Hour
)

type Derived struct {
	RetestDate time.Time
	Status     models.CertificateStatus
}

// DeriveStatus computes the retest date and status of a certificate.
//
// The retest date is always serviceDate + 364 days. retestOverride is accepted
// so callers can pass through client input, but it never wins.
func DeriveStatus(serviceDate time.Time, retestOverride *time.Time, today time.Time) Derived {
	retest := Day(serviceDate).Add(RetestInterval)
	now := Day(today)

	status := models.CertificateStatusValid
	switch {
	case !retest.After(now):
		status = models.CertificateStatusExpired
	case !retest.After(now.Add(UpcomingWindow)):
		status = models.CertificateStatusUpcoming
	}

	return Derived{RetestDate: retest, Status: status}
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate accepts a date as stored by any backend: time.Time, an ISO date or
// an RFC 3339 timestamp.
func ParseDate(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	case string:
		for _, layout := range []string{time.DateOnly, time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
	case []byte:
		return ParseDate(string(t))
	}
	return time.Time{}, false
}
