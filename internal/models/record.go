package models

import (
	"strings"
	"time"
)

// Row is a single record as returned by a storage driver, keyed by column name.
type Row map[string]any

// String returns the column as a string, or "" when absent or not a string.
func (r Row) String(col string) string {
	if v, ok := r[col].(string); ok {
		return v
	}
	return ""
}

// Time returns the column as a time, parsing text in the layouts the
// backends produce. The zero time is returned when absent or unparsable.
func (r Row) Time(col string) time.Time {
	switch v := r[col].(type) {
	case time.Time:
		return v
	case string:
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}

// Float returns the column as a float64, or 0 when absent or not numeric.
func (r Row) Float(col string) float64 {
	switch v := r[col].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int64:
		return float64(v)
	case int:
		return float64(v)
	case int32:
		return float64(v)
	}
	return 0
}

var timeLayouts = []string{time.RFC3339Nano, time.DateOnly, "2006-01-02 15:04:05.999999999", "2006-01-02T15:04:05"}

// ID returns the primary key of the row.
func (r Row) ID() string {
	return r.String("id")
}

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Filters are equality-only predicates joined by AND. A nil value matches NULL.
type Filters map[string]any

type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// ParseSortDirection accepts "asc" or "desc" in any case.
func ParseSortDirection(s string) (SortDirection, bool) {
	switch strings.ToLower(s) {
	case "asc", "":
		return SortAsc, true
	case "desc":
		return SortDesc, true
	default:
		return "", false
	}
}

type OrderBy struct {
	Column    string
	Direction SortDirection
}

func (o OrderBy) Desc() bool {
	return strings.EqualFold(string(o.Direction), string(SortDesc))
}

// QueryDescriptor is the backend-agnostic shape of a read.
//
// Table may name a logical entity or a physical table. Limit and Offset are
// ignored when zero; Offset is a zero-based row skip.
type QueryDescriptor struct {
	Table   string
	Columns []string
	Filters Filters
	Order   []OrderBy
	Limit   uint64
	Offset  uint64
	Single  bool
}
