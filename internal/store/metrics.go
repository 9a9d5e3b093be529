package store

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	srvErrors "github.com/bwservicing/certtrack/pkg/errors"
)

// Metrics counts adapter operations per driver, operation and outcome.
type Metrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewMetrics builds the collectors and registers them on reg when it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "certtrack",
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Storage operations by driver, operation and outcome.",
		}, []string{"driver", "operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "certtrack",
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Latency of storage operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"driver", "operation"}),
	}
	if reg != nil {
		reg.MustRegister(m.operations, m.duration)
	}
	return m
}

func (m *Metrics) observe(driver, op string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = srvErrors.Kind(err)
	}
	m.operations.WithLabelValues(driver, op, outcome).Inc()
	m.duration.WithLabelValues(driver, op).Observe(time.Since(start).Seconds())
}
