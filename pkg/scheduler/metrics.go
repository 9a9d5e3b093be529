package scheduler

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	pending  prometheus.Gauge
	running  prometheus.Gauge
	executed prometheus.Counter
}

// NewMetrics builds the scheduler collectors and registers them on reg when
// it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "certtrack",
			Subsystem: "scheduler",
			Name:      "pending_work",
			Help:      "Work waiting for a free worker.",
		}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "certtrack",
			Subsystem: "scheduler",
			Name:      "running_work",
			Help:      "Work currently executing.",
		}),
		executed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "certtrack",
			Subsystem: "scheduler",
			Name:      "executed_total",
			Help:      "Work that has finished executing.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.pending, m.running, m.executed)
	}
	return m
}

func (m *Metrics) queued(n int) {
	if m == nil {
		return
	}
	m.pending.Set(float64(n))
}

func (m *Metrics) started() {
	if m == nil {
		return
	}
	m.running.Inc()
}

func (m *Metrics) finished() {
	if m == nil {
		return
	}
	m.running.Dec()
	m.executed.Inc()
}
