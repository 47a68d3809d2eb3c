package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the audit trail.
type Metrics struct {
	EntriesLogged   *prometheus.CounterVec
	PersistFailures prometheus.Counter
	PersistDuration prometheus.Histogram
	RelayPublished  prometheus.Counter
	RelayErrors     prometheus.Counter
	AlertsDropped   prometheus.Counter
}

// NewMetrics creates and registers audit metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		EntriesLogged: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "equitrail_audit_entries_logged_total",
			Help: "Total audit entries accepted, by category",
		}, []string{"category"}),
		PersistFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "equitrail_audit_persist_failures_total",
			Help: "Total audit entry persistence failures",
		}),
		PersistDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "equitrail_audit_persist_duration_seconds",
			Help:    "Audit entry persistence latency",
			Buckets: prometheus.DefBuckets,
		}),
		RelayPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "equitrail_audit_relay_published_total",
			Help: "Total outbox rows published to the audit channel",
		}),
		RelayErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "equitrail_audit_relay_errors_total",
			Help: "Total outbox relay publish errors",
		}),
		AlertsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "equitrail_audit_alerts_dropped_total",
			Help: "Total critical alerts dropped due to a full buffer",
		}),
	}
}

// ObservePersistDuration records one persistence latency sample.
func (m *Metrics) ObservePersistDuration(seconds float64) {
	m.PersistDuration.Observe(seconds)
}
