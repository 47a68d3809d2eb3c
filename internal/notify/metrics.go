package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for notification delivery.
type Metrics struct {
	Sent    *prometheus.CounterVec
	Failed  *prometheus.CounterVec
	Deduped *prometheus.CounterVec
}

// NewMetrics creates and registers notification metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		Sent: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "equitrail_notifications_sent_total",
			Help: "Total notifications delivered, by template",
		}, []string{"template"}),
		Failed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "equitrail_notifications_failed_total",
			Help: "Total notification delivery failures, by template",
		}, []string{"template"}),
		Deduped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "equitrail_notifications_deduped_total",
			Help: "Total notifications suppressed as duplicates, by template",
		}, []string{"template"}),
	}
}
