package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds process-level Prometheus metrics.
type Metrics struct {
	EventsDispatched *prometheus.CounterVec
	HTTPRequests     *prometheus.CounterVec
}

// New creates and registers process-level metrics.
func New() *Metrics {
	return &Metrics{
		EventsDispatched: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "equitrail_events_dispatched_total",
			Help: "Total domain events dispatched, by event name and mode (sync/async)",
		}, []string{"event", "mode"}),
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "equitrail_http_requests_total",
			Help: "Total HTTP requests served, by route and status class",
		}, []string{"route", "status"}),
	}
}
