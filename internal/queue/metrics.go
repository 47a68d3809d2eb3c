package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the worker pool.
type Metrics struct {
	Processed *prometheus.CounterVec
	Retried   *prometheus.CounterVec
	Failed    *prometheus.CounterVec
}

// NewMetrics creates and registers worker pool metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		Processed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "equitrail_queue_jobs_processed_total",
			Help: "Total jobs completed successfully, by job name",
		}, []string{"job"}),
		Retried: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "equitrail_queue_jobs_retried_total",
			Help: "Total job attempts re-enqueued after a retryable failure, by job name",
		}, []string{"job"}),
		Failed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "equitrail_queue_jobs_failed_total",
			Help: "Total jobs handed to the failed hook after exhausting attempts, by job name",
		}, []string{"job"}),
	}
}
