package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	id "equitrail/pkg/domain"
)

// Alert is a critical operational signal, distinct from the audit trail:
// it targets pagers and SIEM routing, not the governance record. Emission is
// non-blocking and lossy under pressure; the audit entry remains the durable
// fact.
type Alert struct {
	Action     Action
	TargetType string
	TargetID   string
	Reason     string
	RiskLevel  id.RiskLevel
	Timestamp  time.Time
}

// alertRing is a bounded buffer for alerts. When full, the oldest alerts are
// dropped to make room for new ones.
type alertRing struct {
	mu       sync.Mutex
	alerts   []Alert
	head     int
	tail     int
	count    int
	capacity int
	dropped  int64
}

func newAlertRing(capacity int) *alertRing {
	if capacity <= 0 {
		capacity = 1000
	}
	return &alertRing{alerts: make([]Alert, capacity), capacity: capacity}
}

func (r *alertRing) enqueue(a Alert) (droppedOldest bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count >= r.capacity {
		r.tail = (r.tail + 1) % r.capacity
		r.count--
		r.dropped++
		droppedOldest = true
	}
	r.alerts[r.head] = a
	r.head = (r.head + 1) % r.capacity
	r.count++
	return droppedOldest
}

func (r *alertRing) dequeueBatch(n int) []Alert {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count == 0 {
		return nil
	}
	if n > r.count {
		n = r.count
	}
	out := make([]Alert, n)
	for i := 0; i < n; i++ {
		out[i] = r.alerts[r.tail]
		r.tail = (r.tail + 1) % r.capacity
	}
	r.count -= n
	return out
}

func (r *alertRing) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Alerter buffers critical alerts and drains them on a background loop.
type Alerter struct {
	ring    *alertRing
	logger  *slog.Logger
	metrics *Metrics
}

// AlerterOption configures the Alerter.
type AlerterOption func(*Alerter)

// WithAlerterCapacity sets the ring capacity.
func WithAlerterCapacity(n int) AlerterOption {
	return func(a *Alerter) { a.ring = newAlertRing(n) }
}

// WithAlerterMetrics sets the metrics collector.
func WithAlerterMetrics(m *Metrics) AlerterOption {
	return func(a *Alerter) { a.metrics = m }
}

// NewAlerter creates an alert publisher.
func NewAlerter(logger *slog.Logger, opts ...AlerterOption) *Alerter {
	a := &Alerter{ring: newAlertRing(0), logger: logger}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Emit buffers one alert. Never blocks; drops the oldest alert when full.
func (a *Alerter) Emit(alert Alert) {
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now()
	}
	if a.ring.enqueue(alert) && a.metrics != nil {
		a.metrics.AlertsDropped.Inc()
	}
}

// Run drains the buffer until the context is cancelled, then flushes what
// remains.
func (a *Alerter) Run(ctx context.Context) error {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.flush()
			return ctx.Err()
		case <-ticker.C:
			a.flush()
		}
	}
}

func (a *Alerter) flush() {
	for {
		batch := a.ring.dequeueBatch(64)
		if len(batch) == 0 {
			return
		}
		for _, alert := range batch {
			a.logger.Error("ALERT",
				"channel", "alerting",
				"action", alert.Action,
				"target_type", alert.TargetType,
				"target_id", alert.TargetID,
				"reason", alert.Reason,
				"risk_level", alert.RiskLevel,
				"at", alert.Timestamp,
			)
		}
	}
}

// Pending returns the number of buffered alerts. Test helper.
func (a *Alerter) Pending() int { return a.ring.len() }
