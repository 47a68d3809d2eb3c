package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// OutboxSource is the slice of the postgres store the relay reads from.
type OutboxSource interface {
	NextUnpublished(ctx context.Context, limit int) ([]OutboxRelayRow, error)
	MarkPublished(ctx context.Context, rowID uuid.UUID) error
}

// OutboxRelayRow is one row handed to the relay.
type OutboxRelayRow struct {
	ID      uuid.UUID
	EventID uuid.UUID
	Payload []byte
}

// RecordProducer publishes one record to the audit channel.
type RecordProducer interface {
	Produce(ctx context.Context, topic string, key, value []byte) error
}

// Relay drains the transactional outbox into Kafka. It polls; rows are marked
// published only after broker acknowledgment, so a crash between produce and
// mark yields at-least-once delivery, which the consumer's idempotent
// materialization absorbs.
type Relay struct {
	source    OutboxSource
	producer  RecordProducer
	topic     string
	batchSize int
	interval  time.Duration
	logger    *slog.Logger
	metrics   *Metrics
}

// RelayOption configures the Relay.
type RelayOption func(*Relay)

// WithRelayInterval sets the polling interval.
func WithRelayInterval(d time.Duration) RelayOption {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithRelayBatchSize sets how many rows one polling round drains.
func WithRelayBatchSize(n int) RelayOption {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithRelayMetrics sets the metrics collector.
func WithRelayMetrics(m *Metrics) RelayOption {
	return func(r *Relay) { r.metrics = m }
}

// NewRelay creates an outbox relay publishing to the given topic.
func NewRelay(source OutboxSource, producer RecordProducer, topic string, logger *slog.Logger, opts ...RelayOption) *Relay {
	r := &Relay{
		source:    source,
		producer:  producer,
		topic:     topic,
		batchSize: 100,
		interval:  time.Second,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run polls until the context is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.drain(ctx)
		}
	}
}

// drain publishes one batch. A produce error stops the round; the row stays
// unpublished and the next round retries it.
func (r *Relay) drain(ctx context.Context) {
	rows, err := r.source.NextUnpublished(ctx, r.batchSize)
	if err != nil {
		r.logger.Error("outbox read failed", "error", err)
		return
	}

	for _, row := range rows {
		if err := r.producer.Produce(ctx, r.topic, []byte(row.EventID.String()), row.Payload); err != nil {
			r.logger.Error("outbox publish failed",
				"outbox_id", row.ID,
				"event_id", row.EventID,
				"error", err,
			)
			if r.metrics != nil {
				r.metrics.RelayErrors.Inc()
			}
			return
		}
		if err := r.source.MarkPublished(ctx, row.ID); err != nil {
			r.logger.Error("outbox mark failed, row will republish",
				"outbox_id", row.ID,
				"error", err,
			)
			return
		}
		if r.metrics != nil {
			r.metrics.RelayPublished.Inc()
		}
	}
}
