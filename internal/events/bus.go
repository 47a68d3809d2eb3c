package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"equitrail/internal/queue"
	"equitrail/pkg/requestcontext"
)

// SyncHandler runs in the publisher's goroutine, inside the publisher's
// transaction when one is on the context. A returned error propagates to the
// caller and rolls the triggering write back.
type SyncHandler func(ctx context.Context, event Event) error

// Enqueuer is the slice of the queue the bus needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, job queue.Job) error
}

// Bus routes domain events to listeners. Sync listeners execute inline and
// atomically with the triggering write; async listeners become queue jobs
// with their own transaction and retry budget.
type Bus struct {
	sync   map[string][]SyncHandler
	async  map[string][]string // event name -> job names
	queue  Enqueuer
	logger *slog.Logger
}

// NewBus creates a Bus. The enqueuer may be nil for sync-only setups (tests).
func NewBus(q Enqueuer, logger *slog.Logger) *Bus {
	return &Bus{
		sync:   make(map[string][]SyncHandler),
		async:  make(map[string][]string),
		queue:  q,
		logger: logger,
	}
}

// SubscribeSync registers an in-transaction listener for an event name.
func (b *Bus) SubscribeSync(event string, h SyncHandler) {
	b.sync[event] = append(b.sync[event], h)
}

// SubscribeAsync routes an event to a named queue job. The job handler must
// be registered on the worker pool under the same name.
func (b *Bus) SubscribeAsync(event, jobName string) {
	b.async[event] = append(b.async[event], jobName)
}

// Publish dispatches an event. Sync listeners run first, in registration
// order; the first error aborts publication so the caller's transaction rolls
// back. Async listeners are then enqueued; an enqueue failure is an
// infrastructure error and is returned.
func (b *Bus) Publish(ctx context.Context, event Event) error {
	for _, h := range b.sync[event.Name()] {
		if err := h(ctx, event); err != nil {
			return fmt.Errorf("sync listener for %s: %w", event.Name(), err)
		}
	}

	jobs := b.async[event.Name()]
	if len(jobs) == 0 {
		return nil
	}
	if b.queue == nil {
		b.logger.Warn("async listeners registered but no queue configured", "event", event.Name())
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event.Name(), err)
	}
	for _, jobName := range jobs {
		job := queue.Job{
			ID:        uuid.NewString(),
			Name:      jobName,
			Payload:   payload,
			RequestID: requestcontext.RequestID(ctx),
		}
		if err := b.queue.Enqueue(ctx, job); err != nil {
			return fmt.Errorf("enqueue %s for %s: %w", jobName, event.Name(), err)
		}
	}
	return nil
}
