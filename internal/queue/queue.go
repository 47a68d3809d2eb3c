// Package queue implements background job execution for asynchronous event
// listeners: a Queue abstraction with in-memory and Redis backings, and a
// worker pool with a fixed retry budget.
//
// Retry eligibility is explicit: only errors wrapped via Retryable are
// redelivered. A handler that cannot act because a precondition is absent
// returns nil; a terminal error goes straight to the failed hook.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"equitrail/pkg/platform/sentinel"
)

// Job is one unit of queued work. Payload carries the serialized event so a
// retried run re-derives its outcome from durable state, not live memory.
type Job struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	RequestID string          `json:"request_id,omitempty"`
}

// HandlerFunc processes one job.
type HandlerFunc func(ctx context.Context, job Job) error

// Queue transports jobs between producers and the worker pool.
type Queue interface {
	// Enqueue adds a job. Non-blocking for practical capacities.
	Enqueue(ctx context.Context, job Job) error

	// Dequeue blocks until a job is available or the context is cancelled.
	Dequeue(ctx context.Context) (Job, error)
}

// Retryable marks err as eligible for redelivery by the worker pool.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", sentinel.ErrRetryable, err)
}

// IsRetryable reports whether err was marked via Retryable.
func IsRetryable(err error) bool {
	return errors.Is(err, sentinel.ErrRetryable)
}
