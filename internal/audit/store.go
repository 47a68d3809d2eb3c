package audit

import (
	"context"

	"github.com/google/uuid"
)

// Store persists audit entries. Append is the write path (outbox on the
// postgres implementation); the read methods serve the admin surface from
// the materialized table.
type Store interface {
	// Append writes an entry. On the postgres store this joins the context
	// transaction when present and writes to the outbox.
	Append(ctx context.Context, entry Entry) error

	// AppendWithID materializes an entry under a known event ID. Idempotent:
	// a duplicate ID is a no-op. Used by the Kafka consumer.
	AppendWithID(ctx context.Context, eventID uuid.UUID, entry Entry) error

	// ListByTarget returns entries for one entity, newest first.
	ListByTarget(ctx context.Context, targetType, targetID string, limit int) ([]Entry, error)

	// ListRecent returns the newest entries across all targets.
	ListRecent(ctx context.Context, limit int) ([]Entry, error)

	// Stats aggregates totals for the dashboard.
	Stats(ctx context.Context) (Stats, error)
}
