package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"equitrail/internal/audit"
)

// NextUnpublished returns up to limit unpublished outbox rows, oldest first.
// The SELECT runs in its own implicit transaction, so the SKIP LOCKED row
// locks are gone before the relay publishes; concurrent relays can hand the
// same row out. That only means duplicate publication, which the consumer's
// idempotent materialization absorbs.
func (s *Store) NextUnpublished(ctx context.Context, limit int) ([]audit.OutboxRelayRow, error) {
	const query = `
		SELECT id, event_id, payload
		FROM audit_outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var out []audit.OutboxRelayRow
	for rows.Next() {
		var row audit.OutboxRelayRow
		if err := rows.Scan(&row.ID, &row.EventID, &row.Payload); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return out, nil
}

// MarkPublished stamps an outbox row after the broker acknowledged it.
func (s *Store) MarkPublished(ctx context.Context, rowID uuid.UUID) error {
	const query = `UPDATE audit_outbox SET published_at = now() WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, query, rowID); err != nil {
		return fmt.Errorf("mark outbox row published: %w", err)
	}
	return nil
}
