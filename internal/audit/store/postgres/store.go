// Package postgres implements the audit store using the transactional outbox
// pattern. Append writes to the outbox table inside the caller's transaction;
// the relay publishes rows to Kafka; the consumer materializes them into
// audit_entries, which serves all reads.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"equitrail/internal/audit"
	id "equitrail/pkg/domain"
	txcontext "equitrail/pkg/platform/tx"
)

// Store implements audit.Store over Postgres.
type Store struct {
	db *sql.DB
}

// New creates a Postgres audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// wirePayload is the JSON structure published to Kafka. Field names match
// audit.Entry's JSON tags so the consumer deserializes symmetrically.
type wirePayload struct {
	ID             string         `json:"id"`
	Action         string         `json:"action"`
	Category       string         `json:"category"`
	Description    string         `json:"description,omitempty"`
	TargetType     string         `json:"target_type"`
	TargetID       string         `json:"target_id"`
	OldValues      map[string]any `json:"old_values,omitempty"`
	NewValues      map[string]any `json:"new_values,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	RiskLevel      string         `json:"risk_level,omitempty"`
	RequiresReview bool           `json:"requires_review"`
	Actor          string         `json:"actor,omitempty"`
	Timestamp      string         `json:"timestamp"`
}

// Append writes an audit entry to the outbox. Joins the context transaction
// when present so the entry commits atomically with the triggering mutation.
func (s *Store) Append(ctx context.Context, entry audit.Entry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	payload := wirePayload{
		ID:             entry.ID.String(),
		Action:         string(entry.Action),
		Category:       string(entry.Category),
		Description:    entry.Description,
		TargetType:     entry.TargetType,
		TargetID:       entry.TargetID,
		OldValues:      entry.OldValues,
		NewValues:      entry.NewValues,
		Metadata:       entry.Metadata,
		RiskLevel:      string(entry.RiskLevel),
		RequiresReview: entry.RequiresReview,
		Actor:          entry.Actor,
		Timestamp:      entry.Timestamp.Format(time.RFC3339Nano),
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	const query = `
		INSERT INTO audit_outbox (id, event_id, target_type, target_id, action, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, query,
		uuid.New(), // outbox row ID
		entry.ID,
		entry.TargetType,
		entry.TargetID,
		string(entry.Action),
		payloadBytes,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox row: %w", err)
	}
	return nil
}

// AppendWithID materializes an entry into audit_entries under the event ID
// from the Kafka message key. Idempotent via ON CONFLICT DO NOTHING, since
// the consumer may see a record more than once.
func (s *Store) AppendWithID(ctx context.Context, eventID uuid.UUID, entry audit.Entry) error {
	oldValues, err := marshalValues(entry.OldValues)
	if err != nil {
		return fmt.Errorf("marshal old_values: %w", err)
	}
	newValues, err := marshalValues(entry.NewValues)
	if err != nil {
		return fmt.Errorf("marshal new_values: %w", err)
	}
	metadata, err := marshalValues(entry.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	const query = `
		INSERT INTO audit_entries (
			id, action, category, description, target_type, target_id,
			old_values, new_values, metadata, risk_level, requires_review, actor, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = s.db.ExecContext(ctx, query,
		eventID,
		string(entry.Action),
		string(entry.Category),
		entry.Description,
		entry.TargetType,
		entry.TargetID,
		oldValues,
		newValues,
		metadata,
		nullableString(string(entry.RiskLevel)),
		entry.RequiresReview,
		entry.Actor,
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// ListByTarget returns entries for one entity, newest first.
func (s *Store) ListByTarget(ctx context.Context, targetType, targetID string, limit int) ([]audit.Entry, error) {
	const query = `
		SELECT id, action, category, description, target_type, target_id,
		       old_values, new_values, metadata, risk_level, requires_review, actor, created_at
		FROM audit_entries
		WHERE target_type = $1 AND target_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`
	rows, err := s.db.QueryContext(ctx, query, targetType, targetID, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query audit entries by target: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// ListRecent returns the newest entries across all targets.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Entry, error) {
	const query = `
		SELECT id, action, category, description, target_type, target_id,
		       old_values, new_values, metadata, risk_level, requires_review, actor, created_at
		FROM audit_entries
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query recent audit entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// Stats aggregates the trail for the dashboard.
func (s *Store) Stats(ctx context.Context) (audit.Stats, error) {
	stats := audit.Stats{
		ByCategory:  make(map[string]int64),
		ByRiskLevel: make(map[string]int64),
	}

	const catQuery = `SELECT category, COUNT(*) FROM audit_entries GROUP BY category`
	rows, err := s.db.QueryContext(ctx, catQuery)
	if err != nil {
		return stats, fmt.Errorf("query category stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var category string
		var count int64
		if err := rows.Scan(&category, &count); err != nil {
			return stats, fmt.Errorf("scan category stats: %w", err)
		}
		stats.ByCategory[category] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("iterate category stats: %w", err)
	}

	const riskQuery = `
		SELECT risk_level, COUNT(*) FROM audit_entries
		WHERE risk_level IS NOT NULL GROUP BY risk_level
	`
	riskRows, err := s.db.QueryContext(ctx, riskQuery)
	if err != nil {
		return stats, fmt.Errorf("query risk stats: %w", err)
	}
	defer riskRows.Close()
	for riskRows.Next() {
		var level string
		var count int64
		if err := riskRows.Scan(&level, &count); err != nil {
			return stats, fmt.Errorf("scan risk stats: %w", err)
		}
		stats.ByRiskLevel[level] = count
	}
	if err := riskRows.Err(); err != nil {
		return stats, fmt.Errorf("iterate risk stats: %w", err)
	}

	const reviewQuery = `SELECT COUNT(*) FROM audit_entries WHERE requires_review`
	if err := s.db.QueryRowContext(ctx, reviewQuery).Scan(&stats.RequiresReview); err != nil {
		return stats, fmt.Errorf("query review stats: %w", err)
	}

	return stats, nil
}

func scanEntries(rows *sql.Rows) ([]audit.Entry, error) {
	var entries []audit.Entry
	for rows.Next() {
		var (
			e          audit.Entry
			action     string
			category   string
			oldValues  []byte
			newValues  []byte
			metadata   []byte
			riskLevel  sql.NullString
			actorValue sql.NullString
		)
		if err := rows.Scan(
			&e.ID, &action, &category, &e.Description, &e.TargetType, &e.TargetID,
			&oldValues, &newValues, &metadata, &riskLevel, &e.RequiresReview, &actorValue, &e.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Action = audit.Action(action)
		e.Category = audit.Category(category)
		if riskLevel.Valid {
			e.RiskLevel = id.RiskLevel(riskLevel.String)
		}
		if actorValue.Valid {
			e.Actor = actorValue.String
		}
		if err := unmarshalValues(oldValues, &e.OldValues); err != nil {
			return nil, fmt.Errorf("unmarshal old_values: %w", err)
		}
		if err := unmarshalValues(newValues, &e.NewValues); err != nil {
			return nil, fmt.Errorf("unmarshal new_values: %w", err)
		}
		if err := unmarshalValues(metadata, &e.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}

func marshalValues(values map[string]any) ([]byte, error) {
	if values == nil {
		return nil, nil
	}
	return json.Marshal(values)
}

func unmarshalValues(data []byte, dst *map[string]any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 100
	}
	return limit
}
