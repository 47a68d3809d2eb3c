package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"equitrail/internal/snapshot"
	id "equitrail/pkg/domain"
	"equitrail/pkg/platform/sentinel"
	txcontext "equitrail/pkg/platform/tx"
)

// Store persists snapshots in Postgres. The captured state is stored as a
// JSONB document; comparisons are computed in the service, never in SQL.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Save(ctx context.Context, snap snapshot.Snapshot) error {
	stateJSON, err := json.Marshal(snap.State)
	if err != nil {
		return fmt.Errorf("marshal snapshot state: %w", err)
	}

	const query = `
		INSERT INTO investment_snapshots (id, investment_id, state, captured_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`
	res, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, query,
		snap.ID, uuid.UUID(snap.InvestmentID), stateJSON, snap.CapturedAt)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert snapshot rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

const (
	earliestQuery = `
		SELECT id, investment_id, state, captured_at
		FROM investment_snapshots
		WHERE investment_id = $1
		ORDER BY captured_at ASC, id ASC
		LIMIT 1
	`
	latestQuery = `
		SELECT id, investment_id, state, captured_at
		FROM investment_snapshots
		WHERE investment_id = $1
		ORDER BY captured_at DESC, id DESC
		LIMIT 1
	`
)

func (s *Store) EarliestAndLatest(ctx context.Context, investmentID id.InvestmentID) ([]snapshot.Snapshot, error) {
	earliest, err := s.boundary(ctx, earliestQuery, investmentID)
	if err != nil {
		return nil, err
	}
	if earliest == nil {
		return nil, nil
	}
	latest, err := s.boundary(ctx, latestQuery, investmentID)
	if err != nil {
		return nil, err
	}
	if latest == nil || latest.ID == earliest.ID {
		return []snapshot.Snapshot{*earliest}, nil
	}
	return []snapshot.Snapshot{*earliest, *latest}, nil
}

func (s *Store) boundary(ctx context.Context, query string, investmentID id.InvestmentID) (*snapshot.Snapshot, error) {
	var (
		snap          snapshot.Snapshot
		rawInvestment uuid.UUID
		stateJSON     []byte
	)
	err := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(investmentID)).
		Scan(&snap.ID, &rawInvestment, &stateJSON, &snap.CapturedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	if err := json.Unmarshal(stateJSON, &snap.State); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot state: %w", err)
	}
	snap.InvestmentID = id.InvestmentID(rawInvestment)
	return &snap, nil
}
