package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"equitrail/internal/risk"
	id "equitrail/pkg/domain"
	"equitrail/pkg/platform/sentinel"
	txcontext "equitrail/pkg/platform/tx"
)

// Store persists risk profiles in Postgres. All statements join the context
// transaction when present, since the risk service runs inside the
// chargeback confirmation transaction.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Get(ctx context.Context, userID id.UserID) (*risk.Profile, error) {
	const query = `
		SELECT user_id, risk_score, is_blocked, blocked_reason,
		       chargeback_count, chargeback_total_paise,
		       last_chargeback_at, last_risk_update_at, version
		FROM risk_profiles
		WHERE user_id = $1
	`
	var (
		p             risk.Profile
		rawUserID     uuid.UUID
		blockedReason sql.NullString
		lastCB        sql.NullTime
		lastUpdate    sql.NullTime
	)
	err := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(userID)).Scan(
		&rawUserID, &p.Score, &p.IsBlocked, &blockedReason,
		&p.ChargebackCount, &p.ChargebackTotalPaise,
		&lastCB, &lastUpdate, &p.Version,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query risk profile: %w", err)
	}

	p.UserID = id.UserID(rawUserID)
	if blockedReason.Valid {
		p.BlockedReason = blockedReason.String
	}
	if lastCB.Valid {
		p.LastChargebackAt = lastCB.Time
	}
	if lastUpdate.Valid {
		p.LastRiskUpdateAt = lastUpdate.Time
	}
	return &p, nil
}

// Save upserts with an optimistic version check. Version 0 inserts; anything
// else updates only if the stored version still matches, translating a lost
// race into sentinel.ErrConflict.
func (s *Store) Save(ctx context.Context, profile *risk.Profile) error {
	exec := txcontext.ExecutorFrom(ctx, s.db)

	if profile.Version == 0 {
		const insert = `
			INSERT INTO risk_profiles (
				user_id, risk_score, is_blocked, blocked_reason,
				chargeback_count, chargeback_total_paise,
				last_chargeback_at, last_risk_update_at, version
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1)
			ON CONFLICT (user_id) DO NOTHING
		`
		res, err := exec.ExecContext(ctx, insert,
			uuid.UUID(profile.UserID), profile.Score, profile.IsBlocked,
			nullableString(profile.BlockedReason),
			profile.ChargebackCount, profile.ChargebackTotalPaise,
			nullableTime(profile.LastChargebackAt), nullableTime(profile.LastRiskUpdateAt),
		)
		if err != nil {
			return fmt.Errorf("insert risk profile: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("insert risk profile rows affected: %w", err)
		}
		if affected == 0 {
			return sentinel.ErrConflict
		}
		profile.Version = 1
		return nil
	}

	const update = `
		UPDATE risk_profiles SET
			risk_score = $2, is_blocked = $3, blocked_reason = $4,
			chargeback_count = $5, chargeback_total_paise = $6,
			last_chargeback_at = $7, last_risk_update_at = $8,
			version = version + 1
		WHERE user_id = $1 AND version = $9
	`
	res, err := exec.ExecContext(ctx, update,
		uuid.UUID(profile.UserID), profile.Score, profile.IsBlocked,
		nullableString(profile.BlockedReason),
		profile.ChargebackCount, profile.ChargebackTotalPaise,
		nullableTime(profile.LastChargebackAt), nullableTime(profile.LastRiskUpdateAt),
		profile.Version,
	)
	if err != nil {
		return fmt.Errorf("update risk profile: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update risk profile rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrConflict
	}
	profile.Version++
	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
