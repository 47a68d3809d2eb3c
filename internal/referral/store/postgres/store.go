package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"equitrail/internal/referral"
	id "equitrail/pkg/domain"
	"equitrail/pkg/platform/sentinel"
	txcontext "equitrail/pkg/platform/tx"
)

// Store persists referrals in Postgres. It also serves as the KYC directory,
// reading verification state off the users table.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Get(ctx context.Context, referralID id.ReferralID) (*referral.Referral, error) {
	const query = `
		SELECT id, referrer_id, referred_id, status, created_at, processed_at
		FROM referrals
		WHERE id = $1
	`
	row := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(referralID))
	r, err := scanReferral(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query referral: %w", err)
	}
	return r, nil
}

func (s *Store) ListPendingInvolving(ctx context.Context, userID id.UserID, afterID id.ReferralID, limit int) ([]referral.Referral, error) {
	const query = `
		SELECT id, referrer_id, referred_id, status, created_at, processed_at
		FROM referrals
		WHERE status = 'pending'
		  AND (referrer_id = $1 OR referred_id = $1)
		  AND id > $2
		ORDER BY id
		LIMIT $3
	`
	rows, err := txcontext.ExecutorFrom(ctx, s.db).QueryContext(ctx, query,
		uuid.UUID(userID), uuid.UUID(afterID), limit)
	if err != nil {
		return nil, fmt.Errorf("query pending referrals: %w", err)
	}
	defer rows.Close()

	var out []referral.Referral
	for rows.Next() {
		r, err := scanReferral(rows)
		if err != nil {
			return nil, fmt.Errorf("scan referral: %w", err)
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate referrals: %w", err)
	}
	return out, nil
}

func (s *Store) MarkProcessed(ctx context.Context, referralID id.ReferralID, processedAt time.Time) error {
	const query = `
		UPDATE referrals SET status = 'processed', processed_at = $2
		WHERE id = $1 AND status = 'pending'
	`
	res, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, query, uuid.UUID(referralID), processedAt)
	if err != nil {
		return fmt.Errorf("mark referral processed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark referral processed rows affected: %w", err)
	}
	if affected == 0 {
		// Distinguish missing from already-processed for accurate sentinels.
		var exists bool
		const existsQuery = `SELECT EXISTS (SELECT 1 FROM referrals WHERE id = $1)`
		if err := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, existsQuery, uuid.UUID(referralID)).Scan(&exists); err != nil {
			return fmt.Errorf("check referral existence: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrConflict
	}
	return nil
}

// IsVerified reports whether the user has completed identity verification.
func (s *Store) IsVerified(ctx context.Context, userID id.UserID) (bool, error) {
	const query = `SELECT kyc_verified FROM users WHERE id = $1`
	var verified bool
	err := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(userID)).Scan(&verified)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query user verification: %w", err)
	}
	return verified, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReferral(row rowScanner) (*referral.Referral, error) {
	var (
		r           referral.Referral
		rawID       uuid.UUID
		rawReferrer uuid.UUID
		rawReferred uuid.UUID
		status      string
		processedAt sql.NullTime
	)
	if err := row.Scan(&rawID, &rawReferrer, &rawReferred, &status, &r.CreatedAt, &processedAt); err != nil {
		return nil, err
	}
	r.ID = id.ReferralID(rawID)
	r.ReferrerID = id.UserID(rawReferrer)
	r.ReferredID = id.UserID(rawReferred)
	r.Status = referral.Status(status)
	if processedAt.Valid {
		r.ProcessedAt = processedAt.Time
	}
	return &r, nil
}
