package referral

import (
	"context"
	"time"

	id "equitrail/pkg/domain"
)

// Store persists referral records.
type Store interface {
	// Get returns one referral, or sentinel.ErrNotFound.
	Get(ctx context.Context, referralID id.ReferralID) (*Referral, error)

	// ListPendingInvolving returns up to limit pending referrals where the
	// user appears as referrer or referred, keyset-paginated by referral ID:
	// only rows with ID greater than afterID are returned, ordered by ID.
	// Pass the zero ReferralID to start from the beginning.
	ListPendingInvolving(ctx context.Context, userID id.UserID, afterID id.ReferralID, limit int) ([]Referral, error)

	// MarkProcessed transitions a pending referral to processed. Returns
	// sentinel.ErrConflict when the referral is no longer pending, or
	// sentinel.ErrNotFound when it does not exist.
	MarkProcessed(ctx context.Context, referralID id.ReferralID, processedAt time.Time) error
}

// KYCDirectory answers whether a user has completed identity verification.
type KYCDirectory interface {
	IsVerified(ctx context.Context, userID id.UserID) (bool, error)
}
