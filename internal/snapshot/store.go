package snapshot

import (
	"context"

	id "equitrail/pkg/domain"
)

// Store persists snapshots.
type Store interface {
	// Save appends one snapshot. Returns sentinel.ErrConflict when a
	// snapshot with the same ID already exists.
	Save(ctx context.Context, snap Snapshot) error

	// EarliestAndLatest returns the first snapshot ever captured for an
	// investment followed by the most recent one. Fewer than two captures
	// yield a shorter slice.
	EarliestAndLatest(ctx context.Context, investmentID id.InvestmentID) ([]Snapshot, error)
}
