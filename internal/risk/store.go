package risk

import (
	"context"

	id "equitrail/pkg/domain"
)

// Store persists risk profiles.
type Store interface {
	// Get returns a user's profile, or sentinel.ErrNotFound.
	Get(ctx context.Context, userID id.UserID) (*Profile, error)

	// Save upserts a profile with an optimistic version check: a profile
	// with Version 0 must not exist yet; otherwise the stored row must still
	// carry the same Version. Returns sentinel.ErrConflict on a lost race.
	// On success the profile's Version is advanced.
	Save(ctx context.Context, profile *Profile) error
}
