package memory

import (
	"context"
	"sync"

	"equitrail/internal/risk"
	id "equitrail/pkg/domain"
	"equitrail/pkg/platform/sentinel"
)

// InMemoryStore keeps risk profiles in memory with the same optimistic
// versioning semantics as the Postgres store.
type InMemoryStore struct {
	mu       sync.RWMutex
	profiles map[id.UserID]risk.Profile
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{profiles: make(map[id.UserID]risk.Profile)}
}

func (s *InMemoryStore) Get(_ context.Context, userID id.UserID) (*risk.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := p
	return &copied, nil
}

func (s *InMemoryStore) Save(_ context.Context, profile *risk.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.profiles[profile.UserID]
	if profile.Version == 0 {
		if exists {
			return sentinel.ErrConflict
		}
	} else if !exists || current.Version != profile.Version {
		return sentinel.ErrConflict
	}

	profile.Version++
	s.profiles[profile.UserID] = *profile
	return nil
}
