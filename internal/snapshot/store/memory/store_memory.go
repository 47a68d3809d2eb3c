package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"equitrail/internal/snapshot"
	id "equitrail/pkg/domain"
	"equitrail/pkg/platform/sentinel"
)

// InMemoryStore keeps snapshots in memory for tests.
type InMemoryStore struct {
	mu    sync.RWMutex
	byID  map[uuid.UUID]snapshot.Snapshot
	order map[id.InvestmentID][]uuid.UUID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:  make(map[uuid.UUID]snapshot.Snapshot),
		order: make(map[id.InvestmentID][]uuid.UUID),
	}
}

func (s *InMemoryStore) Save(_ context.Context, snap snapshot.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[snap.ID]; exists {
		return sentinel.ErrConflict
	}
	s.byID[snap.ID] = snap
	s.order[snap.InvestmentID] = append(s.order[snap.InvestmentID], snap.ID)
	return nil
}

func (s *InMemoryStore) EarliestAndLatest(_ context.Context, investmentID id.InvestmentID) ([]snapshot.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.order[investmentID]
	snaps := make([]snapshot.Snapshot, 0, len(ids))
	for _, sid := range ids {
		snaps = append(snaps, s.byID[sid])
	}
	sort.SliceStable(snaps, func(i, j int) bool {
		return snaps[i].CapturedAt.Before(snaps[j].CapturedAt)
	})
	switch len(snaps) {
	case 0, 1:
		return snaps, nil
	default:
		return []snapshot.Snapshot{snaps[0], snaps[len(snaps)-1]}, nil
	}
}
