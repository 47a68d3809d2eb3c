package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"equitrail/internal/audit"
)

// InMemoryStore keeps entries in memory for tests and single-process runs.
// It behaves like the materialized read model: AppendWithID is idempotent.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []audit.Entry
	byID    map[uuid.UUID]struct{}
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byID: make(map[uuid.UUID]struct{})}
}

func (s *InMemoryStore) Append(_ context.Context, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	s.entries = append(s.entries, entry)
	s.byID[entry.ID] = struct{}{}
	return nil
}

func (s *InMemoryStore) AppendWithID(_ context.Context, eventID uuid.UUID, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[eventID]; exists {
		return nil
	}
	entry.ID = eventID
	s.entries = append(s.entries, entry)
	s.byID[eventID] = struct{}{}
	return nil
}

func (s *InMemoryStore) ListByTarget(_ context.Context, targetType, targetID string, limit int) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []audit.Entry
	for _, e := range s.entries {
		if e.TargetType == targetType && e.TargetID == targetID {
			out = append(out, e)
		}
	}
	sortNewestFirst(out)
	return truncate(out, limit), nil
}

func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append([]audit.Entry{}, s.entries...)
	sortNewestFirst(out)
	return truncate(out, limit), nil
}

func (s *InMemoryStore) Stats(_ context.Context) (audit.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := audit.Stats{
		ByCategory:  make(map[string]int64),
		ByRiskLevel: make(map[string]int64),
	}
	for _, e := range s.entries {
		stats.Total++
		stats.ByCategory[string(e.Category)]++
		if e.RiskLevel != "" {
			stats.ByRiskLevel[string(e.RiskLevel)]++
		}
		if e.RequiresReview {
			stats.RequiresReview++
		}
	}
	return stats, nil
}

// Entries returns a copy of everything appended, in insertion order.
// Test helper.
func (s *InMemoryStore) Entries() []audit.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Entry{}, s.entries...)
}

// Clear drops all entries. Test helper.
func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.byID = make(map[uuid.UUID]struct{})
}

func sortNewestFirst(entries []audit.Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
}

func truncate(entries []audit.Entry, limit int) []audit.Entry {
	if limit > 0 && len(entries) > limit {
		return entries[:limit]
	}
	return entries
}
