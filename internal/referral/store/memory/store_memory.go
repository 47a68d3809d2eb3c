package memory

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"equitrail/internal/referral"
	id "equitrail/pkg/domain"
	"equitrail/pkg/platform/sentinel"
)

// InMemoryStore keeps referrals in memory for tests.
type InMemoryStore struct {
	mu        sync.RWMutex
	referrals map[id.ReferralID]referral.Referral
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{referrals: make(map[id.ReferralID]referral.Referral)}
}

// Seed inserts or replaces a referral. Test helper.
func (s *InMemoryStore) Seed(r referral.Referral) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.referrals[r.ID] = r
}

func (s *InMemoryStore) Get(_ context.Context, referralID id.ReferralID) (*referral.Referral, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.referrals[referralID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := r
	return &copied, nil
}

func (s *InMemoryStore) ListPendingInvolving(_ context.Context, userID id.UserID, afterID id.ReferralID, limit int) ([]referral.Referral, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []referral.Referral
	for _, r := range s.referrals {
		if r.Status != referral.StatusPending {
			continue
		}
		if r.ReferrerID != userID && r.ReferredID != userID {
			continue
		}
		if lessOrEqualID(r.ID, afterID) {
			continue
		}
		matched = append(matched, r)
	}

	// Byte-order sort matches the uuid column ordering Postgres uses, so the
	// two backings paginate identically.
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i].ID, matched[j].ID
		return bytes.Compare(a[:], b[:]) < 0
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *InMemoryStore) MarkProcessed(_ context.Context, referralID id.ReferralID, processedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.referrals[referralID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if r.Status != referral.StatusPending {
		return sentinel.ErrConflict
	}
	r.Status = referral.StatusProcessed
	r.ProcessedAt = processedAt
	s.referrals[referralID] = r
	return nil
}

func lessOrEqualID(a, b id.ReferralID) bool {
	return bytes.Compare(a[:], b[:]) <= 0
}

// InMemoryKYC is a map-backed verification directory for tests.
type InMemoryKYC struct {
	mu       sync.RWMutex
	verified map[id.UserID]bool
}

func NewInMemoryKYC() *InMemoryKYC {
	return &InMemoryKYC{verified: make(map[id.UserID]bool)}
}

// SetVerified records a user's verification state. Test helper.
func (k *InMemoryKYC) SetVerified(userID id.UserID, v bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.verified[userID] = v
}

func (k *InMemoryKYC) IsVerified(_ context.Context, userID id.UserID) (bool, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.verified[userID], nil
}
