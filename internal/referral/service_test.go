package referral_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"equitrail/internal/audit"
	auditmem "equitrail/internal/audit/store/memory"
	"equitrail/internal/queue"
	"equitrail/internal/referral"
	refmem "equitrail/internal/referral/store/memory"
	id "equitrail/pkg/domain"
	dErrors "equitrail/pkg/domain-errors"
	"equitrail/pkg/requestcontext"
)

// fakeDeduper claims keys in a map, recording releases so tests can assert
// the claim lifecycle.
type fakeDeduper struct {
	mu       sync.Mutex
	held     map[string]bool
	released []string
}

func newFakeDeduper() *fakeDeduper {
	return &fakeDeduper{held: make(map[string]bool)}
}

func (d *fakeDeduper) Acquire(_ context.Context, key string, _ time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.held[key] {
		return false, nil
	}
	d.held[key] = true
	return true, nil
}

func (d *fakeDeduper) Release(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.held, key)
	d.released = append(d.released, key)
	return nil
}

type ReferralServiceSuite struct {
	suite.Suite
	store      *refmem.InMemoryStore
	kyc        *refmem.InMemoryKYC
	dedup      *fakeDeduper
	jobs       *queue.MemoryQueue
	auditStore *auditmem.InMemoryStore
	service    *referral.Service
	ctx        context.Context
	userID     id.UserID
}

func TestReferralServiceSuite(t *testing.T) {
	suite.Run(t, new(ReferralServiceSuite))
}

func (s *ReferralServiceSuite) SetupTest() {
	s.store = refmem.NewInMemoryStore()
	s.kyc = refmem.NewInMemoryKYC()
	s.dedup = newFakeDeduper()
	s.jobs = queue.NewMemory(1024)
	s.auditStore = auditmem.NewInMemoryStore()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	auditLogger, err := audit.NewLogger(s.auditStore, logger)
	s.Require().NoError(err)

	s.service, err = referral.NewService(s.store, s.kyc, s.dedup, s.jobs, auditLogger, logger)
	s.Require().NoError(err)

	s.ctx = requestcontext.WithTime(context.Background(),
		time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC))
	s.userID = id.NewUserID()
}

// seedPending creates n pending referrals where the user is the referrer.
func (s *ReferralServiceSuite) seedPending(n int) []id.ReferralID {
	ids := make([]id.ReferralID, 0, n)
	for i := 0; i < n; i++ {
		r := referral.Referral{
			ID:         id.NewReferralID(),
			ReferrerID: s.userID,
			ReferredID: id.NewUserID(),
			Status:     referral.StatusPending,
			CreatedAt:  time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		}
		s.store.Seed(r)
		ids = append(ids, r.ID)
	}
	return ids
}

// ============================================================================
// Reconciliation batching
// ============================================================================

func (s *ReferralServiceSuite) TestReconcileSchedulesOneJobPerPending() {
	// Counts straddle the page size so pagination boundaries are exercised:
	// an empty set, one short of a page, an exact page, one past it, and a
	// multi-page run.
	cases := []struct {
		name string
		n    int
	}{
		{"no pending referrals", 0},
		{"one short of a full page", 99},
		{"exactly one page", 100},
		{"one past a full page", 101},
		{"one and a half pages", 150},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.SetupTest()
			s.seedPending(tc.n)

			scheduled, err := s.service.ReconcilePending(s.ctx, s.userID)
			s.Require().NoError(err)
			s.Equal(tc.n, scheduled)
			s.Equal(tc.n, s.jobs.Len())
		})
	}
}

func (s *ReferralServiceSuite) TestReconcileSkipsForeignAndProcessed() {
	s.seedPending(3)
	s.store.Seed(referral.Referral{
		ID:         id.NewReferralID(),
		ReferrerID: id.NewUserID(),
		ReferredID: id.NewUserID(),
		Status:     referral.StatusPending,
	})
	s.store.Seed(referral.Referral{
		ID:         id.NewReferralID(),
		ReferrerID: s.userID,
		ReferredID: id.NewUserID(),
		Status:     referral.StatusProcessed,
	})

	scheduled, err := s.service.ReconcilePending(s.ctx, s.userID)
	s.Require().NoError(err)
	s.Equal(3, scheduled)
}

func (s *ReferralServiceSuite) TestReconcileValidation() {
	_, err := s.service.ReconcilePending(s.ctx, id.UserID{})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

// ============================================================================
// Processing
// ============================================================================

func (s *ReferralServiceSuite) TestProcessReleasesWhenBothVerified() {
	referredID := id.NewUserID()
	ref := referral.Referral{
		ID:         id.NewReferralID(),
		ReferrerID: s.userID,
		ReferredID: referredID,
		Status:     referral.StatusPending,
	}
	s.store.Seed(ref)
	s.kyc.SetVerified(s.userID, true)
	s.kyc.SetVerified(referredID, true)

	s.Require().NoError(s.service.ProcessReferral(s.ctx, ref.ID))

	got, err := s.store.Get(s.ctx, ref.ID)
	s.Require().NoError(err)
	s.Equal(referral.StatusProcessed, got.Status)
	s.False(got.ProcessedAt.IsZero())

	entries := s.auditStore.Entries()
	s.Require().Len(entries, 1)
	s.Equal(audit.ActionReferralProcessed, entries[0].Action)
	s.Equal(audit.TargetReferral, entries[0].TargetType)
	s.Equal(ref.ID.String(), entries[0].TargetID)

	// The claim stays held; the durable status guard is the real idempotence.
	s.Empty(s.dedup.released)
}

func (s *ReferralServiceSuite) TestProcessLeavesUnverifiedPending() {
	referredID := id.NewUserID()
	ref := referral.Referral{
		ID:         id.NewReferralID(),
		ReferrerID: s.userID,
		ReferredID: referredID,
		Status:     referral.StatusPending,
	}
	s.store.Seed(ref)
	s.kyc.SetVerified(s.userID, true)
	// referred user has not verified

	s.Require().NoError(s.service.ProcessReferral(s.ctx, ref.ID))

	got, err := s.store.Get(s.ctx, ref.ID)
	s.Require().NoError(err)
	s.Equal(referral.StatusPending, got.Status)
	s.Empty(s.auditStore.Entries())

	// Justification: the claim must be dropped whenever the referral stays
	// pending, or a later verification event could never release the reward
	// within the claim TTL.
	s.Equal([]string{"referral:" + ref.ID.String()}, s.dedup.released)
}

func (s *ReferralServiceSuite) TestProcessSkipsWhenClaimHeld() {
	ids := s.seedPending(1)
	claimKey := "referral:" + ids[0].String()
	acquired, err := s.dedup.Acquire(s.ctx, claimKey, time.Minute)
	s.Require().NoError(err)
	s.Require().True(acquired)

	s.Require().NoError(s.service.ProcessReferral(s.ctx, ids[0]))

	got, err := s.store.Get(s.ctx, ids[0])
	s.Require().NoError(err)
	s.Equal(referral.StatusPending, got.Status)
}

func (s *ReferralServiceSuite) TestProcessAlreadyProcessedIsNoOp() {
	referredID := id.NewUserID()
	ref := referral.Referral{
		ID:          id.NewReferralID(),
		ReferrerID:  s.userID,
		ReferredID:  referredID,
		Status:      referral.StatusProcessed,
		ProcessedAt: time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC),
	}
	s.store.Seed(ref)

	s.Require().NoError(s.service.ProcessReferral(s.ctx, ref.ID))
	s.Empty(s.auditStore.Entries())
}

func (s *ReferralServiceSuite) TestProcessMissingReferralIsNoOp() {
	s.Require().NoError(s.service.ProcessReferral(s.ctx, id.NewReferralID()))
	s.Empty(s.auditStore.Entries())
	s.Len(s.dedup.released, 1)
}
