package referral

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"equitrail/internal/audit"
	"equitrail/internal/queue"
	id "equitrail/pkg/domain"
	dErrors "equitrail/pkg/domain-errors"
	"equitrail/pkg/platform/sentinel"
	"equitrail/pkg/requestcontext"
)

// processClaimTTL bounds how long a crashed worker can hold a referral claim
// before another attempt may pick it up.
const processClaimTTL = 15 * time.Minute

// AuditLogger is the slice of the audit package the service needs.
type AuditLogger interface {
	Log(ctx context.Context, entry audit.Entry) error
}

// Deduper claims per-referral work keys so concurrent workers never process
// the same referral twice.
type Deduper interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// Service reconciles referral rewards. A referral is released only once both
// the referrer and the referred user have passed identity verification, and
// the processed transition is single-counted: the status write is guarded by
// the pending state, with a Redis claim in front to suppress duplicate work.
type Service struct {
	store  Store
	kyc    KYCDirectory
	dedup  Deduper
	jobs   queue.Queue
	audits AuditLogger
	logger *slog.Logger
}

// NewService creates the referral reconciliation service.
func NewService(store Store, kyc KYCDirectory, dedup Deduper, jobs queue.Queue, audits AuditLogger, logger *slog.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("referral store is required")
	}
	if kyc == nil {
		return nil, fmt.Errorf("kyc directory is required")
	}
	if dedup == nil {
		return nil, fmt.Errorf("deduper is required")
	}
	if jobs == nil {
		return nil, fmt.Errorf("job queue is required")
	}
	if audits == nil {
		return nil, fmt.Errorf("audit logger is required")
	}
	return &Service{store: store, kyc: kyc, dedup: dedup, jobs: jobs, audits: audits, logger: logger}, nil
}

// ReconcilePending pages through the user's pending referrals and schedules
// one processing job per referral. Pages are bounded by PageSize so a run
// never holds an unbounded row set in memory. Returns how many jobs were
// scheduled.
func (s *Service) ReconcilePending(ctx context.Context, userID id.UserID) (int, error) {
	if userID.IsNil() {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "user_id is required")
	}

	var after id.ReferralID
	scheduled := 0
	for {
		page, err := s.store.ListPendingInvolving(ctx, userID, after, PageSize)
		if err != nil {
			return scheduled, dErrors.Wrap(err, dErrors.CodeInternal, "list pending referrals")
		}
		for _, ref := range page {
			payload, err := json.Marshal(processJobPayload{ReferralID: ref.ID})
			if err != nil {
				return scheduled, dErrors.Wrap(err, dErrors.CodeInternal, "marshal referral job payload")
			}
			job := queue.Job{
				ID:        uuid.NewString(),
				Name:      JobProcess,
				Payload:   payload,
				RequestID: requestcontext.RequestID(ctx),
			}
			if err := s.jobs.Enqueue(ctx, job); err != nil {
				return scheduled, dErrors.Wrap(err, dErrors.CodeUnavailable, "enqueue referral processing")
			}
			scheduled++
			after = ref.ID
		}
		if len(page) < PageSize {
			break
		}
	}

	if scheduled > 0 {
		s.logger.InfoContext(ctx, "referral reconciliation scheduled",
			"user_id", userID,
			"jobs", scheduled,
		)
	}
	return scheduled, nil
}

// ProcessReferral releases one referral reward if both parties are verified.
// Safe to call repeatedly for the same referral.
func (s *Service) ProcessReferral(ctx context.Context, referralID id.ReferralID) error {
	if referralID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "referral_id is required")
	}

	claimKey := "referral:" + referralID.String()
	acquired, err := s.dedup.Acquire(ctx, claimKey, processClaimTTL)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "claim referral")
	}
	if !acquired {
		s.logger.InfoContext(ctx, "referral already claimed, skipping",
			"referral_id", referralID,
		)
		return nil
	}

	// The claim only suppresses duplicate in-flight work. On any path that
	// leaves the referral pending, drop it so a later run can try again.
	release := func() {
		if err := s.dedup.Release(ctx, claimKey); err != nil {
			s.logger.WarnContext(ctx, "failed to release referral claim",
				"referral_id", referralID,
				"error", err,
			)
		}
	}

	ref, err := s.store.Get(ctx, referralID)
	if errors.Is(err, sentinel.ErrNotFound) {
		release()
		s.logger.WarnContext(ctx, "referral not found, skipping", "referral_id", referralID)
		return nil
	}
	if err != nil {
		release()
		return dErrors.Wrap(err, dErrors.CodeInternal, "load referral")
	}
	if ref.Status == StatusProcessed {
		return nil
	}

	referrerVerified, err := s.kyc.IsVerified(ctx, ref.ReferrerID)
	if err != nil {
		release()
		return dErrors.Wrap(err, dErrors.CodeInternal, "check referrer verification")
	}
	referredVerified, err := s.kyc.IsVerified(ctx, ref.ReferredID)
	if err != nil {
		release()
		return dErrors.Wrap(err, dErrors.CodeInternal, "check referred verification")
	}
	if !referrerVerified || !referredVerified {
		release()
		s.logger.DebugContext(ctx, "referral not yet eligible",
			"referral_id", referralID,
			"referrer_verified", referrerVerified,
			"referred_verified", referredVerified,
		)
		return nil
	}

	processedAt := requestcontext.Now(ctx)
	err = s.store.MarkProcessed(ctx, referralID, processedAt)
	if errors.Is(err, sentinel.ErrConflict) {
		// Another run completed the transition first.
		return nil
	}
	if err != nil {
		release()
		return dErrors.Wrap(err, dErrors.CodeInternal, "mark referral processed")
	}

	entry := audit.Entry{
		Action:      audit.ActionReferralProcessed,
		Description: "referral reward released after both parties verified",
		TargetType:  audit.TargetReferral,
		TargetID:    referralID.String(),
		OldValues:   map[string]any{"status": string(StatusPending)},
		NewValues:   map[string]any{"status": string(StatusProcessed)},
		Metadata: map[string]any{
			"referrer_id": ref.ReferrerID.String(),
			"referred_id": ref.ReferredID.String(),
		},
		RiskLevel: id.RiskLow,
		Timestamp: processedAt,
	}
	if err := s.audits.Log(ctx, entry); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "audit referral processing")
	}

	s.logger.InfoContext(ctx, "referral processed",
		"referral_id", referralID,
		"referrer_id", ref.ReferrerID,
		"referred_id", ref.ReferredID,
	)
	return nil
}
