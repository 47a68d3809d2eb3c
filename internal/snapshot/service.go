package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"equitrail/internal/audit"
	id "equitrail/pkg/domain"
	dErrors "equitrail/pkg/domain-errors"
	"equitrail/pkg/platform/sentinel"
	"equitrail/pkg/requestcontext"
)

// AuditLogger is the slice of the audit package the service needs.
type AuditLogger interface {
	Log(ctx context.Context, entry audit.Entry) error
}

// Service captures investment snapshots and serves comparisons.
type Service struct {
	store  Store
	audits AuditLogger
	logger *slog.Logger
}

// NewService creates the snapshot service.
func NewService(store Store, audits AuditLogger, logger *slog.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("snapshot store is required")
	}
	if audits == nil {
		return nil, fmt.Errorf("audit logger is required")
	}
	return &Service{store: store, audits: audits, logger: logger}, nil
}

// Capture freezes the current investment state into a new snapshot.
func (s *Service) Capture(ctx context.Context, investmentID id.InvestmentID, state State) (*Snapshot, error) {
	if investmentID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "investment_id is required")
	}
	if !state.RiskLevel.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid risk level")
	}

	snap := Snapshot{
		ID:           uuid.New(),
		InvestmentID: investmentID,
		State:        state,
		CapturedAt:   requestcontext.Now(ctx),
	}
	err := s.store.Save(ctx, snap)
	if errors.Is(err, sentinel.ErrConflict) {
		return nil, dErrors.New(dErrors.CodeConflict, "snapshot already captured")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "save snapshot")
	}

	entry := audit.Entry{
		Action:      audit.ActionSnapshotCaptured,
		Description: "investment state snapshot captured",
		TargetType:  audit.TargetInvestment,
		TargetID:    investmentID.String(),
		NewValues: map[string]any{
			"lifecycle_state":  state.LifecycleState,
			"buying_enabled":   state.BuyingEnabled,
			"risk_level":       string(state.RiskLevel),
			"compliance_score": state.ComplianceScore,
		},
		Metadata:  map[string]any{"snapshot_id": snap.ID.String()},
		RiskLevel: id.RiskLow,
		Timestamp: snap.CapturedAt,
	}
	if err := s.audits.Log(ctx, entry); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "audit snapshot capture")
	}

	s.logger.InfoContext(ctx, "snapshot captured",
		"investment_id", investmentID,
		"snapshot_id", snap.ID,
	)
	return &snap, nil
}

// Compare diffs the snapshot captured when the investment was made against
// the most recent capture. Intermediate captures never shift the baseline;
// the answer is always "what changed since the investor bought in".
//
// Errors: CodeNotFound when fewer than two snapshots exist.
func (s *Service) Compare(ctx context.Context, investmentID id.InvestmentID) (*Comparison, error) {
	if investmentID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "investment_id is required")
	}

	snaps, err := s.store.EarliestAndLatest(ctx, investmentID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load snapshots")
	}
	if len(snaps) < 2 {
		return nil, dErrors.New(dErrors.CodeNotFound, "comparison requires at least two snapshots")
	}

	base, latest := snaps[0], snaps[1]
	changes := Diff(base.State, latest.State)
	return &Comparison{
		InvestmentID:     investmentID,
		BaseCapturedAt:   base.CapturedAt,
		LatestCapturedAt: latest.CapturedAt,
		Changes:          changes,
		Overall:          Overall(changes),
	}, nil
}
