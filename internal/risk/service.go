package risk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"equitrail/internal/audit"
	"equitrail/internal/events"
	id "equitrail/pkg/domain"
	dErrors "equitrail/pkg/domain-errors"
	"equitrail/pkg/platform/sentinel"
	"equitrail/pkg/requestcontext"
)

// AuditLogger is the slice of the audit package the service needs.
type AuditLogger interface {
	Log(ctx context.Context, entry audit.Entry) error
}

// AlertSink receives critical alerts on become-blocked transitions.
type AlertSink interface {
	Emit(alert audit.Alert)
}

// Service recomputes risk scores on chargeback confirmation and decides on
// auto-blocking. It runs synchronously inside the transaction that confirmed
// the chargeback: a failure here rolls the whole confirmation back, by
// design, so "chargeback confirmed" and "risk profile updated" stay atomic.
type Service struct {
	store             Store
	scorer            Scorer
	auditLogger       AuditLogger
	alerts            AlertSink
	blockingThreshold int
	logger            *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

// WithAlertSink sets the critical-alert sink.
func WithAlertSink(a AlertSink) Option {
	return func(s *Service) { s.alerts = a }
}

// WithBlockingThreshold overrides the default blocking threshold.
func WithBlockingThreshold(t int) Option {
	return func(s *Service) {
		if t > 0 {
			s.blockingThreshold = t
		}
	}
}

// NewService creates the risk service.
func NewService(store Store, scorer Scorer, auditLogger AuditLogger, logger *slog.Logger, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("risk store is required")
	}
	if scorer == nil {
		return nil, fmt.Errorf("scorer is required")
	}
	if auditLogger == nil {
		return nil, fmt.Errorf("audit logger is required")
	}
	s := &Service{
		store:             store,
		scorer:            scorer,
		auditLogger:       auditLogger,
		blockingThreshold: 70,
		logger:            logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// OnChargebackConfirmed is the synchronous bus listener.
func (s *Service) OnChargebackConfirmed(ctx context.Context, event events.Event) error {
	cb, ok := event.(events.ChargebackConfirmed)
	if !ok {
		s.logger.WarnContext(ctx, "unexpected event type on chargeback listener", "event", event.Name())
		return nil
	}
	return s.ApplyChargeback(ctx, cb)
}

// ApplyChargeback recomputes the user's risk profile for one confirmed
// chargeback and blocks the user when the score breaches the threshold.
func (s *Service) ApplyChargeback(ctx context.Context, cb events.ChargebackConfirmed) error {
	if cb.UserID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "chargeback event missing user_id")
	}
	if cb.AmountPaise <= 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "chargeback amount must be positive")
	}

	now := requestcontext.Now(ctx)

	profile, err := s.store.Get(ctx, cb.UserID)
	if errors.Is(err, sentinel.ErrNotFound) {
		profile = &Profile{UserID: cb.UserID}
	} else if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "load risk profile")
	}

	oldValues := map[string]any{
		"risk_score":     profile.Score,
		"is_blocked":     profile.IsBlocked,
		"blocked_reason": profile.BlockedReason,
	}
	wasBlocked := profile.IsBlocked

	profile.ChargebackCount++
	profile.ChargebackTotalPaise += cb.AmountPaise
	profile.LastChargebackAt = now

	assessment := s.scorer.Calculate(Facts{
		ChargebackCount:      profile.ChargebackCount,
		ChargebackTotalPaise: profile.ChargebackTotalPaise,
		LastChargebackAt:     profile.LastChargebackAt,
		Now:                  now,
	})

	shouldBlock := assessment.Score >= s.blockingThreshold
	becameBlocked := !wasBlocked && shouldBlock

	profile.Score = assessment.Score
	profile.LastRiskUpdateAt = now
	if becameBlocked {
		profile.IsBlocked = true
		profile.BlockedReason = fmt.Sprintf(
			"risk score %d breached blocking threshold %d after confirmed chargeback on payment %s (%s)",
			assessment.Score, s.blockingThreshold, cb.PaymentID, cb.Reason,
		)
	}

	if err := s.store.Save(ctx, profile); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.Wrap(err, dErrors.CodeConflict, "risk profile changed concurrently")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "save risk profile")
	}

	action := audit.ActionRiskProfileUpdated
	riskLevel := id.RiskHigh
	if becameBlocked {
		action = audit.ActionUserBlocked
		riskLevel = id.RiskCritical
	}

	entry := audit.Entry{
		Action:      action,
		Description: fmt.Sprintf("risk score recomputed after chargeback on payment %s", cb.PaymentID),
		TargetType:  audit.TargetUser,
		TargetID:    cb.UserID.String(),
		OldValues:   oldValues,
		NewValues: map[string]any{
			"risk_score":     profile.Score,
			"is_blocked":     profile.IsBlocked,
			"blocked_reason": profile.BlockedReason,
		},
		Metadata: map[string]any{
			"payment_id":         cb.PaymentID.String(),
			"chargeback_paise":   cb.AmountPaise,
			"chargeback_reason":  cb.Reason,
			"score_factors":      assessment.Factors,
			"blocking_threshold": s.blockingThreshold,
		},
		RiskLevel:      riskLevel,
		RequiresReview: becameBlocked,
		Timestamp:      now,
	}
	if err := s.auditLogger.Log(ctx, entry); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "audit risk update")
	}

	if becameBlocked {
		s.logger.ErrorContext(ctx, "user auto-blocked by risk scoring",
			"user_id", cb.UserID,
			"score", profile.Score,
			"threshold", s.blockingThreshold,
			"payment_id", cb.PaymentID,
		)
		if s.alerts != nil {
			s.alerts.Emit(audit.Alert{
				Action:     audit.ActionUserBlocked,
				TargetType: audit.TargetUser,
				TargetID:   cb.UserID.String(),
				Reason:     profile.BlockedReason,
				RiskLevel:  id.RiskCritical,
				Timestamp:  now,
			})
		}
	}

	return nil
}
