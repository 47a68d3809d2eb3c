package referral

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"equitrail/internal/events"
	"equitrail/internal/queue"
	id "equitrail/pkg/domain"
)

// Queue job names.
const (
	JobReconcile = "referral.reconcile"
	JobProcess   = "referral.process"
)

// processJobPayload is the wire shape of a JobProcess payload.
type processJobPayload struct {
	ReferralID id.ReferralID `json:"referral_id"`
}

// Listener bridges the queue to the referral service.
type Listener struct {
	service *Service
	logger  *slog.Logger
}

// NewListener creates the referral listener.
func NewListener(service *Service, logger *slog.Logger) *Listener {
	return &Listener{service: service, logger: logger}
}

// HandleKYCVerified is the queue handler for JobReconcile. It fans a single
// verification event out into one processing job per pending referral.
func (l *Listener) HandleKYCVerified(ctx context.Context, job queue.Job) error {
	var ev events.KYCVerified
	if err := json.Unmarshal(job.Payload, &ev); err != nil {
		// Malformed payloads never become valid; terminal.
		return fmt.Errorf("unmarshal kyc_verified payload: %w", err)
	}

	scheduled, err := l.service.ReconcilePending(ctx, ev.UserID)
	if err != nil {
		// Processing jobs are idempotent, so partially-scheduled pages are
		// safe to redo on redelivery.
		return queue.Retryable(fmt.Errorf("reconcile referrals: %w", err))
	}

	l.logger.DebugContext(ctx, "kyc verification reconciled",
		"user_id", ev.UserID,
		"jobs_scheduled", scheduled,
	)
	return nil
}

// HandleProcess is the queue handler for JobProcess.
func (l *Listener) HandleProcess(ctx context.Context, job queue.Job) error {
	var payload processJobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal referral process payload: %w", err)
	}

	if err := l.service.ProcessReferral(ctx, payload.ReferralID); err != nil {
		return queue.Retryable(fmt.Errorf("process referral: %w", err))
	}
	return nil
}
