package disclosure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"equitrail/internal/events"
	"equitrail/internal/queue"
	"equitrail/pkg/platform/sentinel"
)

// JobTierCheck is the queue job name for the asynchronous tier check.
const JobTierCheck = "disclosure.tier_check"

// Listener reacts to disclosure approvals. It performs no business logic of
// its own: it resolves the owning company and delegates to the promotion
// service, logging the outcome.
type Listener struct {
	store   Store
	service *Service
	logger  *slog.Logger
}

// NewListener creates the disclosure-approved listener.
func NewListener(store Store, service *Service, logger *slog.Logger) *Listener {
	return &Listener{store: store, service: service, logger: logger}
}

// HandleApproved is the queue handler for JobTierCheck. It re-derives the
// outcome from durable state, so a retried run after a transient failure
// reaches the same result even if the in-memory event data went stale.
func (l *Listener) HandleApproved(ctx context.Context, job queue.Job) error {
	var ev events.DisclosureApproved
	if err := json.Unmarshal(job.Payload, &ev); err != nil {
		// Malformed payloads never become valid; terminal.
		return fmt.Errorf("unmarshal disclosure_approved payload: %w", err)
	}

	d, err := l.store.GetDisclosure(ctx, ev.DisclosureID)
	if errors.Is(err, sentinel.ErrNotFound) {
		l.logger.WarnContext(ctx, "disclosure not found, skipping tier check",
			"disclosure_id", ev.DisclosureID,
		)
		return nil
	}
	if err != nil {
		return queue.Retryable(fmt.Errorf("load disclosure: %w", err))
	}

	if d.CompanyID.IsNil() {
		l.logger.WarnContext(ctx, "disclosure has no owning company, skipping tier check",
			"disclosure_id", ev.DisclosureID,
		)
		return nil
	}

	promoted, err := l.service.TryAutomaticPromotion(ctx, d.CompanyID, ev.Approver, ev.DisclosureID)
	if err != nil {
		return queue.Retryable(fmt.Errorf("tier promotion check: %w", err))
	}
	if promoted {
		l.logger.InfoContext(ctx, "automatic tier promotion applied",
			"company_id", d.CompanyID,
			"disclosure_id", ev.DisclosureID,
		)
	}
	return nil
}
