package notify

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

// Queue job names.
const (
	JobTicketEscalated = "notify.ticket_escalated"
	JobTicketClosed    = "notify.ticket_closed"
)

// Template keys.
const (
	TemplateTicketEscalated = "ticket_escalated"
	TemplateTicketClosed    = "ticket_closed"
)

// Listener bridges the queue to the notification service.
type Listener struct {
	service *Service
	admins  AdminDirectory
	users   UserDirectory
	logger  *slog.Logger
}

// NewListener creates the notification listener.
func NewListener(service *Service, admins AdminDirectory, users UserDirectory, logger *slog.Logger) *Listener {
	return &Listener{service: service, admins: admins, users: users, logger: logger}
}

// HandleTicketEscalated fans the escalation out to every admin. Partial
// failures are logged but not retried: the reached recipients are protected
// by dedup claims, and re-notifying a subset is worse than a gap the on-call
// rotation covers. Only a total failure triggers redelivery.
func (l *Listener) HandleTicketEscalated(ctx context.Context, job queue.Job) error {
	var ev events.TicketEscalated
	if err := json.Unmarshal(job.Payload, &ev); err != nil {
		return fmt.Errorf("unmarshal ticket_escalated payload: %w", err)
	}

	admins, err := l.admins.AdminRecipients(ctx)
	if err != nil {
		return queue.Retryable(fmt.Errorf("list admin recipients: %w", err))
	}
	if len(admins) == 0 {
		l.logger.WarnContext(ctx, "no admin recipients for escalation",
			"ticket_id", ev.TicketID,
		)
		return nil
	}

	data := map[string]any{
		"ticket_id": ev.TicketID.String(),
		"subject":   ev.Subject,
	}
	result, err := l.service.FanOut(ctx, admins, TemplateTicketEscalated, ev.TicketID.String(), data)
	if err != nil {
		return fmt.Errorf("escalation fan-out: %w", err)
	}
	if result.AllFailed() {
		return queue.Retryable(fmt.Errorf("escalation fan-out reached no recipients (%d failures)", len(result.Failed)))
	}
	if len(result.Failed) > 0 {
		l.logger.WarnContext(ctx, "escalation fan-out partially failed",
			"ticket_id", ev.TicketID,
			"reached", len(result.Succeeded),
			"failed", len(result.Failed),
		)
	}
	return nil
}

// HandleTicketClosed notifies the user who opened the ticket. Single
// recipient, so a delivery failure retries the whole job.
func (l *Listener) HandleTicketClosed(ctx context.Context, job queue.Job) error {
	var ev events.TicketClosed
	if err := json.Unmarshal(job.Payload, &ev); err != nil {
		return fmt.Errorf("unmarshal ticket_closed payload: %w", err)
	}

	recipient, err := l.users.RecipientFor(ctx, ev.OpenedBy)
	if errors.Is(err, sentinel.ErrNotFound) {
		l.logger.WarnContext(ctx, "ticket opener has no notification address",
			"ticket_id", ev.TicketID,
			"user_id", ev.OpenedBy,
		)
		return nil
	}
	if err != nil {
		return queue.Retryable(fmt.Errorf("resolve ticket opener: %w", err))
	}

	data := map[string]any{"ticket_id": ev.TicketID.String()}
	if err := l.service.SendTo(ctx, recipient, TemplateTicketClosed, ev.TicketID.String(), data); err != nil {
		return queue.Retryable(fmt.Errorf("notify ticket opener: %w", err))
	}
	return nil
}
