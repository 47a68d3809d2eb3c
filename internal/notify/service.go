package notify

//go:generate mockgen -destination=mocks/mocks.go -package=mocks equitrail/internal/notify Notifier,AdminDirectory,UserDirectory,Deduper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	id "equitrail/pkg/domain"
)

// dedupTTL is how long a delivered notification suppresses duplicates for the
// same (template, dedup key, recipient) triple.
const dedupTTL = 24 * time.Hour

// AdminDirectory lists the recipients for platform-wide admin notifications.
type AdminDirectory interface {
	AdminRecipients(ctx context.Context) ([]string, error)
}

// UserDirectory resolves a user to their notification address.
type UserDirectory interface {
	// RecipientFor returns the address, or sentinel.ErrNotFound.
	RecipientFor(ctx context.Context, userID id.UserID) (string, error)
}

// Deduper claims delivery keys so redelivered events do not re-notify
// recipients already reached.
type Deduper interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// Service delivers notifications with deduplication and per-recipient fault
// isolation: in a fan-out, one unreachable recipient never blocks the rest.
type Service struct {
	notifier Notifier
	dedup    Deduper
	logger   *slog.Logger
	metrics  *Metrics
}

// Option configures the Service.
type Option func(*Service)

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates the notification service.
func NewService(notifier Notifier, dedup Deduper, logger *slog.Logger, opts ...Option) (*Service, error) {
	if notifier == nil {
		return nil, fmt.Errorf("notifier is required")
	}
	if dedup == nil {
		return nil, fmt.Errorf("deduper is required")
	}
	s := &Service{notifier: notifier, dedup: dedup, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// FanOut delivers one notification to every recipient. Each recipient is
// attempted independently; the result reports who was reached and who was
// not. The error return covers only invalid input, never delivery failures.
func (s *Service) FanOut(ctx context.Context, recipients []string, templateKey, dedupKey string, data map[string]any) (BatchResult, error) {
	if templateKey == "" {
		return BatchResult{}, fmt.Errorf("template key is required")
	}

	var result BatchResult
	for _, recipient := range recipients {
		sent, err := s.deliver(ctx, recipient, templateKey, dedupKey, data)
		if err != nil {
			result.Failed = append(result.Failed, BatchFailure{Recipient: recipient, Err: err})
			if s.metrics != nil {
				s.metrics.Failed.WithLabelValues(templateKey).Inc()
			}
			s.logger.WarnContext(ctx, "notification delivery failed",
				"recipient", recipient,
				"template", templateKey,
				"error", err,
			)
			continue
		}
		if sent {
			result.Succeeded = append(result.Succeeded, recipient)
		}
	}
	return result, nil
}

// SendTo delivers one notification to one recipient. Unlike FanOut, a
// delivery failure surfaces as an error so the caller can retry wholesale.
func (s *Service) SendTo(ctx context.Context, recipient, templateKey, dedupKey string, data map[string]any) error {
	if templateKey == "" {
		return fmt.Errorf("template key is required")
	}
	if recipient == "" {
		return fmt.Errorf("recipient is required")
	}
	if _, err := s.deliver(ctx, recipient, templateKey, dedupKey, data); err != nil {
		return err
	}
	return nil
}

// deliver sends to one recipient behind the dedup claim. Returns whether a
// send actually happened (false when suppressed as a duplicate).
func (s *Service) deliver(ctx context.Context, recipient, templateKey, dedupKey string, data map[string]any) (bool, error) {
	claimKey := fmt.Sprintf("notify:%s:%s:%s", templateKey, dedupKey, recipient)

	acquired, err := s.dedup.Acquire(ctx, claimKey, dedupTTL)
	if err != nil {
		// Dedup store trouble must not silence notifications; deliver anyway
		// and accept the duplicate risk.
		s.logger.WarnContext(ctx, "dedup claim unavailable, delivering without it",
			"recipient", recipient,
			"template", templateKey,
			"error", err,
		)
		acquired = true
	} else if !acquired {
		if s.metrics != nil {
			s.metrics.Deduped.WithLabelValues(templateKey).Inc()
		}
		s.logger.DebugContext(ctx, "duplicate notification suppressed",
			"recipient", recipient,
			"template", templateKey,
		)
		return false, nil
	}

	if err := s.notifier.Send(ctx, recipient, templateKey, data); err != nil {
		// Give the claim back so a retry can deliver.
		if relErr := s.dedup.Release(ctx, claimKey); relErr != nil {
			s.logger.WarnContext(ctx, "failed to release notification claim",
				"recipient", recipient,
				"template", templateKey,
				"error", relErr,
			)
		}
		return false, err
	}

	if s.metrics != nil {
		s.metrics.Sent.WithLabelValues(templateKey).Inc()
	}
	return true, nil
}
