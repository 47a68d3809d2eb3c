// Package notify delivers operational notifications triggered by support
// ticket events. Delivery transports plug in behind the Notifier interface;
// the service layers deduplication and fan-out fault isolation on top.
package notify

import (
	"context"
	"log/slog"
)

// Notifier delivers one notification to one recipient.
type Notifier interface {
	Send(ctx context.Context, recipient, templateKey string, data map[string]any) error
}

// BatchFailure records one recipient that could not be reached.
type BatchFailure struct {
	Recipient string
	Err       error
}

// BatchResult reports a fan-out outcome. A failed recipient never prevents
// delivery to the rest; callers inspect Failed to decide follow-up.
type BatchResult struct {
	Succeeded []string
	Failed    []BatchFailure
}

// AllFailed reports whether no recipient was reached.
func (r BatchResult) AllFailed() bool {
	return len(r.Succeeded) == 0 && len(r.Failed) > 0
}

// LogNotifier writes notifications to the structured log. It is the delivery
// transport until an email/SMS provider is wired in.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(ctx context.Context, recipient, templateKey string, data map[string]any) error {
	n.logger.InfoContext(ctx, "notification delivered",
		"recipient", recipient,
		"template", templateKey,
		"data", data,
	)
	return nil
}
