package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"equitrail/pkg/requestcontext"
)

// Logger is the fail-closed audit writer. Log blocks until the entry is
// persisted; an error means the caller MUST fail its operation. On the
// synchronous risk path the entry joins the caller's transaction via the
// context, so the mutation and its audit record commit together.
type Logger struct {
	store   Store
	slogger *slog.Logger
	metrics *Metrics
}

// Option configures the Logger.
type Option func(*Logger)

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(l *Logger) { l.metrics = m }
}

// NewLogger creates an audit logger over the given store.
func NewLogger(store Store, slogger *slog.Logger, opts ...Option) (*Logger, error) {
	if store == nil {
		return nil, fmt.Errorf("audit store is required")
	}
	l := &Logger{store: store, slogger: slogger}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Log persists one entry. Required fields: Action, TargetType, TargetID.
// Category is always derived from Action; ID, Timestamp, Actor, and request
// metadata are filled from context when absent.
func (l *Logger) Log(ctx context.Context, entry Entry) error {
	if entry.Action == "" {
		return fmt.Errorf("audit entry requires Action")
	}
	if entry.TargetType == "" || entry.TargetID == "" {
		return fmt.Errorf("audit entry requires TargetType and TargetID")
	}

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.Category = entry.Action.Category()
	if entry.Timestamp.IsZero() {
		entry.Timestamp = requestcontext.Now(ctx)
	}
	if entry.Actor == "" {
		entry.Actor = requestcontext.Actor(ctx)
	}
	l.enrich(ctx, &entry)

	start := time.Now()
	if err := l.store.Append(ctx, entry); err != nil {
		if l.metrics != nil {
			l.metrics.PersistFailures.Inc()
		}
		l.slogger.ErrorContext(ctx, "CRITICAL: audit persistence failed",
			"action", entry.Action,
			"target_type", entry.TargetType,
			"target_id", entry.TargetID,
			"error", err,
		)
		return fmt.Errorf("audit persistence failed: %w", err)
	}

	if l.metrics != nil {
		l.metrics.EntriesLogged.WithLabelValues(string(entry.Category)).Inc()
		l.metrics.ObservePersistDuration(time.Since(start).Seconds())
	}
	return nil
}

// enrich attaches request metadata so trail reconstructions can correlate
// entries with the request that caused them.
func (l *Logger) enrich(ctx context.Context, entry *Entry) {
	requestID := requestcontext.RequestID(ctx)
	clientIP := requestcontext.ClientIP(ctx)
	userAgent := requestcontext.UserAgent(ctx)
	if requestID == "" && clientIP == "" && userAgent == "" {
		return
	}
	if entry.Metadata == nil {
		entry.Metadata = make(map[string]any, 3)
	}
	if requestID != "" {
		entry.Metadata["request_id"] = requestID
	}
	if clientIP != "" {
		entry.Metadata["client_ip"] = clientIP
	}
	if userAgent != "" {
		entry.Metadata["user_agent"] = userAgent
	}
}
