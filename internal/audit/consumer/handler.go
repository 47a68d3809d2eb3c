// Package consumer materializes audit entries from the Kafka channel into
// the queryable audit_entries table.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"equitrail/internal/audit"
	"equitrail/internal/platform/kafka/consumer"
	id "equitrail/pkg/domain"
)

// EntrySink is the storage interface for materialized entries.
type EntrySink interface {
	AppendWithID(ctx context.Context, eventID uuid.UUID, entry audit.Entry) error
}

// Handler processes audit records from Kafka. Malformed messages are logged
// and committed so they never block the partition; storage failures are
// returned so the offset stays uncommitted and the record redelivers.
type Handler struct {
	sink   EntrySink
	logger *slog.Logger
}

// NewHandler creates an audit materialization handler.
func NewHandler(sink EntrySink, logger *slog.Logger) *Handler {
	return &Handler{sink: sink, logger: logger}
}

// wirePayload mirrors the outbox JSON shape.
type wirePayload struct {
	ID             string         `json:"id"`
	Action         string         `json:"action"`
	Category       string         `json:"category"`
	Description    string         `json:"description"`
	TargetType     string         `json:"target_type"`
	TargetID       string         `json:"target_id"`
	OldValues      map[string]any `json:"old_values"`
	NewValues      map[string]any `json:"new_values"`
	Metadata       map[string]any `json:"metadata"`
	RiskLevel      string         `json:"risk_level"`
	RequiresReview bool           `json:"requires_review"`
	Actor          string         `json:"actor"`
	Timestamp      string         `json:"timestamp"`
}

// Handle processes one audit record.
func (h *Handler) Handle(ctx context.Context, msg *consumer.Message) error {
	eventID, err := uuid.Parse(string(msg.Key))
	if err != nil {
		h.logger.Error("CRITICAL: unparseable audit event ID, skipping",
			"key", string(msg.Key),
			"error", err,
		)
		return nil
	}

	var payload wirePayload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		h.logger.Error("CRITICAL: unparseable audit payload, skipping",
			"event_id", eventID,
			"error", err,
		)
		return nil
	}

	if payload.Action == "" || payload.TargetType == "" || payload.TargetID == "" {
		h.logger.Error("CRITICAL: audit payload missing required fields, skipping",
			"event_id", eventID,
			"action", payload.Action,
		)
		return nil
	}

	entry := audit.Entry{
		ID:             eventID,
		Action:         audit.Action(payload.Action),
		Category:       audit.Category(payload.Category),
		Description:    payload.Description,
		TargetType:     payload.TargetType,
		TargetID:       payload.TargetID,
		OldValues:      payload.OldValues,
		NewValues:      payload.NewValues,
		Metadata:       payload.Metadata,
		RiskLevel:      id.RiskLevel(payload.RiskLevel),
		RequiresReview: payload.RequiresReview,
		Actor:          payload.Actor,
	}
	if entry.Category == "" {
		entry.Category = entry.Action.Category()
	}

	if ts, err := time.Parse(time.RFC3339Nano, payload.Timestamp); err == nil {
		entry.Timestamp = ts
	} else {
		entry.Timestamp = time.Now()
	}

	if err := h.sink.AppendWithID(ctx, eventID, entry); err != nil {
		h.logger.Error("failed to materialize audit entry",
			"event_id", eventID,
			"action", entry.Action,
			"error", err,
		)
		return fmt.Errorf("materialize audit entry: %w", err)
	}

	h.logger.Debug("materialized audit entry",
		"event_id", eventID,
		"action", entry.Action,
		"target_type", entry.TargetType,
	)
	return nil
}
