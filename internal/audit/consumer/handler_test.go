package consumer_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"equitrail/internal/audit"
	auditconsumer "equitrail/internal/audit/consumer"
	auditmem "equitrail/internal/audit/store/memory"
	"equitrail/internal/platform/kafka/consumer"
)

type MaterializerSuite struct {
	suite.Suite
	store   *auditmem.InMemoryStore
	handler *auditconsumer.Handler
	ctx     context.Context
}

func TestMaterializerSuite(t *testing.T) {
	suite.Run(t, new(MaterializerSuite))
}

func (s *MaterializerSuite) SetupTest() {
	s.store = auditmem.NewInMemoryStore()
	s.handler = auditconsumer.NewHandler(s.store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.ctx = context.Background()
}

func (s *MaterializerSuite) message(eventID uuid.UUID) *consumer.Message {
	payload, err := json.Marshal(map[string]any{
		"id":          eventID.String(),
		"action":      "user_blocked",
		"category":    "governance",
		"description": "risk score breached blocking threshold",
		"target_type": "user",
		"target_id":   uuid.NewString(),
		"risk_level":  "critical",
		"actor":       "system:risk-engine",
		"timestamp":   "2025-06-15T12:00:00Z",
	})
	s.Require().NoError(err)
	return &consumer.Message{Topic: "audit.entries", Key: []byte(eventID.String()), Value: payload}
}

func (s *MaterializerSuite) TestMaterializesEntry() {
	eventID := uuid.New()
	s.Require().NoError(s.handler.Handle(s.ctx, s.message(eventID)))

	entries := s.store.Entries()
	s.Require().Len(entries, 1)
	s.Equal(eventID, entries[0].ID)
	s.Equal(audit.ActionUserBlocked, entries[0].Action)
	s.Equal(audit.CategoryGovernance, entries[0].Category)
	s.Equal("system:risk-engine", entries[0].Actor)
	s.Equal(2025, entries[0].Timestamp.Year())
}

func (s *MaterializerSuite) TestRedeliveryIsIdempotent() {
	// Justification: the broker guarantees at-least-once delivery, so the
	// materialized trail must collapse duplicates by event ID.
	eventID := uuid.New()
	msg := s.message(eventID)

	s.Require().NoError(s.handler.Handle(s.ctx, msg))
	s.Require().NoError(s.handler.Handle(s.ctx, msg))

	s.Len(s.store.Entries(), 1)
}

func (s *MaterializerSuite) TestPoisonMessagesAreCommitted() {
	cases := []struct {
		name string
		msg  *consumer.Message
	}{
		{
			name: "unparseable key",
			msg:  &consumer.Message{Key: []byte("not-a-uuid"), Value: []byte("{}")},
		},
		{
			name: "unparseable payload",
			msg:  &consumer.Message{Key: []byte(uuid.NewString()), Value: []byte("{broken")},
		},
		{
			name: "missing required fields",
			msg:  &consumer.Message{Key: []byte(uuid.NewString()), Value: []byte(`{"action":""}`)},
		},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			// A nil error commits the offset; poison must never wedge the
			// partition.
			s.NoError(s.handler.Handle(s.ctx, tc.msg))
		})
	}
	s.Empty(s.store.Entries())
}

func (s *MaterializerSuite) TestMissingCategoryIsDerived() {
	eventID := uuid.New()
	payload, err := json.Marshal(map[string]any{
		"action":      "referral_processed",
		"target_type": "referral",
		"target_id":   uuid.NewString(),
		"timestamp":   "2025-06-15T12:00:00Z",
	})
	s.Require().NoError(err)

	err = s.handler.Handle(s.ctx, &consumer.Message{Key: []byte(eventID.String()), Value: payload})
	s.Require().NoError(err)

	entries := s.store.Entries()
	s.Require().Len(entries, 1)
	s.Equal(audit.CategoryOperations, entries[0].Category)
}
