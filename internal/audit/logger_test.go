package audit_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"equitrail/internal/audit"
	auditmem "equitrail/internal/audit/store/memory"
	id "equitrail/pkg/domain"
	"equitrail/pkg/requestcontext"
)

// failingStore rejects every append, standing in for an unreachable database.
type failingStore struct {
	audit.Store
}

func (failingStore) Append(context.Context, audit.Entry) error {
	return errors.New("connection reset")
}

type AuditLoggerSuite struct {
	suite.Suite
	store  *auditmem.InMemoryStore
	logger *audit.Logger
	ctx    context.Context
}

func TestAuditLoggerSuite(t *testing.T) {
	suite.Run(t, new(AuditLoggerSuite))
}

func (s *AuditLoggerSuite) SetupTest() {
	s.store = auditmem.NewInMemoryStore()

	slogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var err error
	s.logger, err = audit.NewLogger(s.store, slogger)
	s.Require().NoError(err)

	s.ctx = context.Background()
}

func (s *AuditLoggerSuite) entry() audit.Entry {
	return audit.Entry{
		Action:     audit.ActionTierPromoted,
		TargetType: audit.TargetCompany,
		TargetID:   uuid.NewString(),
		RiskLevel:  id.RiskLow,
	}
}

func (s *AuditLoggerSuite) TestRequiredFields() {
	cases := []struct {
		name   string
		mutate func(*audit.Entry)
	}{
		{"missing action", func(e *audit.Entry) { e.Action = "" }},
		{"missing target type", func(e *audit.Entry) { e.TargetType = "" }},
		{"missing target id", func(e *audit.Entry) { e.TargetID = "" }},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			e := s.entry()
			tc.mutate(&e)
			s.Error(s.logger.Log(s.ctx, e))
		})
	}
	s.Empty(s.store.Entries())
}

func (s *AuditLoggerSuite) TestCategoryIsAlwaysDerived() {
	// Writers cannot vote on categorization; a lie in the input is corrected.
	e := s.entry()
	e.Category = audit.CategoryOperations

	s.Require().NoError(s.logger.Log(s.ctx, e))

	entries := s.store.Entries()
	s.Require().Len(entries, 1)
	s.Equal(audit.CategoryGovernance, entries[0].Category)
}

func (s *AuditLoggerSuite) TestContextEnrichment() {
	at := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(s.ctx, at)
	ctx = requestcontext.WithActor(ctx, "admin@equitrail.test")
	ctx = requestcontext.WithRequestID(ctx, "req-9")
	ctx = requestcontext.WithClientMetadata(ctx, "203.0.113.7", "governance-console/2.1")

	s.Require().NoError(s.logger.Log(ctx, s.entry()))

	entries := s.store.Entries()
	s.Require().Len(entries, 1)
	got := entries[0]
	s.NotEqual(uuid.Nil, got.ID)
	s.Equal(at, got.Timestamp)
	s.Equal("admin@equitrail.test", got.Actor)
	s.Equal("req-9", got.Metadata["request_id"])
	s.Equal("203.0.113.7", got.Metadata["client_ip"])
	s.Equal("governance-console/2.1", got.Metadata["user_agent"])
}

func (s *AuditLoggerSuite) TestExplicitValuesWin() {
	at := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	e := s.entry()
	e.Actor = "system:risk-engine"
	e.Timestamp = at

	ctx := requestcontext.WithActor(s.ctx, "someone-else")
	s.Require().NoError(s.logger.Log(ctx, e))

	entries := s.store.Entries()
	s.Require().Len(entries, 1)
	s.Equal("system:risk-engine", entries[0].Actor)
	s.Equal(at, entries[0].Timestamp)
}

func (s *AuditLoggerSuite) TestFailClosedOnStoreError() {
	// Justification: an unauditable mutation must not happen. The caller
	// treats this error as fatal for its own operation.
	slogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	logger, err := audit.NewLogger(failingStore{}, slogger)
	s.Require().NoError(err)

	err = logger.Log(s.ctx, s.entry())
	s.Require().Error(err)
	s.Contains(err.Error(), "audit persistence failed")
}
