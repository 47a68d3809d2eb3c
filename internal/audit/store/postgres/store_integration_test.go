//go:build integration

package postgres_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"equitrail/internal/audit"
	auditpg "equitrail/internal/audit/store/postgres"
	id "equitrail/pkg/domain"
	"equitrail/pkg/testutil/containers"
)

type AuditStoreIntegrationSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *auditpg.Store
	ctx   context.Context
}

func TestAuditStoreIntegrationSuite(t *testing.T) {
	suite.Run(t, new(AuditStoreIntegrationSuite))
}

func (s *AuditStoreIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = auditpg.New(s.pg.DB)
}

func (s *AuditStoreIntegrationSuite) TearDownSuite() {
	if s.pg != nil {
		_ = s.pg.DB.Close()
		_ = s.pg.Container.Terminate(s.ctx)
	}
}

func (s *AuditStoreIntegrationSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateAll(s.ctx))
}

func (s *AuditStoreIntegrationSuite) entry(action audit.Action, targetType string) audit.Entry {
	return audit.Entry{
		ID:         uuid.New(),
		Action:     action,
		Category:   action.Category(),
		TargetType: targetType,
		TargetID:   uuid.NewString(),
		OldValues:  map[string]any{"tier": "none"},
		NewValues:  map[string]any{"tier": "basic"},
		RiskLevel:  id.RiskLow,
		Actor:      "system:test",
		Timestamp:  time.Now().UTC().Truncate(time.Microsecond),
	}
}

func (s *AuditStoreIntegrationSuite) TestAppendGoesThroughOutbox() {
	e := s.entry(audit.ActionTierPromoted, audit.TargetCompany)
	s.Require().NoError(s.store.Append(s.ctx, e))

	rows, err := s.store.NextUnpublished(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(rows, 1)
	s.Equal(e.ID, rows[0].EventID)

	var payload map[string]any
	s.Require().NoError(json.Unmarshal(rows[0].Payload, &payload))
	s.Equal("tier_promoted", payload["action"])
	s.Equal(e.TargetID, payload["target_id"])

	// The entry is not readable until the consumer materializes it.
	recent, err := s.store.ListRecent(s.ctx, 10)
	s.Require().NoError(err)
	s.Empty(recent)

	s.Require().NoError(s.store.MarkPublished(s.ctx, rows[0].ID))
	rows, err = s.store.NextUnpublished(s.ctx, 10)
	s.Require().NoError(err)
	s.Empty(rows, "published rows leave the relay's view")
}

func (s *AuditStoreIntegrationSuite) TestOutboxDrainsOldestFirst() {
	first := s.entry(audit.ActionUserBlocked, audit.TargetUser)
	second := s.entry(audit.ActionUserBlocked, audit.TargetUser)
	s.Require().NoError(s.store.Append(s.ctx, first))
	s.Require().NoError(s.store.Append(s.ctx, second))

	rows, err := s.store.NextUnpublished(s.ctx, 1)
	s.Require().NoError(err)
	s.Require().Len(rows, 1)
	s.Equal(first.ID, rows[0].EventID)
}

func (s *AuditStoreIntegrationSuite) TestMaterializationIsIdempotent() {
	e := s.entry(audit.ActionUserBlocked, audit.TargetUser)

	s.Require().NoError(s.store.AppendWithID(s.ctx, e.ID, e))
	s.Require().NoError(s.store.AppendWithID(s.ctx, e.ID, e))

	entries, err := s.store.ListByTarget(s.ctx, audit.TargetUser, e.TargetID, 10)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(e.ID, entries[0].ID)
	s.Equal(audit.ActionUserBlocked, entries[0].Action)
	s.Equal(map[string]any{"tier": "none"}, entries[0].OldValues)
}

func (s *AuditStoreIntegrationSuite) TestReadSurface() {
	blocked := s.entry(audit.ActionUserBlocked, audit.TargetUser)
	blocked.RequiresReview = true
	blocked.RiskLevel = id.RiskCritical
	promoted := s.entry(audit.ActionTierPromoted, audit.TargetCompany)
	promoted.Timestamp = blocked.Timestamp.Add(time.Second)

	s.Require().NoError(s.store.AppendWithID(s.ctx, blocked.ID, blocked))
	s.Require().NoError(s.store.AppendWithID(s.ctx, promoted.ID, promoted))

	recent, err := s.store.ListRecent(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(recent, 2)
	s.Equal(promoted.ID, recent[0].ID, "newest first")

	trail, err := s.store.ListByTarget(s.ctx, audit.TargetUser, blocked.TargetID, 10)
	s.Require().NoError(err)
	s.Require().Len(trail, 1)

	stats, err := s.store.Stats(s.ctx)
	s.Require().NoError(err)
	s.EqualValues(2, stats.Total)
	s.EqualValues(2, stats.ByCategory["governance"])
	s.EqualValues(1, stats.ByRiskLevel["critical"])
	s.EqualValues(1, stats.RequiresReview)
}
