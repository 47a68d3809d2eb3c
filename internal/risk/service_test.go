package risk_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"equitrail/internal/audit"
	auditmem "equitrail/internal/audit/store/memory"
	"equitrail/internal/events"
	"equitrail/internal/risk"
	riskmem "equitrail/internal/risk/store/memory"
	id "equitrail/pkg/domain"
	dErrors "equitrail/pkg/domain-errors"
	"equitrail/pkg/requestcontext"
)

// scriptedScorer returns a fixed sequence of scores so threshold-crossing
// scenarios are exact regardless of the default weighting.
type scriptedScorer struct {
	scores []int
	calls  int
}

func (s *scriptedScorer) Calculate(risk.Facts) risk.Assessment {
	score := s.scores[s.calls]
	s.calls++
	return risk.Assessment{Score: score, Factors: map[string]int{"scripted": score}}
}

// captureSink records emitted alerts.
type captureSink struct {
	alerts []audit.Alert
}

func (c *captureSink) Emit(a audit.Alert) { c.alerts = append(c.alerts, a) }

type RiskServiceSuite struct {
	suite.Suite
	store      *riskmem.InMemoryStore
	auditStore *auditmem.InMemoryStore
	scorer     *scriptedScorer
	sink       *captureSink
	service    *risk.Service
	ctx        context.Context
	userID     id.UserID
}

func TestRiskServiceSuite(t *testing.T) {
	suite.Run(t, new(RiskServiceSuite))
}

func (s *RiskServiceSuite) SetupTest() {
	s.store = riskmem.NewInMemoryStore()
	s.auditStore = auditmem.NewInMemoryStore()
	s.scorer = &scriptedScorer{scores: []int{70, 85, 90}}
	s.sink = &captureSink{}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	auditLogger, err := audit.NewLogger(s.auditStore, logger)
	s.Require().NoError(err)

	s.service, err = risk.NewService(s.store, s.scorer, auditLogger, logger,
		risk.WithAlertSink(s.sink),
		risk.WithBlockingThreshold(80),
	)
	s.Require().NoError(err)

	s.ctx = requestcontext.WithTime(context.Background(),
		time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC))
	s.userID = id.NewUserID()
}

func (s *RiskServiceSuite) chargeback(amount int64) events.ChargebackConfirmed {
	return events.ChargebackConfirmed{
		UserID:      s.userID,
		PaymentID:   id.NewPaymentID(),
		AmountPaise: amount,
		Reason:      "product not received",
	}
}

func (s *RiskServiceSuite) TestThresholdCrossingBlocksOnce() {
	// Score 70 stays under the threshold of 80.
	s.Require().NoError(s.service.ApplyChargeback(s.ctx, s.chargeback(50_000)))

	profile, err := s.store.Get(s.ctx, s.userID)
	s.Require().NoError(err)
	s.Equal(70, profile.Score)
	s.False(profile.IsBlocked)

	entries := s.auditStore.Entries()
	s.Require().Len(entries, 1)
	s.Equal(audit.ActionRiskProfileUpdated, entries[0].Action)
	s.Equal(id.RiskHigh, entries[0].RiskLevel)
	s.False(entries[0].RequiresReview)
	s.Empty(s.sink.alerts)

	// Score 85 crosses the threshold: the user blocks exactly now.
	s.Require().NoError(s.service.ApplyChargeback(s.ctx, s.chargeback(75_000)))

	profile, err = s.store.Get(s.ctx, s.userID)
	s.Require().NoError(err)
	s.Equal(85, profile.Score)
	s.True(profile.IsBlocked)
	s.Contains(profile.BlockedReason, "breached blocking threshold 80")
	s.Equal(2, profile.ChargebackCount)
	s.Equal(int64(125_000), profile.ChargebackTotalPaise)

	entries = s.auditStore.Entries()
	s.Require().Len(entries, 2)
	blocked := entries[1]
	s.Equal(audit.ActionUserBlocked, blocked.Action)
	s.Equal(audit.CategoryGovernance, blocked.Category)
	s.Equal(id.RiskCritical, blocked.RiskLevel)
	s.True(blocked.RequiresReview)
	s.Len(s.sink.alerts, 1)

	// A further chargeback on an already-blocked user is an update, not a
	// second block: requires_review fires once per transition.
	s.Require().NoError(s.service.ApplyChargeback(s.ctx, s.chargeback(10_000)))

	entries = s.auditStore.Entries()
	s.Require().Len(entries, 3)
	s.Equal(audit.ActionRiskProfileUpdated, entries[2].Action)
	s.False(entries[2].RequiresReview)
	s.Len(s.sink.alerts, 1, "no second alert for an already-blocked user")
}

func (s *RiskServiceSuite) TestValidation() {
	s.Run("missing user id", func() {
		cb := s.chargeback(1_000)
		cb.UserID = id.UserID{}
		err := s.service.ApplyChargeback(s.ctx, cb)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("non-positive amount", func() {
		err := s.service.ApplyChargeback(s.ctx, s.chargeback(0))
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *RiskServiceSuite) TestListenerIgnoresForeignEvents() {
	err := s.service.OnChargebackConfirmed(s.ctx, events.KYCVerified{UserID: s.userID})
	s.NoError(err)
	s.Empty(s.auditStore.Entries())
}
