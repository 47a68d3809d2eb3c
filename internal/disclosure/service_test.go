package disclosure_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"equitrail/internal/audit"
	auditmem "equitrail/internal/audit/store/memory"
	"equitrail/internal/disclosure"
	discmem "equitrail/internal/disclosure/store/memory"
	"equitrail/internal/events"
	"equitrail/internal/queue"
	id "equitrail/pkg/domain"
	dErrors "equitrail/pkg/domain-errors"
	"equitrail/pkg/requestcontext"
)

type DisclosureServiceSuite struct {
	suite.Suite
	store      *discmem.InMemoryStore
	auditStore *auditmem.InMemoryStore
	service    *disclosure.Service
	listener   *disclosure.Listener
	ctx        context.Context
	companyID  id.CompanyID
}

func TestDisclosureServiceSuite(t *testing.T) {
	suite.Run(t, new(DisclosureServiceSuite))
}

func (s *DisclosureServiceSuite) SetupTest() {
	s.store = discmem.NewInMemoryStore()
	s.auditStore = auditmem.NewInMemoryStore()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	auditLogger, err := audit.NewLogger(s.auditStore, logger)
	s.Require().NoError(err)

	s.service, err = disclosure.NewService(s.store, auditLogger, logger)
	s.Require().NoError(err)
	s.listener = disclosure.NewListener(s.store, s.service, logger)

	s.ctx = requestcontext.WithTime(context.Background(),
		time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC))
	s.companyID = id.NewCompanyID()
	s.store.SeedCompany(disclosure.Company{ID: s.companyID, Name: "Acme Pre-IPO Ltd", Tier: disclosure.TierNone})
}

// approve seeds an approved disclosure of the given kind and returns its ID.
func (s *DisclosureServiceSuite) approve(kind string) id.DisclosureID {
	d := disclosure.Disclosure{
		ID:         id.NewDisclosureID(),
		CompanyID:  s.companyID,
		Kind:       kind,
		Status:     disclosure.StatusApproved,
		ApprovedBy: "compliance@equitrail.test",
		ApprovedAt: time.Date(2025, 6, 14, 9, 0, 0, 0, time.UTC),
	}
	s.store.SeedDisclosure(d)
	return d.ID
}

// ============================================================================
// Eligibility
// ============================================================================

func (s *DisclosureServiceSuite) TestEligibilityLadder() {
	cases := []struct {
		name  string
		kinds []string
		want  disclosure.Tier
	}{
		{
			name:  "no approvals stays at none",
			kinds: nil,
			want:  disclosure.TierNone,
		},
		{
			name:  "financials alone reaches basic",
			kinds: []string{disclosure.KindFinancials},
			want:  disclosure.TierBasic,
		},
		{
			name:  "cap table without financials stays at none",
			kinds: []string{disclosure.KindCapTable, disclosure.KindRiskFactors},
			want:  disclosure.TierNone,
		},
		{
			name:  "enhanced requires all three lower kinds",
			kinds: []string{disclosure.KindFinancials, disclosure.KindCapTable, disclosure.KindRiskFactors},
			want:  disclosure.TierEnhanced,
		},
		{
			name: "full requires every kind",
			kinds: []string{
				disclosure.KindFinancials, disclosure.KindCapTable, disclosure.KindRiskFactors,
				disclosure.KindValuationReport, disclosure.KindUseOfFunds,
			},
			want: disclosure.TierFull,
		},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.SetupTest()
			var last id.DisclosureID
			for _, kind := range tc.kinds {
				last = s.approve(kind)
			}

			promoted, err := s.service.TryAutomaticPromotion(s.ctx, s.companyID, "compliance@equitrail.test", last)
			s.Require().NoError(err)
			s.Equal(tc.want != disclosure.TierNone, promoted)

			company, err := s.store.GetCompany(s.ctx, s.companyID)
			s.Require().NoError(err)
			s.Equal(tc.want, company.Tier)
		})
	}
}

// ============================================================================
// Idempotence
// ============================================================================

func (s *DisclosureServiceSuite) TestDoubleApprovalPromotesOnce() {
	// Justification: approval events are delivered at-least-once, so the same
	// disclosure can trigger two tier checks. Only the first may promote and
	// only one audit entry may exist afterwards.
	disclosureID := s.approve(disclosure.KindFinancials)

	promoted, err := s.service.TryAutomaticPromotion(s.ctx, s.companyID, "compliance@equitrail.test", disclosureID)
	s.Require().NoError(err)
	s.True(promoted)

	promoted, err = s.service.TryAutomaticPromotion(s.ctx, s.companyID, "compliance@equitrail.test", disclosureID)
	s.Require().NoError(err)
	s.False(promoted)

	company, err := s.store.GetCompany(s.ctx, s.companyID)
	s.Require().NoError(err)
	s.Equal(disclosure.TierBasic, company.Tier)

	entries := s.auditStore.Entries()
	s.Require().Len(entries, 1)
	s.Equal(audit.ActionTierPromoted, entries[0].Action)
	s.Equal(audit.TargetCompany, entries[0].TargetType)
	s.Equal(s.companyID.String(), entries[0].TargetID)
	s.Equal(map[string]any{"tier": "none"}, entries[0].OldValues)
	s.Equal(map[string]any{"tier": "basic"}, entries[0].NewValues)
}

func (s *DisclosureServiceSuite) TestFullTierIsTerminal() {
	s.store.SeedCompany(disclosure.Company{ID: s.companyID, Tier: disclosure.TierFull})
	disclosureID := s.approve(disclosure.KindFinancials)

	promoted, err := s.service.TryAutomaticPromotion(s.ctx, s.companyID, "compliance@equitrail.test", disclosureID)
	s.Require().NoError(err)
	s.False(promoted)
	s.Empty(s.auditStore.Entries())
}

func (s *DisclosureServiceSuite) TestLostRaceIsNotAnError() {
	// raceStore promotes the company out from under the service between the
	// read and the guarded write, the way a concurrent worker would.
	disclosureID := s.approve(disclosure.KindFinancials)
	race := &raceStore{InMemoryStore: s.store, companyID: s.companyID}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	auditLogger, err := audit.NewLogger(s.auditStore, logger)
	s.Require().NoError(err)
	service, err := disclosure.NewService(race, auditLogger, logger)
	s.Require().NoError(err)

	promoted, err := service.TryAutomaticPromotion(s.ctx, s.companyID, "compliance@equitrail.test", disclosureID)
	s.Require().NoError(err)
	s.False(promoted)
	s.Empty(s.auditStore.Entries())
}

func (s *DisclosureServiceSuite) TestValidation() {
	_, err := s.service.TryAutomaticPromotion(s.ctx, id.CompanyID{}, "compliance@equitrail.test", id.NewDisclosureID())
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *DisclosureServiceSuite) TestUnknownCompanySkips() {
	promoted, err := s.service.TryAutomaticPromotion(s.ctx, id.NewCompanyID(), "compliance@equitrail.test", id.NewDisclosureID())
	s.Require().NoError(err)
	s.False(promoted)
}

// raceStore interposes on ApprovedKinds to simulate a concurrent promotion
// winning between eligibility derivation and the guarded tier write.
type raceStore struct {
	*discmem.InMemoryStore
	companyID id.CompanyID
}

func (r *raceStore) ApprovedKinds(ctx context.Context, companyID id.CompanyID) ([]string, error) {
	kinds, err := r.InMemoryStore.ApprovedKinds(ctx, companyID)
	r.SeedCompany(disclosure.Company{ID: r.companyID, Tier: disclosure.TierBasic})
	return kinds, err
}

// ============================================================================
// Listener
// ============================================================================

func (s *DisclosureServiceSuite) TestListenerPromotesViaJob() {
	disclosureID := s.approve(disclosure.KindFinancials)
	payload, err := json.Marshal(events.DisclosureApproved{
		DisclosureID: disclosureID,
		Approver:     "compliance@equitrail.test",
	})
	s.Require().NoError(err)

	err = s.listener.HandleApproved(s.ctx, queue.Job{Name: disclosure.JobTierCheck, Payload: payload})
	s.Require().NoError(err)

	company, err := s.store.GetCompany(s.ctx, s.companyID)
	s.Require().NoError(err)
	s.Equal(disclosure.TierBasic, company.Tier)
}

func (s *DisclosureServiceSuite) TestListenerMalformedPayloadIsTerminal() {
	err := s.listener.HandleApproved(s.ctx, queue.Job{Name: disclosure.JobTierCheck, Payload: []byte("{not json")})
	s.Require().Error(err)
	s.False(queue.IsRetryable(err), "a payload that never parses must not be retried")
}

func (s *DisclosureServiceSuite) TestListenerMissingDisclosureSkips() {
	payload, err := json.Marshal(events.DisclosureApproved{
		DisclosureID: id.NewDisclosureID(),
		Approver:     "compliance@equitrail.test",
	})
	s.Require().NoError(err)

	err = s.listener.HandleApproved(s.ctx, queue.Job{Name: disclosure.JobTierCheck, Payload: payload})
	s.NoError(err)
}
