package disclosure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"equitrail/internal/audit"
	id "equitrail/pkg/domain"
	dErrors "equitrail/pkg/domain-errors"
	"equitrail/pkg/platform/sentinel"
	"equitrail/pkg/requestcontext"
)

// AuditLogger is the slice of the audit package the service needs.
type AuditLogger interface {
	Log(ctx context.Context, entry audit.Entry) error
}

// Service evaluates whether a company's disclosure tier should auto-advance.
// It owns the idempotence guarantee: calling TryAutomaticPromotion repeatedly
// for the same approved disclosure never double-promotes, because eligibility
// is re-derived from durable state and the tier write is guarded by the
// current tier value.
type Service struct {
	store       Store
	auditLogger AuditLogger
	logger      *slog.Logger
}

// NewService creates the tier promotion service.
func NewService(store Store, auditLogger AuditLogger, logger *slog.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("disclosure store is required")
	}
	if auditLogger == nil {
		return nil, fmt.Errorf("audit logger is required")
	}
	return &Service{store: store, auditLogger: auditLogger, logger: logger}, nil
}

// TryAutomaticPromotion promotes the company to the highest tier its approved
// disclosures support. Returns whether a promotion occurred.
func (s *Service) TryAutomaticPromotion(ctx context.Context, companyID id.CompanyID, approver string, disclosureID id.DisclosureID) (bool, error) {
	if companyID.IsNil() {
		return false, dErrors.New(dErrors.CodeInvalidInput, "company_id is required")
	}

	company, err := s.store.GetCompany(ctx, companyID)
	if errors.Is(err, sentinel.ErrNotFound) {
		s.logger.WarnContext(ctx, "company not found for tier check",
			"company_id", companyID,
			"disclosure_id", disclosureID,
		)
		return false, nil
	}
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "load company")
	}
	if company.Tier >= TierFull {
		return false, nil
	}

	kinds, err := s.store.ApprovedKinds(ctx, companyID)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "load approved disclosures")
	}

	target := highestEligibleTier(kinds)
	if target <= company.Tier {
		return false, nil
	}

	err = s.store.PromoteCompany(ctx, companyID, company.Tier, target)
	if errors.Is(err, sentinel.ErrConflict) {
		// A concurrent run won the race. The company is promoted either way,
		// so this run reporting "no promotion" keeps effects single-counted.
		s.logger.InfoContext(ctx, "tier promotion lost race, skipping",
			"company_id", companyID,
			"target_tier", target.String(),
		)
		return false, nil
	}
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "promote company tier")
	}

	entry := audit.Entry{
		Action: audit.ActionTierPromoted,
		Description: fmt.Sprintf("disclosure tier auto-advanced from %s to %s",
			company.Tier.String(), target.String()),
		TargetType: audit.TargetCompany,
		TargetID:   companyID.String(),
		OldValues:  map[string]any{"tier": company.Tier.String()},
		NewValues:  map[string]any{"tier": target.String()},
		Metadata: map[string]any{
			"disclosure_id": disclosureID.String(),
			"authority":     approver,
			"reason":        "automatic promotion on disclosure approval",
		},
		RiskLevel: id.RiskLow,
		Actor:     approver,
		Timestamp: requestcontext.Now(ctx),
	}
	if err := s.auditLogger.Log(ctx, entry); err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "audit tier promotion")
	}

	s.logger.InfoContext(ctx, "company tier promoted",
		"company_id", companyID,
		"from", company.Tier.String(),
		"to", target.String(),
		"approver", approver,
	)
	return true, nil
}

// highestEligibleTier returns the top tier whose required kinds are all
// present in the approved set.
func highestEligibleTier(approvedKinds []string) Tier {
	approved := make(map[string]struct{}, len(approvedKinds))
	for _, k := range approvedKinds {
		approved[k] = struct{}{}
	}

	eligible := TierNone
	for _, tier := range []Tier{TierBasic, TierEnhanced, TierFull} {
		if hasAll(approved, tierRequirements[tier]) {
			eligible = tier
		}
	}
	return eligible
}

func hasAll(approved map[string]struct{}, required []string) bool {
	for _, k := range required {
		if _, ok := approved[k]; !ok {
			return false
		}
	}
	return true
}
