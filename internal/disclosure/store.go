package disclosure

import (
	"context"

	id "equitrail/pkg/domain"
)

// Store persists disclosures and company tier state.
type Store interface {
	// GetDisclosure returns one disclosure, or sentinel.ErrNotFound.
	GetDisclosure(ctx context.Context, disclosureID id.DisclosureID) (*Disclosure, error)

	// GetCompany returns a company's tier state, or sentinel.ErrNotFound.
	GetCompany(ctx context.Context, companyID id.CompanyID) (*Company, error)

	// ApprovedKinds returns the distinct approved disclosure kinds on file
	// for a company.
	ApprovedKinds(ctx context.Context, companyID id.CompanyID) ([]string, error)

	// PromoteCompany advances the tier with a read-check-then-write guard:
	// the update applies only while the stored tier still equals from.
	// Returns sentinel.ErrConflict when the guard fails, which includes the
	// benign case that a concurrent run already promoted.
	PromoteCompany(ctx context.Context, companyID id.CompanyID, from, to Tier) error
}
