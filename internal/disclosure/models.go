package disclosure

import (
	"time"

	id "equitrail/pkg/domain"
)

// Tier is a company's disclosure completeness level. Promotion is
// one-directional under normal flow; demotion is a manual compliance action
// outside this service.
type Tier int

const (
	TierNone Tier = iota
	TierBasic
	TierEnhanced
	TierFull
)

var tierNames = map[Tier]string{
	TierNone:     "none",
	TierBasic:    "basic",
	TierEnhanced: "enhanced",
	TierFull:     "full",
}

func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return "unknown"
}

// Disclosure kinds a company can file.
const (
	KindFinancials      = "financials"
	KindCapTable        = "cap_table"
	KindRiskFactors     = "risk_factors"
	KindValuationReport = "valuation_report"
	KindUseOfFunds      = "use_of_funds"
)

// tierRequirements lists the approved disclosure kinds a company needs for
// each tier. Requirements are cumulative: eligibility for a tier implies the
// kinds of every lower tier.
var tierRequirements = map[Tier][]string{
	TierBasic:    {KindFinancials},
	TierEnhanced: {KindFinancials, KindCapTable, KindRiskFactors},
	TierFull:     {KindFinancials, KindCapTable, KindRiskFactors, KindValuationReport, KindUseOfFunds},
}

// Disclosure statuses.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Disclosure is one filed document.
type Disclosure struct {
	ID         id.DisclosureID
	CompanyID  id.CompanyID
	Kind       string
	Status     string
	ApprovedBy string
	ApprovedAt time.Time
}

// Company carries the tier state this module owns.
type Company struct {
	ID   id.CompanyID
	Name string
	Tier Tier
}
