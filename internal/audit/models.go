package audit

import (
	"time"

	"github.com/google/uuid"

	id "equitrail/pkg/domain"
)

// Category classifies audit entries by their primary purpose. This enables
// different retention policies and routing downstream of the Kafka channel.
type Category string

const (
	// CategoryGovernance covers entries with legal/regulatory significance:
	// blocks, tier transitions, disclosure decisions. Long retention.
	CategoryGovernance Category = "governance"

	// CategorySecurity covers entries relevant to monitoring and forensics:
	// risk refreshes, failed reconciliations.
	CategorySecurity Category = "security"

	// CategoryOperations covers routine activity useful for debugging.
	CategoryOperations Category = "operations"
)

// Action identifies what happened. The action string is the stable contract
// between writers and the read surface; new actions must be added to
// actionCategories.
type Action string

const (
	ActionUserBlocked        Action = "user_blocked"
	ActionRiskProfileUpdated Action = "risk_profile_updated"
	ActionTierPromoted       Action = "tier_promoted"
	ActionDisclosureApproved Action = "disclosure_approved"
	ActionReferralProcessed  Action = "referral_processed"
	ActionSnapshotCaptured   Action = "snapshot_captured"
	ActionJobAbandoned       Action = "job_abandoned"
)

// actionCategories maps each action to its category; the map is the single
// source of truth, writers never set Category directly.
var actionCategories = map[Action]Category{
	ActionUserBlocked:        CategoryGovernance,
	ActionTierPromoted:       CategoryGovernance,
	ActionDisclosureApproved: CategoryGovernance,
	ActionSnapshotCaptured:   CategoryGovernance,
	ActionRiskProfileUpdated: CategorySecurity,
	ActionJobAbandoned:       CategorySecurity,
	ActionReferralProcessed:  CategoryOperations,
}

// Category returns the category for this action. Unknown actions default to
// CategoryOperations.
func (a Action) Category() Category {
	if c, ok := actionCategories[a]; ok {
		return c
	}
	return CategoryOperations
}

// Target types for entries.
const (
	TargetUser       = "user"
	TargetCompany    = "company"
	TargetInvestment = "investment"
	TargetReferral   = "referral"
	TargetJob        = "job"
)

// Entry is one immutable governance record: who did what to which entity,
// with the before/after values. Entries are never updated or deleted; they
// are the sole source of truth for "what happened".
type Entry struct {
	ID             uuid.UUID      `json:"id"`
	Action         Action         `json:"action"`
	Category       Category       `json:"category"`
	Description    string         `json:"description"`
	TargetType     string         `json:"target_type"`
	TargetID       string         `json:"target_id"`
	OldValues      map[string]any `json:"old_values,omitempty"`
	NewValues      map[string]any `json:"new_values,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	RiskLevel      id.RiskLevel   `json:"risk_level"`
	RequiresReview bool           `json:"requires_review"`
	Actor          string         `json:"actor"`
	Timestamp      time.Time      `json:"timestamp"`
}

// Stats aggregates the trail for the admin dashboard.
type Stats struct {
	Total          int64            `json:"total"`
	ByCategory     map[string]int64 `json:"by_category"`
	ByRiskLevel    map[string]int64 `json:"by_risk_level"`
	RequiresReview int64            `json:"requires_review"`
}
