// Package snapshot captures point-in-time investment state and computes
// classified comparisons between captures. Snapshots are append-only; the
// comparison is derived, never stored.
package snapshot

import (
	"time"

	"github.com/google/uuid"

	id "equitrail/pkg/domain"
)

// State is the investment condition frozen into a snapshot.
type State struct {
	LifecycleState  string       `json:"lifecycle_state"`
	BuyingEnabled   bool         `json:"buying_enabled"`
	RiskLevel       id.RiskLevel `json:"risk_level"`
	ComplianceScore int          `json:"compliance_score"`
	RiskFlags       []string     `json:"risk_flags,omitempty"`
}

// Snapshot is one immutable capture of an investment's state.
type Snapshot struct {
	ID           uuid.UUID       `json:"id"`
	InvestmentID id.InvestmentID `json:"investment_id"`
	State        State           `json:"state"`
	CapturedAt   time.Time       `json:"captured_at"`
}

// ChangeClass classifies a field change by its effect on the investor.
type ChangeClass string

const (
	ClassImprovement ChangeClass = "improvement"
	ClassDegradation ChangeClass = "degradation"
	ClassNeutral     ChangeClass = "neutral"
)

// Change is one classified field difference between two snapshots.
type Change struct {
	Field string      `json:"field"`
	Old   any         `json:"old"`
	New   any         `json:"new"`
	Class ChangeClass `json:"classification"`
}

// Comparison is the diff between the investment-time snapshot of an
// investment and its most recent one.
type Comparison struct {
	InvestmentID     id.InvestmentID `json:"investment_id"`
	BaseCapturedAt   time.Time       `json:"base_captured_at"`
	LatestCapturedAt time.Time       `json:"latest_captured_at"`
	Changes          []Change        `json:"changes"`
	Overall          ChangeClass     `json:"overall"`
}
