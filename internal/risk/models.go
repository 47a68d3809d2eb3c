package risk

import (
	"time"

	id "equitrail/pkg/domain"
)

// Profile is a user's risk state. Mutated only by the risk service, always
// paired with an audit entry in the same transaction. Version backs the
// optimistic check that gives single-writer-per-user semantics: two
// concurrent chargebacks cannot double-penalize a score inconsistently.
type Profile struct {
	UserID               id.UserID
	Score                int
	IsBlocked            bool
	BlockedReason        string
	ChargebackCount      int
	ChargebackTotalPaise int64
	LastChargebackAt     time.Time
	LastRiskUpdateAt     time.Time
	Version              int64
}

// Facts are the deterministic inputs to scoring. The scorer is a pure
// function over Facts; identical Facts must yield identical scores.
type Facts struct {
	ChargebackCount      int
	ChargebackTotalPaise int64
	LastChargebackAt     time.Time
	Now                  time.Time
}

// Assessment is the scorer's verdict with its per-factor breakdown, kept for
// the audit entry so a reviewer can see why a score moved.
type Assessment struct {
	Score   int
	Factors map[string]int
}
