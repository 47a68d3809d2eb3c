package referral

import (
	"time"

	id "equitrail/pkg/domain"
)

// Status is the lifecycle state of a referral reward.
type Status string

const (
	StatusPending   Status = "pending"
	StatusProcessed Status = "processed"
)

// Referral links a referrer to the user they brought onto the platform. The
// reward is released only after both parties pass KYC.
type Referral struct {
	ID          id.ReferralID
	ReferrerID  id.UserID
	ReferredID  id.UserID
	Status      Status
	CreatedAt   time.Time
	ProcessedAt time.Time
}

// PageSize bounds each pending-referral scan so a reconciliation run for a
// heavily-referring user never loads an unbounded row set.
const PageSize = 100
