package risk

import "time"

// Scorer computes a risk score in [0, 100] from chargeback facts. The
// concrete algorithm is a pluggable strategy; the service only depends on
// this contract.
type Scorer interface {
	Calculate(facts Facts) Assessment
}

// WeightedScorer is the default strategy: three additive factors over
// chargeback count, disputed volume, and recency, capped at 100.
type WeightedScorer struct{}

// NewWeightedScorer creates the default scorer.
func NewWeightedScorer() *WeightedScorer { return &WeightedScorer{} }

// Volume steps in paise. One lakh paise is 1,000 rupees.
const (
	volumeMinorPaise  = 100_000    // 1k INR
	volumeMajorPaise  = 1_000_000  // 10k INR
	volumeSeverePaise = 10_000_000 // 1 lakh INR
)

// recencyWindow is how long a chargeback keeps the frequency factor hot.
const recencyWindow = 30 * 24 * time.Hour

// Calculate is deterministic: no clock reads, no randomness. Facts.Now is
// supplied by the caller.
func (WeightedScorer) Calculate(facts Facts) Assessment {
	factors := make(map[string]int, 3)

	// Count factor: each chargeback is 20 points, saturating at 60.
	count := facts.ChargebackCount * 20
	if count > 60 {
		count = 60
	}
	factors["chargeback_count"] = count

	// Volume factor: stepped on total disputed paise.
	var volume int
	switch {
	case facts.ChargebackTotalPaise >= volumeSeverePaise:
		volume = 30
	case facts.ChargebackTotalPaise >= volumeMajorPaise:
		volume = 20
	case facts.ChargebackTotalPaise >= volumeMinorPaise:
		volume = 10
	}
	factors["disputed_volume"] = volume

	// Frequency factor: a chargeback within the window signals a pattern
	// rather than a one-off dispute.
	var recency int
	if !facts.LastChargebackAt.IsZero() && facts.Now.Sub(facts.LastChargebackAt) <= recencyWindow {
		recency = 20
	}
	factors["recency"] = recency

	score := count + volume + recency
	if score > 100 {
		score = 100
	}
	return Assessment{Score: score, Factors: factors}
}
