package domain

import dErrors "equitrail/pkg/domain-errors"

// RiskLevel grades the severity of a governance fact. The ordering is
// semantic: comparisons between levels use Rank, never string comparison.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// riskLevelRanks is the single source of truth for ordinal ranking.
var riskLevelRanks = map[RiskLevel]int{
	RiskLow:      0,
	RiskMedium:   1,
	RiskHigh:     2,
	RiskCritical: 3,
}

// ParseRiskLevel constructs a RiskLevel from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported.
func ParseRiskLevel(s string) (RiskLevel, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "risk level cannot be empty")
	}
	l := RiskLevel(s)
	if !l.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid risk level")
	}
	return l, nil
}

func (l RiskLevel) IsValid() bool {
	_, ok := riskLevelRanks[l]
	return ok
}

// Rank returns the ordinal position of the level. Unknown levels rank below
// low so they never mask a real escalation.
func (l RiskLevel) Rank() int {
	if r, ok := riskLevelRanks[l]; ok {
		return r
	}
	return -1
}
