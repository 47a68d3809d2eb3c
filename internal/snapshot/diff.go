package snapshot

import (
	pstrings "equitrail/pkg/platform/strings"
)

// Field names used in comparison output.
const (
	FieldLifecycleState    = "lifecycle_state"
	FieldBuyingEnabled     = "buying_enabled"
	FieldRiskLevel         = "risk_level"
	FieldComplianceScore   = "compliance_score"
	FieldRiskFlagsAdded    = "risk_flags_added"
	FieldRiskFlagsResolved = "risk_flags_resolved"
)

// degradedLifecycleStates are the lifecycle states that count as a
// degradation when entered. All other transitions are neutral.
var degradedLifecycleStates = map[string]struct{}{
	"blocked":   {},
	"suspended": {},
}

// Diff computes the classified changes between a base state and the current
// one. It is pure and deterministic: equal inputs always produce the same
// change list in the same order, and Diff(s, s) is empty.
func Diff(base, current State) []Change {
	var changes []Change

	if base.LifecycleState != current.LifecycleState {
		class := ClassNeutral
		if _, degraded := degradedLifecycleStates[current.LifecycleState]; degraded {
			class = ClassDegradation
		}
		changes = append(changes, Change{
			Field: FieldLifecycleState,
			Old:   base.LifecycleState,
			New:   current.LifecycleState,
			Class: class,
		})
	}

	if base.BuyingEnabled != current.BuyingEnabled {
		class := ClassDegradation
		if current.BuyingEnabled {
			class = ClassImprovement
		}
		changes = append(changes, Change{
			Field: FieldBuyingEnabled,
			Old:   base.BuyingEnabled,
			New:   current.BuyingEnabled,
			Class: class,
		})
	}

	if base.RiskLevel != current.RiskLevel {
		class := ClassNeutral
		switch {
		case current.RiskLevel.Rank() > base.RiskLevel.Rank():
			class = ClassDegradation
		case current.RiskLevel.Rank() < base.RiskLevel.Rank():
			class = ClassImprovement
		}
		changes = append(changes, Change{
			Field: FieldRiskLevel,
			Old:   string(base.RiskLevel),
			New:   string(current.RiskLevel),
			Class: class,
		})
	}

	if base.ComplianceScore != current.ComplianceScore {
		class := ClassDegradation
		if current.ComplianceScore > base.ComplianceScore {
			class = ClassImprovement
		}
		changes = append(changes, Change{
			Field: FieldComplianceScore,
			Old:   base.ComplianceScore,
			New:   current.ComplianceScore,
			Class: class,
		})
	}

	baseFlags := pstrings.NormalizeSet(base.RiskFlags)
	currentFlags := pstrings.NormalizeSet(current.RiskFlags)
	if added := pstrings.Difference(currentFlags, baseFlags); len(added) > 0 {
		changes = append(changes, Change{
			Field: FieldRiskFlagsAdded,
			Old:   nil,
			New:   added,
			Class: ClassDegradation,
		})
	}
	if resolved := pstrings.Difference(baseFlags, currentFlags); len(resolved) > 0 {
		changes = append(changes, Change{
			Field: FieldRiskFlagsResolved,
			Old:   resolved,
			New:   nil,
			Class: ClassImprovement,
		})
	}

	return changes
}

// Overall collapses a change list into a single direction: all-improvement
// lists improve, all-degradation lists degrade, anything mixed or purely
// neutral is neutral.
func Overall(changes []Change) ChangeClass {
	improvements, degradations := 0, 0
	for _, c := range changes {
		switch c.Class {
		case ClassImprovement:
			improvements++
		case ClassDegradation:
			degradations++
		}
	}
	switch {
	case degradations > 0 && improvements == 0:
		return ClassDegradation
	case improvements > 0 && degradations == 0:
		return ClassImprovement
	default:
		return ClassNeutral
	}
}
