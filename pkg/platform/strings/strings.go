// Package strings provides string-slice utilities shared across modules.
package strings

import "strings"

// NormalizeSet trims, lowercases, drops empties, and deduplicates a slice
// while preserving first-seen order. Snapshot risk flags go through this
// before set comparison so "KYC-Gap " and "kyc-gap" count as one flag.
//
// Example:
//
//	NormalizeSet([]string{"  Fraud ", "kyc-gap", "FRAUD", ""})
//	// Returns: []string{"fraud", "kyc-gap"}
func NormalizeSet(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		n := strings.ToLower(strings.TrimSpace(v))
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// Difference returns the elements of a that are not in b. Inputs are assumed
// normalized; order of a is preserved.
func Difference(a, b []string) []string {
	if len(a) == 0 {
		return nil
	}
	inB := make(map[string]struct{}, len(b))
	for _, v := range b {
		inB[v] = struct{}{}
	}
	var out []string
	for _, v := range a {
		if _, ok := inB[v]; !ok {
			out = append(out, v)
		}
	}
	return out
}
