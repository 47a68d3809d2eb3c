package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSet(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "nil slice",
			input:    nil,
			expected: nil,
		},
		{
			name:     "empty slice",
			input:    []string{},
			expected: []string{},
		},
		{
			name:     "trims and lowercases",
			input:    []string{"  Fraud ", "KYC-Gap"},
			expected: []string{"fraud", "kyc-gap"},
		},
		{
			name:     "dedupes case-insensitively preserving order",
			input:    []string{"fraud", "Fraud", "FRAUD", "kyc-gap"},
			expected: []string{"fraud", "kyc-gap"},
		},
		{
			name:     "drops empties and whitespace",
			input:    []string{"fraud", "", "   ", "kyc-gap"},
			expected: []string{"fraud", "kyc-gap"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeSet(tt.input))
		})
	}
}

func TestDifference(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []string
		expected []string
	}{
		{
			name:     "empty a yields nil",
			a:        nil,
			b:        []string{"x"},
			expected: nil,
		},
		{
			name:     "disjoint keeps all of a",
			a:        []string{"fraud", "kyc-gap"},
			b:        []string{"sanction"},
			expected: []string{"fraud", "kyc-gap"},
		},
		{
			name:     "overlap removed",
			a:        []string{"fraud", "kyc-gap"},
			b:        []string{"kyc-gap"},
			expected: []string{"fraud"},
		},
		{
			name:     "identical sets yield nil",
			a:        []string{"fraud"},
			b:        []string{"fraud"},
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Difference(tt.a, tt.b))
		})
	}
}
