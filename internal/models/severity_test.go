package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeverityOrder(t *testing.T) {
	ordered := ValidSeverities()
	assert.Equal(t, []string{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo}, ordered)

	for i := 0; i < len(ordered)-1; i++ {
		assert.Greater(t, SeverityRank(ordered[i]), SeverityRank(ordered[i+1]),
			"%s should rank above %s", ordered[i], ordered[i+1])
	}
}

func TestSeverityAtLeast(t *testing.T) {
	tests := []struct {
		name      string
		severity  string
		threshold string
		want      bool
	}{
		{name: "critical meets high", severity: SeverityCritical, threshold: SeverityHigh, want: true},
		{name: "high meets high", severity: SeverityHigh, threshold: SeverityHigh, want: true},
		{name: "medium below high", severity: SeverityMedium, threshold: SeverityHigh, want: false},
		{name: "info meets info", severity: SeverityInfo, threshold: SeverityInfo, want: true},
		{name: "unknown below info", severity: "bogus", threshold: SeverityInfo, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SeverityAtLeast(tt.severity, tt.threshold))
		})
	}
}

func TestMaxSeverity(t *testing.T) {
	assert.Equal(t, SeverityCritical, MaxSeverity(SeverityCritical, SeverityLow))
	assert.Equal(t, SeverityCritical, MaxSeverity(SeverityLow, SeverityCritical))
	assert.Equal(t, SeverityMedium, MaxSeverity(SeverityMedium, SeverityMedium))
}

func TestIsValidSeverity(t *testing.T) {
	for _, s := range ValidSeverities() {
		assert.True(t, IsValidSeverity(s))
	}
	assert.False(t, IsValidSeverity("CRITICAL"))
	assert.False(t, IsValidSeverity(""))
	assert.False(t, IsValidSeverity("warning"))
}

func TestNormalizeSeverity(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "critical", want: SeverityCritical},
		{input: "CRITICAL", want: SeverityCritical},
		{input: "blocker", want: SeverityCritical},
		{input: "major", want: SeverityHigh},
		{input: "error", want: SeverityHigh},
		{input: "warning", want: SeverityMedium},
		{input: "minor", want: SeverityLow},
		{input: "note", want: SeverityInfo},
		{input: "  high  ", want: SeverityHigh},
		{input: "unknown-thing", want: SeverityInfo},
		{input: "", want: SeverityInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeSeverity(tt.input))
		})
	}
}
