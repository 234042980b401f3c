package models

import "strings"

// Severity levels as constants for type safety and consistency.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
	SeverityInfo     = "info"
)

// severityRank maps severities to their position in the total order.
// Higher rank means more severe.
var severityRank = map[string]int{
	SeverityCritical: 5,
	SeverityHigh:     4,
	SeverityMedium:   3,
	SeverityLow:      2,
	SeverityInfo:     1,
}

// ValidSeverities returns all valid severity levels, most severe first.
func ValidSeverities() []string {
	return []string{
		SeverityCritical,
		SeverityHigh,
		SeverityMedium,
		SeverityLow,
		SeverityInfo,
	}
}

// IsValidSeverity checks if a severity level is valid.
func IsValidSeverity(severity string) bool {
	_, ok := severityRank[severity]
	return ok
}

// SeverityRank returns the numeric rank of a severity. Unknown severities
// rank below info.
func SeverityRank(severity string) int {
	return severityRank[severity]
}

// SeverityAtLeast reports whether severity is at least as severe as threshold.
func SeverityAtLeast(severity, threshold string) bool {
	return SeverityRank(severity) >= SeverityRank(threshold)
}

// MaxSeverity returns the more severe of two severities.
func MaxSeverity(a, b string) string {
	if SeverityRank(b) > SeverityRank(a) {
		return b
	}
	return a
}

// NormalizeSeverity ensures severity values are consistent across analyzers
// and model output.
func NormalizeSeverity(severity string) string {
	lower := strings.ToLower(strings.TrimSpace(severity))

	switch lower {
	case "critical", "blocker":
		return SeverityCritical
	case "high", "major", "error":
		return SeverityHigh
	case "medium", "moderate", "warning":
		return SeverityMedium
	case "low", "minor":
		return SeverityLow
	case "info", "informational", "note":
		return SeverityInfo
	default:
		return SeverityInfo
	}
}
