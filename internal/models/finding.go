// Package models contains data structures for reviewgate review findings.
package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Finding categories.
const (
	CategoryBug             = "bug"
	CategorySecurity        = "security"
	CategoryPerformance     = "performance"
	CategoryMaintainability = "maintainability"
	CategoryStyle           = "style"
	CategoryDocumentation   = "documentation"
	CategoryTesting         = "testing"
	CategoryArchitecture    = "architecture"
)

// Location identifies where in the change a finding was reported.
type Location struct {
	File      string `json:"file"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line,omitempty"`
}

// String renders a location as file:start or file:start-end.
func (l Location) String() string {
	if l.EndLine > 0 && l.EndLine != l.StartLine {
		return fmt.Sprintf("%s:%d-%d", l.File, l.StartLine, l.EndLine)
	}
	return fmt.Sprintf("%s:%d", l.File, l.StartLine)
}

// Finding represents a single issue reported by an analyzer. Findings are
// immutable once produced; the aggregator builds merged copies rather than
// mutating inputs.
type Finding struct {
	ID             string   `json:"id"`
	Severity       string   `json:"severity"`
	Category       string   `json:"category,omitempty"`
	Title          string   `json:"title"`
	Message        string   `json:"message"`
	Location       Location `json:"location"`
	Suggestions    []string `json:"suggestions,omitempty"`
	SourceAnalyzer string   `json:"source_analyzer"`
	Confidence     float64  `json:"confidence"`
}

// GenerateFindingID creates a stable, deterministic ID for a finding.
// The ID survives re-runs so findings can be tracked across reviews.
func GenerateFindingID(analyzer, title, file string, line int) string {
	core := fmt.Sprintf("%s:%s:%s:%d", analyzer, title, file, line)
	hash := sha256.Sum256([]byte(core))
	return hex.EncodeToString(hash[:8]) // First 8 bytes for readability
}

// NewFinding creates a finding with a generated ID and full confidence.
func NewFinding(analyzer, severity, title, file string, line int) *Finding {
	return &Finding{
		ID:             GenerateFindingID(analyzer, title, file, line),
		Severity:       severity,
		Title:          title,
		Location:       Location{File: file, StartLine: line},
		SourceAnalyzer: analyzer,
		Confidence:     1.0,
	}
}

// IsValid checks if a finding has all required fields.
func (f *Finding) IsValid() error {
	if f.SourceAnalyzer == "" {
		return fmt.Errorf("finding missing required field: source analyzer")
	}
	if !IsValidSeverity(f.Severity) {
		return fmt.Errorf("finding has invalid severity: %q", f.Severity)
	}
	if f.Title == "" {
		return fmt.Errorf("finding missing required field: title")
	}
	if f.Location.File == "" {
		return fmt.Errorf("finding missing required field: location file")
	}
	if f.Confidence < 0 || f.Confidence > 1 {
		return fmt.Errorf("finding confidence out of range: %v", f.Confidence)
	}
	return nil
}

// DedupKey returns the analyzer-independent identity of a finding. Two
// analyzers reporting the same title at the same location with an equivalent
// message collapse to one finding.
func (f *Finding) DedupKey() string {
	return fmt.Sprintf("%s|%s|%s", f.Title, f.Location.String(), NormalizeMessage(f.Message))
}

// NormalizeMessage canonicalizes a message for dedup comparison: lowercased
// with runs of whitespace collapsed.
func NormalizeMessage(msg string) string {
	return strings.Join(strings.Fields(strings.ToLower(msg)), " ")
}
