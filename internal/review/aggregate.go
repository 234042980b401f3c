package review

import (
	"fmt"
	"sort"

	"github.com/mjholt/reviewgate/internal/models"
)

// Aggregate merges heterogeneous analyzer results into one ranked findings
// list: duplicates collapse per the dedup key, findings are ordered
// deterministically, the list is capped at maxFindings, and costs are summed.
// Aggregation is idempotent: feeding the output back in yields the same list.
func Aggregate(results []*models.AnalyzerResult, maxFindings int) (findings []models.Finding, totalCost models.CostRecord, warnings []string) {
	var all []models.Finding
	for _, result := range results {
		if result == nil {
			continue
		}
		totalCost.Add(result.Cost)
		if result.Err != nil {
			warnings = append(warnings, fmt.Sprintf("analyzer %s failed: %v", result.AnalyzerName, result.Err))
		}
		for _, w := range result.Warnings {
			warnings = append(warnings, fmt.Sprintf("analyzer %s: %s", result.AnalyzerName, w))
		}
		all = append(all, result.Findings...)
	}

	findings = dedupe(all)
	rank(findings)

	if maxFindings > 0 && len(findings) > maxFindings {
		dropped := len(findings) - maxFindings
		findings = findings[:maxFindings]
		warnings = append(warnings, fmt.Sprintf("dropped %d lowest-ranked findings over the %d finding cap", dropped, maxFindings))
	}

	if findings == nil {
		findings = []models.Finding{}
	}
	return findings, totalCost, warnings
}

// dedupe collapses findings sharing a dedup key, keeping the highest
// severity and the union of suggestions. Inputs are never mutated; merged
// findings are fresh copies.
func dedupe(all []models.Finding) []models.Finding {
	merged := make(map[string]*models.Finding, len(all))
	order := make([]string, 0, len(all))

	for _, f := range all {
		key := f.DedupKey()
		existing, ok := merged[key]
		if !ok {
			cp := f
			cp.Suggestions = append([]string(nil), f.Suggestions...)
			merged[key] = &cp
			order = append(order, key)
			continue
		}

		if models.SeverityRank(f.Severity) > models.SeverityRank(existing.Severity) {
			existing.Severity = f.Severity
		}
		if f.Confidence > existing.Confidence {
			existing.Confidence = f.Confidence
		}
		existing.Suggestions = unionSuggestions(existing.Suggestions, f.Suggestions)
	}

	out := make([]models.Finding, 0, len(order))
	for _, key := range order {
		out = append(out, *merged[key])
	}
	return out
}

func unionSuggestions(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	out := a
	for _, s := range a {
		seen[s] = true
	}
	for _, s := range b {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// rank orders findings by severity descending, then file path, then line,
// with analyzer name and title as deterministic tie breakers.
func rank(findings []models.Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if ra, rb := models.SeverityRank(a.Severity), models.SeverityRank(b.Severity); ra != rb {
			return ra > rb
		}
		if a.Location.File != b.Location.File {
			return a.Location.File < b.Location.File
		}
		if a.Location.StartLine != b.Location.StartLine {
			return a.Location.StartLine < b.Location.StartLine
		}
		if a.SourceAnalyzer != b.SourceAnalyzer {
			return a.SourceAnalyzer < b.SourceAnalyzer
		}
		return a.Title < b.Title
	})
}
