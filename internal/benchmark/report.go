package benchmark

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Report bundles everything a benchmark run produces.
type Report struct {
	Metrics    Metrics     `json:"metrics"`
	ByLanguage []Scorecard `json:"by_language"`
	ByFamily   []Scorecard `json:"by_repo_family"`
	Gate       *GateResult `json:"gate,omitempty"`
}

// BuildReport evaluates a dataset and assembles the full report. The gate is
// included only when thresholds are supplied.
func BuildReport(ds *Dataset, gate *GateThresholds) Report {
	report := Report{
		Metrics:    Evaluate(ds),
		ByLanguage: ScorecardsByLanguage(ds),
		ByFamily:   ScorecardsByRepoFamily(ds),
	}
	if gate != nil {
		result := EvaluateGate(report.Metrics, *gate)
		report.Gate = &result
	}
	return report
}

// Markdown renders the report for humans.
func (r Report) Markdown() string {
	var b strings.Builder

	b.WriteString("# Benchmark Report\n\n")
	fmt.Fprintf(&b, "**Cases**: %d\n\n", r.Metrics.TotalCases)

	b.WriteString("| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Mean precision | %.4f |\n", r.Metrics.MeanPrecision)
	fmt.Fprintf(&b, "| Mean recall | %.4f |\n", r.Metrics.MeanRecall)
	fmt.Fprintf(&b, "| Mean F1 | %.4f |\n", r.Metrics.MeanF1)
	fmt.Fprintf(&b, "| Severe recall | %.4f |\n", r.Metrics.MeanSevereRecall)
	fmt.Fprintf(&b, "| Verdict accuracy | %.4f |\n", r.Metrics.VerdictAccuracy)

	writeScorecards(&b, "By language", r.ByLanguage)
	writeScorecards(&b, "By repository family", r.ByFamily)

	if r.Gate != nil {
		b.WriteString("\n## Release gate\n\n")
		if r.Gate.Passed {
			b.WriteString("PASSED\n")
		} else {
			b.WriteString("FAILED\n\n")
			for _, check := range r.Gate.FailedChecks {
				fmt.Fprintf(&b, "- %s\n", check)
			}
		}
	}

	return b.String()
}

// JSON renders the report for tooling.
func (r Report) JSON() (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding benchmark report: %w", err)
	}
	return string(data), nil
}

func writeScorecards(b *strings.Builder, title string, cards []Scorecard) {
	if len(cards) == 0 {
		return
	}
	fmt.Fprintf(b, "\n## %s\n\n", title)
	b.WriteString("| Group | Cases | Precision | Recall | F1 | Severe recall | Verdict accuracy |\n")
	b.WriteString("|---|---|---|---|---|---|---|\n")
	for _, c := range cards {
		fmt.Fprintf(b, "| %s | %d | %.4f | %.4f | %.4f | %.4f | %.4f |\n",
			c.Group, c.Cases, c.MeanPrecision, c.MeanRecall, c.MeanF1, c.SevereRecall, c.VerdictAccuracy)
	}
}
