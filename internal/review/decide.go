package review

import (
	"fmt"

	"github.com/mjholt/reviewgate/internal/models"
)

// Decide applies the configured thresholds to the aggregated findings and
// returns the terminal verdict. It is a pure function of its inputs: no
// I/O, no hidden state, one pass.
//
//   - BLOCKED when the critical count exceeds MaxCriticalIssues, or the
//     high-or-worse count exceeds MaxHighIssues.
//   - NEEDS_REVIEW when not blocked and any finding reaches the severity
//     threshold. The auto-approve threshold never bypasses this.
//   - APPROVED otherwise; when every finding sits at or below the
//     auto-approve threshold the approval cites it.
func Decide(findings []models.Finding, settings models.ReviewSettings) models.Verdict {
	criticalCount := 0
	highOrWorse := 0
	for _, f := range findings {
		if f.Severity == models.SeverityCritical {
			criticalCount++
		}
		if models.SeverityAtLeast(f.Severity, models.SeverityHigh) {
			highOrWorse++
		}
	}

	var rules []string
	if criticalCount > settings.MaxCriticalIssues {
		rules = append(rules, fmt.Sprintf("critical findings %d > max_critical_issues %d",
			criticalCount, settings.MaxCriticalIssues))
	}
	if highOrWorse > settings.MaxHighIssues {
		rules = append(rules, fmt.Sprintf("high-or-worse findings %d > max_high_issues %d",
			highOrWorse, settings.MaxHighIssues))
	}
	if len(rules) > 0 {
		return models.Verdict{Decision: models.DecisionBlocked, Rules: rules}
	}

	threshold := settings.SeverityThreshold
	if threshold == "" {
		threshold = models.SeverityMedium
	}
	for _, f := range findings {
		if models.SeverityAtLeast(f.Severity, threshold) {
			return models.Verdict{
				Decision: models.DecisionNeedsReview,
				Rules:    []string{fmt.Sprintf("finding %q reaches severity_threshold %s", f.Title, threshold)},
			}
		}
	}

	if settings.AutoApproveThreshold != "" && len(findings) > 0 && allAtOrBelow(findings, settings.AutoApproveThreshold) {
		return models.Verdict{
			Decision: models.DecisionApproved,
			Rules:    []string{fmt.Sprintf("all findings at or below auto_approve_threshold %s", settings.AutoApproveThreshold)},
		}
	}

	return models.Verdict{Decision: models.DecisionApproved}
}

func allAtOrBelow(findings []models.Finding, threshold string) bool {
	for _, f := range findings {
		if models.SeverityRank(f.Severity) > models.SeverityRank(threshold) {
			return false
		}
	}
	return true
}
