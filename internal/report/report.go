// Package report renders a finished Review for terminals, markdown comment
// bodies, and JSON output.
package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mjholt/reviewgate/internal/models"
)

var severityStyles = map[string]lipgloss.Style{
	models.SeverityCritical: lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
	models.SeverityHigh:     lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Bold(true),
	models.SeverityMedium:   lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
	models.SeverityLow:      lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
	models.SeverityInfo:     lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
}

var decisionStyles = map[models.Decision]lipgloss.Style{
	models.DecisionApproved:    lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
	models.DecisionBlocked:     lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
	models.DecisionNeedsReview: lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true),
}

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Underline(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	titleCaser    = cases.Title(language.English)
	severityEmoji = map[string]string{
		models.SeverityCritical: "🔴",
		models.SeverityHigh:     "🟠",
		models.SeverityMedium:   "🟡",
		models.SeverityLow:      "🔵",
		models.SeverityInfo:     "⚪",
	}
)

// FilterBySeverity returns findings at or above the minimum severity.
// This is a display concern only; the decision always sees every finding.
func FilterBySeverity(findings []models.Finding, minSeverity string) []models.Finding {
	if minSeverity == "" {
		return findings
	}
	out := make([]models.Finding, 0, len(findings))
	for _, f := range findings {
		if models.SeverityAtLeast(f.Severity, minSeverity) {
			out = append(out, f)
		}
	}
	return out
}

// Terminal renders the review for terminal output.
func Terminal(review *models.Review, minSeverity string) string {
	var b strings.Builder
	shown := FilterBySeverity(review.Findings, minSeverity)
	summary := review.Summarize()

	fmt.Fprintf(&b, "%s\n\n", headerStyle.Render(fmt.Sprintf("Review of %s", review.PR.String())))

	decisionStyle, ok := decisionStyles[review.Verdict.Decision]
	if !ok {
		decisionStyle = lipgloss.NewStyle()
	}
	fmt.Fprintf(&b, "Decision: %s\n", decisionStyle.Render(string(review.Verdict.Decision)))
	for _, rule := range review.Verdict.Rules {
		fmt.Fprintf(&b, "  %s\n", dimStyle.Render("rule: "+rule))
	}

	fmt.Fprintf(&b, "Findings: %d total (%d critical, %d high, %d medium, %d low, %d info)\n",
		summary.Total, summary.Critical, summary.High, summary.Medium, summary.Low, summary.Info)
	if review.TotalCost.AmountUSD > 0 || review.TotalCost.InputTokens > 0 {
		fmt.Fprintf(&b, "Cost: $%.4f (%d in / %d out tokens)\n",
			review.TotalCost.AmountUSD, review.TotalCost.InputTokens, review.TotalCost.OutputTokens)
	}

	if len(shown) > 0 {
		b.WriteString("\n")
		for _, f := range shown {
			style, ok := severityStyles[f.Severity]
			if !ok {
				style = lipgloss.NewStyle()
			}
			fmt.Fprintf(&b, "%s %s: %s\n",
				style.Render(fmt.Sprintf("[%s]", strings.ToUpper(f.Severity))),
				f.Location.String(), f.Title)
			fmt.Fprintf(&b, "    %s\n", f.Message)
			for _, s := range f.Suggestions {
				fmt.Fprintf(&b, "    %s\n", dimStyle.Render("suggestion: "+s))
			}
		}
	}
	if hidden := len(review.Findings) - len(shown); hidden > 0 {
		fmt.Fprintf(&b, "\n%s\n", dimStyle.Render(fmt.Sprintf("(%d findings below %s hidden)", hidden, minSeverity)))
	}

	if len(review.Warnings) > 0 {
		b.WriteString("\n" + headerStyle.Render("Warnings") + "\n")
		for _, w := range review.Warnings {
			fmt.Fprintf(&b, "  %s\n", dimStyle.Render(w))
		}
	}

	return b.String()
}

// Markdown renders the review as a markdown comment body for posting back
// to the pull request.
func Markdown(review *models.Review, minSeverity string) string {
	var b strings.Builder
	shown := FilterBySeverity(review.Findings, minSeverity)
	summary := review.Summarize()

	fmt.Fprintf(&b, "## Code Review: %s\n\n", review.Verdict.Decision)
	fmt.Fprintf(&b, "**%d findings**: %d critical, %d high, %d medium, %d low, %d info.\n\n",
		summary.Total, summary.Critical, summary.High, summary.Medium, summary.Low, summary.Info)

	for _, rule := range review.Verdict.Rules {
		fmt.Fprintf(&b, "> %s\n", rule)
	}
	if len(review.Verdict.Rules) > 0 {
		b.WriteString("\n")
	}

	for _, severity := range models.ValidSeverities() {
		group := severityGroup(shown, severity)
		if len(group) == 0 {
			continue
		}
		fmt.Fprintf(&b, "### %s %s\n\n", severityEmoji[severity], titleCaser.String(severity))
		for _, f := range group {
			fmt.Fprintf(&b, "- **%s** (`%s`): %s\n", f.Title, f.Location.String(), f.Message)
			for _, s := range f.Suggestions {
				fmt.Fprintf(&b, "  - Suggestion: %s\n", s)
			}
		}
		b.WriteString("\n")
	}

	if len(review.Warnings) > 0 {
		b.WriteString("<details><summary>Warnings</summary>\n\n")
		for _, w := range review.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
		b.WriteString("\n</details>\n\n")
	}

	if review.TotalCost.AmountUSD > 0 {
		fmt.Fprintf(&b, "_Review cost: $%.4f_\n", review.TotalCost.AmountUSD)
	}

	return b.String()
}

// JSON renders the full review, unfiltered, as indented JSON.
func JSON(review *models.Review) ([]byte, error) {
	return json.MarshalIndent(review, "", "  ")
}

func severityGroup(findings []models.Finding, severity string) []models.Finding {
	var out []models.Finding
	for _, f := range findings {
		if f.Severity == severity {
			out = append(out, f)
		}
	}
	return out
}
