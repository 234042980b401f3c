package analyzer

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/mjholt/reviewgate/internal/models"
	"github.com/mjholt/reviewgate/pkg/logger"
)

// Static heuristics over added lines.
var (
	conflictMarkerRe = regexp.MustCompile(`^(<{7}|={7}|>{7})( |$)`)
	todoRe           = regexp.MustCompile(`(?i)\b(TODO|FIXME|HACK|XXX)\b`)
	debugPrintRe     = regexp.MustCompile(`(?i)\b(?:fmt\.Print(?:ln|f)?|console\.(?:log|debug)|System\.out\.print|print\s*\(|puts\s|var_dump|dd\s*\()`)
	broadExceptRe    = regexp.MustCompile(`(?i)(?:except\s*:|except\s+Exception\s*:|catch\s*\(\s*(?:Exception|Error|Throwable)\b|rescue\s+StandardError)`)
	commentedCodeRe  = regexp.MustCompile(`^\s*(?://|#)\s*(?:func |def |class |if |for |while |return |import |from |const |let |var )`)
)

const (
	maxLineLength   = 160
	maxNestingDepth = 6
	largeChangeSize = 600
)

// StaticAnalyzer applies local quality heuristics to the lines each change
// adds. It performs no external calls and needs no retries.
type StaticAnalyzer struct {
	name   string
	logger logger.Logger
}

// NewStaticAnalyzer creates a static analyzer.
func NewStaticAnalyzer(log logger.Logger) *StaticAnalyzer {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &StaticAnalyzer{
		name:   "static",
		logger: log.With("analyzer", "static"),
	}
}

// Name returns "static".
func (s *StaticAnalyzer) Name() string { return s.name }

// Capabilities declares purely local analysis over any file.
func (s *StaticAnalyzer) Capabilities() Capabilities {
	return Capabilities{}
}

// Analyze inspects the added lines of every changed file.
func (s *StaticAnalyzer) Analyze(ctx context.Context, rctx *models.AnalysisContext) (*models.AnalyzerResult, error) {
	start := time.Now()
	result := &models.AnalyzerResult{
		AnalyzerName: s.name,
		Findings:     []models.Finding{},
	}

	for _, fc := range rctx.ChangedFiles {
		if fc.Status == models.StatusRemoved || fc.Binary {
			continue
		}
		if err := ctx.Err(); err != nil {
			result.Err = NewError(s.name, ErrorTypeTimeout, err)
			break
		}

		result.Findings = append(result.Findings, s.analyzeFile(fc)...)
	}

	result.Duration = time.Since(start)
	s.logger.Debug("Static analysis complete", "findings", len(result.Findings))
	return result, nil
}

func (s *StaticAnalyzer) analyzeFile(fc models.FileChange) []models.Finding {
	var findings []models.Finding

	add := func(severity, category, title, message string, line int, confidence float64) {
		findings = append(findings, models.Finding{
			ID:             models.GenerateFindingID(s.name, title, fc.Path, line),
			Severity:       severity,
			Category:       category,
			Title:          title,
			Message:        message,
			Location:       models.Location{File: fc.Path, StartLine: line},
			SourceAnalyzer: s.name,
			Confidence:     confidence,
		})
	}

	for _, added := range AddedLines(fc.Patch) {
		text := added.Text

		switch {
		case conflictMarkerRe.MatchString(text):
			add(models.SeverityCritical, models.CategoryBug,
				"Merge conflict marker committed",
				"An unresolved merge conflict marker is present in the change.",
				added.Line, 1.0)
		case broadExceptRe.MatchString(text):
			add(models.SeverityMedium, models.CategoryBug,
				"Broad exception handling",
				fmt.Sprintf("Catch-all error handling hides failures: %s", strings.TrimSpace(text)),
				added.Line, 0.8)
		case debugPrintRe.MatchString(text) && !strings.Contains(fc.Path, "_test") && !isCommentLine(text):
			add(models.SeverityLow, models.CategoryMaintainability,
				"Debug print left in change",
				fmt.Sprintf("Debugging output should be removed or routed through the logger: %s", strings.TrimSpace(text)),
				added.Line, 0.6)
		case commentedCodeRe.MatchString(text):
			add(models.SeverityLow, models.CategoryMaintainability,
				"Commented-out code",
				"Disabled code should be deleted; version control retains the history.",
				added.Line, 0.7)
		case todoRe.MatchString(text):
			add(models.SeverityInfo, models.CategoryMaintainability,
				"Unresolved TODO marker",
				fmt.Sprintf("The change introduces an unresolved marker: %s", strings.TrimSpace(text)),
				added.Line, 0.9)
		}

		if len(text) > maxLineLength {
			add(models.SeverityLow, models.CategoryStyle,
				"Overlong line",
				fmt.Sprintf("Line is %d characters; keep lines under %d for readability.", len(text), maxLineLength),
				added.Line, 1.0)
		}
		if depth := indentDepth(text); depth > maxNestingDepth {
			add(models.SeverityMedium, models.CategoryMaintainability,
				"Deeply nested code",
				fmt.Sprintf("Indentation depth %d suggests this block should be extracted.", depth),
				added.Line, 0.7)
		}
	}

	if fc.Additions > largeChangeSize {
		findings = append(findings, models.Finding{
			ID:             models.GenerateFindingID(s.name, "Oversized change", fc.Path, 1),
			Severity:       models.SeverityMedium,
			Category:       models.CategoryMaintainability,
			Title:          "Oversized change",
			Message:        fmt.Sprintf("This file gains %d lines in one change; consider splitting it for reviewability.", fc.Additions),
			Location:       models.Location{File: fc.Path, StartLine: 1},
			SourceAnalyzer: s.name,
			Confidence:     1.0,
		})
	}

	return findings
}

func isCommentLine(text string) bool {
	trimmed := strings.TrimSpace(text)
	return strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "*")
}

// indentDepth counts leading indentation units, treating a tab or four
// spaces as one level.
func indentDepth(text string) int {
	spaces := 0
	depth := 0
	for _, r := range text {
		switch r {
		case '\t':
			depth++
		case ' ':
			spaces++
			if spaces == 4 {
				depth++
				spaces = 0
			}
		default:
			return depth
		}
	}
	return depth
}
