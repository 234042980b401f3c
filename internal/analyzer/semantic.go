package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mjholt/reviewgate/internal/models"
	"github.com/mjholt/reviewgate/internal/provider"
	"github.com/mjholt/reviewgate/pkg/logger"
)

const semanticSystemPrompt = `You are an expert code reviewer with superhuman attention to detail.

Your mission is to ensure the highest standards of code quality, security, and correctness.
You analyze code written by both humans and AI, catching subtle bugs, security vulnerabilities,
performance issues, and maintainability problems that others miss.

When reviewing code:
1. Focus on CRITICAL and HIGH severity issues (bugs, security, logic errors)
2. Be precise - only flag real issues, not stylistic preferences
3. Provide clear explanations and suggested fixes
4. Consider edge cases and potential failure modes

Return findings as a JSON array:
[
  {
    "severity": "critical|high|medium|low|info",
    "category": "bug|security|performance|maintainability|style|documentation|testing|architecture",
    "title": "Brief title",
    "message": "Detailed explanation",
    "line": 42,
    "line_end": 45,
    "suggestion": "How to fix it",
    "confidence": 0.9
  }
]

If no issues found, return an empty array: []`

const correctivePrompt = `Your previous response was not a valid JSON array of findings. ` +
	`Respond again with ONLY a JSON array matching the requested schema, with no prose before or after it.`

// SemanticConfig holds the model settings for a semantic analyzer.
type SemanticConfig struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// SemanticAnalyzer reviews changed files by prompting a language model and
// parsing its structured response into findings.
type SemanticAnalyzer struct {
	name   string
	client provider.Client
	cfg    SemanticConfig
	logger logger.Logger
}

// NewSemanticAnalyzer creates a semantic analyzer backed by the given
// provider client.
func NewSemanticAnalyzer(client provider.Client, cfg SemanticConfig, log logger.Logger) *SemanticAnalyzer {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &SemanticAnalyzer{
		name:   "semantic",
		client: client,
		cfg:    cfg,
		logger: log.With("analyzer", "semantic"),
	}
}

// Name returns "semantic".
func (s *SemanticAnalyzer) Name() string { return s.name }

// Capabilities declares that the semantic analyzer handles any text file and
// requires a provider.
func (s *SemanticAnalyzer) Capabilities() Capabilities {
	return Capabilities{NeedsProvider: true}
}

// Analyze reviews each reviewable changed file with the model. A file whose
// response stays malformed after one corrective retry is recorded as a
// failure; findings from other files are kept.
func (s *SemanticAnalyzer) Analyze(ctx context.Context, rctx *models.AnalysisContext) (*models.AnalyzerResult, error) {
	start := time.Now()
	result := &models.AnalyzerResult{
		AnalyzerName: s.name,
		Findings:     []models.Finding{},
	}

	var failures []error

	for _, fc := range rctx.ChangedFiles {
		if fc.Status == models.StatusRemoved || fc.Binary {
			continue
		}
		if err := ctx.Err(); err != nil {
			failures = append(failures, err)
			break
		}

		findings, cost, err := s.analyzeFile(ctx, rctx, fc)
		result.Cost.Add(cost)
		if err != nil {
			s.logger.Warn("File analysis failed", "file", fc.Path, "error", err)
			failures = append(failures, fmt.Errorf("%s: %w", fc.Path, err))

			// Credential failures cannot succeed for later files either.
			var authErr *provider.AuthError
			if errors.As(err, &authErr) {
				break
			}
			continue
		}

		result.Findings = append(result.Findings, findings...)
		s.logger.Debug("File analyzed", "file", fc.Path, "findings", len(findings))
	}

	result.Duration = time.Since(start)

	// Every per-file failure must reach the Review: as the result error when
	// nothing was produced, as warnings when other files yielded findings.
	if len(failures) > 0 {
		if len(result.Findings) == 0 {
			result.Err = NewError(s.name, classifyFailure(failures[0]), errors.Join(failures...))
		} else {
			for _, f := range failures {
				result.Warnings = append(result.Warnings, f.Error())
			}
		}
	}

	return result, nil
}

func classifyFailure(err error) ErrorType {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ErrorTypeTimeout
	default:
		var parseErr *malformedResponseError
		if errors.As(err, &parseErr) {
			return ErrorTypeParse
		}
		return ErrorTypeProvider
	}
}

// analyzeFile prompts the model for one file and parses the response,
// retrying once with a corrective instruction on malformed output.
func (s *SemanticAnalyzer) analyzeFile(ctx context.Context, rctx *models.AnalysisContext, fc models.FileChange) ([]models.Finding, models.CostRecord, error) {
	var cost models.CostRecord

	content, err := rctx.FileContent(fc.Path)
	if err != nil {
		s.logger.Warn("File content unavailable, reviewing diff only", "file", fc.Path, "error", err)
		content = nil
	}

	userPrompt := buildReviewPrompt(fc, content)
	messages := []provider.Message{
		{Role: provider.RoleSystem, Content: semanticSystemPrompt},
		{Role: provider.RoleUser, Content: userPrompt},
	}

	completion, err := s.complete(ctx, messages, &cost)
	if err != nil {
		return nil, cost, err
	}

	findings, parseErr := s.parseFindings(completion.Content, fc.Path)
	if parseErr == nil {
		return findings, cost, nil
	}

	// One corrective retry with the malformed output in context.
	s.logger.Debug("Malformed model output, retrying with corrective instruction", "file", fc.Path)
	retryMessages := append(messages,
		provider.Message{Role: provider.RoleAssistant, Content: completion.Content},
		provider.Message{Role: provider.RoleUser, Content: correctivePrompt},
	)

	completion, err = s.complete(ctx, retryMessages, &cost)
	if err != nil {
		return nil, cost, err
	}

	findings, parseErr = s.parseFindings(completion.Content, fc.Path)
	if parseErr != nil {
		return nil, cost, parseErr
	}
	return findings, cost, nil
}

func (s *SemanticAnalyzer) complete(ctx context.Context, messages []provider.Message, cost *models.CostRecord) (*provider.Completion, error) {
	completion, err := s.client.Complete(ctx, provider.Request{
		Messages:    messages,
		Model:       s.cfg.Model,
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
	})
	if err != nil {
		return nil, err
	}
	cost.Add(completion.Cost)
	return completion, nil
}

// buildReviewPrompt assembles the user prompt from the diff and, when
// available, the full file body.
func buildReviewPrompt(fc models.FileChange, content []byte) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Review this %s code from `%s` (%s):\n\n", fc.Language(), fc.Path, fc.Status)

	if fc.Patch != "" {
		b.WriteString("CHANGES (diff):\n```diff\n")
		b.WriteString(fc.Patch)
		b.WriteString("\n```\n\n")
	}

	if len(content) > 0 {
		fmt.Fprintf(&b, "FULL FILE:\n```%s\n", fc.Language())
		b.Write(content)
		b.WriteString("\n```\n\n")
	}

	b.WriteString("Analyze for bugs, security issues, logic errors, and quality problems.\n")
	b.WriteString("Return a JSON array of findings (or [] if no issues).")
	return b.String()
}

// malformedResponseError marks model output that could not be parsed into
// findings even after the corrective retry.
type malformedResponseError struct {
	reason string
}

func (e *malformedResponseError) Error() string {
	return "malformed model response: " + e.reason
}

type semanticFinding struct {
	Severity   string  `json:"severity"`
	Category   string  `json:"category"`
	Title      string  `json:"title"`
	Message    string  `json:"message"`
	Line       int     `json:"line"`
	LineEnd    int     `json:"line_end"`
	Suggestion string  `json:"suggestion"`
	Confidence float64 `json:"confidence"`
}

// parseFindings extracts the JSON findings array from the model response.
func (s *SemanticAnalyzer) parseFindings(response, filePath string) ([]models.Finding, error) {
	start := strings.Index(response, "[")
	end := strings.LastIndex(response, "]")
	if start == -1 || end == -1 || end < start {
		return nil, &malformedResponseError{reason: "no JSON array in response"}
	}

	var raw []semanticFinding
	if err := json.Unmarshal([]byte(response[start:end+1]), &raw); err != nil {
		return nil, &malformedResponseError{reason: err.Error()}
	}

	findings := make([]models.Finding, 0, len(raw))
	for _, item := range raw {
		if item.Title == "" {
			s.logger.Debug("Skipping finding without title", "file", filePath)
			continue
		}
		line := item.Line
		if line < 1 {
			line = 1
		}
		confidence := item.Confidence
		if confidence <= 0 || confidence > 1 {
			confidence = 0.8
		}

		finding := models.Finding{
			ID:             models.GenerateFindingID(s.name, item.Title, filePath, line),
			Severity:       models.NormalizeSeverity(item.Severity),
			Category:       item.Category,
			Title:          item.Title,
			Message:        item.Message,
			Location:       models.Location{File: filePath, StartLine: line, EndLine: item.LineEnd},
			SourceAnalyzer: s.name,
			Confidence:     confidence,
		}
		if item.Suggestion != "" {
			finding.Suggestions = []string{item.Suggestion}
		}
		findings = append(findings, finding)
	}

	return findings, nil
}
