package analyzer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mjholt/reviewgate/internal/models"
	"github.com/mjholt/reviewgate/internal/provider"
	"github.com/mjholt/reviewgate/pkg/logger"
)

// scriptedClient plays back completions in order, recording the requests.
type scriptedClient struct {
	script   []provider.MockCall
	requests []provider.Request
}

func (c *scriptedClient) Provider() string { return "anthropic" }

func (c *scriptedClient) Complete(ctx context.Context, req provider.Request) (*provider.Completion, error) {
	c.requests = append(c.requests, req)
	idx := len(c.requests) - 1
	if idx >= len(c.script) {
		idx = len(c.script) - 1
	}
	call := c.script[idx]
	if call.Err != nil {
		return nil, call.Err
	}
	return call.Completion, nil
}

func completionWith(content string) *provider.Completion {
	return &provider.Completion{
		Content: content,
		Model:   "claude-3-5-sonnet-20240620",
		Usage:   provider.Usage{InputTokens: 100, OutputTokens: 20},
		Cost:    models.CostRecord{Provider: "anthropic", InputTokens: 100, OutputTokens: 20, AmountUSD: 0.001},
	}
}

const findingsJSON = `[
  {
    "severity": "high",
    "category": "bug",
    "title": "Nil map write",
    "message": "The map is written before initialization.",
    "line": 14,
    "suggestion": "Initialize the map with make before writing.",
    "confidence": 0.95
  }
]`

func semanticContext(paths ...string) *models.AnalysisContext {
	changes := make([]models.FileChange, 0, len(paths))
	for _, p := range paths {
		changes = append(changes, models.FileChange{
			Path:   p,
			Status: models.StatusModified,
			Patch:  patchAdding("m[\"k\"] = v"),
		})
	}
	return newTestContext(changes...)
}

func TestSemanticAnalyze(t *testing.T) {
	client := &scriptedClient{script: []provider.MockCall{
		{Completion: completionWith(findingsJSON)},
	}}
	a := NewSemanticAnalyzer(client, SemanticConfig{Model: "claude-3-5-sonnet-20240620"}, logger.NewMockLogger())

	result, err := a.Analyze(context.Background(), semanticContext("store.go"))
	require.NoError(t, err)
	require.Nil(t, result.Err)

	require.Len(t, result.Findings, 1)
	f := result.Findings[0]
	assert.Equal(t, models.SeverityHigh, f.Severity)
	assert.Equal(t, "Nil map write", f.Title)
	assert.Equal(t, "store.go", f.Location.File)
	assert.Equal(t, 14, f.Location.StartLine)
	assert.Equal(t, []string{"Initialize the map with make before writing."}, f.Suggestions)
	assert.InDelta(t, 0.95, f.Confidence, 0.001)
	assert.Equal(t, "semantic", f.SourceAnalyzer)

	// Cost is attributed to the result.
	assert.InDelta(t, 0.001, result.Cost.AmountUSD, 1e-9)

	// The system prompt and the diff both reach the model.
	require.Len(t, client.requests, 1)
	msgs := client.requests[0].Messages
	require.NotEmpty(t, msgs)
	assert.Equal(t, provider.RoleSystem, msgs[0].Role)
	assert.Contains(t, msgs[len(msgs)-1].Content, "store.go")
}

func TestSemanticCorrectiveRetry(t *testing.T) {
	client := &scriptedClient{script: []provider.MockCall{
		{Completion: completionWith("Sure! Here are my thoughts on the change.")},
		{Completion: completionWith(findingsJSON)},
	}}
	a := NewSemanticAnalyzer(client, SemanticConfig{}, logger.NewMockLogger())

	result, err := a.Analyze(context.Background(), semanticContext("store.go"))
	require.NoError(t, err)
	require.Nil(t, result.Err)

	require.Len(t, client.requests, 2)
	retry := client.requests[1].Messages
	// The retry carries the malformed output and a corrective instruction.
	assert.Equal(t, provider.RoleAssistant, retry[len(retry)-2].Role)
	assert.Contains(t, retry[len(retry)-1].Content, "JSON array")

	require.Len(t, result.Findings, 1)

	// Both calls are paid for.
	assert.InDelta(t, 0.002, result.Cost.AmountUSD, 1e-9)
	assert.Equal(t, 200, result.Cost.InputTokens)
}

func TestSemanticMalformedAfterRetry(t *testing.T) {
	client := &scriptedClient{script: []provider.MockCall{
		{Completion: completionWith("still prose")},
		{Completion: completionWith("more prose")},
	}}
	a := NewSemanticAnalyzer(client, SemanticConfig{}, logger.NewMockLogger())

	result, err := a.Analyze(context.Background(), semanticContext("store.go"))
	require.NoError(t, err, "analyzer failures live on the result, not the error return")
	require.NotNil(t, result.Err)

	var aerr *Error
	require.ErrorAs(t, result.Err, &aerr)
	assert.Equal(t, ErrorTypeParse, aerr.Type)
	assert.Len(t, client.requests, 2, "exactly one corrective retry")

	// The failed calls still count toward cost.
	assert.InDelta(t, 0.002, result.Cost.AmountUSD, 1e-9)
}

func TestSemanticAuthErrorStopsRemainingFiles(t *testing.T) {
	client := &scriptedClient{script: []provider.MockCall{
		{Err: &provider.AuthError{Provider: "anthropic", Err: errors.New("bad key")}},
	}}
	a := NewSemanticAnalyzer(client, SemanticConfig{}, logger.NewMockLogger())

	result, err := a.Analyze(context.Background(), semanticContext("a.go", "b.go", "c.go"))
	require.NoError(t, err)
	require.NotNil(t, result.Err)

	var aerr *Error
	require.ErrorAs(t, result.Err, &aerr)
	assert.Equal(t, ErrorTypeProvider, aerr.Type)
	assert.Len(t, client.requests, 1, "credential failures stop the file loop")
}

func TestSemanticPartialFailureKeepsFindings(t *testing.T) {
	client := &scriptedClient{script: []provider.MockCall{
		{Err: &provider.TransientError{Provider: "anthropic", Err: errors.New("blip")}},
		{Completion: completionWith(findingsJSON)},
	}}
	a := NewSemanticAnalyzer(client, SemanticConfig{}, logger.NewMockLogger())

	result, err := a.Analyze(context.Background(), semanticContext("a.go", "b.go"))
	require.NoError(t, err)

	// One file failed but the other produced findings, so the result is a
	// success with partial output and the failure recorded as a warning.
	assert.Nil(t, result.Err)
	assert.Len(t, result.Findings, 1)
	assert.Equal(t, "b.go", result.Findings[0].Location.File)

	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "a.go")
	assert.Contains(t, result.Warnings[0], "blip")
}

func TestSemanticLateAuthFailureSurfaced(t *testing.T) {
	client := &scriptedClient{script: []provider.MockCall{
		{Completion: completionWith(findingsJSON)},
		{Err: &provider.AuthError{Provider: "anthropic", Err: errors.New("key revoked")}},
	}}
	a := NewSemanticAnalyzer(client, SemanticConfig{}, logger.NewMockLogger())

	result, err := a.Analyze(context.Background(), semanticContext("a.go", "b.go", "c.go"))
	require.NoError(t, err)

	// Findings from the first file survive, the loop stops at the auth
	// failure, and the failure is not silently swallowed.
	assert.Nil(t, result.Err)
	assert.Len(t, result.Findings, 1)
	assert.Len(t, client.requests, 2, "credential failures stop the file loop")

	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "b.go")
	assert.Contains(t, result.Warnings[0], "key revoked")
}

func TestParseFindings(t *testing.T) {
	a := NewSemanticAnalyzer(&scriptedClient{script: []provider.MockCall{{Completion: completionWith("[]")}}},
		SemanticConfig{}, logger.NewMockLogger())

	t.Run("empty array", func(t *testing.T) {
		findings, err := a.parseFindings("[]", "f.go")
		require.NoError(t, err)
		assert.Empty(t, findings)
	})

	t.Run("array embedded in prose", func(t *testing.T) {
		findings, err := a.parseFindings("Here you go:\n"+findingsJSON+"\nHope that helps!", "f.go")
		require.NoError(t, err)
		assert.Len(t, findings, 1)
	})

	t.Run("no array", func(t *testing.T) {
		_, err := a.parseFindings("no issues found", "f.go")
		var merr *malformedResponseError
		require.ErrorAs(t, err, &merr)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := a.parseFindings(`[{"title": }]`, "f.go")
		var merr *malformedResponseError
		require.ErrorAs(t, err, &merr)
	})

	t.Run("defaults applied", func(t *testing.T) {
		findings, err := a.parseFindings(`[{"title": "Issue", "severity": "blocker", "line": 0}]`, "f.go")
		require.NoError(t, err)
		require.Len(t, findings, 1)
		assert.Equal(t, models.SeverityCritical, findings[0].Severity)
		assert.Equal(t, 1, findings[0].Location.StartLine, "line numbers clamp to 1")
		assert.InDelta(t, 0.8, findings[0].Confidence, 0.001, "missing confidence defaults")
	})

	t.Run("untitled findings skipped", func(t *testing.T) {
		findings, err := a.parseFindings(`[{"severity": "high"}, {"title": "Real", "severity": "low"}]`, "f.go")
		require.NoError(t, err)
		require.Len(t, findings, 1)
		assert.Equal(t, "Real", findings[0].Title)
	})
}
