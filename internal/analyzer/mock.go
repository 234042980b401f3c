package analyzer

import (
	"context"
	"time"

	"github.com/mjholt/reviewgate/internal/models"
)

// MockAnalyzer is a configurable analyzer for tests.
type MockAnalyzer struct {
	AnalyzerName string
	Caps         Capabilities
	Findings     []models.Finding
	Cost         models.CostRecord
	Err          error

	// Delay makes Analyze wait before returning, for timeout tests. The
	// wait respects context cancellation.
	Delay time.Duration

	// AnalyzeFunc, when set, overrides the canned behavior entirely.
	AnalyzeFunc func(ctx context.Context, rctx *models.AnalysisContext) (*models.AnalyzerResult, error)
}

// Name returns the configured analyzer name.
func (m *MockAnalyzer) Name() string { return m.AnalyzerName }

// Capabilities returns the configured capabilities.
func (m *MockAnalyzer) Capabilities() Capabilities { return m.Caps }

// Analyze returns the canned result, the canned error, or defers to
// AnalyzeFunc.
func (m *MockAnalyzer) Analyze(ctx context.Context, rctx *models.AnalysisContext) (*models.AnalyzerResult, error) {
	if m.AnalyzeFunc != nil {
		return m.AnalyzeFunc(ctx, rctx)
	}

	if m.Delay > 0 {
		timer := time.NewTimer(m.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if m.Err != nil {
		return nil, m.Err
	}

	return &models.AnalyzerResult{
		AnalyzerName: m.AnalyzerName,
		Findings:     append([]models.Finding(nil), m.Findings...),
		Cost:         m.Cost,
	}, nil
}
