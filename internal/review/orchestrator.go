// Package review implements the review orchestration core: concurrent
// analyzer fan-out, aggregation of findings, and the decision gate.
package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mjholt/reviewgate/internal/analyzer"
	"github.com/mjholt/reviewgate/internal/models"
	"github.com/mjholt/reviewgate/pkg/logger"
)

// Orchestrator fans a review context out to all applicable analyzers,
// bounds each with a timeout, and folds the results into one Review.
// It holds no state across invocations; each Run is independent.
type Orchestrator struct {
	logger             logger.Logger
	perAnalyzerTimeout time.Duration
	overallTimeout     time.Duration
}

// NewOrchestrator creates an orchestrator with the given timeouts.
func NewOrchestrator(perAnalyzerTimeout, overallTimeout time.Duration) *Orchestrator {
	return NewOrchestratorWithLogger(perAnalyzerTimeout, overallTimeout, logger.GetGlobalLogger())
}

// NewOrchestratorWithLogger creates an orchestrator with a custom logger.
func NewOrchestratorWithLogger(perAnalyzerTimeout, overallTimeout time.Duration, log logger.Logger) *Orchestrator {
	if perAnalyzerTimeout <= 0 {
		perAnalyzerTimeout = 2 * time.Minute
	}
	if overallTimeout <= 0 {
		overallTimeout = 5 * time.Minute
	}
	return &Orchestrator{
		logger:             log,
		perAnalyzerTimeout: perAnalyzerTimeout,
		overallTimeout:     overallTimeout,
	}
}

// Run executes all applicable analyzers concurrently and returns the
// finished Review. Analyzer failures and timeouts surface as warnings on the
// Review, never as an error; only an empty analyzer set before dispatch is
// reported to the caller.
func (o *Orchestrator) Run(ctx context.Context, rctx *models.AnalysisContext, analyzers []analyzer.Analyzer) *models.Review {
	startTime := time.Now()

	applicable := make([]analyzer.Analyzer, 0, len(analyzers))
	for _, a := range analyzers {
		if analyzer.Supports(a.Capabilities(), rctx) {
			applicable = append(applicable, a)
		} else {
			o.logger.Debug("Analyzer not applicable", "analyzer", a.Name())
		}
	}

	o.logger.Info("Starting review",
		"pr", rctx.PR.String(),
		"files", len(rctx.ChangedFiles),
		"analyzers", len(applicable))

	results := o.dispatch(ctx, rctx, applicable)

	findings, totalCost, warnings := Aggregate(results, rctx.Settings.MaxFindings)

	verdict := o.verdict(results, findings, rctx.Settings)

	review := &models.Review{
		ID:        uuid.NewString(),
		PR:        rctx.PR,
		Findings:  findings,
		TotalCost: totalCost,
		Verdict:   verdict,
		Warnings:  warnings,
		StartTime: startTime,
		EndTime:   time.Now(),
	}

	o.logger.Info("Review complete",
		"pr", rctx.PR.String(),
		"findings", len(review.Findings),
		"decision", review.Verdict.Decision,
		"cost_usd", fmt.Sprintf("%.4f", review.TotalCost.AmountUSD),
		"duration", review.EndTime.Sub(review.StartTime))

	return review
}

// dispatch runs each applicable analyzer in its own goroutine and collects
// exactly one result per analyzer. If the overall timeout elapses first,
// unfinished analyzers are recorded as timed out and their goroutines are
// cancelled.
func (o *Orchestrator) dispatch(ctx context.Context, rctx *models.AnalysisContext, applicable []analyzer.Analyzer) []*models.AnalyzerResult {
	if len(applicable) == 0 {
		return nil
	}

	runCtx, cancel := context.WithTimeout(ctx, o.overallTimeout)
	defer cancel()

	resultCh := make(chan *models.AnalyzerResult, len(applicable))

	for _, a := range applicable {
		go func(a analyzer.Analyzer) {
			resultCh <- o.runOne(runCtx, rctx, a)
		}(a)
	}

	landed := make(map[string]*models.AnalyzerResult, len(applicable))

collect:
	for len(landed) < len(applicable) {
		select {
		case result := <-resultCh:
			landed[result.AnalyzerName] = result
		case <-runCtx.Done():
			break collect
		}
	}

	// Preserve registration order and mark stragglers as timed out.
	results := make([]*models.AnalyzerResult, 0, len(applicable))
	for _, a := range applicable {
		if result, ok := landed[a.Name()]; ok {
			results = append(results, result)
			continue
		}
		o.logger.Warn("Analyzer did not finish before review timeout", "analyzer", a.Name())
		results = append(results, models.FailedResult(a.Name(),
			analyzer.NewError(a.Name(), analyzer.ErrorTypeTimeout,
				fmt.Errorf("review timeout %s elapsed", o.overallTimeout))))
	}
	return results
}

// runOne executes a single analyzer bounded by the per-analyzer timeout.
// Panics, errors and timeouts all convert to a failed result.
func (o *Orchestrator) runOne(ctx context.Context, rctx *models.AnalysisContext, a analyzer.Analyzer) (result *models.AnalyzerResult) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Analyzer panicked", "analyzer", a.Name(), "panic", r)
			result = models.FailedResult(a.Name(),
				analyzer.NewError(a.Name(), analyzer.ErrorTypeInternal, fmt.Errorf("panic: %v", r)))
		}
	}()

	actx, cancel := context.WithTimeout(ctx, o.perAnalyzerTimeout)
	defer cancel()

	o.logger.Debug("Running analyzer", "analyzer", a.Name())
	start := time.Now()

	res, err := a.Analyze(actx, rctx)
	switch {
	case err != nil:
		o.logger.Warn("Analyzer failed", "analyzer", a.Name(), "error", err)
		res = models.FailedResult(a.Name(), normalizeAnalyzerError(a.Name(), err))
	case res == nil:
		res = models.FailedResult(a.Name(),
			analyzer.NewError(a.Name(), analyzer.ErrorTypeInternal, fmt.Errorf("analyzer returned no result")))
	}
	if res.Duration == 0 {
		res.Duration = time.Since(start)
	}
	return res
}

func normalizeAnalyzerError(name string, err error) error {
	var aerr *analyzer.Error
	if errors.As(err, &aerr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return analyzer.NewError(name, analyzer.ErrorTypeTimeout, err)
	}
	return analyzer.NewError(name, analyzer.ErrorTypeInternal, err)
}

// verdict computes the decision, falling back to the configured default when
// every dispatched analyzer failed. A change set no analyzer applies to is
// not a failure: there is nothing to review, so it approves.
func (o *Orchestrator) verdict(results []*models.AnalyzerResult, findings []models.Finding, settings models.ReviewSettings) models.Verdict {
	if len(results) == 0 {
		return models.Verdict{
			Decision: models.DecisionApproved,
			Rules:    []string{"no reviewable changes for any configured analyzer"},
		}
	}

	contributed := 0
	for _, r := range results {
		if r.Err == nil {
			contributed++
		}
	}

	if contributed == 0 {
		decision := settings.OnTotalFailure
		if decision == "" {
			decision = models.DecisionNeedsReview
		}
		return models.Verdict{
			Decision: decision,
			Rules:    []string{"no analyzer produced a result"},
		}
	}

	return Decide(findings, settings)
}
