package review

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mjholt/reviewgate/internal/analyzer"
	"github.com/mjholt/reviewgate/internal/config"
	"github.com/mjholt/reviewgate/internal/models"
	"github.com/mjholt/reviewgate/internal/provider"
	"github.com/mjholt/reviewgate/internal/scm"
	"github.com/mjholt/reviewgate/pkg/logger"
)

// TransportFactory builds a provider transport. Overridable in tests.
type TransportFactory func(name, apiKey, baseURL string) (provider.Transport, error)

// Pipeline assembles analyzers from configuration and runs full reviews.
// Each call to Review builds fresh provider clients so that circuit breaker
// state never leaks between reviews.
type Pipeline struct {
	cfg          *config.Config
	logger       logger.Logger
	newTransport TransportFactory
}

// NewPipeline creates a pipeline from a validated configuration.
func NewPipeline(cfg *config.Config, log logger.Logger) *Pipeline {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Pipeline{
		cfg:          cfg,
		logger:       log,
		newTransport: provider.NewTransport,
	}
}

// SetTransportFactory replaces the transport constructor. Used by tests to
// substitute mock transports.
func (p *Pipeline) SetTransportFactory(f TransportFactory) {
	p.newTransport = f
}

// Review filters the changed files, runs every configured analyzer, and
// returns the finished review. It only fails on configuration-level
// problems; analyzer failures surface as warnings inside the review.
func (p *Pipeline) Review(ctx context.Context, pr models.PRIdentity, changes []models.FileChange, fetch models.ContentFetcher) (*models.Review, error) {
	filtered, warnings := scm.FilterChanges(changes, scm.FilterOptions{
		IgnorePaths:    p.cfg.IgnorePaths,
		MaxFileChanges: p.cfg.Limits.MaxFileChanges,
		MaxFileSizeKB:  p.cfg.Limits.MaxFileSizeKB,
	})

	analyzers, err := p.buildAnalyzers()
	if err != nil {
		return nil, err
	}

	rctx := models.NewAnalysisContext(pr, filtered, p.cfg.ReviewSettings(), fetch)
	orch := NewOrchestratorWithLogger(p.cfg.PerAnalyzerTimeout(), p.cfg.OverallTimeout(), p.logger)
	review := orch.Run(ctx, rctx, analyzers)
	review.Warnings = append(warnings, review.Warnings...)
	return review, nil
}

// buildAnalyzers instantiates every enabled analyzer. Analyzers on the same
// provider share one metered client, so the rate limiter and circuit breaker
// cover all of a provider's traffic for the review.
func (p *Pipeline) buildAnalyzers() ([]analyzer.Analyzer, error) {
	prices, err := p.priceTable()
	if err != nil {
		return nil, err
	}

	clients := make(map[string]provider.Client)
	clientFor := func(name string) (provider.Client, error) {
		if c, ok := clients[name]; ok {
			return c, nil
		}
		c, err := p.buildClient(name, prices)
		if err != nil {
			return nil, err
		}
		clients[name] = c
		return c, nil
	}

	registry := analyzer.NewRegistry()
	for _, ac := range p.cfg.Analyzers {
		if !ac.IsEnabled() {
			p.logger.Debug("analyzer disabled", "analyzer", ac.Name)
			continue
		}

		var a analyzer.Analyzer
		switch ac.Name {
		case "semantic":
			providerName := ac.Provider
			if providerName == "" {
				providerName = "anthropic"
			}
			client, err := clientFor(providerName)
			if err != nil {
				return nil, err
			}
			a = analyzer.NewSemanticAnalyzer(client, analyzer.SemanticConfig{
				Model:       ac.Model,
				Temperature: ac.Temperature,
				MaxTokens:   ac.MaxTokens,
			}, p.logger)
		case "static":
			a = analyzer.NewStaticAnalyzer(p.logger)
		case "security":
			a = analyzer.NewSecurityAnalyzer(p.logger)
		default:
			return nil, fmt.Errorf("%w: %q", analyzer.ErrUnknownAnalyzer, ac.Name)
		}
		if err := registry.Register(a); err != nil {
			return nil, err
		}
	}

	analyzers := registry.All()
	if len(analyzers) == 0 {
		return nil, fmt.Errorf("no analyzers enabled")
	}
	return analyzers, nil
}

func (p *Pipeline) buildClient(providerName string, prices provider.PriceTable) (provider.Client, error) {
	pc := p.cfg.ProviderOrDefault(providerName)

	keyEnv := pc.APIKeyEnv
	if keyEnv == "" {
		keyEnv = strings.ToUpper(providerName) + "_API_KEY"
	}
	apiKey := os.Getenv(keyEnv)

	transport, err := p.newTransport(providerName, apiKey, pc.BaseURL)
	if err != nil {
		return nil, err
	}

	opts := provider.Options{
		RequestsPerMinute: pc.RequestsPerMinute,
		Burst:             pc.Burst,
		MaxRetries:        pc.MaxRetries,
		BaseBackoff:       time.Duration(pc.BaseBackoffMS) * time.Millisecond,
		BreakerThreshold:  pc.BreakerThreshold,
	}
	return provider.NewMeteredClient(transport, prices, opts, p.logger), nil
}

func (p *Pipeline) priceTable() (provider.PriceTable, error) {
	if p.cfg.PriceTable == "" {
		return provider.DefaultPriceTable(), nil
	}
	prices, err := provider.LoadPriceTable(p.cfg.PriceTable)
	if err != nil {
		return nil, fmt.Errorf("loading price table: %w", err)
	}
	return prices, nil
}
