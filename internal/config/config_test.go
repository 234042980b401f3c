package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mjholt/reviewgate/internal/models"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reviewgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
standards:
  severity_threshold: high
  max_critical_issues: 0
  max_high_issues: 2

limits:
  max_findings: 25
  per_analyzer_timeout_seconds: 60

analyzers:
  - name: semantic
    provider: anthropic
    model: claude-3-5-sonnet-20240620
    temperature: 0.2
  - name: security
    enabled: false

providers:
  anthropic:
    api_key_env: ANTHROPIC_API_KEY
    requests_per_minute: 10

ignore_paths:
  - "vendor/*"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "high", cfg.Standards.SeverityThreshold)
	assert.Equal(t, 2, cfg.Standards.MaxHighIssues)
	assert.Equal(t, 25, cfg.Limits.MaxFindings)
	assert.Equal(t, 60*time.Second, cfg.PerAnalyzerTimeout())

	// Omitted limits fall back to defaults.
	assert.Equal(t, DefaultMaxFileChanges, cfg.Limits.MaxFileChanges)
	assert.Equal(t, DefaultOverallTimeout, cfg.OverallTimeout())
	assert.Equal(t, string(models.DecisionNeedsReview), cfg.Standards.OnTotalFailure)

	// Provider defaults fill the unset fields only.
	p := cfg.ProviderOrDefault("anthropic")
	assert.Equal(t, 10, p.RequestsPerMinute)
	assert.Equal(t, DefaultBurst, p.Burst)
	assert.Equal(t, DefaultMaxRetries, p.MaxRetries)

	semantic, ok := cfg.AnalyzerByName("semantic")
	require.True(t, ok)
	assert.True(t, semantic.IsEnabled())
	assert.Equal(t, "claude-3-5-sonnet-20240620", semantic.Model)

	security, ok := cfg.AnalyzerByName("security")
	require.True(t, ok)
	assert.False(t, security.IsEnabled())

	_, ok = cfg.AnalyzerByName("nope")
	assert.False(t, ok)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/reviewgate.yaml")
	assert.Error(t, err)
}

func TestLoadConfigBadYAML(t *testing.T) {
	path := writeConfig(t, "standards: [not a map")
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(cfg *Config)
		wantField string
	}{
		{
			name:      "bad severity threshold",
			mutate:    func(cfg *Config) { cfg.Standards.SeverityThreshold = "severe" },
			wantField: "standards.severity_threshold",
		},
		{
			name:      "bad auto approve threshold",
			mutate:    func(cfg *Config) { cfg.Standards.AutoApproveThreshold = "fine" },
			wantField: "standards.auto_approve_threshold",
		},
		{
			name:      "auto approve threshold not below severity threshold",
			mutate:    func(cfg *Config) { cfg.Standards.AutoApproveThreshold = models.SeverityHigh },
			wantField: "standards.auto_approve_threshold",
		},
		{
			name:      "negative critical cap",
			mutate:    func(cfg *Config) { cfg.Standards.MaxCriticalIssues = -1 },
			wantField: "standards.max_critical_issues",
		},
		{
			name:      "bad total failure decision",
			mutate:    func(cfg *Config) { cfg.Standards.OnTotalFailure = "BLOCKED" },
			wantField: "standards.on_total_failure",
		},
		{
			name:      "no analyzers",
			mutate:    func(cfg *Config) { cfg.Analyzers = nil },
			wantField: "analyzers",
		},
		{
			name:      "analyzer without name",
			mutate:    func(cfg *Config) { cfg.Analyzers[0].Name = "" },
			wantField: "analyzers[0].name",
		},
		{
			name:      "temperature out of range",
			mutate:    func(cfg *Config) { cfg.Analyzers[0].Temperature = 1.5 },
			wantField: "analyzers[0].temperature",
		},
		{
			name:      "bad ignore glob",
			mutate:    func(cfg *Config) { cfg.IgnorePaths = []string{"[bad"} },
			wantField: "ignore_paths",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantField, verr.Field)
		})
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, models.SeverityMedium, cfg.Standards.SeverityThreshold)
	assert.Equal(t, 0, cfg.Standards.MaxCriticalIssues)
	assert.Equal(t, 3, cfg.Standards.MaxHighIssues)
	assert.Len(t, cfg.Analyzers, 3)

	settings := cfg.ReviewSettings()
	assert.Equal(t, models.SeverityMedium, settings.SeverityThreshold)
	assert.Equal(t, DefaultMaxFindings, settings.MaxFindings)
	assert.Equal(t, models.DecisionNeedsReview, settings.OnTotalFailure)
}

func TestProviderOrDefaultUnknown(t *testing.T) {
	cfg := Default()
	p := cfg.ProviderOrDefault("openai")

	assert.Equal(t, DefaultRequestsPerMinute, p.RequestsPerMinute)
	assert.Equal(t, DefaultBreakerThreshold, p.BreakerThreshold)
	assert.Empty(t, p.APIKeyEnv)
}
