// Package config provides configuration loading and validation for reviewgate.
package config

import (
	"fmt"
	"os"
	"path"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mjholt/reviewgate/internal/models"
)

// Config represents the complete configuration for a review run.
type Config struct {
	Standards   StandardsConfig           `yaml:"standards"`
	Limits      LimitsConfig              `yaml:"limits,omitempty"`
	Analyzers   []AnalyzerConfig          `yaml:"analyzers"`
	Providers   map[string]ProviderConfig `yaml:"providers,omitempty"`
	IgnorePaths []string                  `yaml:"ignore_paths,omitempty"`
	PriceTable  string                    `yaml:"price_table,omitempty"`
	GitHub      GitHubConfig              `yaml:"github,omitempty"`
	Log         LogConfig                 `yaml:"log,omitempty"`
}

// StandardsConfig holds the review gate thresholds.
type StandardsConfig struct {
	SeverityThreshold    string `yaml:"severity_threshold"`
	AutoApproveThreshold string `yaml:"auto_approve_threshold,omitempty"`
	MaxCriticalIssues    int    `yaml:"max_critical_issues"`
	MaxHighIssues        int    `yaml:"max_high_issues"`
	OnTotalFailure       string `yaml:"on_total_failure,omitempty"`
}

// LimitsConfig bounds the size and duration of a review.
type LimitsConfig struct {
	MaxFileChanges         int `yaml:"max_file_changes,omitempty"`
	MaxFileSizeKB          int `yaml:"max_file_size_kb,omitempty"`
	MaxFindings            int `yaml:"max_findings,omitempty"`
	PerAnalyzerTimeoutSecs int `yaml:"per_analyzer_timeout_seconds,omitempty"`
	OverallTimeoutSecs     int `yaml:"overall_timeout_seconds,omitempty"`
}

// AnalyzerConfig configures one analyzer instance.
type AnalyzerConfig struct {
	Name        string  `yaml:"name"`
	Enabled     *bool   `yaml:"enabled,omitempty"`
	Provider    string  `yaml:"provider,omitempty"`
	Model       string  `yaml:"model,omitempty"`
	Temperature float64 `yaml:"temperature,omitempty"`
	MaxTokens   int     `yaml:"max_tokens,omitempty"`
}

// IsEnabled reports whether the analyzer should run. Analyzers default to
// enabled when the flag is omitted.
func (a AnalyzerConfig) IsEnabled() bool {
	return a.Enabled == nil || *a.Enabled
}

// ProviderConfig bounds calls to one LLM provider.
type ProviderConfig struct {
	APIKeyEnv         string `yaml:"api_key_env,omitempty"`
	BaseURL           string `yaml:"base_url,omitempty"`
	RequestsPerMinute int    `yaml:"requests_per_minute,omitempty"`
	Burst             int    `yaml:"burst,omitempty"`
	MaxRetries        int    `yaml:"max_retries,omitempty"`
	BaseBackoffMS     int    `yaml:"base_backoff_ms,omitempty"`
	BreakerThreshold  int    `yaml:"breaker_threshold,omitempty"`
}

// GitHubConfig holds SCM gateway settings.
type GitHubConfig struct {
	TokenEnv string `yaml:"token_env,omitempty"`
	BaseURL  string `yaml:"base_url,omitempty"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// Defaults applied when fields are omitted.
const (
	DefaultSeverityThreshold  = models.SeverityMedium
	DefaultMaxFileChanges     = 50
	DefaultMaxFileSizeKB      = 500
	DefaultMaxFindings        = 100
	DefaultPerAnalyzerTimeout = 120 * time.Second
	DefaultOverallTimeout     = 300 * time.Second
	DefaultRequestsPerMinute  = 50
	DefaultBurst              = 5
	DefaultMaxRetries         = 3
	DefaultBaseBackoff        = 500 * time.Millisecond
	DefaultBreakerThreshold   = 5
)

// ValidationError indicates the configuration is unusable. It is the only
// error class that aborts a review before any analyzer runs.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Message)
}

// LoadConfig reads and parses a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path is from trusted source (config file)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{
		Standards: StandardsConfig{
			SeverityThreshold: DefaultSeverityThreshold,
			MaxCriticalIssues: 0,
			MaxHighIssues:     3,
		},
		Analyzers: []AnalyzerConfig{
			{Name: "semantic", Provider: "anthropic", Model: "claude-3-5-sonnet-20240620", Temperature: 0.1},
			{Name: "static"},
			{Name: "security"},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills in omitted fields.
func (c *Config) ApplyDefaults() {
	if c.Standards.SeverityThreshold == "" {
		c.Standards.SeverityThreshold = DefaultSeverityThreshold
	}
	if c.Standards.OnTotalFailure == "" {
		c.Standards.OnTotalFailure = string(models.DecisionNeedsReview)
	}
	if c.Limits.MaxFileChanges == 0 {
		c.Limits.MaxFileChanges = DefaultMaxFileChanges
	}
	if c.Limits.MaxFileSizeKB == 0 {
		c.Limits.MaxFileSizeKB = DefaultMaxFileSizeKB
	}
	if c.Limits.MaxFindings == 0 {
		c.Limits.MaxFindings = DefaultMaxFindings
	}
	if c.Limits.PerAnalyzerTimeoutSecs == 0 {
		c.Limits.PerAnalyzerTimeoutSecs = int(DefaultPerAnalyzerTimeout / time.Second)
	}
	if c.Limits.OverallTimeoutSecs == 0 {
		c.Limits.OverallTimeoutSecs = int(DefaultOverallTimeout / time.Second)
	}

	for name, p := range c.Providers {
		if p.RequestsPerMinute == 0 {
			p.RequestsPerMinute = DefaultRequestsPerMinute
		}
		if p.Burst == 0 {
			p.Burst = DefaultBurst
		}
		if p.MaxRetries == 0 {
			p.MaxRetries = DefaultMaxRetries
		}
		if p.BaseBackoffMS == 0 {
			p.BaseBackoffMS = int(DefaultBaseBackoff / time.Millisecond)
		}
		if p.BreakerThreshold == 0 {
			p.BreakerThreshold = DefaultBreakerThreshold
		}
		c.Providers[name] = p
	}
}

// Validate ensures the configuration is valid.
func (c *Config) Validate() error {
	if !models.IsValidSeverity(c.Standards.SeverityThreshold) {
		return &ValidationError{Field: "standards.severity_threshold",
			Message: fmt.Sprintf("unknown severity %q", c.Standards.SeverityThreshold)}
	}
	if c.Standards.AutoApproveThreshold != "" {
		if !models.IsValidSeverity(c.Standards.AutoApproveThreshold) {
			return &ValidationError{Field: "standards.auto_approve_threshold",
				Message: fmt.Sprintf("unknown severity %q", c.Standards.AutoApproveThreshold)}
		}
		// Auto-approval may only cover findings the severity threshold would
		// not already send to a human.
		if models.SeverityRank(c.Standards.AutoApproveThreshold) >= models.SeverityRank(c.Standards.SeverityThreshold) {
			return &ValidationError{Field: "standards.auto_approve_threshold",
				Message: fmt.Sprintf("must be below severity_threshold %q", c.Standards.SeverityThreshold)}
		}
	}
	if c.Standards.MaxCriticalIssues < 0 {
		return &ValidationError{Field: "standards.max_critical_issues", Message: "must be >= 0"}
	}
	if c.Standards.MaxHighIssues < 0 {
		return &ValidationError{Field: "standards.max_high_issues", Message: "must be >= 0"}
	}
	switch models.Decision(c.Standards.OnTotalFailure) {
	case models.DecisionApproved, models.DecisionNeedsReview:
	default:
		return &ValidationError{Field: "standards.on_total_failure",
			Message: fmt.Sprintf("must be %s or %s", models.DecisionApproved, models.DecisionNeedsReview)}
	}

	if len(c.Analyzers) == 0 {
		return &ValidationError{Field: "analyzers", Message: "at least one analyzer must be configured"}
	}
	for i, a := range c.Analyzers {
		if a.Name == "" {
			return &ValidationError{Field: fmt.Sprintf("analyzers[%d].name", i), Message: "is required"}
		}
		if a.Temperature < 0 || a.Temperature > 1 {
			return &ValidationError{Field: fmt.Sprintf("analyzers[%d].temperature", i),
				Message: "must be in [0, 1]"}
		}
	}

	for _, pattern := range c.IgnorePaths {
		if _, err := path.Match(pattern, "probe"); err != nil {
			return &ValidationError{Field: "ignore_paths",
				Message: fmt.Sprintf("bad glob %q: %v", pattern, err)}
		}
	}

	return nil
}

// AnalyzerByName returns the configuration for a named analyzer.
func (c *Config) AnalyzerByName(name string) (AnalyzerConfig, bool) {
	for _, a := range c.Analyzers {
		if a.Name == name {
			return a, true
		}
	}
	return AnalyzerConfig{}, false
}

// ReviewSettings converts the gate-relevant options into the structure the
// orchestration core consumes.
func (c *Config) ReviewSettings() models.ReviewSettings {
	return models.ReviewSettings{
		SeverityThreshold:    c.Standards.SeverityThreshold,
		AutoApproveThreshold: c.Standards.AutoApproveThreshold,
		MaxCriticalIssues:    c.Standards.MaxCriticalIssues,
		MaxHighIssues:        c.Standards.MaxHighIssues,
		MaxFindings:          c.Limits.MaxFindings,
		OnTotalFailure:       models.Decision(c.Standards.OnTotalFailure),
	}
}

// PerAnalyzerTimeout returns the per-analyzer timeout as a duration.
func (c *Config) PerAnalyzerTimeout() time.Duration {
	return time.Duration(c.Limits.PerAnalyzerTimeoutSecs) * time.Second
}

// OverallTimeout returns the whole-review timeout as a duration.
func (c *Config) OverallTimeout() time.Duration {
	return time.Duration(c.Limits.OverallTimeoutSecs) * time.Second
}

// ProviderOrDefault returns settings for a provider, falling back to defaults
// for providers not mentioned in the file.
func (c *Config) ProviderOrDefault(name string) ProviderConfig {
	if p, ok := c.Providers[name]; ok {
		return p
	}
	return ProviderConfig{
		RequestsPerMinute: DefaultRequestsPerMinute,
		Burst:             DefaultBurst,
		MaxRetries:        DefaultMaxRetries,
		BaseBackoffMS:     int(DefaultBaseBackoff / time.Millisecond),
		BreakerThreshold:  DefaultBreakerThreshold,
	}
}
