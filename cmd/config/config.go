// Package config implements the config command for validating and
// inspecting reviewgate configuration files.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mjholt/reviewgate/internal/config"
)

var configFile string

const exampleConfig = `# reviewgate configuration
standards:
  severity_threshold: medium
  max_critical_issues: 0
  max_high_issues: 3
  # auto_approve_threshold: info
  # on_total_failure: NEEDS_REVIEW

limits:
  max_file_changes: 50
  max_file_size_kb: 500
  max_findings: 100
  per_analyzer_timeout_seconds: 120
  overall_timeout_seconds: 300

analyzers:
  - name: semantic
    provider: anthropic
    model: claude-3-5-sonnet-20240620
    temperature: 0.1
  - name: static
  - name: security

providers:
  anthropic:
    api_key_env: ANTHROPIC_API_KEY
    requests_per_minute: 50
    burst: 5
    max_retries: 3

ignore_paths:
  - "vendor/*"
  - "*.lock"

github:
  token_env: GITHUB_TOKEN
`

// NewConfigCommand creates the config command and its subcommands.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Validate and inspect configuration",
	}

	validate := &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file",
		RunE:  runValidate,
	}
	validate.Flags().StringVarP(&configFile, "config", "c", "", "Path to config file (required)")
	_ = validate.MarkFlagRequired("config")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration after defaults",
		RunE:  runShow,
	}
	show.Flags().StringVarP(&configFile, "config", "c", "", "Path to config file (defaults when omitted)")

	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write an example configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runInit,
	}

	cmd.AddCommand(validate, show, initCmd)
	return cmd
}

func runValidate(cmd *cobra.Command, args []string) error {
	if _, err := config.LoadConfig(configFile); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✅ %s is valid\n", configFile)
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	var cfg *config.Config
	if configFile == "" {
		cfg = config.Default()
	} else {
		var err error
		cfg, err = config.LoadConfig(configFile)
		if err != nil {
			return err
		}
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), string(out))
	return nil
}

func runInit(cmd *cobra.Command, args []string) error {
	path := "reviewgate.yaml"
	if len(args) == 1 {
		path = args[0]
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if err := os.WriteFile(path, []byte(exampleConfig), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote example configuration to %s\n", path)
	return nil
}

// Run executes the config command with the provided arguments.
func Run(args []string) error {
	cmd := NewConfigCommand()
	cmd.SetArgs(args)
	return cmd.Execute()
}
