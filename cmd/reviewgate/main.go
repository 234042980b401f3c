// Package main is the entry point for the reviewgate CLI. Reviewgate runs
// configurable analyzers (LLM-backed and heuristic) against a pull request
// or local diff, merges their findings, and applies a deterministic
// approve/block gate suitable for CI.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	benchmarkcmd "github.com/mjholt/reviewgate/cmd/benchmark"
	checkcmd "github.com/mjholt/reviewgate/cmd/check"
	configcmd "github.com/mjholt/reviewgate/cmd/config"
	reviewcmd "github.com/mjholt/reviewgate/cmd/review"
	servecmd "github.com/mjholt/reviewgate/cmd/serve"
	"github.com/mjholt/reviewgate/pkg/logger"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	var (
		debug     bool
		logFormat string
	)

	root := &cobra.Command{
		Use:           "reviewgate",
		Short:         "Automated code review gate",
		Version:       fmt.Sprintf("%s (built %s)", version, buildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.SetupLogger(debug, logFormat)
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text or json)")

	root.AddCommand(
		reviewcmd.NewReviewCommand(),
		checkcmd.NewCheckCommand(),
		configcmd.NewConfigCommand(),
		benchmarkcmd.NewBenchmarkCommand(),
		servecmd.NewServeCommand(),
	)

	if err := root.Execute(); err != nil {
		var exitErr *reviewcmd.ExitError
		if errors.As(err, &exitErr) {
			if exitErr.Err != nil {
				logger.GetGlobalLogger().Error("command failed", "error", exitErr.Err)
			}
			os.Exit(exitErr.Code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
}
