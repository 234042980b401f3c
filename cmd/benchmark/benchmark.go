// Package benchmark implements the benchmark command, which scores the
// reviewer against a labeled corpus of pull request cases.
package benchmark

import (
	"fmt"

	"github.com/spf13/cobra"

	reviewcmd "github.com/mjholt/reviewgate/cmd/review"
	"github.com/mjholt/reviewgate/internal/benchmark"
)

var (
	format string
	gate   bool
)

// NewBenchmarkCommand creates the benchmark command.
func NewBenchmarkCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "benchmark <dataset.json>",
		Short: "Score review quality against a labeled dataset",
		Long: `Evaluate predicted findings against ground-truth labels for a corpus of
pull request cases: per-case precision, recall and F1, recall over severe
findings, verdict accuracy, and scorecards by language and repository family.

With --gate the run is checked against release thresholds and the command
exits with code 1 when any threshold is missed.`,
		Example: `  # Print the scorecard
  reviewgate benchmark corpus.json

  # Enforce the release gate in CI
  reviewgate benchmark corpus.json --gate

  # Machine-readable output
  reviewgate benchmark corpus.json --format json`,
		Args: cobra.ExactArgs(1),
		RunE: runBenchmark,
	}

	cmd.Flags().StringVarP(&format, "format", "f", "markdown", "Output format (markdown, json)")
	cmd.Flags().BoolVar(&gate, "gate", false, "Fail when release gate thresholds are missed")

	return cmd
}

func runBenchmark(cmd *cobra.Command, args []string) error {
	switch format {
	case "markdown", "json":
	default:
		return reviewcmd.Operational(fmt.Errorf("unknown format %q", format))
	}

	ds, err := benchmark.LoadDataset(args[0])
	if err != nil {
		return reviewcmd.Operational(err)
	}

	var thresholds *benchmark.GateThresholds
	if gate {
		t := benchmark.DefaultGateThresholds()
		thresholds = &t
	}
	report := benchmark.BuildReport(ds, thresholds)

	out := cmd.OutOrStdout()
	switch format {
	case "json":
		rendered, err := report.JSON()
		if err != nil {
			return reviewcmd.Operational(err)
		}
		fmt.Fprintln(out, rendered)
	default:
		fmt.Fprint(out, report.Markdown())
	}

	if report.Gate != nil && !report.Gate.Passed {
		return &reviewcmd.ExitError{Code: 1}
	}
	return nil
}
