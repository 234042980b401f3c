// Package check implements the check command, a CI-oriented gate that
// exits nonzero unless the review is approved.
package check

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mjholt/reviewgate/cmd/review"
	"github.com/mjholt/reviewgate/internal/models"
	engine "github.com/mjholt/reviewgate/internal/review"
	"github.com/mjholt/reviewgate/pkg/logger"
)

var (
	configFile       string
	local            bool
	baseRef          string
	allowNeedsReview bool
	statusCheck      bool
)

// NewCheckCommand creates the check command.
func NewCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <owner/repo#number | pull request URL | path>",
		Short: "Gate a change set for CI",
		Long: `Run the review pipeline and reduce it to a pass/fail signal for CI.

Unlike review, a NEEDS_REVIEW decision fails the check; a human has to look
before the change merges. Pass --allow-needs-review to treat it as passing.

Exit codes: 0 when the gate passes, 1 when it does not, 2 on operational
failure.`,
		Example: `  # Gate a pull request in CI
  reviewgate check acme/widgets#42

  # Gate a local diff, letting NEEDS_REVIEW through
  reviewgate check --local . --base origin/main --allow-needs-review`,
		Args: cobra.ExactArgs(1),
		RunE: runCheck,
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to config file")
	cmd.Flags().BoolVar(&local, "local", false, "Treat the target as a local git repository path")
	cmd.Flags().StringVar(&baseRef, "base", "HEAD", "Base ref for --local diffs")
	cmd.Flags().BoolVar(&allowNeedsReview, "allow-needs-review", false, "Pass when the decision is NEEDS_REVIEW")
	cmd.Flags().BoolVar(&statusCheck, "status", false, "Update the pull request status check")

	return cmd
}

func runCheck(cmd *cobra.Command, args []string) error {
	log := logger.GetGlobalLogger()

	cfg, err := review.LoadConfigOrDefault(configFile)
	if err != nil {
		return review.Operational(err)
	}
	if statusCheck && local {
		return review.Operational(fmt.Errorf("--status requires a pull request target"))
	}

	ctx := cmd.Context()
	target := review.Target{Raw: args[0], Local: local, Base: baseRef}
	pr, changes, fetch, gateway, err := review.Gather(ctx, cfg, log, target)
	if err != nil {
		return review.Operational(err)
	}

	pipeline := engine.NewPipeline(cfg, log)
	rev, err := pipeline.Review(ctx, pr, changes, fetch)
	if err != nil {
		return review.Operational(err)
	}

	summary := rev.Summarize()
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d findings (%d critical, %d high)\n",
		rev.Verdict.Decision, summary.Total, summary.Critical, summary.High)
	for _, rule := range rev.Verdict.Rules {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", rule)
	}

	if statusCheck {
		if err := gateway.UpdateStatusCheck(ctx, pr, rev); err != nil {
			return review.Operational(err)
		}
	}

	switch rev.Verdict.Decision {
	case models.DecisionApproved:
		return nil
	case models.DecisionNeedsReview:
		if allowNeedsReview {
			return nil
		}
		return &review.ExitError{Code: 1}
	default:
		return &review.ExitError{Code: 1}
	}
}

// Run executes the check command with the provided arguments.
func Run(args []string) error {
	cmd := NewCheckCommand()
	cmd.SetArgs(args)
	return cmd.Execute()
}
