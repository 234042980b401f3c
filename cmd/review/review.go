// Package review implements the review command, which runs the full
// analyzer pipeline against a pull request or a local diff and renders
// the outcome.
package review

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mjholt/reviewgate/internal/config"
	"github.com/mjholt/reviewgate/internal/models"
	"github.com/mjholt/reviewgate/internal/report"
	engine "github.com/mjholt/reviewgate/internal/review"
	"github.com/mjholt/reviewgate/internal/scm"
	"github.com/mjholt/reviewgate/pkg/logger"
)

// ExitError carries a process exit code through cobra's error return.
// A nil Err means the run itself succeeded and only the code matters.
type ExitError struct {
	Err  error
	Code int
}

// Error implements the error interface.
func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit code %d", e.Code)
}

// Unwrap returns the wrapped error.
func (e *ExitError) Unwrap() error { return e.Err }

// Operational wraps err so the process exits with code 2.
func Operational(err error) error {
	if err == nil {
		return nil
	}
	return &ExitError{Err: err, Code: 2}
}

var (
	configFile  string
	minSeverity string
	format      string
	local       bool
	baseRef     string
	post        bool
	statusCheck bool
)

// NewReviewCommand creates the review command.
func NewReviewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review <owner/repo#number | pull request URL | path>",
		Short: "Review a pull request or local diff",
		Long: `Run every configured analyzer against a change set, merge their
findings, and print the gate decision.

The target is a GitHub pull request reference (owner/repo#123 or the pull
request URL), or with --local a path to a git repository whose working tree
is diffed against a base ref.

Exit codes: 0 when the review is approved or needs human review, 1 when it
is blocked, 2 on operational failure.`,
		Example: `  # Review a pull request
  reviewgate review acme/widgets#42

  # Review the local working tree against main
  reviewgate review --local . --base main

  # Post the review back to GitHub
  reviewgate review acme/widgets#42 --post

  # Show only high and critical findings (the decision still sees all)
  reviewgate review acme/widgets#42 --min-severity high`,
		Args: cobra.ExactArgs(1),
		RunE: runReview,
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to config file")
	cmd.Flags().StringVar(&minSeverity, "min-severity", "", "Lowest severity to display (does not affect the decision)")
	cmd.Flags().StringVarP(&format, "format", "f", "terminal", "Output format (terminal, markdown, json)")
	cmd.Flags().BoolVar(&local, "local", false, "Treat the target as a local git repository path")
	cmd.Flags().StringVar(&baseRef, "base", "HEAD", "Base ref for --local diffs")
	cmd.Flags().BoolVar(&post, "post", false, "Post the review to the pull request")
	cmd.Flags().BoolVar(&statusCheck, "status", false, "Update the pull request status check")

	return cmd
}

func runReview(cmd *cobra.Command, args []string) error {
	log := logger.GetGlobalLogger()

	cfg, err := LoadConfigOrDefault(configFile)
	if err != nil {
		return Operational(err)
	}

	if minSeverity != "" && !models.IsValidSeverity(minSeverity) {
		return Operational(fmt.Errorf("unknown severity %q", minSeverity))
	}
	switch format {
	case "terminal", "markdown", "json":
	default:
		return Operational(fmt.Errorf("unknown format %q", format))
	}
	if (post || statusCheck) && local {
		return Operational(fmt.Errorf("--post and --status require a pull request target"))
	}

	ctx := cmd.Context()
	target := Target{Raw: args[0], Local: local, Base: baseRef}
	pr, changes, fetch, gateway, err := Gather(ctx, cfg, log, target)
	if err != nil {
		return Operational(err)
	}

	log.Info("starting review", "target", pr.String(), "files", len(changes))

	pipeline := engine.NewPipeline(cfg, log)
	rev, err := pipeline.Review(ctx, pr, changes, fetch)
	if err != nil {
		return Operational(err)
	}

	if err := render(cmd, rev); err != nil {
		return Operational(err)
	}

	if post {
		body := report.Markdown(rev, minSeverity)
		if err := gateway.PostReview(ctx, pr, rev, body); err != nil {
			return Operational(err)
		}
		log.Info("posted review", "target", pr.String())
	}
	if statusCheck {
		if err := gateway.UpdateStatusCheck(ctx, pr, rev); err != nil {
			return Operational(err)
		}
		log.Info("updated status check", "target", pr.String())
	}

	if rev.Verdict.Decision == models.DecisionBlocked {
		return &ExitError{Code: 1}
	}
	return nil
}

func render(cmd *cobra.Command, rev *models.Review) error {
	switch format {
	case "json":
		out, err := report.JSON(rev)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
	case "markdown":
		fmt.Fprint(cmd.OutOrStdout(), report.Markdown(rev, minSeverity))
	default:
		fmt.Fprint(cmd.OutOrStdout(), report.Terminal(rev, minSeverity))
	}
	return nil
}

// LoadConfigOrDefault loads the named config file, or built-in defaults
// when no file is given.
func LoadConfigOrDefault(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.LoadConfig(path)
}

// Target describes what a command should review.
type Target struct {
	Raw   string
	Base  string
	Local bool
}

// Gather resolves a target into the PR identity, its changed files, and a
// content fetcher. For pull request targets it also returns the gateway so
// callers can post results back.
func Gather(ctx context.Context, cfg *config.Config, log logger.Logger, t Target) (models.PRIdentity, []models.FileChange, models.ContentFetcher, scm.Gateway, error) {
	if t.Local {
		return gatherLocal(t)
	}

	owner, repo, number, err := ParsePRRef(t.Raw)
	if err != nil {
		return models.PRIdentity{}, nil, nil, nil, err
	}

	tokenEnv := cfg.GitHub.TokenEnv
	if tokenEnv == "" {
		tokenEnv = "GITHUB_TOKEN"
	}
	gateway, err := scm.NewGitHubGateway(os.Getenv(tokenEnv), cfg.GitHub.BaseURL, log)
	if err != nil {
		return models.PRIdentity{}, nil, nil, nil, err
	}

	pr, err := gateway.FetchPullRequest(ctx, owner, repo, number)
	if err != nil {
		return models.PRIdentity{}, nil, nil, nil, err
	}
	changes, err := gateway.FetchDiff(ctx, owner, repo, number)
	if err != nil {
		return models.PRIdentity{}, nil, nil, nil, err
	}

	fetch := func(path string) ([]byte, error) {
		return gateway.FetchFileContent(ctx, owner, repo, pr.Ref, path)
	}
	return pr, changes, fetch, gateway, nil
}

func gatherLocal(t Target) (models.PRIdentity, []models.FileChange, models.ContentFetcher, scm.Gateway, error) {
	dir := t.Raw
	if dir == "" {
		dir = "."
	}
	raw, err := scm.GitDiff(dir, t.Base)
	if err != nil {
		return models.PRIdentity{}, nil, nil, nil, err
	}
	changes, err := scm.ParseLocalDiff(raw)
	if err != nil {
		return models.PRIdentity{}, nil, nil, nil, err
	}
	pr := models.PRIdentity{Local: true, Repo: dir, Ref: t.Base}
	return pr, changes, scm.LocalContentFetcher(dir), nil, nil
}

// ParsePRRef parses owner/repo#number references and GitHub pull request
// URLs.
func ParsePRRef(s string) (owner, repo string, number int, err error) {
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return parsePRURL(s)
	}

	slash := strings.Index(s, "/")
	hash := strings.LastIndex(s, "#")
	if slash <= 0 || hash <= slash+1 || hash == len(s)-1 {
		return "", "", 0, fmt.Errorf("bad pull request reference %q, want owner/repo#number", s)
	}
	number, err = strconv.Atoi(s[hash+1:])
	if err != nil || number <= 0 {
		return "", "", 0, fmt.Errorf("bad pull request number in %q", s)
	}
	return s[:slash], s[slash+1 : hash], number, nil
}

func parsePRURL(s string) (owner, repo string, number int, err error) {
	u, err := url.Parse(s)
	if err != nil {
		return "", "", 0, fmt.Errorf("bad pull request URL %q: %w", s, err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	// owner/repo/pull/number
	if len(parts) != 4 || parts[2] != "pull" {
		return "", "", 0, fmt.Errorf("bad pull request URL %q", s)
	}
	number, err = strconv.Atoi(parts[3])
	if err != nil || number <= 0 {
		return "", "", 0, fmt.Errorf("bad pull request number in %q", s)
	}
	return parts[0], parts[1], number, nil
}

// Run executes the review command with the provided arguments.
func Run(args []string) error {
	cmd := NewReviewCommand()
	cmd.SetArgs(args)
	return cmd.Execute()
}
