package scm

import (
	"context"
	"fmt"

	"github.com/google/go-github/v57/github"

	"github.com/mjholt/reviewgate/internal/models"
	"github.com/mjholt/reviewgate/pkg/logger"
)

// StatusContext is the name reviewgate reports under in commit statuses.
const StatusContext = "reviewgate/gate"

// GitHubGateway implements Gateway over the GitHub REST API.
type GitHubGateway struct {
	client *github.Client
	logger logger.Logger
}

// NewGitHubGateway creates a gateway. token may be empty for public,
// unauthenticated access; baseURL may be empty for github.com.
func NewGitHubGateway(token, baseURL string, log logger.Logger) (*GitHubGateway, error) {
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	client := github.NewClient(nil)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	if baseURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(baseURL, baseURL)
		if err != nil {
			return nil, &Error{Op: "configure", Err: err}
		}
	}

	return &GitHubGateway{client: client, logger: log}, nil
}

// FetchPullRequest resolves the PR identity and head ref.
func (g *GitHubGateway) FetchPullRequest(ctx context.Context, owner, repo string, number int) (models.PRIdentity, error) {
	pr, _, err := g.client.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return models.PRIdentity{}, &Error{Op: "fetch pull request", Err: err}
	}

	return models.PRIdentity{
		Owner:  owner,
		Repo:   repo,
		Number: number,
		Ref:    pr.GetHead().GetSHA(),
	}, nil
}

// FetchDiff lists the changed files of a pull request.
func (g *GitHubGateway) FetchDiff(ctx context.Context, owner, repo string, number int) ([]models.FileChange, error) {
	var changes []models.FileChange
	opts := &github.ListOptions{PerPage: 100}

	for {
		files, resp, err := g.client.PullRequests.ListFiles(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, &Error{Op: "fetch diff", Err: err}
		}

		for _, f := range files {
			changes = append(changes, models.FileChange{
				Path:      f.GetFilename(),
				OldPath:   f.GetPreviousFilename(),
				Status:    f.GetStatus(),
				Patch:     f.GetPatch(),
				Additions: f.GetAdditions(),
				Deletions: f.GetDeletions(),
				// GitHub omits the patch for binary and oversized files.
				Binary: f.GetPatch() == "" && f.GetChanges() > 0,
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	g.logger.Debug("Fetched PR diff", "owner", owner, "repo", repo, "number", number, "files", len(changes))
	return changes, nil
}

// FetchFileContent downloads one file at a ref.
func (g *GitHubGateway) FetchFileContent(ctx context.Context, owner, repo, ref, filePath string) ([]byte, error) {
	content, _, _, err := g.client.Repositories.GetContents(ctx, owner, repo, filePath,
		&github.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		return nil, &Error{Op: "fetch file content", Err: err}
	}
	if content == nil {
		return nil, &Error{Op: "fetch file content", Err: fmt.Errorf("%s is not a file", filePath)}
	}

	text, err := content.GetContent()
	if err != nil {
		return nil, &Error{Op: "fetch file content", Err: err}
	}
	return []byte(text), nil
}

// PostReview publishes the rendered review as a PR review, requesting
// changes when the gate blocked.
func (g *GitHubGateway) PostReview(ctx context.Context, pr models.PRIdentity, review *models.Review, body string) error {
	event := "COMMENT"
	switch review.Verdict.Decision {
	case models.DecisionApproved:
		event = "APPROVE"
	case models.DecisionBlocked:
		event = "REQUEST_CHANGES"
	}

	_, _, err := g.client.PullRequests.CreateReview(ctx, pr.Owner, pr.Repo, pr.Number, &github.PullRequestReviewRequest{
		Body:  github.String(body),
		Event: github.String(event),
	})
	if err != nil {
		return &Error{Op: "post review", Err: err}
	}

	g.logger.Info("Posted review", "pr", pr.String(), "event", event)
	return nil
}

// UpdateStatusCheck sets the commit status for the gate decision.
func (g *GitHubGateway) UpdateStatusCheck(ctx context.Context, pr models.PRIdentity, review *models.Review) error {
	state := "pending"
	switch review.Verdict.Decision {
	case models.DecisionApproved:
		state = "success"
	case models.DecisionBlocked:
		state = "failure"
	}

	summary := review.Summarize()
	description := fmt.Sprintf("%s: %d findings (%d critical, %d high)",
		review.Verdict.Decision, summary.Total, summary.Critical, summary.High)

	_, _, err := g.client.Repositories.CreateStatus(ctx, pr.Owner, pr.Repo, pr.Ref, &github.RepoStatus{
		State:       github.String(state),
		Context:     github.String(StatusContext),
		Description: github.String(description),
	})
	if err != nil {
		return &Error{Op: "update status check", Err: err}
	}
	return nil
}
