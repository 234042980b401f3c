// Package scm provides access to source-code hosts for fetching diffs and
// posting review results.
package scm

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/mjholt/reviewgate/internal/models"
)

// Gateway is the outbound port to a source-code host. The orchestration core
// consumes these signatures only; transport details stay behind them.
type Gateway interface {
	// FetchPullRequest returns the PR identity with its head ref resolved.
	FetchPullRequest(ctx context.Context, owner, repo string, number int) (models.PRIdentity, error)

	// FetchDiff returns the changed files of a pull request.
	FetchDiff(ctx context.Context, owner, repo string, number int) ([]models.FileChange, error)

	// FetchFileContent returns the full contents of one file at a ref.
	FetchFileContent(ctx context.Context, owner, repo, ref, filePath string) ([]byte, error)

	// PostReview publishes the review back to the pull request.
	PostReview(ctx context.Context, pr models.PRIdentity, review *models.Review, body string) error

	// UpdateStatusCheck sets the commit status for the review gate.
	UpdateStatusCheck(ctx context.Context, pr models.PRIdentity, review *models.Review) error
}

// Error wraps failures from the source-code host. It surfaces to the caller
// before a review context can be built.
type Error struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("scm %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Err }

// FilterOptions bounds which changed files enter a review.
type FilterOptions struct {
	IgnorePaths    []string
	MaxFileChanges int
	MaxFileSizeKB  int
}

var binaryExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".ico": true,
	".pdf": true, ".zip": true, ".tar": true, ".gz": true, ".exe": true,
	".dll": true, ".so": true, ".dylib": true, ".wasm": true, ".woff": true,
	".woff2": true, ".ttf": true,
}

var generatedMarkers = []string{
	".generated.", ".min.", "package-lock.json", "yarn.lock",
	"Pipfile.lock", "poetry.lock", "go.sum", "Cargo.lock", ".pb.go",
}

// FilterChanges drops files that should not be reviewed (removed, binary,
// generated, ignored, oversize) and truncates to the file-count limit.
// Warnings describe everything skipped.
func FilterChanges(changes []models.FileChange, opts FilterOptions) ([]models.FileChange, []string) {
	var (
		reviewable []models.FileChange
		warnings   []string
	)

	for _, fc := range changes {
		switch {
		case fc.Status == models.StatusRemoved:
			continue
		case fc.Binary || isBinaryPath(fc.Path):
			continue
		case isGeneratedPath(fc.Path):
			continue
		case matchesIgnore(fc.Path, opts.IgnorePaths):
			continue
		case opts.MaxFileSizeKB > 0 && fc.Additions+fc.Deletions > opts.MaxFileSizeKB*10:
			warnings = append(warnings, fmt.Sprintf("skipped %s: change too large to review", fc.Path))
			continue
		}
		reviewable = append(reviewable, fc)
	}

	if opts.MaxFileChanges > 0 && len(reviewable) > opts.MaxFileChanges {
		warnings = append(warnings, fmt.Sprintf("reviewing first %d of %d changed files", opts.MaxFileChanges, len(reviewable)))
		reviewable = reviewable[:opts.MaxFileChanges]
	}

	return reviewable, warnings
}

func isBinaryPath(filePath string) bool {
	return binaryExtensions[strings.ToLower(path.Ext(filePath))]
}

func isGeneratedPath(filePath string) bool {
	for _, marker := range generatedMarkers {
		if strings.Contains(filePath, marker) {
			return true
		}
	}
	return false
}

func matchesIgnore(filePath string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, _ := path.Match(pattern, filePath); ok {
			return true
		}
		// Also match against the basename so "*.md" covers nested files.
		if ok, _ := path.Match(pattern, path.Base(filePath)); ok {
			return true
		}
	}
	return false
}
