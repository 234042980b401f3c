package scm

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"

	"github.com/mjholt/reviewgate/internal/models"
)

// ParseLocalDiff parses a unified diff into file changes, reconstructing a
// per-file patch so analyzers see the same shape as an SCM-provided diff.
func ParseLocalDiff(raw string) ([]models.FileChange, error) {
	parsed, _, err := gitdiff.Parse(strings.NewReader(raw))
	if err != nil {
		return nil, &Error{Op: "parse diff", Err: err}
	}

	var changes []models.FileChange
	for _, f := range parsed {
		fc := models.FileChange{
			Path:    f.NewName,
			OldPath: f.OldName,
			Binary:  f.IsBinary,
		}

		switch {
		case f.IsNew:
			fc.Status = models.StatusAdded
		case f.IsDelete:
			fc.Status = models.StatusRemoved
			fc.Path = f.OldName
		case f.IsRename:
			fc.Status = models.StatusRenamed
		default:
			fc.Status = models.StatusModified
		}
		if fc.Path == "" {
			fc.Path = f.OldName
		}

		var patch strings.Builder
		for _, frag := range f.TextFragments {
			fmt.Fprintf(&patch, "@@ -%d,%d +%d,%d @@\n",
				frag.OldPosition, frag.OldLines, frag.NewPosition, frag.NewLines)
			for _, line := range frag.Lines {
				patch.WriteString(line.Op.String())
				patch.WriteString(strings.TrimRight(line.Line, "\n\r"))
				patch.WriteString("\n")

				switch line.Op {
				case gitdiff.OpAdd:
					fc.Additions++
				case gitdiff.OpDelete:
					fc.Deletions++
				}
			}
		}
		fc.Patch = strings.TrimRight(patch.String(), "\n")

		changes = append(changes, fc)
	}

	return changes, nil
}

// GitDiff runs `git diff` with the given arguments and returns the raw
// unified diff.
func GitDiff(repoDir string, args ...string) (string, error) {
	cmdArgs := append([]string{"diff"}, args...)
	cmd := exec.Command("git", cmdArgs...) //nolint:gosec // Args come from the CLI invocation.
	cmd.Dir = repoDir

	out, err := cmd.Output()
	if err != nil {
		return "", &Error{Op: "git diff", Err: err}
	}
	return string(out), nil
}

// LocalContentFetcher reads full file contents from the working tree,
// refusing paths that escape the repository root.
func LocalContentFetcher(root string) models.ContentFetcher {
	return func(path string) ([]byte, error) {
		full := filepath.Join(root, filepath.FromSlash(path))
		rel, err := filepath.Rel(root, full)
		if err != nil || strings.HasPrefix(rel, "..") {
			return nil, fmt.Errorf("path %q escapes repository root", path)
		}
		return os.ReadFile(full) //nolint:gosec // Constrained to the repo root above.
	}
}
