package models

import (
	"path"
	"strings"
	"sync"
)

// File change statuses as reported by the SCM.
const (
	StatusAdded    = "added"
	StatusModified = "modified"
	StatusRemoved  = "removed"
	StatusRenamed  = "renamed"
)

// FileChange is one changed file within the diff under review.
type FileChange struct {
	Path      string `json:"path"`
	OldPath   string `json:"old_path,omitempty"`
	Status    string `json:"status"`
	Patch     string `json:"patch,omitempty"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Binary    bool   `json:"binary,omitempty"`
}

// Language guesses the programming language from the file extension.
func (fc FileChange) Language() string {
	switch strings.ToLower(path.Ext(fc.Path)) {
	case ".go":
		return "go"
	case ".py":
		return "python"
	case ".js", ".jsx":
		return "javascript"
	case ".ts", ".tsx":
		return "typescript"
	case ".rs":
		return "rust"
	case ".java":
		return "java"
	case ".kt":
		return "kotlin"
	case ".rb":
		return "ruby"
	case ".c", ".h":
		return "c"
	case ".cpp", ".cc", ".hpp":
		return "cpp"
	case ".cs":
		return "csharp"
	case ".php":
		return "php"
	case ".swift":
		return "swift"
	case ".scala":
		return "scala"
	case ".sh", ".bash":
		return "shell"
	default:
		return "unknown"
	}
}

// ContentFetcher lazily loads the full contents of a changed file.
type ContentFetcher func(path string) ([]byte, error)

// AnalysisContext is the read-only input shared by all analyzers during one
// review. It must never be mutated once the review starts; full file
// contents are fetched lazily and memoized behind a mutex so concurrent
// analyzers see one fetch per path.
type AnalysisContext struct {
	PR           PRIdentity
	ChangedFiles []FileChange
	Settings     ReviewSettings

	fetch    ContentFetcher
	mu       sync.Mutex
	contents map[string][]byte
}

// ReviewSettings carries the already-validated review configuration the
// analyzers and the decision engine consume.
type ReviewSettings struct {
	SeverityThreshold    string
	AutoApproveThreshold string
	MaxCriticalIssues    int
	MaxHighIssues        int
	MaxFindings          int
	OnTotalFailure       Decision
}

// NewAnalysisContext builds a context over the given changes. fetch may be
// nil when full file contents are unavailable (pure diff review).
func NewAnalysisContext(pr PRIdentity, changes []FileChange, settings ReviewSettings, fetch ContentFetcher) *AnalysisContext {
	return &AnalysisContext{
		PR:           pr,
		ChangedFiles: changes,
		Settings:     settings,
		fetch:        fetch,
		contents:     make(map[string][]byte),
	}
}

// FileContent returns the full contents of a changed file, fetching and
// memoizing on first use. Returns nil with no error when no fetcher is
// configured.
func (c *AnalysisContext) FileContent(path string) ([]byte, error) {
	if c.fetch == nil {
		return nil, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if content, ok := c.contents[path]; ok {
		return content, nil
	}

	content, err := c.fetch(path)
	if err != nil {
		return nil, err
	}
	c.contents[path] = content
	return content, nil
}
