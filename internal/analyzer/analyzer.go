// Package analyzer defines the pluggable analysis units that inspect a
// review context and emit findings.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/mjholt/reviewgate/internal/models"
)

// Common errors returned by analyzers and the registry.
var (
	ErrAnalyzerExists  = errors.New("analyzer already registered")
	ErrUnknownAnalyzer = errors.New("unknown analyzer")
)

// Analyzer is the core interface all analysis units implement.
// Implementations must be stateless across invocations so the orchestrator
// can run many concurrently.
type Analyzer interface {
	// Name returns the unique identifier for this analyzer.
	Name() string

	// Capabilities declares what this analyzer can handle. The orchestrator
	// evaluates applicability from this descriptor without invoking
	// analyzer-specific code.
	Capabilities() Capabilities

	// Analyze inspects the context and returns a result. Context
	// cancellation must stop the analysis promptly.
	Analyze(ctx context.Context, rctx *models.AnalysisContext) (*models.AnalyzerResult, error)
}

// Capabilities is the declarative applicability descriptor for an analyzer.
type Capabilities struct {
	// Extensions restricts the analyzer to files with these extensions
	// (with leading dot). Empty means any file.
	Extensions []string

	// NeedsProvider marks analyzers that call an external model provider.
	NeedsProvider bool

	// NeedsFileContent marks analyzers that require full file bodies rather
	// than just the diff.
	NeedsFileContent bool
}

// Supports reports whether an analyzer with the given capabilities applies
// to the review context: at least one non-removed changed file must match
// its extension set.
func Supports(caps Capabilities, rctx *models.AnalysisContext) bool {
	for _, fc := range rctx.ChangedFiles {
		if fc.Status == models.StatusRemoved || fc.Binary {
			continue
		}
		if matchesExtension(caps.Extensions, fc.Path) {
			return true
		}
	}
	return false
}

func matchesExtension(extensions []string, filePath string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := strings.ToLower(path.Ext(filePath))
	for _, want := range extensions {
		if ext == want {
			return true
		}
	}
	return false
}

// ErrorType classifies analyzer failures.
type ErrorType string

// Analyzer error types.
const (
	ErrorTypeProvider ErrorType = "provider"
	ErrorTypeParse    ErrorType = "parse"
	ErrorTypeTimeout  ErrorType = "timeout"
	ErrorTypeInternal ErrorType = "internal"
)

// Error represents a structured failure from one analyzer. It is always
// contained in that analyzer's result and never aborts the review.
type Error struct {
	Analyzer string
	Type     ErrorType
	Err      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s analyzer %s error: %v", e.Analyzer, e.Type, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Err }

// NewError creates a structured analyzer error.
func NewError(analyzer string, errType ErrorType, err error) *Error {
	return &Error{Analyzer: analyzer, Type: errType, Err: err}
}

// Registry is the static analyzer registry. Implementations are registered
// explicitly by the caller; there is no runtime discovery.
type Registry struct {
	analyzers []Analyzer
	byName    map[string]Analyzer
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Analyzer)}
}

// Register adds an analyzer. Registration order is preserved.
func (r *Registry) Register(a Analyzer) error {
	if a == nil {
		return fmt.Errorf("analyzer is nil")
	}
	name := a.Name()
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("%w: %s", ErrAnalyzerExists, name)
	}
	r.byName[name] = a
	r.analyzers = append(r.analyzers, a)
	return nil
}

// Get returns an analyzer by name.
func (r *Registry) Get(name string) (Analyzer, error) {
	a, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAnalyzer, name)
	}
	return a, nil
}

// All returns the registered analyzers in registration order.
func (r *Registry) All() []Analyzer {
	out := make([]Analyzer, len(r.analyzers))
	copy(out, r.analyzers)
	return out
}
