package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateFindingID(t *testing.T) {
	id := GenerateFindingID("semantic", "Nil dereference", "internal/api/server.go", 42)
	assert.Len(t, id, 16, "ID should be 16 hex characters")

	// Deterministic across calls.
	assert.Equal(t, id, GenerateFindingID("semantic", "Nil dereference", "internal/api/server.go", 42))

	// Any input change produces a different ID.
	assert.NotEqual(t, id, GenerateFindingID("static", "Nil dereference", "internal/api/server.go", 42))
	assert.NotEqual(t, id, GenerateFindingID("semantic", "Nil dereference", "internal/api/server.go", 43))
}

func TestNewFinding(t *testing.T) {
	f := NewFinding("security", SeverityCritical, "AWS access key ID in source", "config/prod.yaml", 7)

	assert.NotEmpty(t, f.ID)
	assert.Equal(t, "security", f.SourceAnalyzer)
	assert.Equal(t, SeverityCritical, f.Severity)
	assert.Equal(t, "config/prod.yaml", f.Location.File)
	assert.Equal(t, 7, f.Location.StartLine)
	assert.InDelta(t, 1.0, f.Confidence, 0.001)
	require.NoError(t, f.IsValid())
}

func TestFindingIsValid(t *testing.T) {
	valid := Finding{
		SourceAnalyzer: "static",
		Severity:       SeverityLow,
		Title:          "Overlong line",
		Location:       Location{File: "main.go", StartLine: 10},
		Confidence:     0.7,
	}

	tests := []struct {
		name    string
		mutate  func(f *Finding)
		wantErr string
	}{
		{name: "valid", mutate: func(f *Finding) {}, wantErr: ""},
		{name: "missing analyzer", mutate: func(f *Finding) { f.SourceAnalyzer = "" }, wantErr: "source analyzer"},
		{name: "bad severity", mutate: func(f *Finding) { f.Severity = "sev1" }, wantErr: "invalid severity"},
		{name: "missing title", mutate: func(f *Finding) { f.Title = "" }, wantErr: "title"},
		{name: "missing file", mutate: func(f *Finding) { f.Location.File = "" }, wantErr: "location file"},
		{name: "confidence out of range", mutate: func(f *Finding) { f.Confidence = 1.5 }, wantErr: "confidence"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := valid
			tt.mutate(&f)
			err := f.IsValid()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLocationString(t *testing.T) {
	assert.Equal(t, "main.go:10", Location{File: "main.go", StartLine: 10}.String())
	assert.Equal(t, "main.go:10-14", Location{File: "main.go", StartLine: 10, EndLine: 14}.String())
	assert.Equal(t, "main.go:10", Location{File: "main.go", StartLine: 10, EndLine: 10}.String())
}

func TestDedupKey(t *testing.T) {
	a := Finding{
		SourceAnalyzer: "semantic",
		Title:          "SQL injection",
		Message:        "Query is built  by string\tconcatenation.",
		Location:       Location{File: "db.py", StartLine: 12},
	}
	b := Finding{
		SourceAnalyzer: "security",
		Title:          "SQL injection",
		Message:        "query is built by string concatenation.",
		Location:       Location{File: "db.py", StartLine: 12},
	}

	// Same title, location and normalized message collapse regardless of
	// which analyzer reported them.
	assert.Equal(t, a.DedupKey(), b.DedupKey())

	c := b
	c.Location.StartLine = 13
	assert.NotEqual(t, a.DedupKey(), c.DedupKey())

	d := b
	d.Message = "a different explanation"
	assert.NotEqual(t, a.DedupKey(), d.DedupKey())
}

func TestNormalizeMessage(t *testing.T) {
	assert.Equal(t, "hello world", NormalizeMessage("  Hello\t\tWORLD \n"))
	assert.Equal(t, "", NormalizeMessage("   "))
}
