package scm

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mjholt/reviewgate/internal/models"
)

func TestFilterChanges(t *testing.T) {
	changes := []models.FileChange{
		{Path: "internal/api/server.go", Status: models.StatusModified, Additions: 10},
		{Path: "old/legacy.go", Status: models.StatusRemoved},
		{Path: "assets/logo.png", Status: models.StatusAdded},
		{Path: "proto/api.pb.go", Status: models.StatusModified},
		{Path: "go.sum", Status: models.StatusModified},
		{Path: "docs/README.md", Status: models.StatusModified},
		{Path: "vendor/lib/lib.go", Status: models.StatusModified},
		{Path: "huge.go", Status: models.StatusModified, Additions: 9000, Deletions: 2000},
	}

	filtered, warnings := FilterChanges(changes, FilterOptions{
		IgnorePaths:    []string{"vendor/*/*", "*.md"},
		MaxFileChanges: 10,
		MaxFileSizeKB:  500,
	})

	paths := make([]string, 0, len(filtered))
	for _, fc := range filtered {
		paths = append(paths, fc.Path)
	}
	assert.Equal(t, []string{"internal/api/server.go"}, paths)

	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "huge.go")
}

func TestFilterChangesTruncates(t *testing.T) {
	var changes []models.FileChange
	for i := 0; i < 8; i++ {
		changes = append(changes, models.FileChange{
			Path:   fmt.Sprintf("pkg/file%d.go", i),
			Status: models.StatusModified,
		})
	}

	filtered, warnings := FilterChanges(changes, FilterOptions{MaxFileChanges: 5})
	assert.Len(t, filtered, 5)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "first 5 of 8")
}

func TestFilterChangesIgnoreBasename(t *testing.T) {
	changes := []models.FileChange{
		{Path: "deep/nested/dir/notes.md", Status: models.StatusModified},
		{Path: "main.go", Status: models.StatusModified},
	}

	filtered, _ := FilterChanges(changes, FilterOptions{IgnorePaths: []string{"*.md"}})
	require.Len(t, filtered, 1)
	assert.Equal(t, "main.go", filtered[0].Path)
}

func TestFilterChangesNoLimits(t *testing.T) {
	changes := []models.FileChange{
		{Path: "a.go", Status: models.StatusModified, Additions: 100000},
	}

	filtered, warnings := FilterChanges(changes, FilterOptions{})
	assert.Len(t, filtered, 1, "zero limits disable size and count filtering")
	assert.Empty(t, warnings)
}
