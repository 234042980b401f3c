package provider

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceTableCost(t *testing.T) {
	table := DefaultPriceTable()

	cost := table.Cost("anthropic", "claude-3-5-sonnet-20240620", Usage{InputTokens: 1_000_000, OutputTokens: 1_000_000})
	assert.Equal(t, "anthropic", cost.Provider)
	assert.Equal(t, 1_000_000, cost.InputTokens)
	assert.InDelta(t, 18.0, cost.AmountUSD, 1e-9)

	cost = table.Cost("anthropic", "claude-3-5-sonnet-20240620", Usage{InputTokens: 2000, OutputTokens: 500})
	assert.InDelta(t, 2000.0/1e6*3.0+500.0/1e6*15.0, cost.AmountUSD, 1e-12)
}

func TestPriceTableUnknownModel(t *testing.T) {
	table := DefaultPriceTable()

	cost := table.Cost("anthropic", "claude-next", Usage{InputTokens: 1000, OutputTokens: 1000})
	assert.Zero(t, cost.AmountUSD)
	assert.Equal(t, 1000, cost.InputTokens, "tokens are still recorded without a price entry")

	cost = table.Cost("unknown-provider", "whatever", Usage{InputTokens: 1})
	assert.Zero(t, cost.AmountUSD)
}

func TestLoadPriceTableMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
anthropic:
  claude-3-5-sonnet-20240620:
    input_per_mtok: 1.0
    output_per_mtok: 5.0
  claude-custom:
    input_per_mtok: 2.0
    output_per_mtok: 4.0
`), 0o644))

	table, err := LoadPriceTable(path)
	require.NoError(t, err)

	// Overridden entry.
	cost := table.Cost("anthropic", "claude-3-5-sonnet-20240620", Usage{InputTokens: 1_000_000})
	assert.InDelta(t, 1.0, cost.AmountUSD, 1e-9)

	// New entry.
	cost = table.Cost("anthropic", "claude-custom", Usage{OutputTokens: 1_000_000})
	assert.InDelta(t, 4.0, cost.AmountUSD, 1e-9)

	// Untouched defaults survive the merge.
	cost = table.Cost("openai", "gpt-4o", Usage{InputTokens: 1_000_000})
	assert.InDelta(t, 2.5, cost.AmountUSD, 1e-9)
}

func TestLoadPriceTableMissingFile(t *testing.T) {
	_, err := LoadPriceTable("/nonexistent/prices.yaml")
	assert.Error(t, err)
}
