package provider

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mjholt/reviewgate/internal/models"
)

// ModelPrice holds per-token prices in USD for one model.
type ModelPrice struct {
	InputPerMTok  float64 `yaml:"input_per_mtok"`
	OutputPerMTok float64 `yaml:"output_per_mtok"`
}

// PriceTable maps provider then model to prices. The table is configuration
// data so new models never require a code change.
type PriceTable map[string]map[string]ModelPrice

// DefaultPriceTable returns built-in prices for common models.
func DefaultPriceTable() PriceTable {
	return PriceTable{
		"anthropic": {
			"claude-3-5-sonnet-20240620": {InputPerMTok: 3.0, OutputPerMTok: 15.0},
			"claude-3-opus-20240229":     {InputPerMTok: 15.0, OutputPerMTok: 75.0},
			"claude-3-sonnet-20240229":   {InputPerMTok: 3.0, OutputPerMTok: 15.0},
			"claude-3-haiku-20240307":    {InputPerMTok: 0.25, OutputPerMTok: 1.25},
		},
		"openai": {
			"gpt-4o":        {InputPerMTok: 2.5, OutputPerMTok: 10.0},
			"gpt-4o-mini":   {InputPerMTok: 0.15, OutputPerMTok: 0.6},
			"gpt-4-turbo":   {InputPerMTok: 10.0, OutputPerMTok: 30.0},
			"gpt-3.5-turbo": {InputPerMTok: 0.5, OutputPerMTok: 1.5},
		},
	}
}

// LoadPriceTable reads a price table from a YAML file and merges it over the
// defaults, so a partial file only overrides the models it names.
func LoadPriceTable(path string) (PriceTable, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path is from trusted source (config file)
	if err != nil {
		return nil, fmt.Errorf("reading price table: %w", err)
	}

	var loaded PriceTable
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("parsing price table YAML: %w", err)
	}

	table := DefaultPriceTable()
	for prov, providerModels := range loaded {
		if table[prov] == nil {
			table[prov] = make(map[string]ModelPrice)
		}
		for model, price := range providerModels {
			table[prov][model] = price
		}
	}
	return table, nil
}

// Cost computes the USD cost of one call. Unknown models cost zero; callers
// log the gap rather than fail a review over accounting.
func (t PriceTable) Cost(prov, model string, usage Usage) models.CostRecord {
	record := models.CostRecord{
		Provider:     prov,
		Model:        model,
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
	}

	price, ok := t[prov][model]
	if !ok {
		return record
	}

	record.AmountUSD = float64(usage.InputTokens)/1_000_000*price.InputPerMTok +
		float64(usage.OutputTokens)/1_000_000*price.OutputPerMTok
	return record
}
