// Package provider implements rate-limited, cost-metered access to external
// language-model providers.
package provider

import (
	"context"
	"fmt"

	"github.com/mjholt/reviewgate/internal/models"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a model conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request describes a single completion call.
type Request struct {
	Messages    []Message
	Model       string
	Temperature float64
	MaxTokens   int
}

// Usage reports token consumption for one call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Completion is the result of a successful model call.
type Completion struct {
	Content string
	Model   string
	Usage   Usage
	Cost    models.CostRecord
}

// Transport performs one raw provider call with no retry or limiting.
// Implementations map provider failures onto the package error taxonomy.
type Transport interface {
	// Provider returns the provider name, e.g. "anthropic".
	Provider() string

	// Complete performs a single completion call.
	Complete(ctx context.Context, req Request) (*Completion, error)
}

// Client is the interface the semantic analyzer consumes. The concrete
// implementation layers rate limiting, retry and circuit breaking over a
// Transport.
type Client interface {
	Provider() string
	Complete(ctx context.Context, req Request) (*Completion, error)
}

// NewTransport returns a transport for a named provider.
func NewTransport(name, apiKey, baseURL string) (Transport, error) {
	switch name {
	case "anthropic":
		return NewAnthropicTransport(apiKey, baseURL), nil
	case "openai":
		return NewOpenAITransport(apiKey, baseURL), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
}
