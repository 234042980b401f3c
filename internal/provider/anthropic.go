package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const (
	anthropicDefaultBaseURL = "https://api.anthropic.com"
	anthropicVersion        = "2023-06-01"
	defaultHTTPTimeout      = 120 * time.Second
)

// AnthropicTransport calls the Anthropic Messages API.
type AnthropicTransport struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewAnthropicTransport creates an Anthropic transport. baseURL may be empty
// for the production endpoint.
func NewAnthropicTransport(apiKey, baseURL string) *AnthropicTransport {
	if baseURL == "" {
		baseURL = anthropicDefaultBaseURL
	}
	return &AnthropicTransport{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: defaultHTTPTimeout,
		},
	}
}

// Provider returns "anthropic".
func (t *AnthropicTransport) Provider() string { return "anthropic" }

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type anthropicError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete performs a single Messages API call.
func (t *AnthropicTransport) Complete(ctx context.Context, req Request) (*Completion, error) {
	if t.apiKey == "" {
		return nil, &AuthError{Provider: t.Provider(), Err: fmt.Errorf("API key not configured")}
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	// The Messages API takes the system prompt as a top-level field.
	apiReq := anthropicRequest{
		Model:       req.Model,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
	}
	for _, msg := range req.Messages {
		if msg.Role == RoleSystem {
			apiReq.System = msg.Content
			continue
		}
		apiReq.Messages = append(apiReq.Messages, anthropicMessage{Role: msg.Role, Content: msg.Content})
	}

	jsonData, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/v1/messages", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-API-Key", t.apiKey)
	httpReq.Header.Set("Anthropic-Version", anthropicVersion)

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransientError{Provider: t.Provider(), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransientError{Provider: t.Provider(), Err: fmt.Errorf("reading response: %w", err)}
	}

	if err := classifyStatus(t.Provider(), resp, body); err != nil {
		return nil, err
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, &TransientError{Provider: t.Provider(), Err: fmt.Errorf("parsing response: %w", err)}
	}
	if len(apiResp.Content) == 0 {
		return nil, &TransientError{Provider: t.Provider(), Err: fmt.Errorf("empty response from API")}
	}

	model := apiResp.Model
	if model == "" {
		model = req.Model
	}

	return &Completion{
		Content: apiResp.Content[0].Text,
		Model:   model,
		Usage: Usage{
			InputTokens:  apiResp.Usage.InputTokens,
			OutputTokens: apiResp.Usage.OutputTokens,
		},
	}, nil
}

// classifyStatus maps HTTP failure statuses onto the error taxonomy.
func classifyStatus(prov string, resp *http.Response, body []byte) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{Provider: prov, RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &AuthError{Provider: prov, Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(body))}
	case resp.StatusCode >= 500:
		return &TransientError{Provider: prov, Err: fmt.Errorf("server error (%d): %s", resp.StatusCode, string(body))}
	default:
		return &TransientError{Provider: prov, Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))}
	}
}

// parseRetryAfter handles the delay-seconds form of the Retry-After header.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	secs, err := strconv.Atoi(value)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
