package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const openaiDefaultBaseURL = "https://api.openai.com"

// OpenAITransport calls the OpenAI Chat Completions API.
type OpenAITransport struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewOpenAITransport creates an OpenAI transport. baseURL may be empty for
// the production endpoint.
func NewOpenAITransport(apiKey, baseURL string) *OpenAITransport {
	if baseURL == "" {
		baseURL = openaiDefaultBaseURL
	}
	return &OpenAITransport{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: defaultHTTPTimeout,
		},
	}
}

// Provider returns "openai".
func (t *OpenAITransport) Provider() string { return "openai" }

type openaiRequest struct {
	Model       string          `json:"model"`
	Messages    []openaiMessage `json:"messages"`
	Temperature float64         `json:"temperature,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Complete performs a single Chat Completions call.
func (t *OpenAITransport) Complete(ctx context.Context, req Request) (*Completion, error) {
	if t.apiKey == "" {
		return nil, &AuthError{Provider: t.Provider(), Err: fmt.Errorf("API key not configured")}
	}

	apiReq := openaiRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	for _, msg := range req.Messages {
		apiReq.Messages = append(apiReq.Messages, openaiMessage{Role: msg.Role, Content: msg.Content})
	}

	jsonData, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/v1/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+t.apiKey)

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

	var apiResp openaiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, &TransientError{Provider: t.Provider(), Err: fmt.Errorf("parsing response: %w", err)}
	}
	if len(apiResp.Choices) == 0 {
		return nil, &TransientError{Provider: t.Provider(), Err: fmt.Errorf("empty response from API")}
	}

	model := apiResp.Model
	if model == "" {
		model = req.Model
	}

	return &Completion{
		Content: apiResp.Choices[0].Message.Content,
		Model:   model,
		Usage: Usage{
			InputTokens:  apiResp.Usage.PromptTokens,
			OutputTokens: apiResp.Usage.CompletionTokens,
		},
	}, nil
}
