package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnthropicComplete(t *testing.T) {
	var captured anthropicRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-API-Key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("Anthropic-Version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"model": "claude-3-5-sonnet-20240620",
			"content": []map[string]string{
				{"type": "text", "text": "[]"},
			},
			"usage": map[string]int{"input_tokens": 120, "output_tokens": 8},
		})
	}))
	defer server.Close()

	transport := NewAnthropicTransport("test-key", server.URL)
	completion, err := transport.Complete(context.Background(), Request{
		Messages: []Message{
			{Role: RoleSystem, Content: "system prompt"},
			{Role: RoleUser, Content: "review this"},
		},
		Model:     "claude-3-5-sonnet-20240620",
		MaxTokens: 1024,
	})
	require.NoError(t, err)

	assert.Equal(t, "[]", completion.Content)
	assert.Equal(t, 120, completion.Usage.InputTokens)
	assert.Equal(t, 8, completion.Usage.OutputTokens)

	// The system message rides as a top-level field, not in messages.
	assert.Equal(t, "system prompt", captured.System)
	require.Len(t, captured.Messages, 1)
	assert.Equal(t, RoleUser, captured.Messages[0].Role)
}

func TestAnthropicMissingAPIKey(t *testing.T) {
	transport := NewAnthropicTransport("", "")

	_, err := transport.Complete(context.Background(), Request{})

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
}

func TestAnthropicStatusClassification(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		retryAfter string
		check      func(t *testing.T, err error)
	}{
		{
			name:       "rate limited with retry-after",
			status:     http.StatusTooManyRequests,
			retryAfter: "7",
			check: func(t *testing.T, err error) {
				var rle *RateLimitError
				require.ErrorAs(t, err, &rle)
				assert.Equal(t, 7*time.Second, rle.RetryAfter)
			},
		},
		{
			name:   "rate limited without retry-after",
			status: http.StatusTooManyRequests,
			check: func(t *testing.T, err error) {
				var rle *RateLimitError
				require.ErrorAs(t, err, &rle)
				assert.Zero(t, rle.RetryAfter)
			},
		},
		{
			name:   "unauthorized",
			status: http.StatusUnauthorized,
			check: func(t *testing.T, err error) {
				var authErr *AuthError
				require.ErrorAs(t, err, &authErr)
			},
		},
		{
			name:   "forbidden",
			status: http.StatusForbidden,
			check: func(t *testing.T, err error) {
				var authErr *AuthError
				require.ErrorAs(t, err, &authErr)
			},
		},
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			check: func(t *testing.T, err error) {
				var terr *TransientError
				require.ErrorAs(t, err, &terr)
			},
		},
		{
			name:   "unexpected status",
			status: http.StatusTeapot,
			check: func(t *testing.T, err error) {
				var terr *TransientError
				require.ErrorAs(t, err, &terr)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.retryAfter != "" {
					w.Header().Set("Retry-After", tt.retryAfter)
				}
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			transport := NewAnthropicTransport("test-key", server.URL)
			_, err := transport.Complete(context.Background(), Request{})
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 5*time.Second, parseRetryAfter("5"))
	assert.Zero(t, parseRetryAfter(""))
	assert.Zero(t, parseRetryAfter("-1"))
	assert.Zero(t, parseRetryAfter("Wed, 21 Oct 2015 07:28:00 GMT"))
}

func TestOpenAIComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"model": "gpt-4o",
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "[]"}},
			},
			"usage": map[string]int{"prompt_tokens": 50, "completion_tokens": 5},
		})
	}))
	defer server.Close()

	transport := NewOpenAITransport("test-key", server.URL)
	completion, err := transport.Complete(context.Background(), Request{Model: "gpt-4o"})
	require.NoError(t, err)

	assert.Equal(t, "[]", completion.Content)
	assert.Equal(t, 50, completion.Usage.InputTokens)
	assert.Equal(t, 5, completion.Usage.OutputTokens)
}

func TestNewTransport(t *testing.T) {
	anthropic, err := NewTransport("anthropic", "k", "")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", anthropic.Provider())

	openai, err := NewTransport("openai", "k", "")
	require.NoError(t, err)
	assert.Equal(t, "openai", openai.Provider())

	_, err = NewTransport("cohere", "k", "")
	assert.Error(t, err)
}
