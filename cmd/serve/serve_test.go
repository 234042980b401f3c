package serve

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mjholt/reviewgate/internal/config"
	"github.com/mjholt/reviewgate/internal/models"
	"github.com/mjholt/reviewgate/pkg/logger"
)

const testSecret = "hook-secret"

func pullRequestPayload(action string) []byte {
	payload := map[string]any{
		"action": action,
		"pull_request": map[string]any{
			"number": 42,
		},
		"repository": map[string]any{
			"name": "widgets",
			"owner": map[string]any{
				"login": "acme",
			},
		},
	}
	data, _ := json.Marshal(payload)
	return data
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func deliver(ts *httptest.Server, event, signature string, body []byte) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/webhooks/github", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", event)
	req.Header.Set("X-Hub-Signature-256", signature)
	return ts.Client().Do(req)
}

func testServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s := NewServer(config.Default(), logger.NewMockLogger(), []byte(testSecret))
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestServerHealth(t *testing.T) {
	_, ts := testServer(t)

	resp, err := ts.Client().Get(ts.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decodeBody(t, resp)["status"])
}

func TestServerRejectsBadSignature(t *testing.T) {
	s, ts := testServer(t)

	called := false
	s.review = func(context.Context, string, string, int) (*models.Review, error) {
		called = true
		return nil, nil
	}

	body := pullRequestPayload("opened")
	resp, err := deliver(ts, "pull_request", sign("wrong-secret", body), body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.False(t, called)
	resp.Body.Close()
}

func TestServerPing(t *testing.T) {
	_, ts := testServer(t)

	body := []byte(`{"zen":"Keep it logically awesome."}`)
	resp, err := deliver(ts, "ping", sign(testSecret, body), body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "pong", decodeBody(t, resp)["status"])
}

func TestServerReviewsPullRequest(t *testing.T) {
	s, ts := testServer(t)

	var gotOwner, gotRepo string
	var gotNumber int
	s.review = func(_ context.Context, owner, repo string, number int) (*models.Review, error) {
		gotOwner, gotRepo, gotNumber = owner, repo, number
		return &models.Review{
			Verdict:  models.Verdict{Decision: models.DecisionApproved},
			Findings: []models.Finding{},
		}, nil
	}

	body := pullRequestPayload("synchronize")
	resp, err := deliver(ts, "pull_request", sign(testSecret, body), body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	decoded := decodeBody(t, resp)
	assert.Equal(t, "reviewed", decoded["status"])
	assert.Equal(t, string(models.DecisionApproved), decoded["decision"])
	assert.Equal(t, "acme", gotOwner)
	assert.Equal(t, "widgets", gotRepo)
	assert.Equal(t, 42, gotNumber)
}

func TestServerIgnoresOtherActions(t *testing.T) {
	s, ts := testServer(t)

	called := false
	s.review = func(context.Context, string, string, int) (*models.Review, error) {
		called = true
		return nil, nil
	}

	for _, action := range []string{"closed", "labeled", "edited"} {
		body := pullRequestPayload(action)
		resp, err := deliver(ts, "pull_request", sign(testSecret, body), body)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "ignored", decodeBody(t, resp)["status"])
	}
	assert.False(t, called)
}

func TestServerReviewFailure(t *testing.T) {
	s, ts := testServer(t)

	s.review = func(context.Context, string, string, int) (*models.Review, error) {
		return nil, errors.New("provider unavailable")
	}

	body := pullRequestPayload("opened")
	resp, err := deliver(ts, "pull_request", sign(testSecret, body), body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "review failed", decodeBody(t, resp)["error"])
}

func TestServerRejectsIncompletePayload(t *testing.T) {
	_, ts := testServer(t)

	body := []byte(fmt.Sprintf(`{"action":%q,"pull_request":{"number":0}}`, "opened"))
	resp, err := deliver(ts, "pull_request", sign(testSecret, body), body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}
