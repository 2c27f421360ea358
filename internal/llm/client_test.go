package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float32 `json:"temperature"`
	TopP        float32 `json:"top_p"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{
		Provider:    "groq",
		BaseURL:     srv.URL + "/openai/v1",
		Model:       "llama-3.1-8b-instant",
		APIKey:      "gsk_test",
		Temperature: 0.7,
		TopP:        0.9,
		MaxTokens:   300,
		Timeout:     2 * time.Second,
		Institution: "State Institute of Technology",
		Knowledge:   "Hostel Fees: Non-AC rooms 35,000 per year",
	})
	require.NoError(t, err)
	return c
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(Config{Model: "m"})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestGenerateSuccess(t *testing.T) {
	var got capturedRequest
	var auth, path string

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "llama-3.1-8b-instant",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "  Non-AC rooms cost 35,000 per year.  "}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 120, "completion_tokens": 9, "total_tokens": 129}
		}`))
	})

	answer, err := c.Generate(context.Background(), "What are hostel fees?", "en")
	require.NoError(t, err)

	assert.Equal(t, "Bearer gsk_test", auth)
	assert.Equal(t, "/openai/v1/chat/completions", path)
	assert.Equal(t, "llama-3.1-8b-instant", got.Model)
	assert.Equal(t, 300, got.MaxTokens)
	assert.InDelta(t, 0.7, got.Temperature, 1e-6)
	assert.InDelta(t, 0.9, got.TopP, 1e-6)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Contains(t, got.Messages[0].Content, "Always answer in clear, simple English")
	assert.Contains(t, got.Messages[0].Content, "Non-AC rooms 35,000")
	assert.Equal(t, "What are hostel fees?", got.Messages[1].Content)

	assert.Equal(t, "Non-AC rooms cost 35,000 per year.", answer.Text)
	assert.Equal(t, SuccessConfidence, answer.Confidence)
	assert.Equal(t, "groq-llama3", answer.Source)
	assert.Equal(t, 129, answer.Usage.TotalTokens)
}

func TestGenerateRomanizedPrompt(t *testing.T) {
	var got capturedRequest

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "Hostel fees 35,000 hai."}}]}`))
	})

	_, err := c.Generate(context.Background(), "hostel fees kitni hai?", "mwr")
	require.NoError(t, err)

	require.NotEmpty(t, got.Messages)
	assert.Contains(t, got.Messages[0].Content, "Romanized Hindi")
	assert.Contains(t, got.Messages[0].Content, "exact date ke liye office se contact kariye")
}

func TestGenerateErrorStatusReturnsApology(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error": {"message": "over capacity", "type": "server_error"}}`))
	})

	answer, err := c.Generate(context.Background(), "hi", "en")
	require.NoError(t, err)

	assert.Equal(t, Apology(503), answer.Text)
	assert.Contains(t, answer.Text, "API Error: 503")
	assert.Equal(t, FallbackConfidence, answer.Confidence)
	assert.Equal(t, SourceFallback, answer.Source)
}

func TestRateLimitedRepliesKeepBreakerClosed(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"message": "rate limit reached", "type": "tokens"}}`))
	})

	for i := 0; i < 8; i++ {
		answer, err := c.Generate(context.Background(), "hostel fees?", "en")
		require.NoError(t, err, "call %d", i)
		assert.Equal(t, SourceFallback, answer.Source, "call %d", i)
		assert.Contains(t, answer.Text, "API Error: 429")
	}

	assert.Equal(t, 8, calls)
	assert.Equal(t, "closed", c.Breaker().State)
}

func TestBreakerFailure(t *testing.T) {
	assert.False(t, breakerFailure(nil))
	assert.False(t, breakerFailure(context.Canceled))
	assert.False(t, breakerFailure(fmt.Errorf("wrapped: %w", &openai.APIError{HTTPStatusCode: 400})))
	assert.False(t, breakerFailure(&openai.RequestError{HTTPStatusCode: 500}))
	assert.True(t, breakerFailure(ErrEmptyResponse))
	assert.True(t, breakerFailure(context.DeadlineExceeded))
}

func TestGenerateNonJSONErrorStatusReturnsApology(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`<html>bad gateway</html>`))
	})

	answer, err := c.Generate(context.Background(), "hi", "en")
	require.NoError(t, err)
	assert.Contains(t, answer.Text, "API Error: 502")
}

func TestGenerateEmptyChoicesIsError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	})

	_, err := c.Generate(context.Background(), "hi", "en")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestGenerateTransportErrorIsReturned(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewClient(Config{APIKey: "k", BaseURL: url, Model: "m", Timeout: time.Second})
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), "hi", "en")
	assert.Error(t, err)
}

func TestBuildSystemPrompt(t *testing.T) {
	en := BuildSystemPrompt("SIT", "DOC", "ta")
	assert.Contains(t, en, "assistant for SIT")
	assert.Contains(t, en, "COLLEGE INFORMATION:\nDOC")
	assert.Contains(t, en, "clear, simple English")

	hi := BuildSystemPrompt("SIT", "DOC", "hi")
	assert.Contains(t, hi, "Romanized Hindi")
	assert.NotContains(t, hi, "clear, simple English")
}
