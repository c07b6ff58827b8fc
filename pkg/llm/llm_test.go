package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewOpenAIClient(Config{APIKey: "test-key", BaseURL: srv.URL + "/", Model: "test-model", MaxRetries: 2})
	c.backoff = time.Millisecond
	return c
}

func TestOpenAIClient_Complete(t *testing.T) {
	var got chatRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"  df = df |> dropna()\n"}}]}`)
	})

	out, err := c.Complete(context.Background(), Request{
		System:      "rules",
		User:        "drop null rows",
		Temperature: 0.4,
		MaxTokens:   300,
	})
	require.NoError(t, err)
	assert.Equal(t, "df = df |> dropna()", out)

	assert.Equal(t, "test-model", got.Model)
	assert.Equal(t, 300, got.MaxTokens)
	assert.InDelta(t, 0.4, got.Temperature, 1e-9)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, chatMessage{Role: "system", Content: "rules"}, got.Messages[0])
	assert.Equal(t, chatMessage{Role: "user", Content: "drop null rows"}, got.Messages[1])
}

func TestOpenAIClient_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"x = 1"}}]}`)
	})

	out, err := c.Complete(context.Background(), Request{User: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "x = 1", out)
	assert.Equal(t, int32(3), calls.Load())
}

func TestOpenAIClient_GivesUpOnRateLimit(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.Complete(context.Background(), Request{User: "hi"})
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, int32(3), calls.Load())
}

func TestOpenAIClient_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
		wantMsg string
	}{
		{"api error body", http.StatusUnauthorized, `{"error":{"message":"invalid api key"}}`, ErrRequestFailed, "invalid api key"},
		{"plain error body", http.StatusInternalServerError, `upstream down`, ErrRequestFailed, "upstream down"},
		{"no choices", http.StatusOK, `{"choices":[]}`, ErrEmptyResponse, ""},
		{"blank content", http.StatusOK, `{"choices":[{"message":{"content":"   "}}]}`, ErrEmptyResponse, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			_, err := c.Complete(context.Background(), Request{User: "hi"})
			assert.ErrorIs(t, err, tt.wantErr)
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestOpenAIClient_OversizedResponse(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"`+strings.Repeat("x", MaxResponseBytes)+`"}}]}`)
	})

	_, err := c.Complete(context.Background(), Request{User: "hi"})
	assert.ErrorIs(t, err, ErrRequestFailed)
	assert.Contains(t, err.Error(), "exceeds")
	assert.Equal(t, int32(1), calls.Load())
}

func TestOpenAIClient_NoAPIKey(t *testing.T) {
	c := NewOpenAIClient(Config{})
	_, err := c.Complete(context.Background(), Request{User: "hi"})
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestOpenAIClient_Defaults(t *testing.T) {
	c := NewOpenAIClient(Config{APIKey: "k"})
	assert.Equal(t, GroqBaseURL, c.baseURL)
	assert.Equal(t, GroqModel, c.Model())
	assert.Equal(t, DefaultMaxRetries, c.maxRetries)
	assert.Equal(t, DefaultTimeout, c.httpClient.Timeout)
}

func TestOpenAIClient_CancelledDuringBackoff(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	c.backoff = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Complete(ctx, Request{User: "hi"})
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}

func TestGeminiClient_Complete(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "models/test-gemini:generateContent")
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, &body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"fig = bar(df, x=\"category\")"}]}}]}`)
	}))
	defer srv.Close()

	c, err := NewGeminiClient(context.Background(), Config{APIKey: "k", BaseURL: srv.URL + "/", Model: "test-gemini"})
	require.NoError(t, err)

	out, err := c.Complete(context.Background(), Request{System: "rules", User: "bar chart", Temperature: 0.4, MaxTokens: 500})
	require.NoError(t, err)
	assert.Equal(t, `fig = bar(df, x="category")`, out)

	require.Contains(t, body, "systemInstruction")
	require.Contains(t, body, "generationConfig")
	gen := body["generationConfig"].(map[string]any)
	assert.EqualValues(t, 500, gen["maxOutputTokens"])
}

func TestNewClient(t *testing.T) {
	ctx := context.Background()

	c, err := NewClient(ctx, Config{APIKey: "k"})
	require.NoError(t, err)
	oc, ok := c.(*OpenAIClient)
	require.True(t, ok)
	assert.Equal(t, GroqBaseURL, oc.baseURL)

	c, err = NewClient(ctx, Config{Provider: "OpenAI", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, OpenAIModel, c.(*OpenAIClient).Model())

	c, err = NewClient(ctx, Config{Provider: "gemini", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, GeminiModel, c.(*GeminiClient).Model())

	_, err = NewClient(ctx, Config{Provider: "mystery", APIKey: "k"})
	assert.ErrorIs(t, err, ErrUnknownProvider)

	_, err = NewClient(ctx, Config{Provider: "groq"})
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestClientFunc(t *testing.T) {
	var c Client = ClientFunc(func(ctx context.Context, req Request) (string, error) {
		return req.User + "!", nil
	})
	out, err := c.Complete(context.Background(), Request{User: "hey"})
	require.NoError(t, err)
	assert.Equal(t, "hey!", out)
}
