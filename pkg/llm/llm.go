// Package llm talks to text-generation services.
//
// Every provider implements Client. The translator only ever sees that
// interface, so tests swap in the fakes from llmtest.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Common errors
var (
	ErrNoAPIKey        = errors.New("API key not configured")
	ErrRateLimited     = errors.New("rate limit exceeded")
	ErrEmptyResponse   = errors.New("no completion returned")
	ErrUnknownProvider = errors.New("unknown provider")
	ErrRequestFailed   = errors.New("request failed")
)

// Providers accepted by NewClient.
const (
	ProviderGroq   = "groq"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Defaults per provider.
const (
	GroqBaseURL   = "https://api.groq.com/openai/v1"
	GroqModel     = "llama3-70b-8192"
	OpenAIBaseURL = "https://api.openai.com/v1"
	OpenAIModel   = "gpt-4o-mini"
	GeminiModel   = "gemini-2.0-flash"

	DefaultTimeout    = 60 * time.Second
	DefaultMaxRetries = 3

	// MaxResponseBytes caps how much of a response body is read.
	MaxResponseBytes = 4 << 20
)

// Request is one completion request.
type Request struct {
	// System carries the instructional preamble.
	System string
	// User carries the caller's free text.
	User        string
	Temperature float64
	MaxTokens   int
}

// Client produces a completion for a request.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, req Request) (string, error)

// Complete calls f.
func (f ClientFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Config selects and configures a provider.
type Config struct {
	Provider   string
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

// NewClient builds the client for cfg.Provider. An empty provider means Groq.
func NewClient(ctx context.Context, cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderGroq:
		if cfg.BaseURL == "" {
			cfg.BaseURL = GroqBaseURL
		}
		if cfg.Model == "" {
			cfg.Model = GroqModel
		}
		return NewOpenAIClient(cfg), nil
	case ProviderOpenAI:
		if cfg.BaseURL == "" {
			cfg.BaseURL = OpenAIBaseURL
		}
		if cfg.Model == "" {
			cfg.Model = OpenAIModel
		}
		return NewOpenAIClient(cfg), nil
	case ProviderGemini:
		return NewGeminiClient(ctx, cfg)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
}
