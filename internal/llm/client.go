// Package llm provides the narrow model-client interface the orchestrator
// consumes, with Gemini and OpenAI-compatible implementations. Every call
// is bounded by a configured timeout; a timeout is a failure of the
// collaborator, never something to retry here.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Client is the minimal interface for a language-model collaborator.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Config holds provider selection and connection settings.
type Config struct {
	Provider string        // gemini, openai
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
}

// DefaultConfig returns sensible defaults for the given provider.
func DefaultConfig(provider, apiKey string) Config {
	cfg := Config{
		Provider: provider,
		APIKey:   apiKey,
		Timeout:  60 * time.Second,
	}
	switch provider {
	case "openai":
		cfg.Model = "gpt-4o-mini"
	default:
		cfg.Provider = "gemini"
		cfg.Model = "gemini-2.0-flash"
	}
	return cfg
}

// NewClient creates a client for the configured provider.
func NewClient(cfg Config) (Client, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "gemini", "":
		return NewGeminiClient(cfg)
	case "openai":
		return NewOpenAIClient(cfg)
	case "mock":
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %q", cfg.Provider)
	}
}

// callContext applies the configured per-call timeout unless the caller's
// context already expires sooner.
func callContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
