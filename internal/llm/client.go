// Package llm provides the language-model client used by the fast path
// and the background analysis jobs. Providers speak their native HTTP
// APIs directly (OpenAI-compatible, Anthropic, Ollama); a retry decorator
// adds bounded exponential backoff with jitter for rate-limited calls.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// GenerationConfig tunes a single generate call.
type GenerationConfig struct {
	MaxTokens   int
	Temperature float64
	// System is an optional system prompt sent alongside the user prompt.
	System string
}

// Client is the language-model boundary. Exactly one Generate call is
// issued per fast-path turn; background jobs issue their own.
type Client interface {
	Generate(ctx context.Context, prompt string, cfg GenerationConfig) (string, error)
}

// RateLimitError marks a provider rejection that is worth retrying with
// backoff. Content or auth errors are not rate limits and never retried.
type RateLimitError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: rate limited (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// IsRateLimit reports whether err is (or wraps) a rate-limit rejection.
func IsRateLimit(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}
