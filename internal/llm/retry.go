package llm

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"github.com/Alhassan777/Nura-AI-sub001/internal/config"
)

// RetryingClient decorates a Client with bounded exponential backoff and
// jitter, applied only to rate-limit-classified errors. Content errors
// and plain transport failures fail fast: retrying them would just delay
// the fast path's degraded reply.
type RetryingClient struct {
	inner       Client
	maxAttempts int
	maxElapsed  time.Duration
}

// NewRetryingClient wraps inner with the configured retry policy.
func NewRetryingClient(inner Client, cfg config.ModelConfig) *RetryingClient {
	maxAttempts := cfg.RetryMaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 4
	}
	maxElapsed := cfg.RetryMaxElapsed
	if maxElapsed <= 0 {
		maxElapsed = 20 * time.Second
	}
	return &RetryingClient{
		inner:       inner,
		maxAttempts: maxAttempts,
		maxElapsed:  maxElapsed,
	}
}

// Generate calls the inner client, backing off and retrying while the
// provider reports rate limiting.
func (r *RetryingClient) Generate(ctx context.Context, prompt string, cfg GenerationConfig) (string, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxElapsedTime = r.maxElapsed
	// RandomizationFactor defaults to 0.5, which is the jitter we want.

	attempts := 0
	operation := func() (string, error) {
		attempts++
		text, err := r.inner.Generate(ctx, prompt, cfg)
		if err == nil {
			return text, nil
		}
		if !IsRateLimit(err) || attempts >= r.maxAttempts {
			return "", backoff.Permanent(err)
		}
		log.Warn().
			Err(err).
			Int("attempt", attempts).
			Msg("Model rate limited, backing off")
		return "", err
	}

	return backoff.RetryWithData(operation, backoff.WithContext(policy, ctx))
}
