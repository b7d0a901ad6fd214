package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Alhassan777/Nura-AI-sub001/internal/config"
	"github.com/Alhassan777/Nura-AI-sub001/internal/llm"
)

func modelConfig(endpoint string) config.ModelConfig {
	return config.ModelConfig{
		Provider:         "openai",
		Endpoint:         endpoint,
		APIKey:           "test-key",
		Model:            "gpt-4o-mini",
		MaxTokens:        256,
		RetryMaxAttempts: 3,
		RetryMaxElapsed:  5 * time.Second,
	}
}

// ─── Provider client ─────────────────────────────────────────

func TestGenerate_OpenAICompatible(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q, want bearer key", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "hello there"}},
			},
		})
	}))
	defer srv.Close()

	client := llm.NewHTTPClient(modelConfig(srv.URL))
	text, err := client.Generate(context.Background(), "hi", llm.GenerationConfig{})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if text != "hello there" {
		t.Errorf("Generate() = %q, want %q", text, "hello there")
	}
}

func TestGenerate_RateLimitClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"slow down"}`))
	}))
	defer srv.Close()

	client := llm.NewHTTPClient(modelConfig(srv.URL))
	_, err := client.Generate(context.Background(), "hi", llm.GenerationConfig{})
	if err == nil {
		t.Fatal("Generate() should fail on 429")
	}
	if !llm.IsRateLimit(err) {
		t.Errorf("IsRateLimit(%v) = false, want true", err)
	}
}

func TestGenerate_ContentErrorNotRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"bad prompt"}`))
	}))
	defer srv.Close()

	client := llm.NewHTTPClient(modelConfig(srv.URL))
	_, err := client.Generate(context.Background(), "hi", llm.GenerationConfig{})
	if err == nil {
		t.Fatal("Generate() should fail on 400")
	}
	if llm.IsRateLimit(err) {
		t.Errorf("IsRateLimit(%v) = true for a content error", err)
	}
}

// ─── Retry decorator ─────────────────────────────────────────

// scriptedClient fails with the queued errors, then succeeds.
type scriptedClient struct {
	calls int32
	errs  []error
}

func (s *scriptedClient) Generate(context.Context, string, llm.GenerationConfig) (string, error) {
	n := int(atomic.AddInt32(&s.calls, 1))
	if n <= len(s.errs) {
		return "", s.errs[n-1]
	}
	return "ok", nil
}

func TestRetry_RateLimitRetried(t *testing.T) {
	inner := &scriptedClient{errs: []error{
		&llm.RateLimitError{Provider: "openai", StatusCode: 429},
		&llm.RateLimitError{Provider: "openai", StatusCode: 429},
	}}
	client := llm.NewRetryingClient(inner, modelConfig(""))

	text, err := client.Generate(context.Background(), "hi", llm.GenerationConfig{})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if text != "ok" {
		t.Errorf("Generate() = %q, want %q", text, "ok")
	}
	if got := atomic.LoadInt32(&inner.calls); got != 3 {
		t.Errorf("inner calls = %d, want 3", got)
	}
}

func TestRetry_ContentErrorFailsFast(t *testing.T) {
	wantErr := errors.New("openai: status 400: bad prompt")
	inner := &scriptedClient{errs: []error{wantErr}}
	client := llm.NewRetryingClient(inner, modelConfig(""))

	_, err := client.Generate(context.Background(), "hi", llm.GenerationConfig{})
	if err == nil {
		t.Fatal("Generate() should surface the content error")
	}
	if got := atomic.LoadInt32(&inner.calls); got != 1 {
		t.Errorf("inner calls = %d, want 1 (no retry of content errors)", got)
	}
}

func TestRetry_AttemptBudgetEnforced(t *testing.T) {
	// More rate-limit errors than the 3-attempt budget allows.
	inner := &scriptedClient{errs: []error{
		&llm.RateLimitError{StatusCode: 429},
		&llm.RateLimitError{StatusCode: 429},
		&llm.RateLimitError{StatusCode: 429},
		&llm.RateLimitError{StatusCode: 429},
	}}
	client := llm.NewRetryingClient(inner, modelConfig(""))

	_, err := client.Generate(context.Background(), "hi", llm.GenerationConfig{})
	if err == nil {
		t.Fatal("Generate() should fail once the attempt budget is spent")
	}
	if !llm.IsRateLimit(err) {
		t.Errorf("final error should still classify as rate limit, got %v", err)
	}
	if got := atomic.LoadInt32(&inner.calls); got != 3 {
		t.Errorf("inner calls = %d, want 3 (attempt budget)", got)
	}
}
