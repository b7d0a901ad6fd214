package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the Nura conversational core.
type Config struct {
	Port      int
	Version   string
	Cache     CacheConfig
	Model     ModelConfig
	Memory    MemoryConfig
	History   HistoryConfig
	Outreach  OutreachConfig
	Telemetry TelemetryConfig
	Auth      AuthConfig
}

// CacheConfig selects the cache backend and the TTL class per entry kind.
type CacheConfig struct {
	// Backend is "memory" or "badger".
	Backend string
	// Path is the Badger directory; ignored for the memory backend.
	Path string

	ConversationTTL time.Duration
	SemanticTTL     time.Duration
	SummaryTTL      time.Duration
	// EnrichedTTL is the shortest class: enriched context is the most
	// composite value and goes stale fastest.
	EnrichedTTL time.Duration
}

// ModelConfig configures the language-model provider.
type ModelConfig struct {
	// Provider is "openai", "anthropic", or "ollama".
	Provider  string
	Endpoint  string
	APIKey    string
	Model     string
	MaxTokens int

	// Retry policy for rate-limited calls.
	RetryMaxAttempts int
	RetryMaxElapsed  time.Duration
}

// MemoryConfig points at the persistent memory service.
type MemoryConfig struct {
	BaseURL string
	Timeout time.Duration
}

// HistoryConfig configures the conversation history reader.
type HistoryConfig struct {
	// DatabaseURL is the relational store connection string. Empty means
	// the in-memory history reader is used (dev/tests).
	DatabaseURL string
	WindowSize  int
}

// OutreachConfig points at the notification gateway used for crisis
// outreach dispatch.
type OutreachConfig struct {
	GatewayURL string
	Timeout    time.Duration
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

type AuthConfig struct {
	// APIKeys is a comma-separated list; empty disables API-key auth.
	APIKeys string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Port:    envInt("NURA_PORT", 8080),
		Version: envStr("NURA_VERSION", "0.4.0"),
		Cache: CacheConfig{
			Backend:         envStr("NURA_CACHE_BACKEND", "memory"),
			Path:            envStr("NURA_CACHE_PATH", ""),
			ConversationTTL: envDur("NURA_CACHE_CONVERSATION_TTL", 2*time.Hour),
			SemanticTTL:     envDur("NURA_CACHE_SEMANTIC_TTL", 10*time.Minute),
			SummaryTTL:      envDur("NURA_CACHE_SUMMARY_TTL", 5*time.Minute),
			EnrichedTTL:     envDur("NURA_CACHE_ENRICHED_TTL", 3*time.Minute),
		},
		Model: ModelConfig{
			Provider:         envStr("NURA_MODEL_PROVIDER", "openai"),
			Endpoint:         envStr("NURA_MODEL_ENDPOINT", ""),
			APIKey:           envStr("NURA_MODEL_API_KEY", ""),
			Model:            envStr("NURA_MODEL_NAME", "gpt-4o-mini"),
			MaxTokens:        envInt("NURA_MODEL_MAX_TOKENS", 1024),
			RetryMaxAttempts: envInt("NURA_MODEL_RETRY_ATTEMPTS", 4),
			RetryMaxElapsed:  envDur("NURA_MODEL_RETRY_MAX_ELAPSED", 20*time.Second),
		},
		Memory: MemoryConfig{
			BaseURL: envStr("NURA_MEMORY_URL", "http://localhost:8090"),
			Timeout: envDur("NURA_MEMORY_TIMEOUT", 10*time.Second),
		},
		History: HistoryConfig{
			DatabaseURL: envStr("NURA_DATABASE_URL", ""),
			WindowSize:  envInt("NURA_HISTORY_WINDOW", 10),
		},
		Outreach: OutreachConfig{
			GatewayURL: envStr("NURA_OUTREACH_URL", "http://localhost:8091"),
			Timeout:    envDur("NURA_OUTREACH_TIMEOUT", 15*time.Second),
		},
		Telemetry: TelemetryConfig{
			Enabled:      envBool("OTEL_ENABLED", false),
			OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  envStr("OTEL_SERVICE_NAME", "nura-core"),
		},
		Auth: AuthConfig{
			APIKeys: envStr("NURA_API_KEYS", ""),
		},
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDur(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
