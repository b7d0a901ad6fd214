package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Alhassan777/Nura-AI-sub001/internal/config"
)

// chatMessage is the OpenAI-style message shape shared by all providers.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// HTTPClient calls one configured provider over its native HTTP API.
type HTTPClient struct {
	provider  string
	endpoint  string
	apiKey    string
	model     string
	maxTokens int
	client    *http.Client
}

// NewHTTPClient builds a provider client from configuration.
func NewHTTPClient(cfg config.ModelConfig) *HTTPClient {
	return &HTTPClient{
		provider:  cfg.Provider,
		endpoint:  cfg.Endpoint,
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// Generate issues a single completion call to the configured provider.
func (c *HTTPClient) Generate(ctx context.Context, prompt string, cfg GenerationConfig) (string, error) {
	switch c.provider {
	case "anthropic":
		return c.generateAnthropic(ctx, prompt, cfg)
	case "ollama":
		return c.generateOpenAI(ctx, prompt, cfg, "http://localhost:11434/v1", false)
	default:
		// OpenAI and any OpenAI-compatible endpoint.
		return c.generateOpenAI(ctx, prompt, cfg, "https://api.openai.com/v1", true)
	}
}

// ── OpenAI-compatible ───────────────────────────────────────

type openAIRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *HTTPClient) generateOpenAI(ctx context.Context, prompt string, cfg GenerationConfig, defaultEndpoint string, auth bool) (string, error) {
	endpoint := c.endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	if auth && c.apiKey == "" {
		return "", fmt.Errorf("%s: api key not configured", c.provider)
	}

	messages := make([]chatMessage, 0, 2)
	if cfg.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: cfg.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	body, _ := json.Marshal(openAIRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.tokens(cfg),
		Temperature: cfg.Temperature,
	})

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%s: create request: %w", c.provider, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if auth {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%s: request failed: %w", c.provider, err)
	}
	defer httpResp.Body.Close()

	if err := c.checkStatus(httpResp); err != nil {
		return "", err
	}

	var resp openAIResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return "", fmt.Errorf("%s: decode response: %w", c.provider, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: empty completion", c.provider)
	}
	return resp.Choices[0].Message.Content, nil
}

// ── Anthropic ───────────────────────────────────────────────

type anthropicRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	System    string        `json:"system,omitempty"`
	MaxTokens int           `json:"max_tokens"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (c *HTTPClient) generateAnthropic(ctx context.Context, prompt string, cfg GenerationConfig) (string, error) {
	endpoint := c.endpoint
	if endpoint == "" {
		endpoint = "https://api.anthropic.com"
	}
	if c.apiKey == "" {
		return "", fmt.Errorf("anthropic: api key not configured")
	}

	body, _ := json.Marshal(anthropicRequest{
		Model:     c.model,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
		System:    cfg.System,
		MaxTokens: c.tokens(cfg),
	})

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("anthropic: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("anthropic: request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if err := c.checkStatus(httpResp); err != nil {
		return "", err
	}

	var resp anthropicResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return "", fmt.Errorf("anthropic: decode response: %w", err)
	}

	text := ""
	for _, part := range resp.Content {
		if part.Type == "text" {
			text += part.Text
		}
	}
	if text == "" {
		return "", fmt.Errorf("anthropic: empty completion")
	}
	return text, nil
}

// ── Shared helpers ──────────────────────────────────────────

func (c *HTTPClient) tokens(cfg GenerationConfig) int {
	if cfg.MaxTokens > 0 {
		return cfg.MaxTokens
	}
	return c.maxTokens
}

// checkStatus classifies HTTP rejections. 429 (and Anthropic's 529
// overload) become RateLimitError so the retry decorator backs off;
// everything else is a content/infra error surfaced as-is.
func (c *HTTPClient) checkStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == 529 {
		return &RateLimitError{
			Provider:   c.provider,
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
		}
	}
	return fmt.Errorf("%s: status %d: %s", c.provider, resp.StatusCode, string(respBody))
}
