// Package memorysvc is the HTTP client for the persistent memory
// service. The memory service owns long-term storage and retrieval;
// this client only stores finished turns and fetches merged context.
package memorysvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Alhassan777/Nura-AI-sub001/internal/config"
	"github.com/Alhassan777/Nura-AI-sub001/pkg/models"
)

// Client talks to the persistent memory service.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a memory service client from config.
func NewClient(cfg config.MemoryConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

// storeRequest is the memory write payload: the user turn and the
// assistant response stored as one exchange.
type storeRequest struct {
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id"`
	UserMessage    string `json:"user_message"`
	Assistant      string `json:"assistant_message"`
	Mode           string `json:"mode"`
}

// StoreExchange persists one user/assistant exchange.
func (c *Client) StoreExchange(ctx context.Context, turn models.Turn, response string) (models.MemoryWriteResult, error) {
	payload := storeRequest{
		UserID:         turn.UserID,
		ConversationID: turn.ConversationID,
		UserMessage:    turn.Message,
		Assistant:      response,
		Mode:           string(turn.Mode),
	}

	var result models.MemoryWriteResult
	if err := c.post(ctx, "/v1/memories", payload, &result); err != nil {
		return models.MemoryWriteResult{}, fmt.Errorf("store exchange: %w", err)
	}

	log.Debug().
		Str("user_id", turn.UserID).
		Bool("stored", result.Stored).
		Msg("Memory exchange stored")
	return result, nil
}

// GetContext fetches the user's merged short/long-term context, scoped
// to a conversation when conversationID is non-empty.
func (c *Client) GetContext(ctx context.Context, userID, conversationID string) (models.UserContext, error) {
	q := url.Values{}
	if conversationID != "" {
		q.Set("conversation_id", conversationID)
	}
	path := "/v1/users/" + url.PathEscape(userID) + "/context"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var uc models.UserContext
	if err := c.get(ctx, path, &uc); err != nil {
		return models.UserContext{}, fmt.Errorf("get context: %w", err)
	}
	return uc, nil
}

// ── HTTP plumbing ───────────────────────────────────────────

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("memory service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("memory service HTTP %d: %s", resp.StatusCode, string(snippet))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	log.Debug().
		Str("path", req.URL.Path).
		Dur("latency", time.Since(start)).
		Msg("Memory service call")
	return nil
}
