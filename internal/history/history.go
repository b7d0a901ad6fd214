// Package history reads and appends persisted conversation messages.
// The fast path uses it to assemble a recent-message window when the
// cache has nothing fresh; the background pipeline appends each
// finished exchange.
package history

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/Alhassan777/Nura-AI-sub001/pkg/models"
)

// Reader provides the conversation window and accepts new messages.
type Reader interface {
	// Recent returns up to limit messages for the conversation, oldest
	// first, so the window reads top to bottom.
	Recent(ctx context.Context, userID, conversationID string, limit int) ([]models.StoredMessage, error)

	// Append persists one message.
	Append(ctx context.Context, userID string, msg models.StoredMessage) error

	Close()
}

// RenderWindow formats messages as a prompt block, one line per
// message.
func RenderWindow(msgs []models.StoredMessage) string {
	if len(msgs) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, m := range msgs {
		sb.WriteString(m.Role)
		sb.WriteString(": ")
		sb.WriteString(m.Content)
		sb.WriteByte('\n')
	}
	return strings.TrimRight(sb.String(), "\n")
}

// ── In-memory reader ────────────────────────────────────────

// MemoryReader keeps conversation history in process memory. Used when
// no database URL is configured.
type MemoryReader struct {
	mu       sync.RWMutex
	messages map[string][]models.StoredMessage // userID/conversationID -> messages, append order
}

// NewMemoryReader creates an empty MemoryReader.
func NewMemoryReader() *MemoryReader {
	return &MemoryReader{messages: make(map[string][]models.StoredMessage)}
}

func historyKey(userID, conversationID string) string {
	return userID + "/" + conversationID
}

func (r *MemoryReader) Recent(ctx context.Context, userID, conversationID string, limit int) ([]models.StoredMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.messages[historyKey(userID, conversationID)]
	if limit <= 0 || limit > len(all) {
		limit = len(all)
	}
	out := make([]models.StoredMessage, limit)
	copy(out, all[len(all)-limit:])
	return out, nil
}

func (r *MemoryReader) Append(ctx context.Context, userID string, msg models.StoredMessage) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	k := historyKey(userID, msg.ConversationID)
	r.messages[k] = append(r.messages[k], msg)
	return nil
}

func (r *MemoryReader) Close() {}

// ── Window assembly ─────────────────────────────────────────

// Window fetches the recent messages and renders them for the prompt.
// Errors degrade to an empty window: a missing history read never
// blocks a response.
func Window(ctx context.Context, r Reader, userID, conversationID string, limit int) string {
	msgs, err := r.Recent(ctx, userID, conversationID, limit)
	if err != nil {
		return ""
	}
	return RenderWindow(msgs)
}
