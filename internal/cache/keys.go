package cache

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/Alhassan777/Nura-AI-sub001/pkg/models"
)

// EntryKind tags what a cache entry holds and selects its TTL class.
type EntryKind string

const (
	// KindConversation is the raw recent-conversation window.
	KindConversation EntryKind = "conv"

	// KindSemantic is a semantic-search / retrieval result.
	KindSemantic EntryKind = "sem"

	// KindSummary is a processed summary of prior turns.
	KindSummary EntryKind = "sum"

	// KindEnriched is the combined short+long-term context prepared for
	// the next turn. Most composite, shortest-lived.
	KindEnriched EntryKind = "enr"

	// KindTaskEnvelope is a background job group's polled envelope.
	KindTaskEnvelope EntryKind = "task"
)

// Key is a deterministic composite cache key. Identical logical inputs
// always produce the identical string form.
type Key struct {
	Kind           EntryKind
	UserID         string
	ConversationID string
	Mode           models.Mode
	// Fingerprint is the normalized-query hash. Optional; scoping
	// components alone are enough for window/envelope entries.
	Fingerprint string
	// TaskID is set only for KindTaskEnvelope keys.
	TaskID string
}

// String renders the key. User-scoped keys share the "u/<user>/" prefix
// and conversation-scoped keys the "u/<user>/c/<conversation>/" prefix so
// Invalidate can delete by prefix. Task envelopes live under "t/".
func (k Key) String() string {
	if k.Kind == KindTaskEnvelope {
		return fmt.Sprintf("t/%s", k.TaskID)
	}
	conv := k.ConversationID
	if conv == "" {
		conv = "-"
	}
	mode := string(k.Mode)
	if mode == "" {
		mode = "-"
	}
	fp := k.Fingerprint
	if fp == "" {
		fp = "-"
	}
	return fmt.Sprintf("u/%s/c/%s/%s/%s/%s", k.UserID, conv, k.Kind, mode, fp)
}

// TaskKey builds the envelope key for a background task id.
func TaskKey(taskID string) Key {
	return Key{Kind: KindTaskEnvelope, TaskID: taskID}
}

// UserScope is the prefix covering every entry cached for a user.
func UserScope(userID string) string {
	return fmt.Sprintf("u/%s/", userID)
}

// ConversationScope is the prefix covering one conversation's entries.
func ConversationScope(userID, conversationID string) string {
	return fmt.Sprintf("u/%s/c/%s/", userID, conversationID)
}

// ── Query fingerprinting ────────────────────────────────────

// synonymClasses collapses emotionally equivalent words to one canonical
// token so semantically similar turns share cache entries. The table is
// fixed: changing it changes every fingerprint.
var synonymClasses = map[string]string{
	"worried":     "anxious",
	"nervous":     "anxious",
	"anxiety":     "anxious",
	"panicky":     "anxious",
	"down":        "sad",
	"depressed":   "sad",
	"unhappy":     "sad",
	"mad":         "angry",
	"furious":     "angry",
	"irritated":   "angry",
	"afraid":      "scared",
	"frightened":  "scared",
	"terrified":   "scared",
	"exhausted":   "tired",
	"drained":     "tired",
	"overwhelmed": "stressed",
	"swamped":     "stressed",
	"glad":        "happy",
	"joyful":      "happy",
	"alone":       "lonely",
	"isolated":    "lonely",
}

// Fingerprint returns a stable 64-bit hash of the normalized text:
// lower-cased, whitespace-collapsed, synonym classes collapsed.
func Fingerprint(text string) string {
	h := fnv.New64a()
	h.Write([]byte(Normalize(text)))
	return fmt.Sprintf("%016x", h.Sum64())
}

// Normalize produces the canonical token stream hashed by Fingerprint.
// Exposed separately so tests can assert equivalence classes directly.
func Normalize(text string) string {
	fields := strings.Fields(strings.ToLower(text))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,!?;:\"'()[]")
		if f == "" {
			continue
		}
		if canon, ok := synonymClasses[f]; ok {
			f = canon
		}
		out = append(out, f)
	}
	return strings.Join(out, " ")
}
