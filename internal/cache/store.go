// Package cache implements the multi-layer TTL cache backing both the
// fast path and the background job group.
//
// The split mirrors the tiered storage it abstracts over: a Backend is a
// raw TTL key/value layer (in-memory map, or BadgerDB for persistence);
// the Store adds key construction, per-kind TTL classes, read-through
// fallback, and scope invalidation. Staleness is evaluated at read time;
// nothing is actively swept.
//
// Cached values are always recomputable, never a system of record, so
// concurrent writers follow last-writer-wins with no locking above the
// backend's own synchronization.
package cache

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/Alhassan777/Nura-AI-sub001/internal/config"
)

// Backend is the raw TTL key/value layer. Get reports a miss for absent,
// stale, or errored reads; backend failures never surface past it.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) error
	Close() error
}

// TTLClasses fixes the time-to-live per entry kind.
type TTLClasses struct {
	Conversation time.Duration
	Semantic     time.Duration
	Summary      time.Duration
	Enriched     time.Duration
	Task         time.Duration
}

// DefaultTaskTTL bounds how long a completed envelope stays pollable.
const DefaultTaskTTL = time.Hour

// ClassesFromConfig builds TTL classes from the cache configuration.
func ClassesFromConfig(cfg config.CacheConfig) TTLClasses {
	return TTLClasses{
		Conversation: cfg.ConversationTTL,
		Semantic:     cfg.SemanticTTL,
		Summary:      cfg.SummaryTTL,
		Enriched:     cfg.EnrichedTTL,
		Task:         DefaultTaskTTL,
	}
}

// For returns the TTL for an entry kind.
func (t TTLClasses) For(kind EntryKind) time.Duration {
	switch kind {
	case KindConversation:
		return t.Conversation
	case KindSemantic:
		return t.Semantic
	case KindSummary:
		return t.Summary
	case KindEnriched:
		return t.Enriched
	case KindTaskEnvelope:
		return t.Task
	default:
		return t.Summary
	}
}

// Store is the cache surface the orchestrator and coordinator depend on.
type Store struct {
	backend Backend
	ttls    TTLClasses

	// group deduplicates concurrent recomputes for the same primary key.
	group singleflight.Group
}

// NewStore wraps a backend with key/TTL handling.
func NewStore(backend Backend, ttls TTLClasses) *Store {
	return &Store{backend: backend, ttls: ttls}
}

// Get returns the cached value for key, or a miss. Backend errors have
// already been degraded to misses by the backend.
func (s *Store) Get(ctx context.Context, key Key) ([]byte, bool) {
	return s.backend.Get(ctx, key.String())
}

// Set caches value under key with the kind's TTL class. Best-effort:
// failure is logged and never propagates to the caller.
func (s *Store) Set(ctx context.Context, key Key, value []byte) {
	s.SetTTL(ctx, key, value, s.ttls.For(key.Kind))
}

// SetTTL is Set with an explicit TTL, for callers that need a tighter
// bound than the kind's class.
func (s *Store) SetTTL(ctx context.Context, key Key, value []byte, ttl time.Duration) {
	if err := s.backend.Set(ctx, key.String(), value, ttl); err != nil {
		log.Warn().Err(err).Str("key", key.String()).Msg("Cache write failed")
	}
}

// GetWithFallback tries each candidate key in order and returns the first
// fresh hit. On a full miss it calls recompute and, only if recompute
// succeeds, writes the result under the first candidate key. Recompute
// failures propagate: only cache-layer errors are swallowed here.
//
// Concurrent full misses for the same primary key share one recompute.
func (s *Store) GetWithFallback(ctx context.Context, candidates []Key, recompute func(context.Context) ([]byte, error)) ([]byte, Key, bool, error) {
	for _, k := range candidates {
		if v, ok := s.backend.Get(ctx, k.String()); ok {
			return v, k, true, nil
		}
	}

	if len(candidates) == 0 {
		v, err := recompute(ctx)
		return v, Key{}, false, err
	}

	primary := candidates[0]
	v, err, _ := s.group.Do(primary.String(), func() (any, error) {
		value, err := recompute(ctx)
		if err != nil {
			return nil, err
		}
		s.Set(ctx, primary, value)
		return value, nil
	})
	if err != nil {
		return nil, Key{}, false, err
	}
	return v.([]byte), primary, false, nil
}

// Invalidate deletes every entry under a user- or conversation-scoped
// prefix (see UserScope / ConversationScope).
func (s *Store) Invalidate(ctx context.Context, scopePrefix string) error {
	return s.backend.DeletePrefix(ctx, scopePrefix)
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}
