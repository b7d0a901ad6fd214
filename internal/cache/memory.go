package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// entry is one stored value with its write time and TTL. Freshness is
// checked on read: now < cachedAt + ttl.
type entry struct {
	value    []byte
	cachedAt time.Time
	ttl      time.Duration
}

func (e entry) fresh(now time.Time) bool {
	return now.Before(e.cachedAt.Add(e.ttl))
}

// MemoryBackend is a thread-safe in-memory TTL backend. Stale entries
// are never swept; they are skipped on read and overwritten on write.
// This is the zero-configuration default and the test backend.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[string]entry

	// now is swappable so tests can control the clock.
	now func() time.Time
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// SetClock overrides the time source. Tests only.
func (m *MemoryBackend) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Get returns the value if present and fresh.
func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[key]
	if !ok || !e.fresh(m.now()) {
		return nil, false
	}
	return e.value, true
}

// Set stores value under key with the given TTL, replacing any prior
// entry (last writer wins).
func (m *MemoryBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = entry{value: value, cachedAt: m.now(), ttl: ttl}
	return nil
}

// DeletePrefix removes every key under the given prefix.
func (m *MemoryBackend) DeletePrefix(_ context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			delete(m.entries, k)
		}
	}
	return nil
}

// Close is a no-op for the in-memory backend.
func (m *MemoryBackend) Close() error {
	return nil
}
