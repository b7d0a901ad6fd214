package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog/log"
)

// BadgerBackend persists cache entries in BadgerDB, using its native
// per-entry TTL so freshness semantics match the in-memory backend
// without a sweeper of our own. Read and write errors degrade to misses
// and logged failures respectively; the cache never raises backend
// errors to its callers.
type BadgerBackend struct {
	db *badger.DB
}

// NewBadgerBackend opens a Badger database at path. An empty path opens
// an in-memory instance (tests, ephemeral deployments).
func NewBadgerBackend(path string) (*BadgerBackend, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, 0o750); err != nil {
			return nil, fmt.Errorf("create cache directory %s: %w", path, err)
		}
		opts = badger.DefaultOptions(path)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger cache: %w", err)
	}
	return &BadgerBackend{db: db}, nil
}

// Get returns the value if present and unexpired. Badger enforces the
// TTL itself; any read error is a miss.
func (b *BadgerBackend) Get(_ context.Context, key string) ([]byte, bool) {
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			log.Warn().Err(err).Str("key", key).Msg("Badger read degraded to miss")
		}
		return nil, false
	}
	return out, true
}

// Set writes the entry with Badger's native TTL.
func (b *BadgerBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	return b.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), value).WithTTL(ttl)
		return txn.SetEntry(e)
	})
}

// DeletePrefix removes every key under the given prefix.
func (b *BadgerBackend) DeletePrefix(_ context.Context, prefix string) error {
	return b.db.DropPrefix([]byte(prefix))
}

// Close closes the underlying database.
func (b *BadgerBackend) Close() error {
	return b.db.Close()
}
