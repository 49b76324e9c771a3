// Package cache is a content-addressed, TTL-bounded store of embedding
// vectors with periodic JSON snapshots.
//
// Expiry is logical: an entry older than the TTL reads as a miss but stays in
// memory until the next snapshot drops it. The in-memory set is an LRU capped
// at MaxEntries, so a snapshot never holds more than the MaxEntries most
// recently used entries.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	DefaultTTL        = 24 * time.Hour
	DefaultFlushEvery = 50
	DefaultMaxEntries = 1000
)

var (
	// ErrModelMismatch is returned when a snapshot was written for a
	// different embedding model.
	ErrModelMismatch = errors.New("embedding cache model mismatch")

	// ErrUnsupportedVersion is returned for snapshots newer than this build.
	ErrUnsupportedVersion = errors.New("unsupported embedding cache version")
)

// Config holds configuration for the cache.
type Config struct {
	// Path is the snapshot file. Empty disables persistence.
	Path string

	// Model and Dimensions are recorded in the snapshot and validated on load.
	Model      string
	Dimensions int

	// TTL defaults to DefaultTTL.
	TTL time.Duration

	// FlushEvery snapshots after this many writes. Defaults to DefaultFlushEvery.
	FlushEvery int

	// MaxEntries bounds memory and snapshot size. Defaults to DefaultMaxEntries.
	MaxEntries int

	// Now overrides the clock.
	Now func() time.Time
}

type entry struct {
	hash       string
	vector     []float32
	insertedAt time.Time
}

// Cache is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	lru     *lru.Cache[string, *entry]
	pending int

	path       string
	model      string
	dimensions int
	ttl        time.Duration
	flushEvery int
	maxEntries int
	now        func() time.Time
	logger     *slog.Logger
}

// New creates a cache and loads its snapshot when one exists.
func New(c Config, logger *slog.Logger) (*Cache, error) {
	cache := &Cache{
		path:       c.Path,
		model:      c.Model,
		dimensions: c.Dimensions,
		ttl:        c.TTL,
		flushEvery: c.FlushEvery,
		maxEntries: c.MaxEntries,
		now:        c.Now,
		logger:     logger,
	}
	if cache.ttl <= 0 {
		cache.ttl = DefaultTTL
	}
	if cache.flushEvery <= 0 {
		cache.flushEvery = DefaultFlushEvery
	}
	if cache.maxEntries <= 0 {
		cache.maxEntries = DefaultMaxEntries
	}
	if cache.now == nil {
		cache.now = time.Now
	}

	l, err := lru.New[string, *entry](cache.maxEntries)
	if err != nil {
		return nil, fmt.Errorf("creating embedding cache: %w", err)
	}
	cache.lru = l

	if cache.path != "" {
		if err := cache.load(); err != nil {
			return nil, err
		}
	}

	return cache, nil
}

// Key returns the content hash used to address text.
func Key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Get returns a copy of the cached vector for text. Expired entries are
// reported as misses.
func (c *Cache) Get(text string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Peek(Key(text))
	if !ok || c.expired(e) {
		return nil, false
	}

	c.lru.Get(e.hash)
	return append([]float32(nil), e.vector...), true
}

// Put stores vec for text, evicting the least recently used entry when full.
// Every FlushEvery writes trigger a snapshot.
func (c *Cache) Put(text string, vec []float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := Key(text)
	e := &entry{
		hash:       key,
		vector:     append([]float32(nil), vec...),
		insertedAt: c.now(),
	}

	c.lru.Add(key, e)

	c.pending++
	if c.pending >= c.flushEvery {
		return c.flushLocked()
	}

	return nil
}

// Len reports how many entries are physically held, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Flush writes a snapshot now, dropping expired entries.
func (c *Cache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flushLocked()
}

// Close flushes pending writes.
func (c *Cache) Close() error {
	return c.Flush()
}

func (c *Cache) expired(e *entry) bool {
	return c.now().Sub(e.insertedAt) > c.ttl
}

func (c *Cache) flushLocked() error {
	for _, e := range c.lru.Values() {
		if c.expired(e) {
			c.lru.Remove(e.hash)
		}
	}

	c.pending = 0
	if c.path == "" {
		return nil
	}

	if err := c.writeSnapshot(); err != nil {
		return fmt.Errorf("writing embedding cache snapshot: %w", err)
	}

	c.logger.Debug("flushed embedding cache", "path", c.path, "entries", c.lru.Len())

	return nil
}
