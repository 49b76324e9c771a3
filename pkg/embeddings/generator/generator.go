// Package generator turns text into embedding vectors through a cache, a
// batching layer and a retry policy in front of an embeddings.Embedder.
package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/papercomputeco/recall/pkg/embeddings"
	"github.com/papercomputeco/recall/pkg/embeddings/cache"
	"github.com/papercomputeco/recall/pkg/vector"
)

const (
	DefaultBatchSize         = 100
	DefaultMaxRetries        = 3
	DefaultBaseDelay         = time.Second
	DefaultSlowCallThreshold = 2 * time.Second
)

// Config holds configuration for the Generator.
type Config struct {
	// Embedder is the provider. A nil Embedder makes every generation fail
	// with embeddings.ErrProviderUnavailable.
	Embedder embeddings.Embedder

	// Cache is optional; an unpersisted cache is created when nil.
	Cache *cache.Cache

	// Dimensions is the vector length D the provider must return.
	Dimensions int

	// BatchSize caps texts per provider call. Defaults to DefaultBatchSize.
	BatchSize int

	// MaxRetries is the number of retries after the first attempt.
	// Defaults to DefaultMaxRetries.
	MaxRetries uint

	// BaseDelay is the first backoff interval; it doubles on each retry.
	// Defaults to DefaultBaseDelay.
	BaseDelay time.Duration

	// SlowCallThreshold logs a warning for provider calls that take longer.
	// Defaults to DefaultSlowCallThreshold.
	SlowCallThreshold time.Duration

	// OnRetry is called before each backoff sleep.
	OnRetry func(err error, delay time.Duration)
}

// Stats counts cache lookups.
type Stats struct {
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
	Total  uint64 `json:"total"`
}

// HitRate is Hits/Total, or 0 before any lookup.
func (s Stats) HitRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Total)
}

// Generator is safe for concurrent use. Provider calls within one
// GenerateBatch are issued sequentially.
type Generator struct {
	embedder   embeddings.Embedder
	cache      *cache.Cache
	dimensions int
	batchSize  int
	maxRetries uint
	baseDelay  time.Duration
	slowCall   time.Duration
	onRetry    func(error, time.Duration)
	logger     *slog.Logger

	hits   atomic.Uint64
	misses atomic.Uint64
}

// New creates a Generator.
func New(c Config, logger *slog.Logger) (*Generator, error) {
	if c.Dimensions <= 0 {
		return nil, errors.New("embedding dimensions must be configured")
	}

	g := &Generator{
		embedder:   c.Embedder,
		cache:      c.Cache,
		dimensions: c.Dimensions,
		batchSize:  c.BatchSize,
		maxRetries: c.MaxRetries,
		baseDelay:  c.BaseDelay,
		slowCall:   c.SlowCallThreshold,
		onRetry:    c.OnRetry,
		logger:     logger,
	}
	if g.batchSize <= 0 {
		g.batchSize = DefaultBatchSize
	}
	if g.maxRetries == 0 {
		g.maxRetries = DefaultMaxRetries
	}
	if g.baseDelay <= 0 {
		g.baseDelay = DefaultBaseDelay
	}
	if g.slowCall <= 0 {
		g.slowCall = DefaultSlowCallThreshold
	}

	if g.cache == nil {
		var err error
		g.cache, err = cache.New(cache.Config{Model: g.Model(), Dimensions: c.Dimensions}, logger)
		if err != nil {
			return nil, err
		}
	}

	return g, nil
}

// Generate returns the embedding for text, serving it from cache when fresh.
func (g *Generator) Generate(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, embeddings.ErrEmptyInput
	}
	if g.embedder == nil {
		return nil, embeddings.ErrProviderUnavailable
	}

	if vec, ok := g.CachedEmbedding(text); ok {
		return vec, nil
	}

	vecs, err := g.call(ctx, []string{text}, false)
	if err != nil {
		return nil, err
	}

	g.CacheEmbedding(text, vecs[0])

	return vecs[0], nil
}

// GenerateBatch returns one embedding per text in input order. Texts are
// split into batches of BatchSize; each batch makes at most one provider
// call covering only its uncached texts.
func (g *Generator) GenerateBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, fmt.Errorf("text %d: %w", i, embeddings.ErrEmptyInput)
		}
	}
	if g.embedder == nil {
		return nil, embeddings.ErrProviderUnavailable
	}

	out := make([][]float32, len(texts))

	for start := 0; start < len(texts); start += g.batchSize {
		end := min(start+g.batchSize, len(texts))

		var (
			missIdx   []int
			missTexts []string
		)
		for i := start; i < end; i++ {
			if vec, ok := g.CachedEmbedding(texts[i]); ok {
				out[i] = vec
				continue
			}
			missIdx = append(missIdx, i)
			missTexts = append(missTexts, texts[i])
		}

		if len(missTexts) == 0 {
			continue
		}

		vecs, err := g.call(ctx, missTexts, true)
		if err != nil {
			return nil, fmt.Errorf("embedding batch [%d:%d]: %w", start, end, err)
		}

		for j, i := range missIdx {
			out[i] = vecs[j]
			g.CacheEmbedding(texts[i], vecs[j])
		}

		g.logger.Debug("embedded batch",
			"start", start,
			"size", end-start,
			"cache_misses", len(missTexts),
		)
	}

	return out, nil
}

// CachedEmbedding returns the cached vector for text and records a hit or miss.
func (g *Generator) CachedEmbedding(text string) ([]float32, bool) {
	vec, ok := g.cache.Get(text)
	if ok {
		g.hits.Add(1)
	} else {
		g.misses.Add(1)
	}
	return vec, ok
}

// CacheEmbedding stores vec for text. Snapshot failures are logged, not
// returned, since the vector itself is valid.
func (g *Generator) CacheEmbedding(text string, vec []float32) {
	if err := g.cache.Put(text, vec); err != nil {
		g.logger.Warn("embedding cache flush failed", "error", err)
	}
}

// Stats returns cache hit/miss counters.
func (g *Generator) Stats() Stats {
	hits, misses := g.hits.Load(), g.misses.Load()
	return Stats{Hits: hits, Misses: misses, Total: hits + misses}
}

// Dimensions returns D.
func (g *Generator) Dimensions() int {
	return g.dimensions
}

// Model returns the provider's model, or "" without a provider.
func (g *Generator) Model() string {
	if g.embedder == nil {
		return ""
	}
	return g.embedder.Model()
}

// Flush snapshots the cache.
func (g *Generator) Flush() error {
	return g.cache.Flush()
}

// Close flushes the cache and closes the provider.
func (g *Generator) Close() error {
	err := g.cache.Close()
	if g.embedder != nil {
		err = errors.Join(err, g.embedder.Close())
	}
	return err
}

// call invokes the provider with exponential backoff. Authorization,
// availability, input and dimension errors are permanent.
func (g *Generator) call(ctx context.Context, texts []string, batch bool) ([][]float32, error) {
	op := func() ([][]float32, error) {
		start := time.Now()

		var (
			vecs [][]float32
			err  error
		)
		if batch {
			vecs, err = g.embedder.EmbedBatch(ctx, texts)
		} else {
			var vec []float32
			vec, err = g.embedder.Embed(ctx, texts[0])
			vecs = [][]float32{vec}
		}

		if elapsed := time.Since(start); elapsed > g.slowCall {
			g.logger.Warn("slow embedding provider call",
				"duration", elapsed,
				"threshold", g.slowCall,
				"texts", len(texts),
			)
		}

		if err != nil {
			if isPermanent(err) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}

		if len(vecs) != len(texts) {
			return nil, fmt.Errorf("%w: expected %d embeddings, got %d", embeddings.ErrProvider, len(texts), len(vecs))
		}
		for _, v := range vecs {
			if err := vector.CheckDimensions(v, g.dimensions); err != nil {
				return nil, backoff.Permanent(err)
			}
		}

		return vecs, nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = g.baseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = time.Duration(math.MaxInt64)

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(g.maxRetries+1),
		backoff.WithNotify(func(err error, delay time.Duration) {
			g.logger.Warn("embedding provider call failed, retrying", "error", err, "delay", delay)
			if g.onRetry != nil {
				g.onRetry(err, delay)
			}
		}),
	)
}

func isPermanent(err error) bool {
	return errors.Is(err, embeddings.ErrAuth) ||
		errors.Is(err, embeddings.ErrProviderUnavailable) ||
		errors.Is(err, embeddings.ErrEmptyInput) ||
		errors.Is(err, vector.ErrDimensionMismatch)
}
