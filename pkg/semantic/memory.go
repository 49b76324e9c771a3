// Package semantic composes an embedding generator, a vector index and a
// message store into searchable conversational memory.
package semantic

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/papercomputeco/recall/pkg/embeddings/generator"
	"github.com/papercomputeco/recall/pkg/eventstream"
	"github.com/papercomputeco/recall/pkg/storage"
	"github.com/papercomputeco/recall/pkg/storage/inmemory"
	"github.com/papercomputeco/recall/pkg/vector"
	"github.com/papercomputeco/recall/pkg/vector/flat"
)

const (
	DefaultK             = 10
	DefaultMinRelevance  = 0.7
	DefaultSummaryTopK   = 5
	DefaultSummaryWindow = 50
	DefaultSimilarK      = 5

	// RecencyWindow is the decay constant of the recency signal.
	RecencyWindow = 7 * 24 * time.Hour

	similarityWeight = 0.7
	recencyWeight    = 0.3
	centralityWeight = 0.6
	importanceWeight = 0.4
)

// EmbeddingGenerator is the embedding side of memory. *generator.Generator
// satisfies it.
type EmbeddingGenerator interface {
	Generate(ctx context.Context, text string) ([]float32, error)
	GenerateBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Model() string
	Stats() generator.Stats
	Flush() error
	Close() error
}

// Config wires a Memory. Dependencies left nil are built by the matching
// factory on first use; without a factory the store defaults to an
// in-memory driver and the index to an unpersisted flat index.
type Config struct {
	Store     storage.Reader
	Generator EmbeddingGenerator
	Index     vector.VectorDriver

	NewStore     func(ctx context.Context) (storage.Reader, error)
	NewGenerator func(ctx context.Context) (EmbeddingGenerator, error)
	NewIndex     func(ctx context.Context, dimensions int, model string) (vector.VectorDriver, error)

	// Publisher receives an event after each successful index write.
	Publisher eventstream.Publisher

	DefaultK      int
	MinRelevance  float64
	SummaryWindow int

	// Now is the clock used for recency. Defaults to time.Now.
	Now func() time.Time
}

// Memory is semantic memory over a message store. It is safe for concurrent
// use; initialization happens once, on the first call that needs it.
type Memory struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	mu          sync.Mutex
	initialized bool
	store       storage.Reader
	gen         EmbeddingGenerator
	index       vector.VectorDriver

	// owned holds dependencies built by factories, closed by Close.
	owned []io.Closer
}

// New creates a Memory. Nothing is constructed until Initialize.
func New(cfg Config, logger *slog.Logger) *Memory {
	if cfg.DefaultK <= 0 {
		cfg.DefaultK = DefaultK
	}
	if cfg.MinRelevance == 0 {
		cfg.MinRelevance = DefaultMinRelevance
	}
	if cfg.SummaryWindow <= 0 {
		cfg.SummaryWindow = DefaultSummaryWindow
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Memory{
		cfg:    cfg,
		logger: logger,
		now:    now,
		store:  cfg.Store,
		gen:    cfg.Generator,
		index:  cfg.Index,
	}
}

// Initialize builds missing dependencies and checks that the generator and
// index agree on dimensionality. Calls after a successful one are no-ops.
func (m *Memory) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return nil
	}

	if m.store == nil {
		if m.cfg.NewStore != nil {
			s, err := m.cfg.NewStore(ctx)
			if err != nil {
				return fmt.Errorf("creating message store: %w", err)
			}
			m.store = s
			m.own(s)
		} else {
			m.store = inmemory.NewDriver()
		}
	}

	if m.gen == nil {
		if m.cfg.NewGenerator == nil {
			return ErrNoGenerator
		}
		g, err := m.cfg.NewGenerator(ctx)
		if err != nil {
			return fmt.Errorf("creating embedding generator: %w", err)
		}
		m.gen = g
		m.own(g)
	}

	if m.index == nil {
		var (
			idx vector.VectorDriver
			err error
		)
		if m.cfg.NewIndex != nil {
			idx, err = m.cfg.NewIndex(ctx, m.gen.Dimensions(), m.gen.Model())
		} else {
			idx, err = flat.NewFlatDriver(flat.Config{Dimensions: m.gen.Dimensions()}, m.logger)
		}
		if err != nil {
			return fmt.Errorf("creating vector index: %w", err)
		}
		m.index = idx
		m.own(idx)
	}

	if m.gen.Dimensions() != m.index.Dimensions() {
		return fmt.Errorf("generator and index disagree: %w", &vector.DimensionMismatchError{
			Expected: m.index.Dimensions(),
			Actual:   m.gen.Dimensions(),
		})
	}

	m.initialized = true
	m.logger.Debug("semantic memory initialized",
		"model", m.gen.Model(),
		"dimensions", m.gen.Dimensions(),
	)
	return nil
}

func (m *Memory) own(v any) {
	if c, ok := v.(io.Closer); ok {
		m.owned = append(m.owned, c)
	}
}

// Save flushes the embedding cache and persists the index.
func (m *Memory) Save(ctx context.Context) error {
	if err := m.Initialize(ctx); err != nil {
		return err
	}

	var errs []error
	if err := m.gen.Flush(); err != nil {
		errs = append(errs, fmt.Errorf("flushing embedding cache: %w", err))
	}
	if err := m.index.Save(ctx); err != nil {
		errs = append(errs, fmt.Errorf("saving vector index: %w", err))
	}
	return errors.Join(errs...)
}

// Close saves and then closes the dependencies Memory built itself.
func (m *Memory) Close() error {
	m.mu.Lock()
	initialized := m.initialized
	m.mu.Unlock()

	var errs []error
	if initialized {
		errs = append(errs, m.Save(context.Background()))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.owned) - 1; i >= 0; i-- {
		errs = append(errs, m.owned[i].Close())
	}
	m.owned = nil
	m.initialized = false

	// Injected dependencies survive; built ones are rebuilt on next use.
	m.store = m.cfg.Store
	m.gen = m.cfg.Generator
	m.index = m.cfg.Index

	return errors.Join(errs...)
}

// Stats reports cache counters and the index size.
func (m *Memory) Stats(ctx context.Context) (*Stats, error) {
	if err := m.Initialize(ctx); err != nil {
		return nil, err
	}

	n, err := m.index.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting index documents: %w", err)
	}

	s := m.gen.Stats()
	return &Stats{
		Cache:      s,
		HitRate:    s.HitRate(),
		Documents:  n,
		Model:      m.gen.Model(),
		Dimensions: m.gen.Dimensions(),
	}, nil
}

// Store returns the message store, initializing on first use.
func (m *Memory) Store(ctx context.Context) (storage.Reader, error) {
	if err := m.Initialize(ctx); err != nil {
		return nil, err
	}
	return m.store, nil
}

func (m *Memory) publish(ctx context.Context, op, sessionID string, ids []string, skipped int, d time.Duration) {
	if m.cfg.Publisher == nil || len(ids) == 0 {
		return
	}

	event := eventstream.NewMessagesIndexedEvent(op, ids, m.now())
	event.SessionID = sessionID
	event.Skipped = skipped
	event.Model = m.gen.Model()
	event.Dimensions = m.gen.Dimensions()
	event.DurationMs = d.Milliseconds()

	if err := m.cfg.Publisher.PublishIndexed(ctx, event); err != nil {
		m.logger.Warn("failed to publish indexed event", "operation", op, "error", err)
	}
}
