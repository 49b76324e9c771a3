// Package memory assembles recall's semantic memory from configuration.
//
// The message store and event publisher are built eagerly because the API
// writes to them directly. The embedding generator and vector index are
// handed to semantic.Memory as factories so that nothing contacts an
// embedding provider or vector store until the first operation needs it.
//
// Providers are pluggable via configuration:
//
//	[storage]
//	provider = "sqlite"   # or "postgres", "memory"
//
//	[embedding]
//	provider = "ollama"   # or "openai", "hashing"
//
//	[vector_store]
//	provider = "flat"     # or "sqlite", "chroma", "qdrant"
//
//	[eventstream]
//	provider = ""         # or "kafka"
package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/papercomputeco/recall/pkg/config"
	"github.com/papercomputeco/recall/pkg/dotdir"
	"github.com/papercomputeco/recall/pkg/embeddings/cache"
	"github.com/papercomputeco/recall/pkg/embeddings/generator"
	embeddingutils "github.com/papercomputeco/recall/pkg/embeddings/utils"
	"github.com/papercomputeco/recall/pkg/eventstream"
	"github.com/papercomputeco/recall/pkg/eventstream/kafka"
	"github.com/papercomputeco/recall/pkg/eventstream/nop"
	"github.com/papercomputeco/recall/pkg/semantic"
	"github.com/papercomputeco/recall/pkg/storage"
	"github.com/papercomputeco/recall/pkg/storage/inmemory"
	"github.com/papercomputeco/recall/pkg/storage/postgres"
	"github.com/papercomputeco/recall/pkg/storage/sqlite"
	"github.com/papercomputeco/recall/pkg/vector"
	vectorutils "github.com/papercomputeco/recall/pkg/vector/utils"
)

const (
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
	StorageMemory   = "memory"

	EventStreamKafka = "kafka"
)

// KeyResolver looks up provider API keys. *credentials.Manager satisfies it.
type KeyResolver interface {
	ResolveKey(provider string) (string, error)
}

// Options configures New.
type Options struct {
	Config *config.Config

	// ConfigDir overrides the .recall/ directory used to resolve relative
	// file paths.
	ConfigDir string

	// Keys resolves embedding and vector store API keys. Optional.
	Keys KeyResolver
}

// Stack is a wired semantic memory together with the store and publisher it
// writes to.
type Stack struct {
	Memory    *semantic.Memory
	Store     storage.Driver
	Publisher eventstream.Publisher

	logger *slog.Logger
}

// New builds a Stack from configuration.
func New(ctx context.Context, o Options, logger *slog.Logger) (*Stack, error) {
	if o.Config == nil {
		return nil, fmt.Errorf("%w: nil config", ErrNotConfigured)
	}
	cfg := o.Config
	files := &fileResolver{dir: o.ConfigDir, ddm: dotdir.NewManager()}

	store, err := newStore(ctx, cfg.Storage, files, logger)
	if err != nil {
		return nil, err
	}

	publisher, err := newPublisher(cfg.EventStream, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	b := &builder{cfg: cfg, files: files, keys: o.Keys, logger: logger}
	mem := semantic.New(semantic.Config{
		Store:         store,
		NewGenerator:  b.newGenerator,
		NewIndex:      b.newIndex,
		Publisher:     publisher,
		DefaultK:      int(cfg.Memory.DefaultK),
		MinRelevance:  cfg.Memory.MinRelevance,
		SummaryWindow: int(cfg.Memory.SummaryWindow),
	}, logger)

	return &Stack{
		Memory:    mem,
		Store:     store,
		Publisher: publisher,
		logger:    logger,
	}, nil
}

// Close saves memory and releases every component.
func (s *Stack) Close() error {
	var errs []error
	if err := s.Memory.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing memory: %w", err))
	}
	if err := s.Publisher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing publisher: %w", err))
	}
	if err := s.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing store: %w", err))
	}
	return errors.Join(errs...)
}

type fileResolver struct {
	dir string
	ddm *dotdir.Manager
}

// path resolves name inside the .recall/ directory unless it is absolute.
func (f *fileResolver) path(name string) (string, error) {
	if name == "" {
		return "", nil
	}
	return f.ddm.File(f.dir, name)
}

func newStore(ctx context.Context, c config.StorageConfig, files *fileResolver, logger *slog.Logger) (storage.Driver, error) {
	switch c.Provider {
	case StorageSQLite:
		path, err := files.path(c.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("resolving sqlite path: %w", err)
		}
		driver, err := sqlite.NewSQLiteDriver(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite storer: %w", err)
		}
		logger.Info("using SQLite storage", "path", path)
		return driver, nil
	case StoragePostgres:
		driver, err := postgres.NewDriver(ctx, c.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL storer: %w", err)
		}
		logger.Info("using PostgreSQL storage")
		return driver, nil
	case StorageMemory:
		logger.Info("using in-memory storage")
		return inmemory.NewDriver(), nil
	case "":
		return nil, fmt.Errorf("%w: no storage provider", ErrNotConfigured)
	default:
		return nil, fmt.Errorf("%w: unsupported storage provider %q", ErrNotConfigured, c.Provider)
	}
}

func newPublisher(c config.EventStreamConfig, logger *slog.Logger) (eventstream.Publisher, error) {
	switch c.Provider {
	case "", "none":
		return nop.NewPublisher(), nil
	case EventStreamKafka:
		var brokers []string
		for b := range strings.SplitSeq(c.Brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
		return kafka.NewPublisher(kafka.Config{Brokers: brokers, Topic: c.Topic}, logger)
	default:
		return nil, fmt.Errorf("%w: unsupported event stream provider %q", ErrNotConfigured, c.Provider)
	}
}

// builder holds what the lazy factories need.
type builder struct {
	cfg    *config.Config
	files  *fileResolver
	keys   KeyResolver
	logger *slog.Logger
}

func (b *builder) apiKey(provider string) string {
	if b.keys == nil {
		return ""
	}
	key, err := b.keys.ResolveKey(provider)
	if err != nil {
		b.logger.Warn("failed to resolve API key", "provider", provider, "error", err)
		return ""
	}
	return key
}

func (b *builder) newGenerator(_ context.Context) (semantic.EmbeddingGenerator, error) {
	ec := b.cfg.Embedding

	embedder, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: ec.Provider,
		TargetURL:    ec.Target,
		Model:        ec.Model,
		APIKey:       b.apiKey(ec.Provider),
		Dimensions:   int(ec.Dimensions),
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	cachePath, err := b.files.path(b.cfg.Cache.Path)
	if err != nil {
		return nil, fmt.Errorf("resolving cache path: %w", err)
	}

	cacheCfg := cache.Config{
		Path:       cachePath,
		Model:      embedder.Model(),
		Dimensions: int(ec.Dimensions),
		TTL:        parseDuration(b.cfg.Cache.TTL),
		FlushEvery: int(b.cfg.Cache.FlushEvery),
		MaxEntries: int(b.cfg.Cache.MaxEntries),
	}
	c, err := cache.New(cacheCfg, b.logger)
	if errors.Is(err, cache.ErrModelMismatch) || errors.Is(err, vector.ErrDimensionMismatch) {
		// Vectors from another model or size are useless; start over.
		b.logger.Warn("discarding embedding cache written for another model", "path", cachePath)
		if rmErr := os.Remove(cachePath); rmErr != nil {
			embedder.Close()
			return nil, fmt.Errorf("removing stale embedding cache: %w", rmErr)
		}
		c, err = cache.New(cacheCfg, b.logger)
	}
	if err != nil {
		embedder.Close()
		return nil, fmt.Errorf("opening embedding cache: %w", err)
	}

	gen, err := generator.New(generator.Config{
		Embedder:          embedder,
		Cache:             c,
		Dimensions:        int(ec.Dimensions),
		BatchSize:         int(ec.BatchSize),
		MaxRetries:        ec.MaxRetries,
		BaseDelay:         parseDuration(ec.BaseDelay),
		SlowCallThreshold: parseDuration(ec.SlowCallThreshold),
		OnRetry: func(err error, wait time.Duration) {
			b.logger.Warn("retrying embedding call", "error", err, "backoff", wait)
		},
	}, b.logger)
	if err != nil {
		embedder.Close()
		return nil, err
	}

	b.logger.Info("using embedding provider",
		"provider", ec.Provider,
		"model", gen.Model(),
		"dimensions", gen.Dimensions(),
	)
	return gen, nil
}

func (b *builder) newIndex(_ context.Context, dimensions int, model string) (vector.VectorDriver, error) {
	vc := b.cfg.VectorStore

	path, err := b.files.path(vc.Path)
	if err != nil {
		return nil, fmt.Errorf("resolving vector store path: %w", err)
	}

	driver, err := vectorutils.NewVectorDriver(&vectorutils.NewVectorDriverOpts{
		ProviderType: vc.Provider,
		TargetURL:    vc.Target,
		Path:         path,
		Collection:   vc.Collection,
		APIKey:       b.apiKey(vc.Provider),
		Dimensions:   dimensions,
		Model:        model,
		Logger:       b.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating vector store: %w", err)
	}
	return driver, nil
}

// parseDuration returns 0 for empty or invalid values so the component
// default applies. Config validation rejects invalid values on write.
func parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}
