// Package flat provides an exact, in-process vector driver that scores every
// stored vector on each query and persists itself as a single binary snapshot.
package flat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/papercomputeco/recall/pkg/vector"
)

// FlatDriver implements vector.VectorDriver with brute-force cosine search.
type FlatDriver struct {
	mu         sync.RWMutex
	docs       map[string]vector.Document
	path       string
	dimensions int
	model      string
	dirty      bool
	logger     *slog.Logger
}

// Config holds configuration for the flat driver.
type Config struct {
	// Path is the snapshot file. Empty keeps the index in memory only.
	Path string

	// Dimensions is the vector length every document must have.
	Dimensions int

	// Model names the embedding model that produced the vectors. It is
	// recorded in the snapshot, and a snapshot from another model is
	// rejected on load. Empty disables the check.
	Model string
}

// NewFlatDriver creates a flat driver, loading Path when it exists.
func NewFlatDriver(c Config, logger *slog.Logger) (*FlatDriver, error) {
	if c.Dimensions <= 0 {
		return nil, errors.New("flat index dimensions must be configured")
	}

	d := &FlatDriver{
		docs:       make(map[string]vector.Document),
		path:       c.Path,
		dimensions: c.Dimensions,
		model:      c.Model,
		logger:     logger,
	}

	if c.Path != "" {
		if err := d.load(); err != nil {
			return nil, err
		}
	}

	logger.Info("flat vector driver initialized",
		"path", c.Path,
		"dimensions", c.Dimensions,
		"model", c.Model,
		"documents", len(d.docs),
	)

	return d, nil
}

// Add stores a single document.
func (d *FlatDriver) Add(ctx context.Context, doc vector.Document) error {
	return d.AddBatch(ctx, []vector.Document{doc})
}

// AddBatch validates every document, then stores them all under one lock.
func (d *FlatDriver) AddBatch(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	for _, doc := range docs {
		if doc.ID == "" {
			return errors.New("document id is required")
		}
		if err := vector.CheckDimensions(doc.Embedding, d.dimensions); err != nil {
			return fmt.Errorf("document %s: %w", doc.ID, err)
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, doc := range docs {
		d.docs[doc.ID] = vector.Document{
			ID:        doc.ID,
			Embedding: append([]float32(nil), doc.Embedding...),
			Metadata:  cloneMetadata(doc.Metadata),
		}
	}
	d.dirty = true

	d.logger.Debug("added documents to flat index", "count", len(docs))

	return nil
}

// Query scores every stored document against embedding.
func (d *FlatDriver) Query(ctx context.Context, embedding []float32, topK int) ([]vector.QueryResult, error) {
	if err := vector.CheckDimensions(embedding, d.dimensions); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return []vector.QueryResult{}, nil
	}

	d.mu.RLock()
	results := make([]vector.QueryResult, 0, len(d.docs))
	for _, doc := range d.docs {
		results = append(results, vector.QueryResult{
			Document: vector.Document{
				ID:       doc.ID,
				Metadata: cloneMetadata(doc.Metadata),
			},
			Score: float32(vector.Cosine(embedding, doc.Embedding)),
		})
	}
	d.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return vector.TopK(results, topK), nil
}

// Count returns the number of stored documents.
func (d *FlatDriver) Count(_ context.Context) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.docs), nil
}

// Save writes the snapshot when the index changed since the last save.
func (d *FlatDriver) Save(_ context.Context) error {
	if d.path == "" {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.dirty {
		return nil
	}

	if err := writeSnapshot(d.path, d.dimensions, d.model, d.docs); err != nil {
		return err
	}
	d.dirty = false

	d.logger.Debug("saved flat index", "path", d.path, "documents", len(d.docs))

	return nil
}

// Dimensions returns the configured vector length.
func (d *FlatDriver) Dimensions() int {
	return d.dimensions
}

// Close saves pending changes.
func (d *FlatDriver) Close() error {
	return d.Save(context.Background())
}

func (d *FlatDriver) load() error {
	f, err := os.Open(d.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("opening index snapshot: %w", err)
	}
	defer f.Close()

	docs, err := readSnapshot(f, d.dimensions, d.model)
	if err != nil {
		return fmt.Errorf("loading index snapshot %s: %w", d.path, err)
	}

	for _, doc := range docs {
		d.docs[doc.ID] = doc
	}

	return nil
}

func cloneMetadata(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

var _ vector.VectorDriver = (*FlatDriver)(nil)
