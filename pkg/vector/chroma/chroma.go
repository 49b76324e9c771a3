// Package chroma provides a Chroma vector database driver implementation.
package chroma

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/papercomputeco/recall/pkg/vector"
)

const (
	// DefaultCollectionName is the default collection name for storing recall embeddings.
	DefaultCollectionName = "recall"

	collectionsPath = "/api/v2/tenants/default_tenant/databases/default_database/collections"
)

// Driver implements vector.VectorDriver using Chroma's REST API.
type Driver struct {
	baseURL        string
	collectionName string
	collectionID   string
	dimensions     int
	httpClient     *http.Client
	logger         *slog.Logger
}

// Config holds configuration for the Chroma driver.
type Config struct {
	// URL is the Chroma server URL (e.g., "http://localhost:8000").
	URL string

	// CollectionName is the name of the collection to use.
	// Defaults to DefaultCollectionName if empty.
	CollectionName string

	// Dimensions is the vector length every document must have.
	Dimensions int

	// MaxRetries bounds connection attempts while Chroma starts up.
	// Defaults to 5.
	MaxRetries uint

	// RetryDelay is the first backoff interval. Defaults to 500ms.
	RetryDelay time.Duration

	// MaxRetryDelay caps the backoff interval. Defaults to 5s.
	MaxRetryDelay time.Duration
}

// NewDriver creates a new Chroma vector driver. The collection is
// created with cosine space when missing.
func NewDriver(c Config, logger *slog.Logger) (*Driver, error) {
	if c.URL == "" {
		return nil, errors.New("chroma URL is required")
	}
	if c.Dimensions <= 0 {
		return nil, errors.New("chroma embedding dimensions must be configured")
	}

	collectionName := c.CollectionName
	if collectionName == "" {
		collectionName = DefaultCollectionName
	}

	d := &Driver{
		baseURL:        c.URL,
		collectionName: collectionName,
		dimensions:     c.Dimensions,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}

	maxRetries := c.MaxRetries
	if maxRetries == 0 {
		maxRetries = 5
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cmp.Or(c.RetryDelay, 500*time.Millisecond)
	b.MaxInterval = cmp.Or(c.MaxRetryDelay, 5*time.Second)

	collection, err := backoff.Retry(context.Background(), func() (chromaCollection, error) {
		var col chromaCollection
		err := d.do(context.Background(), http.MethodPost, collectionsPath, chromaCreateRequest{
			Name:        collectionName,
			Metadata:    map[string]any{"hnsw:space": "cosine"},
			GetOrCreate: true,
		}, &col)
		return col, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(maxRetries),
		backoff.WithNotify(func(err error, wait time.Duration) {
			logger.Warn("chroma not ready, retrying", "error", err, "wait", wait)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("getting or creating collection %q after %d attempts: %w", collectionName, maxRetries, err)
	}
	d.collectionID = collection.ID

	logger.Info("connected to Chroma",
		"url", c.URL,
		"collection", collectionName,
		"collection_id", collection.ID,
	)

	return d, nil
}

// Add stores a single document.
func (d *Driver) Add(ctx context.Context, doc vector.Document) error {
	return d.AddBatch(ctx, []vector.Document{doc})
}

// AddBatch upserts documents with a single request.
func (d *Driver) AddBatch(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	req := chromaUpsertRequest{
		IDs:        make([]string, len(docs)),
		Embeddings: make([][]float32, len(docs)),
		Metadatas:  make([]map[string]any, len(docs)),
	}
	for i, doc := range docs {
		if err := vector.CheckDimensions(doc.Embedding, d.dimensions); err != nil {
			return fmt.Errorf("document %s: %w", doc.ID, err)
		}
		req.IDs[i] = doc.ID
		req.Embeddings[i] = doc.Embedding
		req.Metadatas[i] = doc.Metadata
	}

	if err := d.do(ctx, http.MethodPost, d.collectionPath("/upsert"), req, nil); err != nil {
		return fmt.Errorf("upserting documents: %w", err)
	}

	d.logger.Debug("added documents to chroma", "count", len(docs))

	return nil
}

// Query finds the topK most similar documents. Chroma reports cosine
// distance, converted here to similarity.
func (d *Driver) Query(ctx context.Context, embedding []float32, topK int) ([]vector.QueryResult, error) {
	if err := vector.CheckDimensions(embedding, d.dimensions); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return []vector.QueryResult{}, nil
	}

	var queryResp chromaQueryResponse
	err := d.do(ctx, http.MethodPost, d.collectionPath("/query"), chromaQueryRequest{
		QueryEmbeddings: [][]float32{embedding},
		NResults:        topK,
		Include:         []string{"metadatas", "distances"},
	}, &queryResp)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}

	results := []vector.QueryResult{}
	if len(queryResp.IDs) == 0 {
		return results, nil
	}

	for i, id := range queryResp.IDs[0] {
		result := vector.QueryResult{Document: vector.Document{ID: id}}
		if len(queryResp.Metadatas) > 0 && i < len(queryResp.Metadatas[0]) {
			result.Metadata = queryResp.Metadatas[0][i]
		}
		if len(queryResp.Distances) > 0 && i < len(queryResp.Distances[0]) {
			result.Score = 1.0 - queryResp.Distances[0][i]
		}
		results = append(results, result)
	}

	d.logger.Debug("queried chroma", "results", len(results))

	return vector.TopK(results, topK), nil
}

// Count returns the number of documents in the collection.
func (d *Driver) Count(ctx context.Context) (int, error) {
	var n int
	if err := d.do(ctx, http.MethodGet, d.collectionPath("/count"), nil, &n); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}

// Save is a no-op: Chroma persists server side.
func (d *Driver) Save(_ context.Context) error {
	return nil
}

// Dimensions returns the configured vector length.
func (d *Driver) Dimensions() int {
	return d.dimensions
}

// Close releases resources held by the driver.
func (d *Driver) Close() error {
	// HTTP client doesn't require explicit cleanup
	return nil
}

func (d *Driver) collectionPath(suffix string) string {
	return collectionsPath + "/" + d.collectionID + suffix
}

func (d *Driver) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, d.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", vector.ErrConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("chroma returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	return nil
}

var _ vector.VectorDriver = (*Driver)(nil)
