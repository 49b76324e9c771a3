// Package qdrant provides a Qdrant vector database driver implementation
// over Qdrant's gRPC API.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	qc "github.com/qdrant/go-client/qdrant"

	"github.com/papercomputeco/recall/pkg/vector"
)

const (
	// DefaultCollectionName is the default collection name for storing recall embeddings.
	DefaultCollectionName = "recall"

	// DefaultPort is Qdrant's gRPC port.
	DefaultPort = 6334

	// idPayloadKey holds the caller's document ID; Qdrant point IDs must be
	// unsigned integers or UUIDs.
	idPayloadKey = "_recall_id"
)

// pointNamespace seeds the UUIDv5 derivation of point IDs.
var pointNamespace = uuid.MustParse("9b0a4c55-0a6d-4f4b-8f0b-1f1c9f6e2a71")

// Driver implements vector.VectorDriver using Qdrant.
type Driver struct {
	client     *qc.Client
	collection string
	dimensions int
	logger     *slog.Logger
}

// Config holds configuration for the Qdrant driver.
type Config struct {
	// Host is the Qdrant host (e.g., "localhost").
	Host string

	// Port is the gRPC port. Defaults to DefaultPort.
	Port int

	// APIKey is optional.
	APIKey string

	// UseTLS enables TLS on the gRPC connection.
	UseTLS bool

	// CollectionName defaults to DefaultCollectionName if empty.
	CollectionName string

	// Dimensions is the vector length every document must have.
	Dimensions int
}

// NewDriver connects to Qdrant and creates the collection with cosine
// distance when it does not exist.
func NewDriver(c Config, logger *slog.Logger) (*Driver, error) {
	if c.Host == "" {
		return nil, errors.New("qdrant host is required")
	}
	if c.Dimensions <= 0 {
		return nil, errors.New("qdrant embedding dimensions must be configured")
	}

	port := c.Port
	if port == 0 {
		port = DefaultPort
	}

	collection := c.CollectionName
	if collection == "" {
		collection = DefaultCollectionName
	}

	client, err := qc.NewClient(&qc.Config{
		Host:   c.Host,
		Port:   port,
		APIKey: c.APIKey,
		UseTLS: c.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vector.ErrConnection, err)
	}

	ctx := context.Background()
	exists, err := client.CollectionExists(ctx, collection)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: checking collection %q: %v", vector.ErrConnection, collection, err)
	}

	if !exists {
		err := client.CreateCollection(ctx, &qc.CreateCollection{
			CollectionName: collection,
			VectorsConfig: qc.NewVectorsConfig(&qc.VectorParams{
				Size:     uint64(c.Dimensions),
				Distance: qc.Distance_Cosine,
			}),
		})
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("creating collection %q: %w", collection, err)
		}
	}

	logger.Info("connected to Qdrant",
		"host", c.Host,
		"port", port,
		"collection", collection,
		"created", !exists,
	)

	return &Driver{
		client:     client,
		collection: collection,
		dimensions: c.Dimensions,
		logger:     logger,
	}, nil
}

// Add stores a single document.
func (d *Driver) Add(ctx context.Context, doc vector.Document) error {
	return d.AddBatch(ctx, []vector.Document{doc})
}

// AddBatch upserts documents in one request and waits for it to apply.
func (d *Driver) AddBatch(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	points := make([]*qc.PointStruct, len(docs))
	for i, doc := range docs {
		if err := vector.CheckDimensions(doc.Embedding, d.dimensions); err != nil {
			return fmt.Errorf("document %s: %w", doc.ID, err)
		}

		payload, err := qc.TryValueMap(withID(doc))
		if err != nil {
			return fmt.Errorf("encoding payload for doc %s: %w", doc.ID, err)
		}

		points[i] = &qc.PointStruct{
			Id:      qc.NewID(pointID(doc.ID)),
			Vectors: qc.NewVectors(doc.Embedding...),
			Payload: payload,
		}
	}

	wait := true
	if _, err := d.client.Upsert(ctx, &qc.UpsertPoints{
		CollectionName: d.collection,
		Wait:           &wait,
		Points:         points,
	}); err != nil {
		return fmt.Errorf("upserting points: %w", err)
	}

	d.logger.Debug("added documents to qdrant", "count", len(docs))

	return nil
}

// Query returns the topK nearest points. Qdrant's cosine score is already
// a similarity.
func (d *Driver) Query(ctx context.Context, embedding []float32, topK int) ([]vector.QueryResult, error) {
	if err := vector.CheckDimensions(embedding, d.dimensions); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return []vector.QueryResult{}, nil
	}

	limit := uint64(topK)
	points, err := d.client.Query(ctx, &qc.QueryPoints{
		CollectionName: d.collection,
		Query:          qc.NewQuery(embedding...),
		Limit:          &limit,
		WithPayload:    qc.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("querying points: %w", err)
	}

	results := make([]vector.QueryResult, 0, len(points))
	for _, p := range points {
		meta := payloadToMap(p.GetPayload())
		id, _ := meta[idPayloadKey].(string)
		delete(meta, idPayloadKey)

		results = append(results, vector.QueryResult{
			Document: vector.Document{ID: id, Metadata: meta},
			Score:    p.GetScore(),
		})
	}

	d.logger.Debug("queried qdrant", "results", len(results))

	return vector.TopK(results, topK), nil
}

// Count returns the exact number of points in the collection.
func (d *Driver) Count(ctx context.Context) (int, error) {
	exact := true
	n, err := d.client.Count(ctx, &qc.CountPoints{
		CollectionName: d.collection,
		Exact:          &exact,
	})
	if err != nil {
		return 0, fmt.Errorf("counting points: %w", err)
	}
	return int(n), nil
}

// Save is a no-op: upserts wait for Qdrant to apply them.
func (d *Driver) Save(_ context.Context) error {
	return nil
}

// Dimensions returns the configured vector length.
func (d *Driver) Dimensions() int {
	return d.dimensions
}

// Close closes the gRPC connection.
func (d *Driver) Close() error {
	return d.client.Close()
}

// pointID maps an arbitrary document ID to a stable UUID.
func pointID(id string) string {
	return uuid.NewSHA1(pointNamespace, []byte(id)).String()
}

func withID(doc vector.Document) map[string]any {
	out := make(map[string]any, len(doc.Metadata)+1)
	for k, v := range doc.Metadata {
		out[k] = v
	}
	out[idPayloadKey] = doc.ID
	return out
}

func payloadToMap(payload map[string]*qc.Value) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = valueToAny(v)
	}
	return out
}

func valueToAny(v *qc.Value) any {
	switch kind := v.GetKind().(type) {
	case *qc.Value_StringValue:
		return kind.StringValue
	case *qc.Value_IntegerValue:
		return kind.IntegerValue
	case *qc.Value_DoubleValue:
		return kind.DoubleValue
	case *qc.Value_BoolValue:
		return kind.BoolValue
	case *qc.Value_StructValue:
		return payloadToMap(kind.StructValue.GetFields())
	case *qc.Value_ListValue:
		values := kind.ListValue.GetValues()
		out := make([]any, len(values))
		for i, item := range values {
			out[i] = valueToAny(item)
		}
		return out
	default:
		return nil
	}
}

var _ vector.VectorDriver = (*Driver)(nil)
