// Package vector provides interfaces and implementations for vector storage
// and nearest-neighbour search.
package vector

import "context"

// Document represents a stored vector with its metadata.
type Document struct {
	// ID is a unique identifier for the document (typically the message ID).
	ID string

	// Embedding is the vector representation of the document content.
	Embedding []float32

	// Metadata is an opaque bag persisted alongside the vector.
	Metadata map[string]any
}

// QueryResult represents a search result with similarity score.
type QueryResult struct {
	Document

	// Score is the cosine similarity to the query, in [-1, 1].
	Score float32
}

// VectorDriver handles storage and retrieval of vector embeddings.
type VectorDriver interface {
	// Add stores a single document. A document with the same ID is replaced.
	Add(ctx context.Context, doc Document) error

	// AddBatch stores many documents. Every embedding is validated before
	// anything is written, so a dimension mismatch leaves the index untouched.
	AddBatch(ctx context.Context, docs []Document) error

	// Query returns up to topK documents ordered by descending cosine
	// similarity, ties broken by ascending ID. topK <= 0 yields no results.
	Query(ctx context.Context, embedding []float32, topK int) ([]QueryResult, error)

	// Count returns the number of stored documents.
	Count(ctx context.Context) (int, error)

	// Save persists the index. Drivers that are durable per write treat it as
	// a no-op.
	Save(ctx context.Context) error

	// Dimensions reports the vector length D every document must have.
	Dimensions() int

	// Close releases any resources held by the driver.
	Close() error
}
