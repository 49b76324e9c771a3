// Package embeddings defines the embedding provider contract used by the
// generator and its concrete provider implementations.
package embeddings

import "context"

// Embedder provides text embedding capabilities.
type Embedder interface {
	// Embed converts text into a vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts many texts in a single provider round trip.
	// The returned slice has the same length and order as texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Model reports the model identifier vectors are produced with.
	Model() string

	// Close releases any resources held by the embedder.
	Close() error
}
