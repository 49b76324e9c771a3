// Package hashing implements an offline, deterministic Embedder. Each word
// token seeds a pseudo-random dense vector; a text's vector is the normalized
// sum over its tokens, so texts that share words land close together.
package hashing

import (
	"context"
	"hash/fnv"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/papercomputeco/recall/pkg/embeddings"
)

const (
	// DefaultDimensions matches common small sentence-embedding models.
	DefaultDimensions = 384

	modelPrefix = "hashing-"
)

// Embedder produces bag-of-words feature vectors without any network access.
type Embedder struct {
	dimensions int
}

// EmbedderConfig holds configuration for the hashing embedder.
type EmbedderConfig struct {
	// Dimensions defaults to DefaultDimensions when zero.
	Dimensions int
}

// NewEmbedder creates a new hashing embedder.
func NewEmbedder(cfg EmbedderConfig) *Embedder {
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &Embedder{dimensions: dims}
}

// Embed returns the unit-length vector for text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sum := make([]float64, e.dimensions)
	tokens := tokenize(text)
	if len(tokens) == 0 {
		tokens = []string{text}
	}

	for _, tok := range tokens {
		h := fnv.New64a()
		h.Write([]byte(tok))
		seed := h.Sum64()

		for i := range sum {
			seed = seed*6364136223846793005 + 1442695040888963407
			sum[i] += float64(int64(seed)) / float64(math.MaxInt64)
		}
	}

	return normalize(sum), nil
}

// EmbedBatch embeds each text in order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Model identifies the embedder and its dimensionality, so cache snapshots
// from differently sized hashing embedders never mix.
func (e *Embedder) Model() string {
	return modelPrefix + strconv.Itoa(e.dimensions)
}

// Dimensions returns the embedding size.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

func (e *Embedder) Close() error {
	return nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func normalize(vec []float64) []float32 {
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	out := make([]float32, len(vec))
	if norm == 0 {
		return out
	}
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out
}

var _ embeddings.Embedder = (*Embedder)(nil)
