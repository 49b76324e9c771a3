// Package embeddingutils is the embeddings utility package
package embeddingutils

import (
	"fmt"

	"github.com/papercomputeco/recall/pkg/embeddings"
	"github.com/papercomputeco/recall/pkg/embeddings/hashing"
	"github.com/papercomputeco/recall/pkg/embeddings/ollama"
	"github.com/papercomputeco/recall/pkg/embeddings/openai"
)

const (
	ProviderOllama  = "ollama"
	ProviderOpenAI  = "openai"
	ProviderHashing = "hashing"
)

type NewEmbedderOpts struct {
	ProviderType string
	TargetURL    string
	Model        string
	APIKey       string
	Dimensions   int
}

func NewEmbedder(o *NewEmbedderOpts) (embeddings.Embedder, error) {
	switch o.ProviderType {
	case ProviderOllama:
		return ollama.NewEmbedder(ollama.EmbedderConfig{
			BaseURL: o.TargetURL,
			Model:   o.Model,
			APIKey:  o.APIKey,
		})
	case ProviderOpenAI:
		return openai.NewEmbedder(openai.EmbedderConfig{
			BaseURL:    o.TargetURL,
			Model:      o.Model,
			APIKey:     o.APIKey,
			Dimensions: o.Dimensions,
		})
	case ProviderHashing:
		return hashing.NewEmbedder(hashing.EmbedderConfig{Dimensions: o.Dimensions}), nil
	case "":
		return nil, fmt.Errorf("%w: no embedding provider configured", embeddings.ErrProviderUnavailable)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", o.ProviderType)
	}
}
