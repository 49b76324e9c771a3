package testutils

import (
	"context"
	"sync"
	"time"

	"github.com/papercomputeco/recall/pkg/embeddings"
	"github.com/papercomputeco/recall/pkg/embeddings/hashing"
)

// MockEmbedder is a test embedder that returns predictable embeddings and
// records every call.
type MockEmbedder struct {
	mu sync.Mutex

	// Embeddings overrides the vector returned for specific texts.
	Embeddings map[string][]float32

	// Errors are returned by successive calls, one per call, before the
	// embedder starts succeeding.
	Errors []error

	// FailOn causes any call containing this text to fail with ErrAuth.
	FailOn string

	// Delay is slept before each call returns.
	Delay time.Duration

	// EmbedCalls and BatchCalls count provider round trips.
	EmbedCalls int
	BatchCalls int

	// Batches records the texts sent in each EmbedBatch call.
	Batches [][]string

	fallback *hashing.Embedder
}

// NewMockEmbedder returns a mock producing hashing vectors of size dims for
// texts without an explicit embedding.
func NewMockEmbedder(dims int) *MockEmbedder {
	return &MockEmbedder{
		Embeddings: make(map[string][]float32),
		fallback:   hashing.NewEmbedder(hashing.EmbedderConfig{Dimensions: dims}),
	}
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.EmbedCalls++
	m.mu.Unlock()

	if err := m.before(ctx, []string{text}); err != nil {
		return nil, err
	}
	return m.vectorFor(ctx, text)
}

func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.BatchCalls++
	m.Batches = append(m.Batches, append([]string(nil), texts...))
	m.mu.Unlock()

	if err := m.before(ctx, texts); err != nil {
		return nil, err
	}

	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := m.vectorFor(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Calls returns the total number of provider round trips.
func (m *MockEmbedder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.EmbedCalls + m.BatchCalls
}

func (m *MockEmbedder) Model() string {
	return "mock-" + m.fallback.Model()
}

func (m *MockEmbedder) Close() error {
	return nil
}

func (m *MockEmbedder) before(ctx context.Context, texts []string) error {
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.Errors) > 0 {
		err := m.Errors[0]
		m.Errors = m.Errors[1:]
		return err
	}

	if m.FailOn != "" {
		for _, t := range texts {
			if t == m.FailOn {
				return embeddings.ErrAuth
			}
		}
	}

	return nil
}

func (m *MockEmbedder) vectorFor(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	emb, ok := m.Embeddings[text]
	m.mu.Unlock()
	if ok {
		return emb, nil
	}
	return m.fallback.Embed(ctx, text)
}

var _ embeddings.Embedder = (*MockEmbedder)(nil)
