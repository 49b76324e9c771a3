package testutils

import (
	"context"
	"sync"

	"github.com/papercomputeco/recall/pkg/vector"
)

// MockVectorDriver is a test vector driver that records writes and returns
// configured query results.
type MockVectorDriver struct {
	mu sync.Mutex

	Documents []vector.Document
	Results   []vector.QueryResult

	// AddErr and QueryErr fail the corresponding calls when set.
	AddErr   error
	QueryErr error

	// LastTopK is the topK of the most recent Query.
	LastTopK int

	Saves int
	dims  int
}

func NewMockVectorDriver(dims int) *MockVectorDriver {
	return &MockVectorDriver{dims: dims}
}

func (m *MockVectorDriver) Add(ctx context.Context, doc vector.Document) error {
	return m.AddBatch(ctx, []vector.Document{doc})
}

func (m *MockVectorDriver) AddBatch(_ context.Context, docs []vector.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AddErr != nil {
		return m.AddErr
	}
	m.Documents = append(m.Documents, docs...)
	return nil
}

func (m *MockVectorDriver) Query(_ context.Context, _ []float32, topK int) ([]vector.QueryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastTopK = topK
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	if len(m.Results) < topK {
		return m.Results, nil
	}
	return m.Results[:topK], nil
}

func (m *MockVectorDriver) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Documents), nil
}

func (m *MockVectorDriver) Save(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Saves++
	return nil
}

func (m *MockVectorDriver) Dimensions() int {
	return m.dims
}

func (m *MockVectorDriver) Close() error {
	return nil
}

var _ vector.VectorDriver = (*MockVectorDriver)(nil)
