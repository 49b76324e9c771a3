// Package api provides an HTTP API server over semantic memory.
package api

import (
	"context"
	"net/http"

	"github.com/papercomputeco/recall/pkg/indexer"
	"github.com/papercomputeco/recall/pkg/semantic"
	"github.com/papercomputeco/recall/pkg/storage"
)

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8081")
	ListenAddr string

	// MCPHandler is mounted at /mcp when set.
	MCPHandler http.Handler
}

// Memory is the semantic memory surface served over HTTP. *semantic.Memory
// satisfies it.
type Memory interface {
	IndexMessage(ctx context.Context, msg *storage.Message) (*semantic.IndexResult, error)
	IndexBatchMessages(ctx context.Context, msgs []*storage.Message) (*semantic.BatchIndexResult, error)
	ReindexSession(ctx context.Context, sessionID string) (*semantic.ReindexResult, error)
	SearchRelevantMemory(ctx context.Context, query string, opts semantic.SearchOptions) *semantic.SearchResponse
	GetSemanticSummary(ctx context.Context, sessionID string, topK int) *semantic.SummaryResponse
	FindSimilarConversations(ctx context.Context, conversationID string, k int) *semantic.SimilarConversationsResponse
	Stats(ctx context.Context) (*semantic.Stats, error)
	Save(ctx context.Context) error
}

// Enqueuer hands ingested messages to background indexing.
// *indexer.Pool satisfies it.
type Enqueuer interface {
	Enqueue(job indexer.Job) bool
	Pending() int
}

var _ Memory = (*semantic.Memory)(nil)

var _ Enqueuer = (*indexer.Pool)(nil)
