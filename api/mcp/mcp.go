// Package mcp provides an MCP (Model Context Protocol) server over recall's
// semantic memory.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/recall/pkg/semantic"
	"github.com/papercomputeco/recall/pkg/utils"
)

// Memory is the read surface exposed as tools. *semantic.Memory satisfies it.
type Memory interface {
	SearchRelevantMemory(ctx context.Context, query string, opts semantic.SearchOptions) *semantic.SearchResponse
	GetSemanticSummary(ctx context.Context, sessionID string, topK int) *semantic.SummaryResponse
	FindSimilarConversations(ctx context.Context, conversationID string, k int) *semantic.SimilarConversationsResponse
}

var _ Memory = (*semantic.Memory)(nil)

type Config struct {
	// Memory answers tool calls
	Memory Memory

	// Noop for an MCP server with no tools
	Noop bool

	Logger *slog.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates an MCP server with the memory tools registered.
func NewServer(c Config) (*Server, error) {
	s := &Server{
		config: c,
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "recall",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)
	s.mcpServer = mcpServer

	if !c.Noop {
		if c.Memory == nil {
			return nil, errors.New("memory is required")
		}
		if c.Logger == nil {
			return nil, errors.New("logger is required")
		}

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        searchToolName,
			Description: searchDescription,
		}, s.handleSearch)

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        summaryToolName,
			Description: summaryDescription,
		}, s.handleSummary)

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        similarToolName,
			Description: similarDescription,
		}, s.handleSimilar)
	}

	// Stateless: every request is served by the same tool set.
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Connect serves one session over t, such as a stdio or in-memory transport.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.mcpServer.Connect(ctx, t, nil)
}

// toolResult returns out as structured content with a JSON text copy for
// clients that only read text.
func toolResult[T any](out T) (*mcp.CallToolResult, T, error) {
	data, err := json.Marshal(out)
	if err != nil {
		return toolError[T]("Failed to serialize results: %v", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
	}, out, nil
}

func toolError[T any](format string, args ...any) (*mcp.CallToolResult, T, error) {
	var zero T
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf(format, args...)},
		},
	}, zero, nil
}
