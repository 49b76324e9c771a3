package mcp

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/recall/pkg/semantic"
)

var (
	searchToolName    = "search_memory"
	searchDescription = "Search stored messages by meaning. Returns the most relevant messages for the query, ranked by similarity blended with recency."
)

// SearchInput represents the input arguments for the search tool.
type SearchInput struct {
	Query        string  `json:"query" jsonschema:"the text to find related messages for"`
	K            int     `json:"k,omitempty" jsonschema:"number of results to return (default: 10)"`
	SessionID    string  `json:"session_id,omitempty" jsonschema:"restrict results to one session"`
	MinRelevance float64 `json:"min_relevance,omitempty" jsonschema:"similarity floor; negative disables it"`
}

// SearchHit is one ranked message.
type SearchHit struct {
	ID             string  `json:"id"`
	SessionID      string  `json:"session_id"`
	ConversationID string  `json:"conversation_id"`
	Role           string  `json:"role"`
	Content        string  `json:"content"`
	CreatedAt      string  `json:"created_at"`
	Similarity     float64 `json:"similarity"`
	Recency        float64 `json:"recency"`
	Score          float64 `json:"score"`
}

// SearchOutput represents the output of the search tool.
type SearchOutput struct {
	Query        string      `json:"query"`
	Results      []SearchHit `json:"results"`
	TotalMatches int         `json:"total_matches"`
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	if input.Query == "" {
		return toolError[SearchOutput]("query is required")
	}

	s.config.Logger.Debug("MCP search request", "query", input.Query, "k", input.K)

	resp := s.config.Memory.SearchRelevantMemory(ctx, input.Query, semantic.SearchOptions{
		SessionID:    input.SessionID,
		K:            input.K,
		MinRelevance: input.MinRelevance,
	})
	if resp.Error != "" {
		s.config.Logger.Warn("MCP search failed", "query", input.Query, "error", resp.Error)
		return toolError[SearchOutput]("Search failed: %s", resp.Error)
	}

	return toolResult(buildSearchOutput(input.Query, resp))
}

func buildSearchOutput(query string, resp *semantic.SearchResponse) SearchOutput {
	out := SearchOutput{
		Query:        query,
		Results:      make([]SearchHit, 0, len(resp.Results)),
		TotalMatches: resp.TotalMatches,
	}
	for _, r := range resp.Results {
		if r.Message == nil {
			continue
		}
		out.Results = append(out.Results, SearchHit{
			ID:             r.Message.ID,
			SessionID:      r.Message.SessionID,
			ConversationID: r.Message.ConversationID,
			Role:           r.Message.Role,
			Content:        r.Message.Content,
			CreatedAt:      r.Message.CreatedAt.UTC().Format(time.RFC3339),
			Similarity:     r.Similarity,
			Recency:        r.Recency,
			Score:          r.CombinedScore,
		})
	}
	return out
}
