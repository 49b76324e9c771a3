package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var (
	summaryToolName    = "session_summary"
	summaryDescription = "Summarize a session by its most representative messages: those closest in meaning to the rest of the session, weighted by importance."

	similarToolName    = "similar_conversations"
	similarDescription = "Find conversations whose messages are closest in meaning to a reference conversation."
)

// SummaryInput represents the input arguments for the summary tool.
type SummaryInput struct {
	SessionID string `json:"session_id" jsonschema:"the session to summarize"`
	TopK      int    `json:"top_k,omitempty" jsonschema:"number of messages to return (default: 5)"`
}

// SummaryItem is one representative message.
type SummaryItem struct {
	ID         string  `json:"id"`
	Role       string  `json:"role"`
	Content    string  `json:"content"`
	Centrality float64 `json:"centrality"`
	Importance float64 `json:"importance"`
	Score      float64 `json:"score"`
}

// SummaryOutput represents the output of the summary tool.
type SummaryOutput struct {
	SessionID     string        `json:"session_id"`
	Summary       []SummaryItem `json:"summary"`
	TotalMessages int           `json:"total_messages"`
}

func (s *Server) handleSummary(ctx context.Context, _ *mcp.CallToolRequest, input SummaryInput) (*mcp.CallToolResult, SummaryOutput, error) {
	if input.SessionID == "" {
		return toolError[SummaryOutput]("session_id is required")
	}

	resp := s.config.Memory.GetSemanticSummary(ctx, input.SessionID, input.TopK)
	if resp.Error != "" {
		s.config.Logger.Warn("MCP summary failed", "session_id", input.SessionID, "error", resp.Error)
		return toolError[SummaryOutput]("Summary failed: %s", resp.Error)
	}

	out := SummaryOutput{
		SessionID:     input.SessionID,
		Summary:       make([]SummaryItem, 0, len(resp.Summary)),
		TotalMessages: resp.TotalMessages,
	}
	for _, item := range resp.Summary {
		if item.Message == nil {
			continue
		}
		out.Summary = append(out.Summary, SummaryItem{
			ID:         item.Message.ID,
			Role:       item.Message.Role,
			Content:    item.Message.Content,
			Centrality: item.Centrality,
			Importance: item.Importance,
			Score:      item.Score,
		})
	}
	return toolResult(out)
}

// SimilarInput represents the input arguments for the similar conversations tool.
type SimilarInput struct {
	ConversationID string `json:"conversation_id" jsonschema:"the reference conversation"`
	K              int    `json:"k,omitempty" jsonschema:"number of conversations to return (default: 5)"`
}

// SimilarConversation is one ranked conversation.
type SimilarConversation struct {
	ConversationID   string  `json:"conversation_id"`
	Similarity       float64 `json:"similarity"`
	MatchingMessages int     `json:"matching_messages"`
}

// SimilarOutput represents the output of the similar conversations tool.
type SimilarOutput struct {
	ConversationID string                `json:"conversation_id"`
	Conversations  []SimilarConversation `json:"conversations"`
}

func (s *Server) handleSimilar(ctx context.Context, _ *mcp.CallToolRequest, input SimilarInput) (*mcp.CallToolResult, SimilarOutput, error) {
	if input.ConversationID == "" {
		return toolError[SimilarOutput]("conversation_id is required")
	}

	resp := s.config.Memory.FindSimilarConversations(ctx, input.ConversationID, input.K)
	if resp.Error != "" {
		s.config.Logger.Warn("MCP similar conversations failed", "conversation_id", input.ConversationID, "error", resp.Error)
		return toolError[SimilarOutput]("Similar conversations failed: %s", resp.Error)
	}

	out := SimilarOutput{
		ConversationID: input.ConversationID,
		Conversations:  make([]SimilarConversation, 0, len(resp.Conversations)),
	}
	for _, c := range resp.Conversations {
		out.Conversations = append(out.Conversations, SimilarConversation(c))
	}
	return toolResult(out)
}
