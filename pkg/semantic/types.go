package semantic

import (
	"time"

	"github.com/papercomputeco/recall/pkg/embeddings/generator"
	"github.com/papercomputeco/recall/pkg/storage"
)

// ReasonEmptyContent marks a message skipped because it has no content.
const ReasonEmptyContent = "empty_content"

// IndexResult describes a single IndexMessage call.
type IndexResult struct {
	Indexed             bool          `json:"indexed"`
	MessageID           string        `json:"message_id,omitempty"`
	Reason              string        `json:"reason,omitempty"`
	Duration            time.Duration `json:"duration"`
	EmbeddingDimensions int           `json:"embedding_dimensions,omitempty"`
}

// BatchIndexResult describes an IndexBatchMessages call.
type BatchIndexResult struct {
	Indexed               int           `json:"indexed"`
	Skipped               int           `json:"skipped"`
	Duration              time.Duration `json:"duration"`
	AverageTimePerMessage time.Duration `json:"average_time_per_message"`
}

// ReindexResult describes a ReindexSession call.
type ReindexResult struct {
	Indexed           int           `json:"indexed"`
	Skipped           int           `json:"skipped"`
	Duration          time.Duration `json:"duration"`
	MessagesProcessed int           `json:"messages_processed"`
}

// TimeRange bounds message creation times. Zero ends are open.
type TimeRange struct {
	From time.Time `json:"from,omitzero"`
	To   time.Time `json:"to,omitzero"`
}

// Contains reports whether t falls inside the range, inclusive.
func (r TimeRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}

// SearchOptions tunes SearchRelevantMemory.
type SearchOptions struct {
	// SessionID restricts results to one session when set.
	SessionID string

	// K is the number of results. Zero uses the memory's default.
	K int

	// MinRelevance drops candidates with a lower similarity. Zero uses the
	// memory's default; a negative value disables the threshold.
	MinRelevance float64

	TimeRange TimeRange
}

// SearchResult is a candidate joined with its message and fused score.
type SearchResult struct {
	Message       *storage.Message `json:"message"`
	Similarity    float64          `json:"similarity"`
	Recency       float64          `json:"recency"`
	CombinedScore float64          `json:"combined_score"`
	Metadata      map[string]any   `json:"metadata,omitempty"`
}

// SearchResponse is returned by SearchRelevantMemory. Error is set instead
// of failing the call.
type SearchResponse struct {
	Results      []SearchResult `json:"results"`
	Duration     time.Duration  `json:"duration"`
	TotalMatches int            `json:"total_matches"`
	Error        string         `json:"error,omitempty"`
}

// SummaryItem is one representative message of a session.
type SummaryItem struct {
	Message    *storage.Message `json:"message"`
	Centrality float64          `json:"centrality"`
	Importance float64          `json:"importance"`
	Score      float64          `json:"score"`
}

// SummaryResponse is returned by GetSemanticSummary.
type SummaryResponse struct {
	Summary       []SummaryItem `json:"summary"`
	TotalMessages int           `json:"total_messages"`
	Duration      time.Duration `json:"duration"`
	Error         string        `json:"error,omitempty"`
}

// SimilarConversation is a conversation ranked against a reference one.
type SimilarConversation struct {
	ConversationID   string  `json:"conversation_id"`
	Similarity       float64 `json:"similarity"`
	MatchingMessages int     `json:"matching_messages"`
}

// SimilarConversationsResponse is returned by FindSimilarConversations.
type SimilarConversationsResponse struct {
	Conversations []SimilarConversation `json:"conversations"`
	Duration      time.Duration         `json:"duration"`
	Error         string                `json:"error,omitempty"`
}

// Stats reports cache and index state.
type Stats struct {
	Cache      generator.Stats `json:"cache"`
	HitRate    float64         `json:"hit_rate"`
	Documents  int             `json:"documents"`
	Model      string          `json:"model"`
	Dimensions int             `json:"dimensions"`
}
