package semantic

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/papercomputeco/recall/pkg/storage"
	"github.com/papercomputeco/recall/pkg/vector"
)

// Centrality returns, for each vector, its mean cosine similarity to every
// other vector. A lone vector scores 0.
func Centrality(embs [][]float32) []float64 {
	n := len(embs)
	out := make([]float64, n)
	if n < 2 {
		return out
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			sim := vector.Cosine(embs[i], embs[j])
			out[i] += sim
			out[j] += sim
		}
	}
	for i := range out {
		out[i] /= float64(n - 1)
	}
	return out
}

// GetSemanticSummary picks the topK most representative messages among the
// most recent window of a session, scoring each by its centrality within the
// window and its importance score.
func (m *Memory) GetSemanticSummary(ctx context.Context, sessionID string, topK int) *SummaryResponse {
	start := time.Now()
	if topK <= 0 {
		topK = DefaultSummaryTopK
	}

	items, total, err := m.summarize(ctx, sessionID, topK)
	resp := &SummaryResponse{
		Summary:       items,
		TotalMessages: total,
		Duration:      time.Since(start),
	}
	if err != nil {
		m.logger.Warn("semantic summary failed", "session_id", sessionID, "error", err)
		resp.Summary = []SummaryItem{}
		resp.Error = err.Error()
	}
	return resp
}

func (m *Memory) summarize(ctx context.Context, sessionID string, topK int) ([]SummaryItem, int, error) {
	if err := m.Initialize(ctx); err != nil {
		return nil, 0, err
	}

	window, err := m.store.FetchBySession(ctx, sessionID, m.cfg.SummaryWindow)
	if err != nil {
		return nil, 0, fmt.Errorf("fetching session %s: %w", sessionID, err)
	}

	msgs := make([]*storage.Message, 0, len(window))
	texts := make([]string, 0, len(window))
	for _, msg := range window {
		if isEmpty(msg) {
			continue
		}
		msgs = append(msgs, msg)
		texts = append(texts, msg.Content)
	}
	if len(msgs) == 0 {
		return []SummaryItem{}, len(window), nil
	}

	embs, err := m.gen.GenerateBatch(ctx, texts)
	if err != nil {
		return nil, len(window), fmt.Errorf("embedding session %s: %w", sessionID, err)
	}

	centrality := Centrality(embs)
	items := make([]SummaryItem, len(msgs))
	for i, msg := range msgs {
		items[i] = SummaryItem{
			Message:    msg,
			Centrality: centrality[i],
			Importance: msg.ImportanceScore,
			Score:      centralityWeight*centrality[i] + importanceWeight*msg.ImportanceScore,
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].Message.ID < items[j].Message.ID
	})
	if len(items) > topK {
		items = items[:topK]
	}
	return items, len(window), nil
}

// FindSimilarConversations embeds a whole conversation and ranks the other
// conversations whose messages it retrieves by their mean similarity.
func (m *Memory) FindSimilarConversations(ctx context.Context, conversationID string, k int) *SimilarConversationsResponse {
	start := time.Now()
	if k <= 0 {
		k = DefaultSimilarK
	}

	convs, err := m.similarConversations(ctx, conversationID, k)
	resp := &SimilarConversationsResponse{
		Conversations: convs,
		Duration:      time.Since(start),
	}
	if err != nil {
		m.logger.Warn("similar conversation search failed", "conversation_id", conversationID, "error", err)
		resp.Conversations = []SimilarConversation{}
		resp.Error = err.Error()
	}
	return resp
}

func (m *Memory) similarConversations(ctx context.Context, conversationID string, k int) ([]SimilarConversation, error) {
	if err := m.Initialize(ctx); err != nil {
		return nil, err
	}

	msgs, err := m.store.FetchByConversation(ctx, conversationID, 0)
	if err != nil {
		return nil, fmt.Errorf("fetching conversation %s: %w", conversationID, err)
	}

	parts := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		if !isEmpty(msg) {
			parts = append(parts, msg.Content)
		}
	}
	if len(parts) == 0 {
		return []SimilarConversation{}, nil
	}

	emb, err := m.gen.Generate(ctx, strings.Join(parts, "\n"))
	if err != nil {
		return nil, fmt.Errorf("embedding conversation %s: %w", conversationID, err)
	}

	hits, err := m.index.Query(ctx, emb, 2*k)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}

	type group struct {
		sum   float64
		count int
	}
	groups := map[string]*group{}
	for _, h := range hits {
		conv, _ := h.Metadata[MetaConversationID].(string)
		if conv == "" || conv == conversationID {
			continue
		}
		g, ok := groups[conv]
		if !ok {
			g = &group{}
			groups[conv] = g
		}
		g.sum += float64(h.Score)
		g.count++
	}

	out := make([]SimilarConversation, 0, len(groups))
	for conv, g := range groups {
		out = append(out, SimilarConversation{
			ConversationID:   conv,
			Similarity:       g.sum / float64(g.count),
			MatchingMessages: g.count,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].ConversationID < out[j].ConversationID
	})
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}
