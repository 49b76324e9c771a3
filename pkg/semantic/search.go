package semantic

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/papercomputeco/recall/pkg/vector"
)

// Recency maps the age of a message to (0, 1]. Future timestamps count as
// age zero.
func Recency(age time.Duration) float64 {
	if age < 0 {
		age = 0
	}
	return math.Exp(-float64(age) / float64(RecencyWindow))
}

// CombinedScore fuses similarity and recency into one ranking key.
func CombinedScore(similarity, recency float64) float64 {
	return similarityWeight*similarity + recencyWeight*recency
}

// SearchRelevantMemory finds messages relevant to query. It over-fetches 2k
// candidates from the index, drops those under the relevance threshold or
// without a stored message, and ranks the rest by similarity fused with
// recency. Failures are reported in the response's Error field.
func (m *Memory) SearchRelevantMemory(ctx context.Context, query string, opts SearchOptions) *SearchResponse {
	start := time.Now()

	k := opts.K
	if k <= 0 {
		k = m.cfg.DefaultK
	}
	minRelevance := opts.MinRelevance
	if minRelevance == 0 {
		minRelevance = m.cfg.MinRelevance
	}

	results, total, err := m.search(ctx, query, k, minRelevance, opts)
	resp := &SearchResponse{
		Results:      results,
		Duration:     time.Since(start),
		TotalMatches: total,
	}
	if err != nil {
		m.logger.Warn("semantic search failed", "error", err)
		resp.Results = []SearchResult{}
		resp.TotalMatches = 0
		resp.Error = err.Error()
		return resp
	}

	m.logger.Debug("semantic search",
		"results", len(results),
		"total_matches", total,
		"duration", resp.Duration,
	)
	return resp
}

func (m *Memory) search(ctx context.Context, query string, k int, minRelevance float64, opts SearchOptions) ([]SearchResult, int, error) {
	if err := m.Initialize(ctx); err != nil {
		return nil, 0, err
	}

	emb, err := m.gen.Generate(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("embedding query: %w", err)
	}

	candidates, err := m.index.Query(ctx, emb, 2*k)
	if err != nil {
		return nil, 0, fmt.Errorf("querying index: %w", err)
	}

	relevant := make([]vector.QueryResult, 0, len(candidates))
	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if float64(c.Score) < minRelevance {
			continue
		}
		relevant = append(relevant, c)
		ids = append(ids, c.ID)
	}
	if len(relevant) == 0 {
		return []SearchResult{}, 0, nil
	}

	msgs, err := m.store.FetchByIDs(ctx, ids, opts.SessionID)
	if err != nil {
		return nil, 0, fmt.Errorf("fetching messages: %w", err)
	}
	byID := make(map[string]int, len(msgs))
	for i, msg := range msgs {
		byID[msg.ID] = i
	}

	now := m.now()
	results := make([]SearchResult, 0, len(relevant))
	for _, c := range relevant {
		i, ok := byID[c.ID]
		if !ok {
			continue
		}
		msg := msgs[i]
		if !opts.TimeRange.Contains(msg.CreatedAt) {
			continue
		}

		sim := float64(c.Score)
		rec := Recency(now.Sub(msg.CreatedAt))
		results = append(results, SearchResult{
			Message:       msg,
			Similarity:    sim,
			Recency:       rec,
			CombinedScore: CombinedScore(sim, rec),
			Metadata:      c.Metadata,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].CombinedScore != results[j].CombinedScore {
			return results[i].CombinedScore > results[j].CombinedScore
		}
		return results[i].Message.ID < results[j].Message.ID
	})

	total := len(results)
	if len(results) > k {
		results = results[:k]
	}
	return results, total, nil
}
