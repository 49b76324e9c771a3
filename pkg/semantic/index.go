package semantic

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/papercomputeco/recall/pkg/eventstream"
	"github.com/papercomputeco/recall/pkg/storage"
	"github.com/papercomputeco/recall/pkg/vector"
)

// Metadata keys attached to every indexed document.
const (
	MetaMessageID      = "message_id"
	MetaConversationID = "conversation_id"
	MetaSessionID      = "session_id"
	MetaRole           = "role"
	MetaContentLength  = "content_length"
)

func isEmpty(msg *storage.Message) bool {
	return strings.TrimSpace(msg.Content) == ""
}

func documentFor(msg *storage.Message, emb []float32) vector.Document {
	return vector.Document{
		ID:        msg.ID,
		Embedding: emb,
		Metadata: map[string]any{
			MetaMessageID:      msg.ID,
			MetaConversationID: msg.ConversationID,
			MetaSessionID:      msg.SessionID,
			MetaRole:           msg.Role,
			MetaContentLength:  len(msg.Content),
		},
	}
}

// IndexMessage embeds msg and upserts it into the index under its ID.
// Messages with blank content are skipped without calling the provider.
func (m *Memory) IndexMessage(ctx context.Context, msg *storage.Message) (*IndexResult, error) {
	start := time.Now()

	if msg == nil {
		return nil, ErrNilMessage
	}
	if isEmpty(msg) {
		return &IndexResult{
			Indexed:   false,
			MessageID: msg.ID,
			Reason:    ReasonEmptyContent,
			Duration:  time.Since(start),
		}, nil
	}
	if msg.ID == "" {
		return nil, ErrMissingMessageID
	}

	if err := m.Initialize(ctx); err != nil {
		return nil, err
	}

	emb, err := m.gen.Generate(ctx, msg.Content)
	if err != nil {
		return nil, fmt.Errorf("embedding message %s: %w", msg.ID, err)
	}

	if err := m.index.Add(ctx, documentFor(msg, emb)); err != nil {
		return nil, fmt.Errorf("indexing message %s: %w", msg.ID, err)
	}

	d := time.Since(start)
	m.logger.Debug("indexed message", "message_id", msg.ID, "duration", d)
	m.publish(ctx, eventstream.OperationIndex, msg.SessionID, []string{msg.ID}, 0, d)

	return &IndexResult{
		Indexed:             true,
		MessageID:           msg.ID,
		Duration:            d,
		EmbeddingDimensions: len(emb),
	}, nil
}

// IndexBatchMessages drops blank messages, embeds the rest through the
// generator's batch path and upserts them in one index write.
func (m *Memory) IndexBatchMessages(ctx context.Context, msgs []*storage.Message) (*BatchIndexResult, error) {
	start := time.Now()

	indexed, skipped, err := m.indexBatch(ctx, eventstream.OperationBatch, msgs)
	if err != nil {
		return nil, err
	}

	d := time.Since(start)
	res := &BatchIndexResult{
		Indexed:  indexed,
		Skipped:  skipped,
		Duration: d,
	}
	if indexed > 0 {
		res.AverageTimePerMessage = d / time.Duration(indexed)
	}

	m.logger.Debug("indexed message batch", "indexed", indexed, "skipped", skipped, "duration", d)
	return res, nil
}

// ReindexSession re-embeds every message in a session.
func (m *Memory) ReindexSession(ctx context.Context, sessionID string) (*ReindexResult, error) {
	start := time.Now()

	if err := m.Initialize(ctx); err != nil {
		return nil, err
	}

	msgs, err := m.store.FetchBySession(ctx, sessionID, 0)
	if err != nil {
		return nil, fmt.Errorf("fetching session %s: %w", sessionID, err)
	}
	if len(msgs) == 0 {
		return &ReindexResult{Duration: time.Since(start)}, nil
	}

	indexed, skipped, err := m.indexBatch(ctx, eventstream.OperationReindex, msgs)
	if err != nil {
		return nil, fmt.Errorf("reindexing session %s: %w", sessionID, err)
	}

	res := &ReindexResult{
		Indexed:           indexed,
		Skipped:           skipped,
		Duration:          time.Since(start),
		MessagesProcessed: len(msgs),
	}

	m.logger.Info("reindexed session",
		"session_id", sessionID,
		"indexed", indexed,
		"skipped", skipped,
		"duration", res.Duration,
	)
	return res, nil
}

func (m *Memory) indexBatch(ctx context.Context, op string, msgs []*storage.Message) (int, int, error) {
	keep := make([]*storage.Message, 0, len(msgs))
	for _, msg := range msgs {
		if msg == nil || isEmpty(msg) {
			continue
		}
		if msg.ID == "" {
			return 0, 0, ErrMissingMessageID
		}
		keep = append(keep, msg)
	}
	skipped := len(msgs) - len(keep)
	if len(keep) == 0 {
		return 0, skipped, nil
	}

	if err := m.Initialize(ctx); err != nil {
		return 0, 0, err
	}

	start := time.Now()

	texts := make([]string, len(keep))
	for i, msg := range keep {
		texts[i] = msg.Content
	}

	embs, err := m.gen.GenerateBatch(ctx, texts)
	if err != nil {
		return 0, 0, fmt.Errorf("embedding batch: %w", err)
	}

	docs := make([]vector.Document, len(keep))
	ids := make([]string, len(keep))
	for i, msg := range keep {
		docs[i] = documentFor(msg, embs[i])
		ids[i] = msg.ID
	}

	if err := m.index.AddBatch(ctx, docs); err != nil {
		return 0, 0, fmt.Errorf("indexing batch: %w", err)
	}

	m.publish(ctx, op, commonSession(keep), ids, skipped, time.Since(start))
	return len(keep), skipped, nil
}

// commonSession returns the session shared by every message, or "".
func commonSession(msgs []*storage.Message) string {
	if len(msgs) == 0 {
		return ""
	}
	s := msgs[0].SessionID
	for _, msg := range msgs[1:] {
		if msg.SessionID != s {
			return ""
		}
	}
	return s
}
