// Package storage persists the conversation messages that semantic memory
// indexes and resolves search hits against.
package storage

import (
	"context"
	"time"
)

// Message is one conversational turn.
type Message struct {
	ID             string    `json:"id"`
	SessionID      string    `json:"session_id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`

	// ImportanceScore in [0,1] is assigned outside this system.
	ImportanceScore float64 `json:"importance_score"`
}

// Reader is the read side semantic memory depends on.
type Reader interface {
	// FetchByIDs returns the messages with the given IDs, ordered by creation
	// time. A non-empty sessionID drops messages from other sessions. Unknown
	// IDs are skipped.
	FetchByIDs(ctx context.Context, ids []string, sessionID string) ([]*Message, error)

	// FetchBySession returns a session's messages in ascending creation
	// order. limit > 0 keeps only the most recent limit messages.
	FetchBySession(ctx context.Context, sessionID string, limit int) ([]*Message, error)

	// FetchByConversation is FetchBySession keyed by conversation.
	FetchByConversation(ctx context.Context, conversationID string, limit int) ([]*Message, error)
}

// Driver defines the interface for persisting and retrieving messages.
type Driver interface {
	Reader

	// Put upserts messages by ID.
	Put(ctx context.Context, msgs ...*Message) error

	// Get retrieves a message by ID, returning ErrNotFound when absent.
	Get(ctx context.Context, id string) (*Message, error)

	// Close closes the store and releases any resources.
	Close() error
}
