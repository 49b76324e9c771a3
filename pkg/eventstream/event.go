package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeMessagesIndexed is emitted after messages are written to the
	// vector index.
	EventTypeMessagesIndexed = "recall.messages.indexed"
)

// Operations that produce a MessagesIndexedEvent.
const (
	OperationIndex   = "index"
	OperationBatch   = "batch"
	OperationReindex = "reindex"
)

// MessagesIndexedEvent is a transport-neutral payload describing one write
// to the vector index.
type MessagesIndexedEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`

	Operation  string   `json:"operation"`
	SessionID  string   `json:"session_id,omitempty"`
	MessageIDs []string `json:"message_ids"`
	Skipped    int      `json:"skipped"`
	Model      string   `json:"model,omitempty"`
	Dimensions int      `json:"dimensions"`
	DurationMs int64    `json:"duration_ms"`
}

// NewMessagesIndexedEvent stamps a new event with an ID and emit time.
func NewMessagesIndexedEvent(operation string, messageIDs []string, emittedAt time.Time) *MessagesIndexedEvent {
	return &MessagesIndexedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeMessagesIndexed,
		EventID:       uuid.NewString(),
		EmittedAt:     emittedAt.UTC(),
		Operation:     operation,
		MessageIDs:    messageIDs,
	}
}
