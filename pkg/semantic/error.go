package semantic

import "errors"

var (
	// ErrNoGenerator is returned by Initialize when neither a generator nor a
	// generator factory is configured.
	ErrNoGenerator = errors.New("no embedding generator configured")

	// ErrNilMessage is returned when indexing a nil message.
	ErrNilMessage = errors.New("nil message")

	// ErrMissingMessageID is returned when indexing a message without an ID.
	ErrMissingMessageID = errors.New("message id is required")
)
