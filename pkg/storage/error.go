package storage

import "errors"

// ErrNotFound is returned when a message doesn't exist in the store.
type ErrNotFound struct {
	ID string
}

func (e ErrNotFound) Error() string {
	if e.ID == "" {
		return "message not found"
	}

	return "message not found: " + e.ID
}

// ErrInvalidMessage is returned by Put for messages without an ID or session.
var ErrInvalidMessage = errors.New("message requires id and session_id")

// Validate checks the fields every store requires.
func (m *Message) Validate() error {
	if m == nil || m.ID == "" || m.SessionID == "" {
		return ErrInvalidMessage
	}
	return nil
}
