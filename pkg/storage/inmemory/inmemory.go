// Package inmemory provides a map-backed storage driver for tests and
// ephemeral servers.
package inmemory

import (
	"context"
	"sort"
	"sync"

	"github.com/papercomputeco/recall/pkg/storage"
)

// Driver implements storage.Driver using an in-memory map.
type Driver struct {
	mu       sync.RWMutex
	messages map[string]*storage.Message
}

// NewDriver creates a new in-memory storage driver.
func NewDriver() *Driver {
	return &Driver{
		messages: make(map[string]*storage.Message),
	}
}

// Put upserts messages.
func (d *Driver) Put(_ context.Context, msgs ...*storage.Message) error {
	for _, m := range msgs {
		if err := m.Validate(); err != nil {
			return err
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, m := range msgs {
		cp := *m
		d.messages[m.ID] = &cp
	}
	return nil
}

// Get retrieves a message by ID.
func (d *Driver) Get(_ context.Context, id string) (*storage.Message, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	m, ok := d.messages[id]
	if !ok {
		return nil, storage.ErrNotFound{ID: id}
	}
	cp := *m
	return &cp, nil
}

// FetchByIDs returns the known messages among ids.
func (d *Driver) FetchByIDs(_ context.Context, ids []string, sessionID string) ([]*storage.Message, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	seen := make(map[string]bool, len(ids))
	out := make([]*storage.Message, 0, len(ids))
	for _, id := range ids {
		m, ok := d.messages[id]
		if !ok || seen[id] || (sessionID != "" && m.SessionID != sessionID) {
			continue
		}
		seen[id] = true
		cp := *m
		out = append(out, &cp)
	}

	sortByCreated(out)
	return out, nil
}

// FetchBySession returns a session's messages oldest first.
func (d *Driver) FetchBySession(_ context.Context, sessionID string, limit int) ([]*storage.Message, error) {
	return d.filter(func(m *storage.Message) bool { return m.SessionID == sessionID }, limit), nil
}

// FetchByConversation returns a conversation's messages oldest first.
func (d *Driver) FetchByConversation(_ context.Context, conversationID string, limit int) ([]*storage.Message, error) {
	return d.filter(func(m *storage.Message) bool { return m.ConversationID == conversationID }, limit), nil
}

// Close is a no-op.
func (d *Driver) Close() error {
	return nil
}

func (d *Driver) filter(keep func(*storage.Message) bool, limit int) []*storage.Message {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := []*storage.Message{}
	for _, m := range d.messages {
		if keep(m) {
			cp := *m
			out = append(out, &cp)
		}
	}

	sortByCreated(out)
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

func sortByCreated(msgs []*storage.Message) {
	sort.Slice(msgs, func(i, j int) bool {
		if !msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
		}
		return msgs[i].ID < msgs[j].ID
	})
}

var _ storage.Driver = (*Driver)(nil)
