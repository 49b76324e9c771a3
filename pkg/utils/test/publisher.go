package testutils

import (
	"context"
	"sync"

	"github.com/papercomputeco/recall/pkg/eventstream"
)

// MockPublisher records published events.
type MockPublisher struct {
	mu     sync.Mutex
	events []*eventstream.MessagesIndexedEvent

	// Err fails every publish when set.
	Err error
}

func (p *MockPublisher) PublishIndexed(_ context.Context, event *eventstream.MessagesIndexedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}
	if p.Err != nil {
		return p.Err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// Events returns a copy of the published events.
func (p *MockPublisher) Events() []*eventstream.MessagesIndexedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*eventstream.MessagesIndexedEvent(nil), p.events...)
}

func (p *MockPublisher) Close() error {
	return nil
}

var _ eventstream.Publisher = (*MockPublisher)(nil)
