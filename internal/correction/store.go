package correction

import (
	"context"
	"sync"
)

// EventStore persists correction events. Events are append-only; there
// is no update or delete.
type EventStore interface {
	// CreateEvent persists a new correction event.
	CreateEvent(ctx context.Context, event *Event) error

	// ListEvents returns the events for a conversation, oldest first.
	ListEvents(ctx context.Context, conversationID string) ([]Event, error)
}

// InMemoryEventStore is an in-memory EventStore for testing.
type InMemoryEventStore struct {
	mu     sync.RWMutex
	events []Event
}

// NewInMemoryEventStore creates an empty in-memory event store.
func NewInMemoryEventStore() *InMemoryEventStore {
	return &InMemoryEventStore{}
}

// CreateEvent appends the event.
func (s *InMemoryEventStore) CreateEvent(ctx context.Context, event *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, *event)
	return nil
}

// ListEvents returns the events for a conversation in insertion order.
func (s *InMemoryEventStore) ListEvents(ctx context.Context, conversationID string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []Event{}
	for _, e := range s.events {
		if e.ConversationID == conversationID {
			result = append(result, e)
		}
	}
	return result, nil
}

var _ EventStore = (*InMemoryEventStore)(nil)
