package memory

import (
	"context"
	"sync"

	"soroban-dao/internal/domain"
	"soroban-dao/internal/storage"
)

// EventCursorStore is an in-memory implementation of storage.EventCursorStore.
type EventCursorStore struct {
	mu      sync.RWMutex
	cursors map[string]domain.EventCursor
}

// NewEventCursorStore creates a new in-memory event cursor store.
func NewEventCursorStore() *EventCursorStore {
	return &EventCursorStore{
		cursors: make(map[string]domain.EventCursor),
	}
}

var _ storage.EventCursorStore = (*EventCursorStore)(nil)

// Get returns the cursor for a stream.
func (s *EventCursorStore) Get(_ context.Context, stream string) (*domain.EventCursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cursors[stream]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &c, nil
}

// Set saves the cursor for a stream.
func (s *EventCursorStore) Set(_ context.Context, cursor *domain.EventCursor) error {
	if cursor == nil || cursor.Stream == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cursors[cursor.Stream] = *cursor
	return nil
}
