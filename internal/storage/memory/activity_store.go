package memory

import (
	"context"
	"sort"
	"sync"

	"soroban-dao/internal/domain"
	"soroban-dao/internal/storage"
)

// ActivityStore is an in-memory implementation of storage.ActivityStore.
type ActivityStore struct {
	mu     sync.RWMutex
	events []*domain.ActivityEvent
	seen   map[string]struct{} // event ids
}

// NewActivityStore creates a new in-memory activity store.
func NewActivityStore() *ActivityStore {
	return &ActivityStore{
		seen: make(map[string]struct{}),
	}
}

var _ storage.ActivityStore = (*ActivityStore)(nil)

// InsertBulk adds events not yet stored and returns the number inserted.
func (s *ActivityStore) InsertBulk(_ context.Context, events []*domain.ActivityEvent) (int, error) {
	for _, e := range events {
		if e == nil || e.EventID == "" {
			return 0, storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, e := range events {
		if _, exists := s.seen[e.EventID]; exists {
			continue
		}
		s.seen[e.EventID] = struct{}{}
		s.events = append(s.events, copyEvent(e))
		inserted++
	}
	return inserted, nil
}

// GetByContract retrieves events for a contract within [fromLedger, toLedger].
func (s *ActivityStore) GetByContract(_ context.Context, contractID string, fromLedger, toLedger uint32) ([]*domain.ActivityEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ActivityEvent
	for _, e := range s.events {
		if e.ContractID != contractID || e.Ledger < fromLedger {
			continue
		}
		if toLedger != 0 && e.Ledger > toLedger {
			continue
		}
		result = append(result, copyEvent(e))
	}
	sortEvents(result)
	return result, nil
}

// GetByTxHash retrieves all events emitted by a transaction.
func (s *ActivityStore) GetByTxHash(_ context.Context, txHash string) ([]*domain.ActivityEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ActivityEvent
	for _, e := range s.events {
		if e.TxHash == txHash {
			result = append(result, copyEvent(e))
		}
	}
	sortEvents(result)
	return result, nil
}

// ListRecent retrieves up to limit events, newest first.
func (s *ActivityStore) ListRecent(_ context.Context, limit int) ([]*domain.ActivityEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.ActivityEvent, 0, len(s.events))
	for _, e := range s.events {
		result = append(result, copyEvent(e))
	}
	sortEvents(result)
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func copyEvent(e *domain.ActivityEvent) *domain.ActivityEvent {
	copy := *e
	copy.Topics = append([]string(nil), e.Topics...)
	return &copy
}

func sortEvents(events []*domain.ActivityEvent) {
	sort.Slice(events, func(i, j int) bool {
		if events[i].Ledger != events[j].Ledger {
			return events[i].Ledger < events[j].Ledger
		}
		return events[i].EventID < events[j].EventID
	})
}
