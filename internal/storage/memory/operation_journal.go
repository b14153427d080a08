package memory

import (
	"context"
	"sort"
	"sync"

	"soroban-dao/internal/domain"
	"soroban-dao/internal/storage"
)

// OperationJournal is an in-memory implementation of storage.OperationJournal.
type OperationJournal struct {
	mu   sync.RWMutex
	data map[string]*domain.OperationRecord // keyed by id
}

// NewOperationJournal creates a new in-memory operation journal.
func NewOperationJournal() *OperationJournal {
	return &OperationJournal{
		data: make(map[string]*domain.OperationRecord),
	}
}

var _ storage.OperationJournal = (*OperationJournal)(nil)

// Insert adds a new record. Returns ErrDuplicateKey if id exists.
func (s *OperationJournal) Insert(_ context.Context, rec *domain.OperationRecord) error {
	if rec == nil || rec.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[rec.ID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *rec
	s.data[rec.ID] = &copy
	return nil
}

// Update applies a state transition. Empty fields keep their stored value.
func (s *OperationJournal) Update(_ context.Context, id string, upd domain.OperationUpdate) error {
	if id == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.data[id]
	if !ok {
		return storage.ErrNotFound
	}
	applyUpdate(rec, upd)
	return nil
}

// GetByID retrieves a record by id.
func (s *OperationJournal) GetByID(_ context.Context, id string) (*domain.OperationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.data[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copy := *rec
	return &copy, nil
}

// GetByTxHash retrieves the record for a transaction hash.
func (s *OperationJournal) GetByTxHash(_ context.Context, txHash string) (*domain.OperationRecord, error) {
	if txHash == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.data {
		if rec.TxHash == txHash {
			copy := *rec
			return &copy, nil
		}
	}
	return nil, storage.ErrNotFound
}

// ListByState retrieves records in any of the given states, ordered by created_at ASC.
func (s *OperationJournal) ListByState(_ context.Context, states ...domain.OperationState) ([]*domain.OperationRecord, error) {
	want := make(map[domain.OperationState]bool, len(states))
	for _, st := range states {
		want[st] = true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.OperationRecord
	for _, rec := range s.data {
		if want[rec.State] {
			copy := *rec
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt < result[j].CreatedAt
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// ListRecent retrieves up to limit records, newest first.
func (s *OperationJournal) ListRecent(_ context.Context, limit int) ([]*domain.OperationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.OperationRecord, 0, len(s.data))
	for _, rec := range s.data {
		copy := *rec
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt > result[j].CreatedAt
		}
		return result[i].ID > result[j].ID
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func applyUpdate(rec *domain.OperationRecord, upd domain.OperationUpdate) {
	if upd.State != "" {
		rec.State = upd.State
	}
	if upd.TxHash != "" {
		rec.TxHash = upd.TxHash
	}
	if upd.Ledger != 0 {
		rec.Ledger = upd.Ledger
	}
	if upd.ErrorKind != "" {
		rec.ErrorKind = upd.ErrorKind
	}
	if upd.ErrorMessage != "" {
		rec.ErrorMessage = upd.ErrorMessage
	}
	if upd.UpdatedAt != 0 {
		rec.UpdatedAt = upd.UpdatedAt
	}
}
