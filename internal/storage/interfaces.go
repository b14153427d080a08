package storage

import (
	"context"

	"soroban-dao/internal/domain"
)

// OperationJournal records mutating contract operations and their state
// transitions.
type OperationJournal interface {
	// Insert adds a new record. Returns ErrDuplicateKey if id exists.
	Insert(ctx context.Context, rec *domain.OperationRecord) error

	// Update applies a state transition. Returns ErrNotFound if id does not exist.
	Update(ctx context.Context, id string, upd domain.OperationUpdate) error

	// GetByID retrieves a record. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.OperationRecord, error)

	// GetByTxHash retrieves the record for a submitted transaction.
	// Returns ErrNotFound if not exists.
	GetByTxHash(ctx context.Context, txHash string) (*domain.OperationRecord, error)

	// ListByState retrieves records in any of the given states, ordered by created_at ASC.
	ListByState(ctx context.Context, states ...domain.OperationState) ([]*domain.OperationRecord, error)

	// ListRecent retrieves up to limit records, newest first.
	ListRecent(ctx context.Context, limit int) ([]*domain.OperationRecord, error)
}

// ActivityStore provides access to contract activity history.
// Events are append-only and keyed by event_id.
type ActivityStore interface {
	// InsertBulk adds events whose event_id is not yet stored and returns
	// the number inserted. Replayed events are skipped, not rejected.
	InsertBulk(ctx context.Context, events []*domain.ActivityEvent) (int, error)

	// GetByContract retrieves events for a contract within [fromLedger, toLedger]
	// (inclusive), ordered by ledger then event_id. toLedger 0 means no upper bound.
	GetByContract(ctx context.Context, contractID string, fromLedger, toLedger uint32) ([]*domain.ActivityEvent, error)

	// GetByTxHash retrieves all events emitted by a transaction.
	GetByTxHash(ctx context.Context, txHash string) ([]*domain.ActivityEvent, error)

	// ListRecent retrieves up to limit events, newest first.
	ListRecent(ctx context.Context, limit int) ([]*domain.ActivityEvent, error)
}

// EventCursorStore persists event polling positions.
// This enables resumption after restarts without reprocessing events.
type EventCursorStore interface {
	// Get returns the cursor for a stream. Returns ErrNotFound if none saved yet.
	Get(ctx context.Context, stream string) (*domain.EventCursor, error)

	// Set saves the cursor for a stream, replacing any previous value.
	Set(ctx context.Context, cursor *domain.EventCursor) error
}
