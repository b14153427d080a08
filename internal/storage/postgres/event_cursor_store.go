package postgres

import (
	"context"

	"soroban-dao/internal/domain"
	"soroban-dao/internal/storage"
)

// EventCursorStore is a PostgreSQL implementation of storage.EventCursorStore.
// One row per stream in event_cursors.
type EventCursorStore struct {
	pool *Pool
}

// NewEventCursorStore creates a new PostgreSQL event cursor store.
func NewEventCursorStore(pool *Pool) *EventCursorStore {
	return &EventCursorStore{pool: pool}
}

var _ storage.EventCursorStore = (*EventCursorStore)(nil)

// Get returns the cursor for a stream.
func (s *EventCursorStore) Get(ctx context.Context, stream string) (*domain.EventCursor, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT stream, paging_cursor, ledger, updated_at
		FROM event_cursors
		WHERE stream = $1
	`, stream)

	var (
		c      domain.EventCursor
		ledger int64
	)
	if err := row.Scan(&c.Stream, &c.Cursor, &ledger, &c.UpdatedAt); err != nil {
		return nil, mapError(err, "get event cursor")
	}
	c.Ledger = uint32(ledger)
	return &c, nil
}

// Set saves the cursor for a stream.
// Uses upsert to handle initial insert and subsequent updates.
func (s *EventCursorStore) Set(ctx context.Context, cursor *domain.EventCursor) error {
	if cursor == nil || cursor.Stream == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO event_cursors (stream, paging_cursor, ledger, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (stream) DO UPDATE
		SET paging_cursor = EXCLUDED.paging_cursor,
		    ledger = EXCLUDED.ledger,
		    updated_at = EXCLUDED.updated_at
	`, cursor.Stream, cursor.Cursor, int64(cursor.Ledger), cursor.UpdatedAt)
	return mapError(err, "set event cursor")
}
