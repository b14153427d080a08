package clickhouse

import (
	"context"
	"fmt"
	"time"

	"soroban-dao/internal/domain"
	"soroban-dao/internal/observability"
	"soroban-dao/internal/storage"
)

// ActivityStore implements storage.ActivityStore using ClickHouse.
type ActivityStore struct {
	conn *Conn
}

// NewActivityStore creates a new ActivityStore.
func NewActivityStore(conn *Conn) *ActivityStore {
	return &ActivityStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ActivityStore = (*ActivityStore)(nil)

const activityColumns = `event_id, contract_id, contract, topics, value, tx_hash, ledger, ledger_closed_at`

// InsertBulk adds events not yet stored and returns the number inserted.
// ReplacingMergeTree would collapse replays eventually; checking first keeps
// the returned count exact.
func (s *ActivityStore) InsertBulk(ctx context.Context, events []*domain.ActivityEvent) (inserted int, err error) {
	if len(events) == 0 {
		return 0, nil
	}
	start := time.Now()
	defer func() {
		observability.RecordDBQuery("clickhouse", "activity_insert", time.Since(start).Seconds(), err)
	}()

	ids := make([]string, 0, len(events))
	batchSeen := make(map[string]struct{}, len(events))
	for _, e := range events {
		if e == nil || e.EventID == "" {
			return 0, storage.ErrInvalidInput
		}
		if _, dup := batchSeen[e.EventID]; dup {
			continue
		}
		batchSeen[e.EventID] = struct{}{}
		ids = append(ids, e.EventID)
	}

	existing, err := s.existing(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("check exists: %w", err)
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO activity_events (`+activityColumns+`)`)
	if err != nil {
		return 0, fmt.Errorf("prepare batch: %w", err)
	}

	appended := make(map[string]struct{}, len(ids))
	for _, e := range events {
		if _, ok := existing[e.EventID]; ok {
			continue
		}
		if _, ok := appended[e.EventID]; ok {
			continue
		}
		appended[e.EventID] = struct{}{}

		topics := e.Topics
		if topics == nil {
			topics = []string{}
		}
		err = batch.Append(
			e.EventID, e.ContractID, e.Contract, topics, e.Value, e.TxHash, e.Ledger, e.LedgerClosedAt,
		)
		if err != nil {
			return 0, fmt.Errorf("append to batch: %w", err)
		}
	}

	if len(appended) == 0 {
		_ = batch.Abort()
		return 0, nil
	}
	if err := batch.Send(); err != nil {
		return 0, fmt.Errorf("send batch: %w", err)
	}
	return len(appended), nil
}

// GetByContract retrieves events for a contract within [fromLedger, toLedger].
func (s *ActivityStore) GetByContract(ctx context.Context, contractID string, fromLedger, toLedger uint32) ([]*domain.ActivityEvent, error) {
	if toLedger == 0 {
		toLedger = ^uint32(0)
	}

	rows, err := s.conn.Query(ctx, `
		SELECT `+activityColumns+`
		FROM activity_events FINAL
		WHERE contract_id = ? AND ledger >= ? AND ledger <= ?
		ORDER BY ledger ASC, event_id ASC
	`, contractID, fromLedger, toLedger)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()

	return scanActivity(rows)
}

// GetByTxHash retrieves all events emitted by a transaction.
func (s *ActivityStore) GetByTxHash(ctx context.Context, txHash string) ([]*domain.ActivityEvent, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT `+activityColumns+`
		FROM activity_events FINAL
		WHERE tx_hash = ?
		ORDER BY ledger ASC, event_id ASC
	`, txHash)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()

	return scanActivity(rows)
}

// ListRecent retrieves up to limit events, newest first.
func (s *ActivityStore) ListRecent(ctx context.Context, limit int) ([]*domain.ActivityEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.conn.Query(ctx, `
		SELECT `+activityColumns+`
		FROM activity_events FINAL
		ORDER BY ledger DESC, event_id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()

	return scanActivity(rows)
}

// existing returns the subset of ids already stored.
func (s *ActivityStore) existing(ctx context.Context, ids []string) (map[string]struct{}, error) {
	found := make(map[string]struct{})
	if len(ids) == 0 {
		return found, nil
	}

	rows, err := s.conn.Query(ctx, `SELECT event_id FROM activity_events WHERE event_id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		found[id] = struct{}{}
	}
	return found, rows.Err()
}

// scanActivity scans multiple rows.
func scanActivity(rows chRows) ([]*domain.ActivityEvent, error) {
	var result []*domain.ActivityEvent
	for rows.Next() {
		var e domain.ActivityEvent
		err := rows.Scan(
			&e.EventID, &e.ContractID, &e.Contract, &e.Topics, &e.Value, &e.TxHash, &e.Ledger, &e.LedgerClosedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan activity row: %w", err)
		}
		result = append(result, &e)
	}
	return result, rows.Err()
}
