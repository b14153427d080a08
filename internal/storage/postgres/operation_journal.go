package postgres

import (
	"context"
	"time"

	"soroban-dao/internal/domain"
	"soroban-dao/internal/observability"
	"soroban-dao/internal/storage"
)

// OperationJournal is a PostgreSQL implementation of storage.OperationJournal.
type OperationJournal struct {
	pool *Pool
}

// NewOperationJournal creates a new PostgreSQL operation journal.
func NewOperationJournal(pool *Pool) *OperationJournal {
	return &OperationJournal{pool: pool}
}

var _ storage.OperationJournal = (*OperationJournal)(nil)

const journalColumns = `id, op_key, contract_id, method, source, state, tx_hash, ledger,
	error_kind, error_message, created_at, updated_at`

// Insert adds a new record. Returns ErrDuplicateKey if id exists.
func (s *OperationJournal) Insert(ctx context.Context, rec *domain.OperationRecord) (err error) {
	if rec == nil || rec.ID == "" {
		return storage.ErrInvalidInput
	}
	defer record("journal_insert", time.Now(), &err)

	_, err = s.pool.Exec(ctx, `
		INSERT INTO operation_journal (`+journalColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		rec.ID, rec.Key, rec.ContractID, rec.Method, rec.Source, string(rec.State),
		rec.TxHash, int64(rec.Ledger), string(rec.ErrorKind), rec.ErrorMessage,
		rec.CreatedAt, rec.UpdatedAt,
	)
	return mapError(err, "insert operation")
}

// Update applies a state transition. Empty fields keep their stored value.
func (s *OperationJournal) Update(ctx context.Context, id string, upd domain.OperationUpdate) (err error) {
	if id == "" {
		return storage.ErrInvalidInput
	}
	defer record("journal_update", time.Now(), &err)

	tag, err := s.pool.Exec(ctx, `
		UPDATE operation_journal SET
			state         = COALESCE(NULLIF($2, ''), state),
			tx_hash       = COALESCE(NULLIF($3, ''), tx_hash),
			ledger        = COALESCE(NULLIF($4::BIGINT, 0), ledger),
			error_kind    = COALESCE(NULLIF($5, ''), error_kind),
			error_message = COALESCE(NULLIF($6, ''), error_message),
			updated_at    = COALESCE(NULLIF($7::BIGINT, 0), updated_at)
		WHERE id = $1
	`, id, string(upd.State), upd.TxHash, int64(upd.Ledger), string(upd.ErrorKind), upd.ErrorMessage, upd.UpdatedAt)
	if err != nil {
		return mapError(err, "update operation")
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetByID retrieves a record by id.
func (s *OperationJournal) GetByID(ctx context.Context, id string) (*domain.OperationRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+journalColumns+` FROM operation_journal WHERE id = $1`, id)
	rec, err := scanOperation(row)
	if err != nil {
		return nil, mapError(err, "get operation")
	}
	return rec, nil
}

// GetByTxHash retrieves the record for a transaction hash.
func (s *OperationJournal) GetByTxHash(ctx context.Context, txHash string) (*domain.OperationRecord, error) {
	if txHash == "" {
		return nil, storage.ErrInvalidInput
	}
	row := s.pool.QueryRow(ctx, `SELECT `+journalColumns+` FROM operation_journal WHERE tx_hash = $1`, txHash)
	rec, err := scanOperation(row)
	if err != nil {
		return nil, mapError(err, "get operation")
	}
	return rec, nil
}

// ListByState retrieves records in any of the given states, ordered by created_at ASC.
func (s *OperationJournal) ListByState(ctx context.Context, states ...domain.OperationState) (result []*domain.OperationRecord, err error) {
	if len(states) == 0 {
		return nil, nil
	}
	defer record("journal_list_state", time.Now(), &err)

	names := make([]string, len(states))
	for i, st := range states {
		names[i] = string(st)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+journalColumns+`
		FROM operation_journal
		WHERE state = ANY($1)
		ORDER BY created_at ASC, id ASC
	`, names)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

// ListRecent retrieves up to limit records, newest first.
func (s *OperationJournal) ListRecent(ctx context.Context, limit int) ([]*domain.OperationRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+journalColumns+`
		FROM operation_journal
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*domain.OperationRecord
	for rows.Next() {
		rec, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

// rowScanner is satisfied by pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanOperation(row rowScanner) (*domain.OperationRecord, error) {
	var (
		rec       domain.OperationRecord
		state     string
		errorKind string
		ledger    int64
	)
	err := row.Scan(
		&rec.ID, &rec.Key, &rec.ContractID, &rec.Method, &rec.Source, &state,
		&rec.TxHash, &ledger, &errorKind, &rec.ErrorMessage,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.State = domain.OperationState(state)
	rec.ErrorKind = domain.ErrorKind(errorKind)
	rec.Ledger = uint32(ledger)
	return &rec, nil
}

// record reports query timing to the metrics registry.
func record(operation string, start time.Time, err *error) {
	observability.RecordDBQuery("postgres", operation, time.Since(start).Seconds(), *err)
}
