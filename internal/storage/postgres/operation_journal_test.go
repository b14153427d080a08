package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soroban-dao/internal/domain"
	"soroban-dao/internal/storage"
)

func TestOperationJournal_Lifecycle(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	journal := NewOperationJournal(pool)
	ctx := context.Background()

	rec := &domain.OperationRecord{
		ID:         "op-1",
		Key:        "k1",
		ContractID: "CTREASURY",
		Method:     "approve",
		Source:     "GSRC",
		State:      domain.StateUnsigned,
		CreatedAt:  1000,
		UpdatedAt:  1000,
	}
	require.NoError(t, journal.Insert(ctx, rec))
	assert.ErrorIs(t, journal.Insert(ctx, rec), storage.ErrDuplicateKey)

	require.NoError(t, journal.Update(ctx, "op-1", domain.OperationUpdate{State: domain.StateSigned, UpdatedAt: 1100}))
	require.NoError(t, journal.Update(ctx, "op-1", domain.OperationUpdate{State: domain.StateSubmitted, TxHash: "abc", UpdatedAt: 1200}))

	got, err := journal.GetByID(ctx, "op-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateSubmitted, got.State)
	assert.Equal(t, "abc", got.TxHash)
	assert.Equal(t, int64(1200), got.UpdatedAt)
	assert.Equal(t, int64(1000), got.CreatedAt)

	require.NoError(t, journal.Update(ctx, "op-1", domain.OperationUpdate{
		State:        domain.StateRejected,
		Ledger:       77,
		ErrorKind:    domain.KindSubmissionRejected,
		ErrorMessage: "tx failed",
		UpdatedAt:    1300,
	}))

	got, err = journal.GetByTxHash(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "op-1", got.ID)
	assert.Equal(t, domain.StateRejected, got.State)
	assert.Equal(t, uint32(77), got.Ledger)
	assert.Equal(t, "abc", got.TxHash, "empty update fields keep stored values")
	assert.Equal(t, domain.KindSubmissionRejected, got.ErrorKind)

	assert.ErrorIs(t, journal.Update(ctx, "missing", domain.OperationUpdate{State: domain.StateSigned}), storage.ErrNotFound)
	_, err = journal.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestOperationJournal_Lists(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	journal := NewOperationJournal(pool)
	ctx := context.Background()

	for _, rec := range []*domain.OperationRecord{
		{ID: "a", State: domain.StateSubmitted, TxHash: "h-a", CreatedAt: 300, UpdatedAt: 300},
		{ID: "b", State: domain.StateConfirmed, TxHash: "h-b", CreatedAt: 100, UpdatedAt: 100},
		{ID: "c", State: domain.StateTimedOut, TxHash: "h-c", CreatedAt: 200, UpdatedAt: 200},
	} {
		require.NoError(t, journal.Insert(ctx, rec))
	}

	pending, err := journal.ListByState(ctx, domain.StateSubmitted, domain.StateTimedOut)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "c", pending[0].ID)
	assert.Equal(t, "a", pending[1].ID)

	recent, err := journal.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "a", recent[0].ID)
	assert.Equal(t, "c", recent[1].ID)
}
