package memory

import (
	"context"
	"errors"
	"testing"

	"soroban-dao/internal/domain"
	"soroban-dao/internal/storage"
)

func TestOperationJournal_InsertUpdateGet(t *testing.T) {
	journal := NewOperationJournal()
	ctx := context.Background()

	rec := &domain.OperationRecord{
		ID:         "op1",
		Key:        "key1",
		ContractID: "CTREASURY",
		Method:     "approve",
		Source:     "GSRC",
		State:      domain.StateUnsigned,
		CreatedAt:  1000,
		UpdatedAt:  1000,
	}
	if err := journal.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	err := journal.Update(ctx, "op1", domain.OperationUpdate{
		State:     domain.StateSubmitted,
		TxHash:    "hash1",
		UpdatedAt: 2000,
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, err := journal.GetByID(ctx, "op1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.State != domain.StateSubmitted {
		t.Errorf("State mismatch: got %s, want %s", got.State, domain.StateSubmitted)
	}
	if got.TxHash != "hash1" || got.UpdatedAt != 2000 || got.CreatedAt != 1000 {
		t.Errorf("unexpected record: %+v", got)
	}

	byHash, err := journal.GetByTxHash(ctx, "hash1")
	if err != nil {
		t.Fatalf("GetByTxHash failed: %v", err)
	}
	if byHash.ID != "op1" {
		t.Errorf("expected op1, got %s", byHash.ID)
	}

	// Returned records are copies.
	got.State = domain.StateConfirmed
	again, _ := journal.GetByID(ctx, "op1")
	if again.State != domain.StateSubmitted {
		t.Error("mutating a returned record changed the store")
	}
}

func TestOperationJournal_Errors(t *testing.T) {
	journal := NewOperationJournal()
	ctx := context.Background()

	if err := journal.Insert(ctx, &domain.OperationRecord{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}

	rec := &domain.OperationRecord{ID: "op1", State: domain.StateUnsigned}
	if err := journal.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := journal.Insert(ctx, rec); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
	if err := journal.Update(ctx, "missing", domain.OperationUpdate{State: domain.StateSigned}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if _, err := journal.GetByID(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if _, err := journal.GetByTxHash(ctx, "nohash"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestOperationJournal_ListByStateAndRecent(t *testing.T) {
	journal := NewOperationJournal()
	ctx := context.Background()

	records := []*domain.OperationRecord{
		{ID: "a", State: domain.StateSubmitted, CreatedAt: 300},
		{ID: "b", State: domain.StateConfirmed, CreatedAt: 100},
		{ID: "c", State: domain.StateTimedOut, CreatedAt: 200},
		{ID: "d", State: domain.StateRejected, CreatedAt: 400},
	}
	for _, r := range records {
		if err := journal.Insert(ctx, r); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	pending, err := journal.ListByState(ctx, domain.StateSubmitted, domain.StateTimedOut)
	if err != nil {
		t.Fatalf("ListByState failed: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending, got %d", len(pending))
	}
	if pending[0].ID != "c" || pending[1].ID != "a" {
		t.Errorf("expected created_at ASC order [c a], got [%s %s]", pending[0].ID, pending[1].ID)
	}

	recent, err := journal.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if len(recent) != 2 || recent[0].ID != "d" || recent[1].ID != "a" {
		t.Errorf("unexpected recent order: %v", recent)
	}
}
