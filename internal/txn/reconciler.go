package txn

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"soroban-dao/internal/domain"
	"soroban-dao/internal/observability"
	"soroban-dao/internal/soroban"
	"soroban-dao/internal/storage"
)

// ReconcilerOptions configures a Reconciler.
type ReconcilerOptions struct {
	RPC      soroban.RPCClient
	Journal  storage.OperationJournal
	Interval time.Duration // default 15s
	// ExpireAfter is how long a transaction may stay unknown to the RPC
	// before it is marked REJECTED. Default 10m, which outlives the
	// default envelope validity window.
	ExpireAfter time.Duration
	Logger      *log.Logger
	Now         func() time.Time
}

// Reconciler resolves journal records left indeterminate (SIGNED with a
// hash, SUBMITTED, TIMED_OUT) by asking the RPC for their final status.
type Reconciler struct {
	rpc         soroban.RPCClient
	journal     storage.OperationJournal
	interval    time.Duration
	expireAfter time.Duration
	logger      *log.Logger
	now         func() time.Time
}

// NewReconciler creates a new Reconciler.
func NewReconciler(opts ReconcilerOptions) *Reconciler {
	interval := opts.Interval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	expireAfter := opts.ExpireAfter
	if expireAfter <= 0 {
		expireAfter = 10 * time.Minute
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Reconciler{
		rpc:         opts.RPC,
		journal:     opts.Journal,
		interval:    interval,
		expireAfter: expireAfter,
		logger:      logger,
		now:         now,
	}
}

// Run reconciles on every interval until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Printf("Reconciler started (interval %s)", r.interval)
	for {
		if n, err := r.ReconcileOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.Printf("Reconcile error: %v", err)
		} else if n > 0 {
			r.logger.Printf("Reconciled %d operations", n)
		}

		select {
		case <-ctx.Done():
			r.logger.Printf("Reconciler stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ReconcileOnce makes one pass over indeterminate records and returns the
// number resolved.
func (r *Reconciler) ReconcileOnce(ctx context.Context) (int, error) {
	records, err := r.journal.ListByState(ctx, domain.StateSigned, domain.StateSubmitted, domain.StateTimedOut)
	if err != nil {
		return 0, fmt.Errorf("list pending: %w", err)
	}

	resolved := 0
	var errs []error
	for _, rec := range records {
		if rec.TxHash == "" {
			continue
		}
		if ctx.Err() != nil {
			return resolved, ctx.Err()
		}

		ok, err := r.reconcile(ctx, rec)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", rec.ID, err))
			continue
		}
		if ok {
			resolved++
		}
	}

	return resolved, errors.Join(errs...)
}

func (r *Reconciler) reconcile(ctx context.Context, rec *domain.OperationRecord) (bool, error) {
	res, err := r.rpc.GetTransaction(ctx, rec.TxHash)
	if err != nil {
		return false, fmt.Errorf("get transaction: %w", err)
	}

	now := r.now()
	upd := domain.OperationUpdate{UpdatedAt: now.UnixMilli()}
	switch res.Status {
	case soroban.TxSuccess:
		upd.State = domain.StateConfirmed
		upd.Ledger = res.Ledger
	case soroban.TxFailed:
		upd.State = domain.StateRejected
		upd.Ledger = res.Ledger
		upd.ErrorKind = domain.KindSubmissionRejected
		upd.ErrorMessage = "transaction failed: " + res.ResultXDR
	default:
		if now.Sub(time.UnixMilli(rec.CreatedAt)) < r.expireAfter {
			return false, nil
		}
		upd.State = domain.StateRejected
		upd.ErrorKind = domain.KindSubmissionRejected
		upd.ErrorMessage = "expired: transaction never reached the ledger"
	}

	if err := r.journal.Update(ctx, rec.ID, upd); err != nil {
		return false, fmt.Errorf("update journal: %w", err)
	}
	observability.RecordReconciled(string(upd.State))
	r.logger.Printf("%s %s: %s -> %s", rec.Method, rec.TxHash, rec.State, upd.State)
	return true, nil
}
