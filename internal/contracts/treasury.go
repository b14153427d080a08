package contracts

import (
	"context"
	"errors"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"soroban-dao/internal/domain"
	"soroban-dao/internal/soroban"
	"soroban-dao/internal/txn"
)

// listConcurrency bounds parallel reads when listing records.
const listConcurrency = 8

// maxListCount caps how many records a list operation walks. Counts come
// from the node and are not trusted beyond it.
const maxListCount = 10_000

func requireListCount(method string, count uint64) error {
	if count > maxListCount {
		return invalid(method, "record count %d exceeds limit %d", count, maxListCount)
	}
	return nil
}

// Treasury is a client for the multi-signature treasury contract.
type Treasury struct {
	inv *Invoker
	id  string
}

// NewTreasury creates a treasury client.
func NewTreasury(inv *Invoker, contractID string) *Treasury {
	return &Treasury{inv: inv, id: contractID}
}

// ContractID returns the treasury contract id.
func (t *Treasury) ContractID() string {
	return t.id
}

func (t *Treasury) read(ctx context.Context, method string, out interface{}, args ...soroban.Arg) error {
	return t.inv.Read(ctx, soroban.Invocation{ContractID: t.id, Method: method, Args: args}, out)
}

// GetBalance returns the treasury balance in stroops.
func (t *Treasury) GetBalance(ctx context.Context) (int64, error) {
	var balance i128
	if err := t.read(ctx, "get_balance", &balance); err != nil {
		return 0, err
	}
	return int64(balance), nil
}

// GetConfig returns the treasury configuration.
func (t *Treasury) GetConfig(ctx context.Context) (*domain.TreasuryConfig, error) {
	var cfg domain.TreasuryConfig
	if err := t.read(ctx, "get_config", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// GetTransaction returns a withdrawal transaction by id.
func (t *Treasury) GetTransaction(ctx context.Context, id uint64) (*domain.TreasuryTransaction, error) {
	var tx domain.TreasuryTransaction
	if err := t.read(ctx, "get_transaction", &tx, soroban.U64(id)); err != nil {
		return nil, err
	}
	return &tx, nil
}

// ListTransactions returns all withdrawal transactions ordered by id.
// Ids are assigned from 1 up to the config's transaction count.
func (t *Treasury) ListTransactions(ctx context.Context) ([]*domain.TreasuryTransaction, error) {
	cfg, err := t.GetConfig(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireListCount("list_transactions", cfg.TxCount); err != nil {
		return nil, err
	}

	var (
		mu  sync.Mutex
		out []*domain.TreasuryTransaction
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(listConcurrency)
	for id := uint64(1); id <= cfg.TxCount; id++ {
		id := id
		g.Go(func() error {
			tx, err := t.GetTransaction(gctx, id)
			if errors.Is(err, txn.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			mu.Lock()
			out = append(out, tx)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetSigners returns the addresses allowed to approve withdrawals.
func (t *Treasury) GetSigners(ctx context.Context) ([]string, error) {
	var signers []string
	if err := t.read(ctx, "get_signers", &signers); err != nil {
		return nil, err
	}
	return signers, nil
}

// Deposit moves amount stroops from the connected account into the treasury.
func (t *Treasury) Deposit(ctx context.Context, amount int64) (*txn.Receipt, error) {
	if err := requireAmount("deposit", amount); err != nil {
		return nil, err
	}
	return t.inv.Invoke(ctx, t.id, "deposit", nil, func(source string) []soroban.Arg {
		return []soroban.Arg{soroban.Address(source), soroban.I128(amount)}
	})
}

// ProposeWithdrawal proposes sending amount stroops to to and returns the
// new transaction id.
func (t *Treasury) ProposeWithdrawal(ctx context.Context, to string, amount int64, memo string) (uint64, *txn.Receipt, error) {
	const method = "propose_withdrawal"
	if err := requireAddress(method, to); err != nil {
		return 0, nil, err
	}
	if err := requireAmount(method, amount); err != nil {
		return 0, nil, err
	}

	var id uint64
	receipt, err := t.inv.Invoke(ctx, t.id, method, &id, func(source string) []soroban.Arg {
		return []soroban.Arg{soroban.Address(source), soroban.Address(to), soroban.I128(amount), soroban.String(memo)}
	})
	return id, receipt, err
}

// Approve adds the connected signer's approval to a transaction.
func (t *Treasury) Approve(ctx context.Context, txID uint64) (*txn.Receipt, error) {
	return t.inv.Invoke(ctx, t.id, "approve", nil, func(source string) []soroban.Arg {
		return []soroban.Arg{soroban.Address(source), soroban.U64(txID)}
	})
}

// Execute sends an approved withdrawal.
func (t *Treasury) Execute(ctx context.Context, txID uint64) (*txn.Receipt, error) {
	return t.inv.Invoke(ctx, t.id, "execute", nil, func(source string) []soroban.Arg {
		return []soroban.Arg{soroban.Address(source), soroban.U64(txID)}
	})
}
