package local

import (
	"sync"

	"soroban-dao/internal/domain"
	"soroban-dao/internal/soroban/stub"
)

// Treasury error codes.
const (
	treasuryUnauthorized        = 3
	treasuryInvalidAmount       = 4
	treasuryInsufficientBalance = 5
	treasuryTxNotFound          = 6
	treasuryAlreadyApproved     = 7
	treasuryAlreadyExecuted     = 8
	treasuryThresholdNotMet     = 9
)

// Treasury is an in-memory multi-signature treasury.
type Treasury struct {
	mu        sync.Mutex
	admin     string
	signers   []string
	threshold uint32
	balance   int64
	txs       map[uint64]*domain.TreasuryTransaction
	approvals map[uint64]map[string]bool
	counter   uint64
}

// NewTreasury creates a treasury from genesis.
func NewTreasury(g Genesis) *Treasury {
	return &Treasury{
		admin:     g.Admin,
		signers:   append([]string(nil), g.Signers...),
		threshold: g.Threshold,
		balance:   g.Balance,
		txs:       make(map[uint64]*domain.TreasuryTransaction),
		approvals: make(map[uint64]map[string]bool),
	}
}

// Balance returns the current balance.
func (t *Treasury) Balance() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.balance
}

// Handle executes a contract call. State changes only when call.Commit.
func (t *Treasury) Handle(call stub.Call) (interface{}, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r := newArgReader(call.Args)
	switch call.Method {
	case "get_balance":
		return amount(t.balance), nil

	case "get_config":
		return domain.TreasuryConfig{
			Admin:       t.admin,
			Threshold:   t.threshold,
			SignerCount: uint32(len(t.signers)),
			Balance:     t.balance,
			TxCount:     t.counter,
		}, nil

	case "get_transaction":
		id := r.u64()
		if r.err != nil {
			return nil, r.err
		}
		tx, ok := t.txs[id]
		if !ok {
			return nil, contractError(treasuryTxNotFound)
		}
		return *tx, nil

	case "get_signers":
		return append([]string{}, t.signers...), nil

	case "deposit":
		from, amt := r.address(), r.i128()
		if r.err != nil {
			return nil, r.err
		}
		if from != call.Source {
			return nil, contractError(treasuryUnauthorized)
		}
		if amt <= 0 {
			return nil, contractError(treasuryInvalidAmount)
		}
		if call.Commit {
			t.balance += amt
		}
		return nil, nil

	case "propose_withdrawal":
		proposer, to, amt, memo := r.address(), r.address(), r.i128(), r.str()
		if r.err != nil {
			return nil, r.err
		}
		if proposer != call.Source || !contains(t.signers, proposer) {
			return nil, contractError(treasuryUnauthorized)
		}
		if amt <= 0 {
			return nil, contractError(treasuryInvalidAmount)
		}
		if amt > t.balance {
			return nil, contractError(treasuryInsufficientBalance)
		}
		id := t.counter + 1
		if call.Commit {
			t.counter = id
			t.txs[id] = &domain.TreasuryTransaction{
				ID:        id,
				Proposer:  proposer,
				To:        to,
				Amount:    amt,
				Memo:      memo,
				Threshold: t.threshold,
				CreatedAt: call.Ledger,
			}
			t.approvals[id] = make(map[string]bool)
		}
		return id, nil

	case "approve":
		signer, id := r.address(), r.u64()
		if r.err != nil {
			return nil, r.err
		}
		if signer != call.Source || !contains(t.signers, signer) {
			return nil, contractError(treasuryUnauthorized)
		}
		tx, ok := t.txs[id]
		if !ok {
			return nil, contractError(treasuryTxNotFound)
		}
		if tx.Executed {
			return nil, contractError(treasuryAlreadyExecuted)
		}
		if t.approvals[id][signer] {
			return nil, contractError(treasuryAlreadyApproved)
		}
		if call.Commit {
			t.approvals[id][signer] = true
			tx.Approvals++
		}
		return nil, nil

	case "execute":
		caller, id := r.address(), r.u64()
		if r.err != nil {
			return nil, r.err
		}
		if caller != call.Source || !contains(t.signers, caller) {
			return nil, contractError(treasuryUnauthorized)
		}
		tx, ok := t.txs[id]
		if !ok {
			return nil, contractError(treasuryTxNotFound)
		}
		if tx.Executed {
			return nil, contractError(treasuryAlreadyExecuted)
		}
		if tx.Approvals < tx.Threshold {
			return nil, contractError(treasuryThresholdNotMet)
		}
		if tx.Amount > t.balance {
			return nil, contractError(treasuryInsufficientBalance)
		}
		if call.Commit {
			tx.Executed = true
			t.balance -= tx.Amount
		}
		return nil, nil
	}
	return nil, errUnknownMethod
}
