// Package stub provides an in-memory Soroban RPC for tests and local runs.
package stub

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"soroban-dao/internal/soroban"
)

// ErrUnreachable is returned by every call while Unreachable is set.
var ErrUnreachable = fmt.Errorf("%w: stub offline", soroban.ErrUnreachable)

// Call is a contract invocation handed to a Handler.
// Commit is false during simulation and true when the transaction lands.
type Call struct {
	Source    string
	Method    string
	Args      []soroban.Arg
	Commit    bool
	Ledger    uint32 // ledger the call executes in
	Timestamp int64  // ledger close time, unix seconds
}

// Handler executes calls for one contract. A returned error becomes a
// simulation error or a FAILED transaction.
type Handler func(call Call) (interface{}, error)

type sentTx struct {
	env    *soroban.Envelope
	polls  int
	result *soroban.TransactionResult
}

// RPCClient implements soroban.RPCClient over registered contract handlers.
type RPCClient struct {
	Codec      soroban.Codec
	Passphrase string

	// ConfirmAfter is the number of NOT_FOUND polls before a sent
	// transaction resolves.
	ConfirmAfter int
	// SendStatus forces the sendTransaction status when set.
	SendStatus string
	// Unreachable makes every call fail with ErrUnreachable.
	Unreachable bool
	// NeverConfirm keeps sent transactions NOT_FOUND forever.
	NeverConfirm bool
	// Now is the ledger clock. Defaults to time.Now.
	Now func() time.Time

	mu        sync.Mutex
	ledger    uint32
	accounts  map[string]int64
	handlers  map[string]Handler
	txs       map[string]*sentTx
	events    []soroban.Event
	simulated int
	sent      int
}

// NewRPCClient creates a stub RPC serving the given passphrase.
func NewRPCClient(passphrase string) *RPCClient {
	return &RPCClient{
		Codec:      soroban.JSONCodec{},
		Passphrase: passphrase,
		ledger:     1000,
		accounts:   make(map[string]int64),
		handlers:   make(map[string]Handler),
		txs:        make(map[string]*sentTx),
	}
}

var _ soroban.RPCClient = (*RPCClient)(nil)

// Register installs a contract handler.
func (c *RPCClient) Register(contractID string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[contractID] = h
}

// AddAccount creates a source account with the given sequence.
func (c *RPCClient) AddAccount(address string, sequence int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accounts[address] = sequence
}

// AddEvent appends an event to the stub event log.
func (c *RPCClient) AddEvent(ev soroban.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.appendEventLocked(ev)
}

// SetLedger sets the current ledger sequence.
func (c *RPCClient) SetLedger(seq uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ledger = seq
}

// SimulateCount returns the number of simulateTransaction calls.
func (c *RPCClient) SimulateCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.simulated
}

// SendCount returns the number of sendTransaction calls.
func (c *RPCClient) SendCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sent
}

// GetHealth reports healthy.
func (c *RPCClient) GetHealth(_ context.Context) (*soroban.Health, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Unreachable {
		return nil, ErrUnreachable
	}
	return &soroban.Health{Status: "healthy", LatestLedger: c.ledger, OldestLedger: 1, LedgerRetentionWindow: c.ledger}, nil
}

// GetNetwork returns the configured passphrase.
func (c *RPCClient) GetNetwork(_ context.Context) (*soroban.Network, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Unreachable {
		return nil, ErrUnreachable
	}
	return &soroban.Network{Passphrase: c.Passphrase, ProtocolVersion: 22}, nil
}

// GetLatestLedger returns the current ledger.
func (c *RPCClient) GetLatestLedger(_ context.Context) (*soroban.LatestLedger, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Unreachable {
		return nil, ErrUnreachable
	}
	return &soroban.LatestLedger{ID: strconv.FormatUint(uint64(c.ledger), 16), Sequence: c.ledger, ProtocolVersion: 22}, nil
}

// GetAccount returns the account or nil when unknown.
func (c *RPCClient) GetAccount(_ context.Context, address string) (*soroban.Account, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Unreachable {
		return nil, ErrUnreachable
	}
	seq, ok := c.accounts[address]
	if !ok {
		return nil, nil
	}
	return &soroban.Account{ID: address, Sequence: seq}, nil
}

// SimulateTransaction runs the handler without committing.
func (c *RPCClient) SimulateTransaction(_ context.Context, envelope string) (*soroban.SimulateResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Unreachable {
		return nil, ErrUnreachable
	}
	c.simulated++

	env, err := c.Codec.DecodeEnvelope(envelope)
	if err != nil {
		return &soroban.SimulateResult{LatestLedger: c.ledger, Error: err.Error()}, nil
	}

	ret, err := c.invokeLocked(env, false)
	if err != nil {
		return &soroban.SimulateResult{LatestLedger: c.ledger, Error: err.Error()}, nil
	}
	xdr, err := c.Codec.EncodeValue(ret)
	if err != nil {
		return nil, err
	}

	return &soroban.SimulateResult{
		LatestLedger:    c.ledger,
		MinResourceFee:  5000,
		TransactionData: "footprint:" + env.Invocation.ContractID,
		Results: []soroban.SimulateReturn{{
			Auth: []string{"auth:" + env.Source},
			XDR:  xdr,
		}},
	}, nil
}

// SendTransaction records a signed envelope.
func (c *RPCClient) SendTransaction(_ context.Context, envelope string) (*soroban.SendResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Unreachable {
		return nil, ErrUnreachable
	}
	c.sent++

	env, err := c.Codec.DecodeEnvelope(envelope)
	if err != nil {
		return &soroban.SendResult{Status: soroban.SendError, LatestLedger: c.ledger, ErrorResultXDR: err.Error()}, nil
	}
	hash, err := soroban.TransactionHashHex(c.Passphrase, env)
	if err != nil {
		return nil, err
	}

	if c.SendStatus != "" {
		return &soroban.SendResult{Status: c.SendStatus, Hash: hash, LatestLedger: c.ledger}, nil
	}
	if !env.Signed() {
		return &soroban.SendResult{Status: soroban.SendError, Hash: hash, LatestLedger: c.ledger, ErrorResultXDR: "txBadAuth"}, nil
	}
	if _, ok := c.txs[hash]; ok {
		return &soroban.SendResult{Status: soroban.SendDuplicate, Hash: hash, LatestLedger: c.ledger}, nil
	}
	if seq, ok := c.accounts[env.Source]; ok {
		if env.Sequence != seq+1 {
			return &soroban.SendResult{Status: soroban.SendError, Hash: hash, LatestLedger: c.ledger, ErrorResultXDR: "txBadSeq"}, nil
		}
		c.accounts[env.Source] = env.Sequence
	}

	c.txs[hash] = &sentTx{env: env}
	return &soroban.SendResult{Status: soroban.SendPending, Hash: hash, LatestLedger: c.ledger}, nil
}

// GetTransaction resolves a sent transaction after ConfirmAfter polls.
func (c *RPCClient) GetTransaction(_ context.Context, hash string) (*soroban.TransactionResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Unreachable {
		return nil, ErrUnreachable
	}

	tx, ok := c.txs[hash]
	if !ok {
		return &soroban.TransactionResult{Status: soroban.TxNotFound, LatestLedger: c.ledger}, nil
	}
	if tx.result != nil {
		out := *tx.result
		out.LatestLedger = c.ledger
		return &out, nil
	}
	if c.NeverConfirm || tx.polls < c.ConfirmAfter {
		tx.polls++
		return &soroban.TransactionResult{Status: soroban.TxNotFound, LatestLedger: c.ledger}, nil
	}

	c.ledger++
	res := &soroban.TransactionResult{
		LatestLedger: c.ledger,
		Ledger:       c.ledger,
		CreatedAt:    time.Now().Unix(),
	}
	ret, err := c.invokeLocked(tx.env, true)
	if err != nil {
		res.Status = soroban.TxFailed
		res.ResultXDR = err.Error()
	} else {
		xdr, encErr := c.Codec.EncodeValue(ret)
		if encErr != nil {
			return nil, encErr
		}
		res.Status = soroban.TxSuccess
		res.ReturnValue = xdr
		c.emitLocked(tx.env, hash, xdr)
	}
	tx.result = res
	out := *res
	return &out, nil
}

// GetEvents returns events at or after StartLedger, or after the cursor.
func (c *RPCClient) GetEvents(_ context.Context, req soroban.EventsRequest) (*soroban.EventsResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Unreachable {
		return nil, ErrUnreachable
	}

	ids := make(map[string]bool)
	for _, f := range req.Filters {
		for _, id := range f.ContractIDs {
			ids[id] = true
		}
	}

	limit := 100
	cursor := ""
	if req.Pagination != nil {
		cursor = req.Pagination.Cursor
		if req.Pagination.Limit > 0 {
			limit = req.Pagination.Limit
		}
	}

	res := &soroban.EventsResult{LatestLedger: c.ledger, Events: []soroban.Event{}}
	for _, ev := range c.events {
		if cursor != "" {
			if ev.PagingToken <= cursor {
				continue
			}
		} else if ev.Ledger < req.StartLedger {
			continue
		}
		if len(ids) > 0 && !ids[ev.ContractID] {
			continue
		}
		res.Events = append(res.Events, ev)
		res.Cursor = ev.PagingToken
		if len(res.Events) >= limit {
			break
		}
	}
	if res.Cursor == "" {
		res.Cursor = cursor
	}
	return res, nil
}

func (c *RPCClient) invokeLocked(env *soroban.Envelope, commit bool) (interface{}, error) {
	h, ok := c.handlers[env.Invocation.ContractID]
	if !ok {
		return nil, errors.New("HostError: Error(Storage, MissingValue): contract not found")
	}
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	return h(Call{
		Source:    env.Source,
		Method:    env.Invocation.Method,
		Args:      env.Invocation.Args,
		Commit:    commit,
		Ledger:    c.ledger,
		Timestamp: now().Unix(),
	})
}

func (c *RPCClient) emitLocked(env *soroban.Envelope, hash, value string) {
	topic, err := c.Codec.EncodeValue(env.Invocation.Method)
	if err != nil {
		return
	}
	c.appendEventLocked(soroban.Event{
		Type:                     "contract",
		Ledger:                   c.ledger,
		LedgerClosedAt:           time.Now().UTC().Format(time.RFC3339),
		ContractID:               env.Invocation.ContractID,
		Topic:                    []string{topic},
		Value:                    value,
		InSuccessfulContractCall: true,
		TxHash:                   hash,
	})
}

func (c *RPCClient) appendEventLocked(ev soroban.Event) {
	if ev.ID == "" {
		ev.ID = fmt.Sprintf("%019d-%010d", uint64(ev.Ledger)<<32, len(c.events)+1)
	}
	if ev.PagingToken == "" {
		ev.PagingToken = ev.ID
	}
	c.events = append(c.events, ev)
	sort.SliceStable(c.events, func(i, j int) bool {
		return c.events[i].PagingToken < c.events[j].PagingToken
	})
}
