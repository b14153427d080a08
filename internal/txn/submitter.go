package txn

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"soroban-dao/internal/domain"
	"soroban-dao/internal/idhash"
	"soroban-dao/internal/observability"
	"soroban-dao/internal/soroban"
	"soroban-dao/internal/storage"
)

// Signer signs envelopes on behalf of the connected account.
type Signer interface {
	// Address returns the connected account, false when none.
	Address() (string, bool)
	// Sign returns env with the account's signature attached.
	Sign(ctx context.Context, env *soroban.Envelope) (*soroban.Envelope, error)
}

// Operation is one mutating contract call.
type Operation struct {
	Label      string // human-readable description for logs
	Invocation soroban.Invocation
}

// Receipt is the outcome of a confirmed operation.
type Receipt struct {
	State       domain.OperationState
	TxHash      string
	Ledger      uint32
	Return      string // encoded return value
	OperationID string // journal record id, empty without a journal
}

// Decode decodes the return value into out.
func (r *Receipt) Decode(codec soroban.Codec, out interface{}) error {
	return codec.DecodeValue(r.Return, out)
}

// Options configures a Submitter.
type Options struct {
	RPC               soroban.RPCClient
	Codec             soroban.Codec
	Signer            Signer
	Journal           storage.OperationJournal // optional
	NetworkPassphrase string
	BaseFee           int64         // stroops, default 100
	TxTimeout         time.Duration // envelope validity window, default 5m
	ConfirmTimeout    time.Duration // default 30s
	PollInterval      time.Duration // default 1s
	Now               func() time.Time
	Logger            *log.Logger
	// ErrorName resolves contract error codes to names. Optional.
	ErrorName func(contractID string, code uint32) string
}

// Submitter runs operations through the lifecycle
//
//	UNSIGNED -> SIGNED -> SUBMITTED -> CONFIRMED | REJECTED | TIMED_OUT
//
// Concurrent submissions of the same operation key share one run.
type Submitter struct {
	rpc            soroban.RPCClient
	codec          soroban.Codec
	signer         Signer
	journal        storage.OperationJournal
	passphrase     string
	baseFee        int64
	txTimeout      time.Duration
	confirmTimeout time.Duration
	pollInterval   time.Duration
	now            func() time.Time
	logger         *log.Logger
	errorName      func(string, uint32) string

	group   Group
	mu      sync.Mutex
	flights map[string]*flight
}

// flight tracks how far an in-flight run got, for joiners that give up early.
type flight struct {
	mu       sync.Mutex
	state    domain.OperationState
	txHash   string
	recordID string
	joiners  int
}

// reset clears progress left by an earlier run of the same key.
func (f *flight) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = domain.StateUnsigned
	f.txHash = ""
	f.recordID = ""
}

func (f *flight) snapshot() (domain.OperationState, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state, f.txHash
}

// maxTryAgain bounds TRY_AGAIN_LATER resubmissions.
const maxTryAgain = 3

// NewSubmitter creates a new Submitter.
func NewSubmitter(opts Options) *Submitter {
	codec := opts.Codec
	if codec == nil {
		codec = soroban.JSONCodec{}
	}
	baseFee := opts.BaseFee
	if baseFee <= 0 {
		baseFee = 100
	}
	txTimeout := opts.TxTimeout
	if txTimeout <= 0 {
		txTimeout = 5 * time.Minute
	}
	confirmTimeout := opts.ConfirmTimeout
	if confirmTimeout <= 0 {
		confirmTimeout = 30 * time.Second
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Submitter{
		rpc:            opts.RPC,
		codec:          codec,
		signer:         opts.Signer,
		journal:        opts.Journal,
		passphrase:     opts.NetworkPassphrase,
		baseFee:        baseFee,
		txTimeout:      txTimeout,
		confirmTimeout: confirmTimeout,
		pollInterval:   pollInterval,
		now:            now,
		logger:         logger,
		errorName:      opts.ErrorName,
		flights:        make(map[string]*flight),
	}
}

// Codec returns the codec used for envelopes and values.
func (s *Submitter) Codec() soroban.Codec {
	return s.codec
}

// Source returns the account operations are submitted from.
func (s *Submitter) Source() (string, bool) {
	return s.signer.Address()
}

// Submit runs op to a final state. Fails with NOT_CONNECTED in state
// UNSIGNED when no account is connected.
//
// A second Submit of the same operation while the first is in flight joins
// it and receives the same outcome. The run continues while any caller is
// still waiting; a caller whose own ctx ends gets CANCELED with the run's
// current state.
func (s *Submitter) Submit(ctx context.Context, op Operation) (*Receipt, error) {
	method := op.Invocation.Method

	source, ok := s.signer.Address()
	if !ok {
		return nil, NewOpError(domain.KindNotConnected, domain.StateUnsigned, method, errors.New("no wallet connected"))
	}
	if op.Invocation.ContractID == "" || method == "" {
		return nil, NewOpError(domain.KindInvalidInput, domain.StateUnsigned, method, errors.New("contract id and method are required"))
	}

	key := idhash.OperationKey(source, op.Invocation)

	s.mu.Lock()
	f, joined := s.flights[key]
	if joined {
		f.mu.Lock()
		f.joiners++
		f.mu.Unlock()
	} else {
		f = &flight{state: domain.StateUnsigned}
		s.flights[key] = f
	}
	s.mu.Unlock()

	if joined {
		observability.RecordOperationJoined()
		s.logger.Printf("Joined in-flight %s (%s)", method, key)
	}

	v, err, _ := s.group.Do(ctx, key, func(runCtx context.Context) (interface{}, error) {
		s.mu.Lock()
		s.flights[key] = f
		s.mu.Unlock()
		f.reset()
		defer func() {
			s.mu.Lock()
			if s.flights[key] == f {
				delete(s.flights, key)
			}
			s.mu.Unlock()
		}()
		return s.run(runCtx, key, source, op, f)
	})
	if err != nil {
		var opErr *OpError
		if errors.As(err, &opErr) {
			return nil, err
		}
		state, hash := f.snapshot()
		return nil, &OpError{Kind: domain.KindCanceled, State: state, Op: method, TxHash: hash, Err: err}
	}
	receipt := *v.(*Receipt)
	return &receipt, nil
}

func (s *Submitter) run(ctx context.Context, key, source string, op Operation, f *flight) (*Receipt, error) {
	start := s.now()
	method := op.Invocation.Method
	label := op.Label
	if label == "" {
		label = method
	}

	s.journalInsert(ctx, key, source, op, f)

	receipt, err := s.execute(ctx, source, op, f)

	state := domain.StateConfirmed
	var kind domain.ErrorKind
	upd := domain.OperationUpdate{State: domain.StateConfirmed}
	if err != nil {
		var opErr *OpError
		errors.As(err, &opErr)
		state, kind = opErr.State, opErr.Kind
		upd = domain.OperationUpdate{
			State:        opErr.State,
			TxHash:       opErr.TxHash,
			ErrorKind:    opErr.Kind,
			ErrorMessage: opErr.Error(),
		}
		s.logger.Printf("%s failed: %v", label, err)
	} else {
		upd.TxHash = receipt.TxHash
		upd.Ledger = receipt.Ledger
		f.mu.Lock()
		receipt.OperationID = f.recordID
		f.mu.Unlock()
		s.logger.Printf("%s confirmed in ledger %d (tx %s)", label, receipt.Ledger, receipt.TxHash)
	}
	s.journalUpdate(ctx, f, upd)

	observability.RecordOperation(method, string(state), string(kind), s.now().Sub(start).Seconds())
	return receipt, err
}

// execute performs the lifecycle steps. Every error is an *OpError.
func (s *Submitter) execute(ctx context.Context, source string, op Operation, f *flight) (*Receipt, error) {
	inv := op.Invocation
	method := inv.Method
	fail := func(kind domain.ErrorKind, state domain.OperationState, hash string, err error) (*Receipt, error) {
		if c := Classify(err); c == domain.KindCanceled || (c != "" && kind == "") {
			kind = c
		}
		if kind == "" {
			kind = domain.KindNetworkUnreachable
		}
		return nil, &OpError{Kind: kind, State: state, Op: method, TxHash: hash, Err: err}
	}

	// Build.
	account, err := s.rpc.GetAccount(ctx, source)
	if err != nil {
		return fail(domain.KindNetworkUnreachable, domain.StateUnsigned, "", fmt.Errorf("get account: %w", err))
	}
	if account == nil {
		return fail(domain.KindNotFound, domain.StateUnsigned, "", fmt.Errorf("source account %s not found", source))
	}
	env := &soroban.Envelope{
		Source:     source,
		Sequence:   account.Sequence + 1,
		Fee:        s.baseFee,
		MaxTime:    s.now().Add(s.txTimeout).Unix(),
		Invocation: inv,
	}

	// Simulate.
	encoded, err := s.codec.EncodeEnvelope(env)
	if err != nil {
		return fail(domain.KindInvalidInput, domain.StateUnsigned, "", err)
	}
	sim, err := s.rpc.SimulateTransaction(ctx, encoded)
	if err != nil {
		return fail(domain.KindNetworkUnreachable, domain.StateUnsigned, "", fmt.Errorf("simulate: %w", err))
	}
	if sim.Failed() {
		return fail(domain.KindSimulationRejected, domain.StateUnsigned, "", s.contractError(inv.ContractID, sim.Error))
	}
	env, err = soroban.Assemble(env, sim)
	if err != nil {
		return fail(domain.KindSimulationRejected, domain.StateUnsigned, "", err)
	}

	// Sign.
	signed, err := s.signer.Sign(ctx, env)
	if err != nil {
		var opErr *OpError
		if errors.As(err, &opErr) {
			return fail(opErr.Kind, domain.StateUnsigned, "", opErr.Err)
		}
		return fail(Classify(err), domain.StateUnsigned, "", err)
	}
	hash, err := soroban.TransactionHashHex(s.passphrase, signed)
	if err != nil {
		return fail(domain.KindInvalidInput, domain.StateUnsigned, "", err)
	}
	s.advance(ctx, f, domain.StateSigned, hash)

	// Submit. From here on the transaction may land.
	encoded, err = s.codec.EncodeEnvelope(signed)
	if err != nil {
		return fail(domain.KindInvalidInput, domain.StateSigned, hash, err)
	}
	if err := s.send(ctx, encoded, hash); err != nil {
		if errors.Is(err, ErrSubmissionRejected) {
			return fail(domain.KindSubmissionRejected, domain.StateSigned, hash, err)
		}
		return fail(domain.KindNetworkUnreachable, domain.StateSigned, hash, err)
	}
	s.advance(ctx, f, domain.StateSubmitted, hash)

	// Confirm.
	return s.confirm(ctx, inv.ContractID, method, hash)
}

// send submits the envelope, retrying TRY_AGAIN_LATER a bounded number of times.
func (s *Submitter) send(ctx context.Context, encoded, hash string) error {
	for attempt := 0; ; attempt++ {
		res, err := s.rpc.SendTransaction(ctx, encoded)
		if err != nil {
			return fmt.Errorf("send: %w", err)
		}
		if res.Hash != "" && res.Hash != hash {
			s.logger.Printf("RPC reported hash %s, expected %s", res.Hash, hash)
		}

		switch res.Status {
		case soroban.SendPending, soroban.SendDuplicate:
			return nil
		case soroban.SendTryAgainLater:
			if attempt+1 >= maxTryAgain {
				return fmt.Errorf("%w: network busy after %d attempts", ErrSubmissionRejected, maxTryAgain)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.pollInterval):
			}
		default:
			return fmt.Errorf("%w: status %s: %s", ErrSubmissionRejected, res.Status, res.ErrorResultXDR)
		}
	}
}

// confirm polls getTransaction until the transaction resolves or the
// confirmation timeout elapses. Transport errors while polling are retried.
func (s *Submitter) confirm(ctx context.Context, contractID, method, hash string) (*Receipt, error) {
	pollCtx, cancel := context.WithTimeout(ctx, s.confirmTimeout)
	defer cancel()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		res, err := s.rpc.GetTransaction(pollCtx, hash)
		switch {
		case err != nil:
			if pollCtx.Err() == nil {
				s.logger.Printf("Poll %s: %v", hash, err)
			}
		case res.Status == soroban.TxSuccess:
			return &Receipt{
				State:  domain.StateConfirmed,
				TxHash: hash,
				Ledger: res.Ledger,
				Return: res.ReturnValue,
			}, nil
		case res.Status == soroban.TxFailed:
			return nil, &OpError{
				Kind:   domain.KindSubmissionRejected,
				State:  domain.StateRejected,
				Op:     method,
				TxHash: hash,
				Err:    s.contractError(contractID, res.ResultXDR),
			}
		}

		select {
		case <-pollCtx.Done():
			if ctx.Err() != nil {
				return nil, &OpError{Kind: domain.KindCanceled, State: domain.StateSubmitted, Op: method, TxHash: hash, Err: ctx.Err()}
			}
			return nil, &OpError{
				Kind:   domain.KindConfirmationTimeout,
				State:  domain.StateTimedOut,
				Op:     method,
				TxHash: hash,
				Err:    fmt.Errorf("not confirmed within %s", s.confirmTimeout),
			}
		case <-ticker.C:
		}
	}
}

// contractError wraps a host error message, naming the contract error code
// when one is present.
func (s *Submitter) contractError(contractID, msg string) error {
	ce := ParseContractError(contractID, msg)
	if ce == nil {
		return errors.New(msg)
	}
	if s.errorName != nil {
		ce.Name = s.errorName(contractID, ce.Code)
	}
	return ce
}

func (s *Submitter) journalInsert(ctx context.Context, key, source string, op Operation, f *flight) {
	if s.journal == nil {
		return
	}
	now := s.now().UnixMilli()
	rec := &domain.OperationRecord{
		ID:         uuid.NewString(),
		Key:        key,
		ContractID: op.Invocation.ContractID,
		Method:     op.Invocation.Method,
		Source:     source,
		State:      domain.StateUnsigned,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.journal.Insert(context.WithoutCancel(ctx), rec); err != nil {
		s.logger.Printf("Journal insert for %s: %v", op.Invocation.Method, err)
		return
	}
	f.mu.Lock()
	f.recordID = rec.ID
	f.mu.Unlock()
}

// advance moves the in-flight state forward and journals the transition.
func (s *Submitter) advance(ctx context.Context, f *flight, state domain.OperationState, hash string) {
	f.mu.Lock()
	f.state = state
	f.txHash = hash
	f.mu.Unlock()
	s.journalUpdate(ctx, f, domain.OperationUpdate{State: state, TxHash: hash})
}

// journalUpdate writes even after ctx is cancelled so the record reflects
// the final state.
func (s *Submitter) journalUpdate(ctx context.Context, f *flight, upd domain.OperationUpdate) {
	if s.journal == nil {
		return
	}
	f.mu.Lock()
	id := f.recordID
	f.mu.Unlock()
	if id == "" {
		return
	}
	upd.UpdatedAt = s.now().UnixMilli()
	if err := s.journal.Update(context.WithoutCancel(ctx), id, upd); err != nil {
		s.logger.Printf("Journal update %s -> %s: %v", id, upd.State, err)
	}
}
