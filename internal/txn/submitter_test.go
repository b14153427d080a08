package txn

import (
	"context"
	"crypto/ed25519"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soroban-dao/internal/domain"
	"soroban-dao/internal/soroban"
	sorobanstub "soroban-dao/internal/soroban/stub"
	"soroban-dao/internal/storage/memory"
	"soroban-dao/internal/wallet"
)

const testPassphrase = wallet.StandalonePassphrase

// keySigner signs with a fixed key. gate, when set, blocks Sign until closed.
type keySigner struct {
	key       ed25519.PrivateKey
	connected bool
	err       error
	gate      chan struct{}
	entered   chan struct{}

	mu    sync.Mutex
	calls int
}

func newKeySigner(seed byte) *keySigner {
	s := make([]byte, ed25519.SeedSize)
	for i := range s {
		s[i] = seed
	}
	return &keySigner{key: ed25519.NewKeyFromSeed(s), connected: true}
}

func (k *keySigner) Address() (string, bool) {
	if !k.connected {
		return "", false
	}
	return wallet.AddressFromKey(k.key), true
}

func (k *keySigner) Sign(ctx context.Context, env *soroban.Envelope) (*soroban.Envelope, error) {
	k.mu.Lock()
	k.calls++
	k.mu.Unlock()

	if k.entered != nil {
		k.entered <- struct{}{}
	}
	if k.gate != nil {
		select {
		case <-k.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if k.err != nil {
		return nil, k.err
	}
	out := *env
	out.Signatures = nil
	if err := wallet.SignEnvelope(&out, testPassphrase, k.key); err != nil {
		return nil, err
	}
	return &out, nil
}

func (k *keySigner) signCalls() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.calls
}

// counter is a contract whose "inc" commits and "fail" raises contract error #3.
func counter() sorobanstub.Handler {
	var mu sync.Mutex
	value := 0
	return func(call sorobanstub.Call) (interface{}, error) {
		mu.Lock()
		defer mu.Unlock()
		switch call.Method {
		case "inc":
			if call.Commit {
				value++
				return value, nil
			}
			return value + 1, nil
		case "fail":
			return nil, errors.New("HostError: Error(Contract, #3)")
		case "fail_on_commit":
			if call.Commit {
				return nil, errors.New("HostError: Error(Contract, #7)")
			}
			return nil, nil
		}
		return nil, errors.New("unknown method")
	}
}

type harness struct {
	rpc       *sorobanstub.RPCClient
	signer    *keySigner
	journal   *memory.OperationJournal
	submitter *Submitter
}

func newHarness(t *testing.T, configure func(*Options)) *harness {
	t.Helper()

	rpc := sorobanstub.NewRPCClient(testPassphrase)
	rpc.Register("CCOUNTER", counter())
	signer := newKeySigner(7)
	addr, _ := signer.Address()
	rpc.AddAccount(addr, 100)

	journal := memory.NewOperationJournal()
	opts := Options{
		RPC:               rpc,
		Signer:            signer,
		Journal:           journal,
		NetworkPassphrase: testPassphrase,
		ConfirmTimeout:    time.Second,
		PollInterval:      5 * time.Millisecond,
		Logger:            log.New(io.Discard, "", 0),
		ErrorName: func(_ string, code uint32) string {
			if code == 3 {
				return "Unauthorized"
			}
			return ""
		},
	}
	if configure != nil {
		configure(&opts)
	}

	return &harness{rpc: rpc, signer: signer, journal: journal, submitter: NewSubmitter(opts)}
}

func incOp() Operation {
	return Operation{Label: "increment", Invocation: soroban.Invocation{ContractID: "CCOUNTER", Method: "inc"}}
}

func requireOpError(t *testing.T, err error, kind domain.ErrorKind, state domain.OperationState) *OpError {
	t.Helper()
	var opErr *OpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, kind, opErr.Kind, opErr.Error())
	assert.Equal(t, state, opErr.State, opErr.Error())
	return opErr
}

func TestSubmit_Confirmed(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	receipt, err := h.submitter.Submit(ctx, incOp())
	require.NoError(t, err)
	assert.Equal(t, domain.StateConfirmed, receipt.State)
	assert.NotEmpty(t, receipt.TxHash)
	assert.Equal(t, uint32(1001), receipt.Ledger)

	var ret int
	require.NoError(t, receipt.Decode(h.submitter.Codec(), &ret))
	assert.Equal(t, 1, ret)

	rec, err := h.journal.GetByID(ctx, receipt.OperationID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateConfirmed, rec.State)
	assert.Equal(t, receipt.TxHash, rec.TxHash)
	assert.Equal(t, uint32(1001), rec.Ledger)
	assert.Equal(t, "inc", rec.Method)

	// Sequence advanced; a second operation lands too.
	_, err = h.submitter.Submit(ctx, incOp())
	require.NoError(t, err)
}

func TestSubmit_NotConnected(t *testing.T) {
	h := newHarness(t, nil)
	h.signer.connected = false

	_, err := h.submitter.Submit(context.Background(), incOp())
	requireOpError(t, err, domain.KindNotConnected, domain.StateUnsigned)
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Equal(t, 0, h.rpc.SimulateCount())
}

func TestSubmit_InvalidInput(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.submitter.Submit(context.Background(), Operation{Invocation: soroban.Invocation{Method: "inc"}})
	requireOpError(t, err, domain.KindInvalidInput, domain.StateUnsigned)
}

func TestSubmit_UnknownSourceAccount(t *testing.T) {
	h := newHarness(t, nil)
	h.signer = newKeySigner(9)
	h.submitter.signer = h.signer

	_, err := h.submitter.Submit(context.Background(), incOp())
	requireOpError(t, err, domain.KindNotFound, domain.StateUnsigned)
}

func TestSubmit_SimulationRejected(t *testing.T) {
	h := newHarness(t, nil)

	op := Operation{Invocation: soroban.Invocation{ContractID: "CCOUNTER", Method: "fail"}}
	_, err := h.submitter.Submit(context.Background(), op)
	requireOpError(t, err, domain.KindSimulationRejected, domain.StateUnsigned)

	var ce *ContractError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, uint32(3), ce.Code)
	assert.Equal(t, "Unauthorized", ce.Name)
	assert.Equal(t, 0, h.signer.signCalls())
}

func TestSubmit_UserRejectedSignature(t *testing.T) {
	h := newHarness(t, nil)
	h.signer.err = wallet.ErrUserRejected

	_, err := h.submitter.Submit(context.Background(), incOp())
	opErr := requireOpError(t, err, domain.KindUserRejectedSignature, domain.StateUnsigned)
	assert.False(t, opErr.Indeterminate())
	assert.Equal(t, 0, h.rpc.SendCount())

	recs, err := h.journal.ListRecent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, domain.StateUnsigned, recs[0].State)
	assert.Equal(t, domain.KindUserRejectedSignature, recs[0].ErrorKind)
}

func TestSubmit_SubmissionRejected(t *testing.T) {
	h := newHarness(t, nil)
	h.rpc.SendStatus = soroban.SendError

	_, err := h.submitter.Submit(context.Background(), incOp())
	opErr := requireOpError(t, err, domain.KindSubmissionRejected, domain.StateSigned)
	assert.NotEmpty(t, opErr.TxHash)
	assert.ErrorIs(t, err, ErrSubmissionRejected)
}

func TestSubmit_TryAgainLaterExhausted(t *testing.T) {
	h := newHarness(t, nil)
	h.rpc.SendStatus = soroban.SendTryAgainLater

	_, err := h.submitter.Submit(context.Background(), incOp())
	requireOpError(t, err, domain.KindSubmissionRejected, domain.StateSigned)
	assert.Equal(t, maxTryAgain, h.rpc.SendCount())
}

// sendUnreachable fails sendTransaction only.
type sendUnreachable struct {
	*sorobanstub.RPCClient
}

func (sendUnreachable) SendTransaction(context.Context, string) (*soroban.SendResult, error) {
	return nil, sorobanstub.ErrUnreachable
}

func TestSubmit_UnreachableAfterSigning(t *testing.T) {
	h := newHarness(t, nil)
	h.submitter.rpc = sendUnreachable{h.rpc}

	_, err := h.submitter.Submit(context.Background(), incOp())
	opErr := requireOpError(t, err, domain.KindNetworkUnreachable, domain.StateSigned)
	assert.True(t, opErr.Indeterminate())
	assert.NotEmpty(t, opErr.TxHash)
}

func TestSubmit_UnreachableBeforeSigning(t *testing.T) {
	h := newHarness(t, nil)
	h.rpc.Unreachable = true

	_, err := h.submitter.Submit(context.Background(), incOp())
	requireOpError(t, err, domain.KindNetworkUnreachable, domain.StateUnsigned)
	assert.Equal(t, 0, h.signer.signCalls())
}

func TestSubmit_TransactionFailed(t *testing.T) {
	h := newHarness(t, nil)

	op := Operation{Invocation: soroban.Invocation{ContractID: "CCOUNTER", Method: "fail_on_commit"}}
	_, err := h.submitter.Submit(context.Background(), op)
	opErr := requireOpError(t, err, domain.KindSubmissionRejected, domain.StateRejected)
	assert.False(t, opErr.Indeterminate())

	var ce *ContractError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, uint32(7), ce.Code)
}

func TestSubmit_ConfirmationTimeout(t *testing.T) {
	h := newHarness(t, func(o *Options) {
		o.ConfirmTimeout = 40 * time.Millisecond
	})
	h.rpc.NeverConfirm = true

	_, err := h.submitter.Submit(context.Background(), incOp())
	opErr := requireOpError(t, err, domain.KindConfirmationTimeout, domain.StateTimedOut)
	assert.True(t, opErr.Indeterminate())

	rec, err := h.journal.GetByTxHash(context.Background(), opErr.TxHash)
	require.NoError(t, err)
	assert.Equal(t, domain.StateTimedOut, rec.State)
}

func TestSubmit_Canceled(t *testing.T) {
	h := newHarness(t, nil)
	h.rpc.NeverConfirm = true

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()

	_, err := h.submitter.Submit(ctx, incOp())
	opErr := requireOpError(t, err, domain.KindCanceled, domain.StateSubmitted)
	assert.NotEmpty(t, opErr.TxHash)
}

func TestSubmit_DuplicateJoinsInFlight(t *testing.T) {
	h := newHarness(t, nil)
	h.signer.gate = make(chan struct{})
	h.signer.entered = make(chan struct{}, 1)

	ctx := context.Background()
	type outcome struct {
		receipt *Receipt
		err     error
	}
	results := make(chan outcome, 2)

	go func() {
		r, err := h.submitter.Submit(ctx, incOp())
		results <- outcome{r, err}
	}()
	<-h.signer.entered

	go func() {
		r, err := h.submitter.Submit(ctx, incOp())
		results <- outcome{r, err}
	}()

	// Wait for the second caller to register against the in-flight key.
	require.Eventually(t, func() bool {
		return joiners(h.submitter) == 1
	}, time.Second, time.Millisecond)
	close(h.signer.gate)

	first := <-results
	second := <-results
	require.NoError(t, first.err)
	require.NoError(t, second.err)
	assert.Equal(t, first.receipt.TxHash, second.receipt.TxHash)
	assert.Equal(t, 1, h.signer.signCalls())
	assert.Equal(t, 1, h.rpc.SendCount())
}

func TestSubmit_JoinerOutlivesFirstCaller(t *testing.T) {
	h := newHarness(t, nil)
	h.signer.gate = make(chan struct{})
	h.signer.entered = make(chan struct{}, 1)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	defer cancelFirst()

	firstErr := make(chan error, 1)
	go func() {
		_, err := h.submitter.Submit(firstCtx, incOp())
		firstErr <- err
	}()
	<-h.signer.entered

	type outcome struct {
		receipt *Receipt
		err     error
	}
	second := make(chan outcome, 1)
	go func() {
		r, err := h.submitter.Submit(context.Background(), incOp())
		second <- outcome{r, err}
	}()
	require.Eventually(t, func() bool {
		return joiners(h.submitter) == 1
	}, time.Second, time.Millisecond)

	cancelFirst()
	requireOpError(t, <-firstErr, domain.KindCanceled, domain.StateUnsigned)

	close(h.signer.gate)
	res := <-second
	require.NoError(t, res.err)
	assert.Equal(t, domain.StateConfirmed, res.receipt.State)
	assert.Equal(t, 1, h.signer.signCalls())
	assert.Equal(t, 1, h.rpc.SendCount())
}

// joiners counts callers waiting on another caller's run.
func joiners(s *Submitter) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, f := range s.flights {
		f.mu.Lock()
		n += f.joiners
		f.mu.Unlock()
	}
	return n
}

func TestSubmit_DistinctOperationsRunSeparately(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	a, err := h.submitter.Submit(ctx, incOp())
	require.NoError(t, err)
	b, err := h.submitter.Submit(ctx, incOp())
	require.NoError(t, err)

	assert.NotEqual(t, a.TxHash, b.TxHash)
	assert.Equal(t, 2, h.rpc.SendCount())
}
