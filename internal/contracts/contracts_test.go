package contracts

import (
	"context"
	"errors"
	"io"
	"log"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soroban-dao/internal/contracts/local"
	"soroban-dao/internal/domain"
	"soroban-dao/internal/idhash"
	"soroban-dao/internal/session"
	"soroban-dao/internal/soroban"
	sorobanstub "soroban-dao/internal/soroban/stub"
	"soroban-dao/internal/strkey"
	"soroban-dao/internal/txn"
	"soroban-dao/internal/wallet"
	walletstub "soroban-dao/internal/wallet/stub"
)

const network = wallet.StandalonePassphrase

func contractID(b byte) string {
	payload := make([]byte, 32)
	payload[0] = b
	return strkey.MustEncode(strkey.VersionByteContract, payload)
}

var testAddrs = Addresses{
	Treasury:   contractID(1),
	Governance: contractID(2),
	TokenVault: contractID(3),
}

type chain struct {
	rpc *sorobanstub.RPCClient
	dep *local.Deployment
	now time.Time
	mu  sync.Mutex
}

func (c *chain) clock() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *chain) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// newChain deploys the three contracts with the given wallets as signers,
// members and emergency signers.
func newChain(t *testing.T, wallets ...*walletstub.Wallet) *chain {
	t.Helper()

	var addrs []string
	for _, w := range wallets {
		addrs = append(addrs, w.Addr())
	}

	c := &chain{rpc: sorobanstub.NewRPCClient(network), now: time.Unix(1_700_000_000, 0)}
	c.rpc.Now = c.clock
	c.dep = local.Deploy(c.rpc, testAddrs.Treasury, testAddrs.Governance, testAddrs.TokenVault, local.Genesis{
		Admin:              addrs[0],
		Signers:            addrs,
		Threshold:          2,
		Members:            addrs,
		QuorumPercent:      50,
		VotingPeriod:       100,
		EmergencySigners:   addrs,
		EmergencyThreshold: 2,
	})
	for _, a := range addrs {
		c.rpc.AddAccount(a, 100)
	}
	return c
}

// connect returns clients acting as w. w is left disconnected when connect is false.
func (c *chain) clients(t *testing.T, w *walletstub.Wallet, connect bool) *Clients {
	t.Helper()

	logger := log.New(io.Discard, "", 0)
	m := session.NewManager(session.Options{Wallet: w, NetworkPassphrase: network, Logger: logger})
	if connect {
		require.NoError(t, m.Connect(context.Background()))
	}
	sub := txn.NewSubmitter(txn.Options{
		RPC:               c.rpc,
		Signer:            m,
		NetworkPassphrase: network,
		ConfirmTimeout:    time.Second,
		PollInterval:      5 * time.Millisecond,
		Logger:            logger,
		ErrorName:         testAddrs.ErrorName,
	})
	return New(c.rpc, sub, testAddrs)
}

func requireKind(t *testing.T, err error, kind domain.ErrorKind, state domain.OperationState) *txn.OpError {
	t.Helper()
	var opErr *txn.OpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, kind, opErr.Kind, opErr.Error())
	assert.Equal(t, state, opErr.State, opErr.Error())
	return opErr
}

func requireContractError(t *testing.T, err error, name string) {
	t.Helper()
	var ce *txn.ContractError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, name, ce.Name)
}

func TestTreasury_WithdrawalLifecycle(t *testing.T) {
	alice, bob := walletstub.NewWallet(1, network), walletstub.NewWallet(2, network)
	c := newChain(t, alice, bob)
	a, b := c.clients(t, alice, true), c.clients(t, bob, true)
	ctx := context.Background()

	receipt, err := a.Treasury.Deposit(ctx, 50_000_000)
	require.NoError(t, err)
	assert.Equal(t, domain.StateConfirmed, receipt.State)

	balance, err := b.Treasury.GetBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(50_000_000), balance)

	id, _, err := a.Treasury.ProposeWithdrawal(ctx, bob.Addr(), 20_000_000, "grant")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)

	// One approval is below the threshold.
	_, err = a.Treasury.Approve(ctx, id)
	require.NoError(t, err)
	_, err = a.Treasury.Execute(ctx, id)
	requireKind(t, err, domain.KindSimulationRejected, domain.StateUnsigned)
	requireContractError(t, err, "ThresholdNotMet")

	_, err = a.Treasury.Approve(ctx, id)
	requireContractError(t, err, "AlreadyApproved")

	_, err = b.Treasury.Approve(ctx, id)
	require.NoError(t, err)
	_, err = b.Treasury.Execute(ctx, id)
	require.NoError(t, err)

	txs, err := a.Treasury.ListTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.True(t, txs[0].Executed)
	assert.Equal(t, uint32(2), txs[0].Approvals)
	assert.Equal(t, "grant", txs[0].Memo)

	cfg, err := a.Treasury.GetConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(30_000_000), cfg.Balance)
	assert.Equal(t, uint32(2), cfg.SignerCount)
	assert.Equal(t, uint64(1), cfg.TxCount)

	signers, err := a.Treasury.GetSigners(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{alice.Addr(), bob.Addr()}, signers)
}

func TestReads_WorkWithoutWallet(t *testing.T) {
	alice := walletstub.NewWallet(1, network)
	c := newChain(t, alice)
	cl := c.clients(t, alice, false)
	ctx := context.Background()

	balance, err := cl.Treasury.GetBalance(ctx)
	require.NoError(t, err)
	assert.Zero(t, balance)

	members, err := cl.Governance.GetMembers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{alice.Addr()}, members)

	txs, err := cl.Treasury.ListTransactions(ctx)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestReads_NotFound(t *testing.T) {
	alice := walletstub.NewWallet(1, network)
	c := newChain(t, alice)
	cl := c.clients(t, alice, true)
	ctx := context.Background()

	_, err := cl.Treasury.GetTransaction(ctx, 99)
	requireKind(t, err, domain.KindNotFound, domain.StateUnsigned)
	assert.ErrorIs(t, err, txn.ErrNotFound)
	requireContractError(t, err, "TransactionNotFound")

	_, err = cl.Governance.GetProposal(ctx, 99)
	assert.ErrorIs(t, err, txn.ErrNotFound)

	_, err = cl.Vault.GetLock(ctx, 99)
	assert.ErrorIs(t, err, txn.ErrNotFound)
}

func TestMutations_RequireConnection(t *testing.T) {
	alice, bob := walletstub.NewWallet(1, network), walletstub.NewWallet(2, network)
	c := newChain(t, alice)
	cl := c.clients(t, alice, false)
	ctx := context.Background()

	ops := map[string]func() error{
		"deposit": func() error { _, err := cl.Treasury.Deposit(ctx, 10); return err },
		"propose_withdrawal": func() error {
			_, _, err := cl.Treasury.ProposeWithdrawal(ctx, bob.Addr(), 10, "")
			return err
		},
		"approve": func() error { _, err := cl.Treasury.Approve(ctx, 1); return err },
		"execute": func() error { _, err := cl.Treasury.Execute(ctx, 1); return err },
		"create_proposal": func() error {
			_, _, err := cl.Governance.CreateProposal(ctx, ProposalInput{Title: "t", Action: "noop"})
			return err
		},
		"vote":              func() error { _, err := cl.Governance.Vote(ctx, 1, true); return err },
		"finalize":          func() error { _, _, err := cl.Governance.Finalize(ctx, 1); return err },
		"execute_proposal":  func() error { _, err := cl.Governance.ExecuteProposal(ctx, 1); return err },
		"lock_tokens":       func() error { _, _, err := cl.Vault.LockTokens(ctx, 10, time.Hour, "m"); return err },
		"claim":             func() error { _, _, err := cl.Vault.Claim(ctx, 1); return err },
		"approve_emergency": func() error { _, _, err := cl.Vault.ApproveEmergency(ctx, 1); return err },
		"emergency_unlock":  func() error { _, _, err := cl.Vault.EmergencyUnlock(ctx, 1); return err },
		"claim_vested":      func() error { _, _, err := cl.Vault.ClaimVested(ctx, 1); return err },
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			err := op()
			requireKind(t, err, domain.KindNotConnected, domain.StateUnsigned)
			assert.ErrorIs(t, err, txn.ErrNotConnected)
		})
	}
	assert.Zero(t, c.rpc.SimulateCount())
	assert.Zero(t, alice.SignCalls())
}

func TestMutations_InvalidInput(t *testing.T) {
	alice := walletstub.NewWallet(1, network)
	c := newChain(t, alice)
	cl := c.clients(t, alice, true)
	ctx := context.Background()

	_, err := cl.Treasury.Deposit(ctx, 0)
	requireKind(t, err, domain.KindInvalidInput, domain.StateUnsigned)

	_, _, err = cl.Treasury.ProposeWithdrawal(ctx, "not-an-address", 10, "")
	requireKind(t, err, domain.KindInvalidInput, domain.StateUnsigned)

	_, _, err = cl.Governance.CreateProposal(ctx, ProposalInput{Action: "noop"})
	requireKind(t, err, domain.KindInvalidInput, domain.StateUnsigned)

	_, _, err = cl.Vault.LockTokens(ctx, 10, 500*time.Millisecond, "m")
	requireKind(t, err, domain.KindInvalidInput, domain.StateUnsigned)

	_, err = cl.Governance.HasVoted(ctx, 1, "bogus")
	requireKind(t, err, domain.KindInvalidInput, domain.StateUnsigned)

	assert.Zero(t, c.rpc.SimulateCount())
}

func TestGovernance_ProposalLifecycle(t *testing.T) {
	alice, bob := walletstub.NewWallet(1, network), walletstub.NewWallet(2, network)
	c := newChain(t, alice, bob)
	a, b := c.clients(t, alice, true), c.clients(t, bob, true)
	ctx := context.Background()

	id, _, err := a.Governance.CreateProposal(ctx, ProposalInput{
		Title:       "Fund audit",
		Description: "Pay for the contract audit",
		Action:      "transfer",
		Amount:      10_000_000,
		Target:      bob.Addr(),
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)

	_, err = a.Governance.Vote(ctx, id, true)
	require.NoError(t, err)
	_, err = a.Governance.Vote(ctx, id, false)
	requireContractError(t, err, "AlreadyVoted")

	voted, err := b.Governance.HasVoted(ctx, id, alice.Addr())
	require.NoError(t, err)
	assert.True(t, voted)
	voted, err = b.Governance.HasVoted(ctx, id, bob.Addr())
	require.NoError(t, err)
	assert.False(t, voted)

	_, err = b.Governance.Vote(ctx, id, true)
	require.NoError(t, err)

	status, _, err := b.Governance.Finalize(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.ProposalPassed, status)

	_, err = a.Governance.ExecuteProposal(ctx, id)
	require.NoError(t, err)

	proposals, err := a.Governance.ListProposals(ctx)
	require.NoError(t, err)
	require.Len(t, proposals, 1)
	p := proposals[0]
	assert.Equal(t, domain.ProposalExecuted, p.Status)
	assert.Equal(t, uint32(2), p.VotesFor)
	assert.Equal(t, int64(10_000_000), p.Amount)
	assert.Equal(t, alice.Addr(), p.Proposer)

	cfg, err := a.Governance.GetConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), cfg.MemberCount)
	assert.Equal(t, uint64(1), cfg.ProposalCount)
}

func TestVault_LockClaimAndEmergency(t *testing.T) {
	alice, bob := walletstub.NewWallet(1, network), walletstub.NewWallet(2, network)
	c := newChain(t, alice, bob)
	a, b := c.clients(t, alice, true), c.clients(t, bob, true)
	ctx := context.Background()

	first, _, err := a.Vault.LockTokens(ctx, 300, time.Hour, "payroll")
	require.NoError(t, err)
	second, _, err := a.Vault.LockTokens(ctx, 200, 24*time.Hour, "reserve")
	require.NoError(t, err)

	_, _, err = a.Vault.Claim(ctx, first)
	requireKind(t, err, domain.KindSimulationRejected, domain.StateUnsigned)
	requireContractError(t, err, "LockStillActive")

	c.advance(time.Hour)
	released, _, err := a.Vault.Claim(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, int64(300), released)

	count, _, err := a.Vault.ApproveEmergency(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), count)
	_, _, err = a.Vault.EmergencyUnlock(ctx, second)
	requireContractError(t, err, "EmergencyNotApproved")

	count, _, err = b.Vault.ApproveEmergency(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), count)
	released, _, err = a.Vault.EmergencyUnlock(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, int64(200), released)

	stats, err := a.Vault.GetStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalLocked)
	assert.Equal(t, uint64(2), stats.LockCount)

	lock, err := a.Vault.GetLock(ctx, second)
	require.NoError(t, err)
	assert.True(t, lock.Claimed)
	assert.Equal(t, "reserve", lock.Memo)
}

func TestVault_Vesting(t *testing.T) {
	alice := walletstub.NewWallet(1, network)
	c := newChain(t, alice)
	cl := c.clients(t, alice, true)
	ctx := context.Background()

	start := c.clock()
	id := c.dep.Vault.AddVesting(domain.VestingSchedule{
		Beneficiary: alice.Addr(),
		TotalAmount: 1000,
		StartTime:   uint64(start.Unix()),
		Duration:    1000,
		Cliff:       100,
	})

	proj, err := cl.Vault.ProjectVesting(ctx, id, start.Add(400*time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(400), proj.Vested)
	assert.Equal(t, int64(400), proj.Claimable)

	_, _, err = cl.Vault.ClaimVested(ctx, id)
	requireContractError(t, err, "NothingToClaim")

	c.advance(400 * time.Second)
	claimed, _, err := cl.Vault.ClaimVested(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(400), claimed)

	proj, err = cl.Vault.ProjectVesting(ctx, id, start.Add(2000*time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(1000), proj.Vested)
	assert.Equal(t, int64(600), proj.Claimable)
}

func TestList_RejectsOversizedCounts(t *testing.T) {
	rpc := sorobanstub.NewRPCClient(network)
	rpc.Register(testAddrs.Treasury, func(call sorobanstub.Call) (interface{}, error) {
		return domain.TreasuryConfig{Threshold: 1, TxCount: 1 << 62}, nil
	})
	rpc.Register(testAddrs.Governance, func(call sorobanstub.Call) (interface{}, error) {
		return domain.GovernanceConfig{ProposalCount: math.MaxUint64}, nil
	})

	sub := txn.NewSubmitter(txn.Options{RPC: rpc, NetworkPassphrase: network, Logger: log.New(io.Discard, "", 0),
		Signer: session.NewManager(session.Options{Wallet: walletstub.NewWallet(1, network), NetworkPassphrase: network})})
	cl := New(rpc, sub, testAddrs)
	ctx := context.Background()

	txs, err := cl.Treasury.ListTransactions(ctx)
	requireKind(t, err, domain.KindInvalidInput, domain.StateUnsigned)
	assert.Nil(t, txs)

	proposals, err := cl.Governance.ListProposals(ctx)
	requireKind(t, err, domain.KindInvalidInput, domain.StateUnsigned)
	assert.Nil(t, proposals)
	assert.Equal(t, 2, rpc.SimulateCount())
}

// gatedRPC blocks simulations until release is closed.
type gatedRPC struct {
	soroban.RPCClient
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedRPC) SimulateTransaction(ctx context.Context, envelope string) (*soroban.SimulateResult, error) {
	g.once.Do(func() { close(g.entered) })
	<-g.release
	return g.RPCClient.SimulateTransaction(ctx, envelope)
}

func TestRead_CollapsesConcurrentCalls(t *testing.T) {
	alice := walletstub.NewWallet(1, network)
	c := newChain(t, alice)
	gated := &gatedRPC{RPCClient: c.rpc, entered: make(chan struct{}), release: make(chan struct{})}

	sub := txn.NewSubmitter(txn.Options{RPC: gated, NetworkPassphrase: network, Logger: log.New(io.Discard, "", 0),
		Signer: session.NewManager(session.Options{Wallet: alice, NetworkPassphrase: network})})
	cl := New(gated, sub, testAddrs)
	ctx := context.Background()

	const readers = 5
	var wg sync.WaitGroup
	errs := make(chan error, readers)
	read := func() {
		defer wg.Done()
		_, err := cl.Treasury.GetBalance(ctx)
		errs <- err
	}

	wg.Add(1)
	go read()
	<-gated.entered
	for i := 1; i < readers; i++ {
		wg.Add(1)
		go read()
	}
	time.Sleep(50 * time.Millisecond)
	close(gated.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, 1, c.rpc.SimulateCount())
}

func TestRead_CallerCancelDoesNotFailOthers(t *testing.T) {
	alice := walletstub.NewWallet(1, network)
	c := newChain(t, alice)
	gated := &gatedRPC{RPCClient: c.rpc, entered: make(chan struct{}), release: make(chan struct{})}

	sub := txn.NewSubmitter(txn.Options{RPC: gated, NetworkPassphrase: network, Logger: log.New(io.Discard, "", 0),
		Signer: session.NewManager(session.Options{Wallet: alice, NetworkPassphrase: network})})
	cl := New(gated, sub, testAddrs)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := cl.Treasury.GetBalance(ctx)
		first <- err
	}()
	<-gated.entered

	second := make(chan error, 1)
	go func() {
		_, err := cl.Treasury.GetBalance(context.Background())
		second <- err
	}()
	require.Eventually(t, func() bool { return balanceReaders(cl) == 2 }, time.Second, time.Millisecond)

	cancel()
	requireKind(t, <-first, domain.KindCanceled, domain.StateUnsigned)

	close(gated.release)
	require.NoError(t, <-second)
}

// balanceReaders counts callers waiting on the shared get_balance read.
func balanceReaders(cl *Clients) int {
	key := idhash.ReadKey(soroban.Invocation{ContractID: cl.Treasury.ContractID(), Method: "get_balance"})
	return cl.Invoker.reads.Waiters(key)
}

// stallingRPC holds simulations until their context ends and reports why.
type stallingRPC struct {
	soroban.RPCClient
	entered chan struct{}
	stopped chan error
	once    sync.Once
}

func (s *stallingRPC) SimulateTransaction(ctx context.Context, envelope string) (*soroban.SimulateResult, error) {
	s.once.Do(func() { close(s.entered) })
	select {
	case <-ctx.Done():
		s.stopped <- ctx.Err()
		return nil, ctx.Err()
	case <-time.After(2 * time.Second):
		s.stopped <- nil
		return s.RPCClient.SimulateTransaction(ctx, envelope)
	}
}

func TestRead_LastCallerCancelStopsSimulation(t *testing.T) {
	alice := walletstub.NewWallet(1, network)
	c := newChain(t, alice)
	stalling := &stallingRPC{RPCClient: c.rpc, entered: make(chan struct{}), stopped: make(chan error, 1)}

	sub := txn.NewSubmitter(txn.Options{RPC: stalling, NetworkPassphrase: network, Logger: log.New(io.Discard, "", 0),
		Signer: session.NewManager(session.Options{Wallet: alice, NetworkPassphrase: network})})
	cl := New(stalling, sub, testAddrs)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := cl.Treasury.GetBalance(ctx)
		done <- err
	}()
	<-stalling.entered

	cancel()
	requireKind(t, <-done, domain.KindCanceled, domain.StateUnsigned)

	select {
	case err := <-stalling.stopped:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("simulation still running after its only caller left")
	}
	assert.Zero(t, balanceReaders(cl))
}

func TestInvoke_DecodeErrorKeepsReceipt(t *testing.T) {
	alice := walletstub.NewWallet(1, network)
	c := newChain(t, alice)
	cl := c.clients(t, alice, true)
	ctx := context.Background()

	_, err := cl.Treasury.Deposit(ctx, 100)
	require.NoError(t, err)

	// propose_withdrawal returns a number, which does not fit a struct.
	var out struct{ ID uint64 }
	receipt, err := cl.Invoker.Invoke(ctx, testAddrs.Treasury, "propose_withdrawal", &out, func(source string) []soroban.Arg {
		return []soroban.Arg{soroban.Address(source), soroban.Address(source), soroban.I128(5), soroban.String("")}
	})
	require.Error(t, err)
	require.NotNil(t, receipt)
	assert.Equal(t, domain.StateConfirmed, receipt.State)
	assert.False(t, errors.As(err, new(*txn.OpError)))

	cfg, err := cl.Treasury.GetConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), cfg.TxCount)
}

func TestAddresses(t *testing.T) {
	assert.Equal(t, NameTreasury, testAddrs.Name(testAddrs.Treasury))
	assert.Equal(t, NameTokenVault, testAddrs.Name(testAddrs.TokenVault))
	assert.Equal(t, "CUNKNOWN", testAddrs.Name("CUNKNOWN"))
	assert.Equal(t, "", testAddrs.Name(""))

	assert.Equal(t, []string{testAddrs.Treasury, testAddrs.Governance, testAddrs.TokenVault}, testAddrs.IDs())

	assert.Equal(t, "ThresholdNotMet", testAddrs.ErrorName(testAddrs.Treasury, 9))
	assert.Equal(t, "ProposalNotFound", testAddrs.ErrorName(testAddrs.Governance, 5))
	assert.Equal(t, "LockStillActive", testAddrs.ErrorName(testAddrs.TokenVault, 7))
	assert.Equal(t, "", testAddrs.ErrorName(testAddrs.TokenVault, 99))
	assert.Equal(t, "", testAddrs.ErrorName("CUNKNOWN", 1))
}
