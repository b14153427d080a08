// Package session owns the wallet connection: who is connected, on which
// network, and whether a connect is in progress. The Manager is the only
// writer; everything else reads snapshots.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"soroban-dao/internal/domain"
	"soroban-dao/internal/observability"
	"soroban-dao/internal/soroban"
	"soroban-dao/internal/strkey"
	"soroban-dao/internal/txn"
	"soroban-dao/internal/wallet"
)

// Snapshot is an immutable copy of the session state.
// Address is non-empty exactly when a wallet is connected.
type Snapshot struct {
	Address           string `json:"address,omitempty"`
	Network           string `json:"network,omitempty"`
	NetworkPassphrase string `json:"networkPassphrase,omitempty"`
	Connecting        bool   `json:"connecting"`
	Installed         bool   `json:"installed"`
	Error             string `json:"error,omitempty"`
}

// Connected reports whether a wallet is connected.
func (s Snapshot) Connected() bool {
	return s.Address != ""
}

// View is the read-only side of a session.
type View interface {
	Snapshot() Snapshot
	Subscribe() (<-chan Snapshot, func())
}

// Options configures a Manager.
type Options struct {
	Wallet wallet.Wallet
	// NetworkPassphrase is the network operations are built for. Signing
	// is refused while the wallet reports a different one. Empty accepts
	// whatever network the wallet is on.
	NetworkPassphrase string
	Codec             soroban.Codec
	Logger            *log.Logger
}

// Manager tracks the wallet connection and signs on its behalf.
type Manager struct {
	wallet     wallet.Wallet
	passphrase string
	codec      soroban.Codec
	logger     *log.Logger

	group txn.Group

	mu      sync.Mutex
	state   Snapshot
	epoch   uint64 // bumped by every connect attempt and Disconnect
	subs    map[int]chan Snapshot
	nextSub int
}

var (
	_ View       = (*Manager)(nil)
	_ txn.Signer = (*Manager)(nil)
)

// subscriberBuffer is how many snapshots a slow subscriber may lag behind
// before the oldest are dropped.
const subscriberBuffer = 4

// NewManager creates a disconnected session.
func NewManager(opts Options) *Manager {
	codec := opts.Codec
	if codec == nil {
		codec = soroban.JSONCodec{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Manager{
		wallet:     opts.Wallet,
		passphrase: opts.NetworkPassphrase,
		codec:      codec,
		logger:     logger,
		subs:       make(map[int]chan Snapshot),
	}
}

// Snapshot returns the current session state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Address returns the connected account.
func (m *Manager) Address() (string, bool) {
	s := m.Snapshot()
	return s.Address, s.Connected()
}

// CheckInstalled asks the wallet whether it is available and records the
// answer. A wallet that cannot be asked counts as not installed.
func (m *Manager) CheckInstalled(ctx context.Context) bool {
	installed, err := m.wallet.Installed(ctx)
	if err != nil {
		m.logger.Printf("Wallet install check: %v", err)
		installed = false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Installed != installed {
		m.state.Installed = installed
		m.publishLocked()
	}
	return installed
}

// Connect requests access from the wallet and records its address and
// network. Connecting while connected is a no-op. Concurrent calls share
// one wallet prompt.
//
// On failure the session is left disconnected with Connecting false and
// Error set, and the returned *txn.OpError carries the cause's kind.
func (m *Manager) Connect(ctx context.Context) error {
	if m.Snapshot().Connected() {
		return nil
	}

	_, err, _ := m.group.Do(ctx, "connect", func(runCtx context.Context) (interface{}, error) {
		return nil, m.connect(runCtx)
	})
	var opErr *txn.OpError
	if err != nil && !errors.As(err, &opErr) {
		return txn.NewOpError(domain.KindCanceled, domain.StateUnsigned, "connect", err)
	}
	return err
}

func (m *Manager) connect(ctx context.Context) error {
	m.mu.Lock()
	if m.state.Connected() {
		m.mu.Unlock()
		return nil
	}
	m.epoch++
	epoch := m.epoch
	m.state.Connecting = true
	m.state.Error = ""
	m.publishLocked()
	m.mu.Unlock()

	address, network, installed, err := m.handshake(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.epoch != epoch {
		observability.RecordConnect(string(domain.KindCanceled))
		return txn.NewOpError(domain.KindCanceled, domain.StateUnsigned, "connect",
			errors.New("disconnected while connecting"))
	}

	m.state.Connecting = false
	m.state.Installed = installed
	if err != nil {
		kind := txn.Classify(err)
		if kind == "" {
			kind = domain.KindNetworkUnreachable
		}
		m.state.Address = ""
		m.state.Network = ""
		m.state.NetworkPassphrase = ""
		m.state.Error = err.Error()
		m.publishLocked()

		observability.RecordConnect(string(kind))
		observability.SetConnected(false)
		m.logger.Printf("Wallet connect failed: %v", err)
		return txn.NewOpError(kind, domain.StateUnsigned, "connect", err)
	}

	m.state.Address = address
	m.state.Network = network.Network
	m.state.NetworkPassphrase = network.Passphrase
	m.state.Error = m.networkMismatchLocked()
	m.publishLocked()

	observability.RecordConnect("connected")
	observability.SetConnected(true)
	m.logger.Printf("Wallet connected: %s on %s", address, network.Network)
	return nil
}

// handshake runs installed check, access request and network read.
func (m *Manager) handshake(ctx context.Context) (string, wallet.NetworkInfo, bool, error) {
	installed, err := m.wallet.Installed(ctx)
	if err != nil {
		return "", wallet.NetworkInfo{}, false, err
	}
	if !installed {
		return "", wallet.NetworkInfo{}, false, wallet.ErrNotInstalled
	}

	address, err := m.wallet.RequestAccess(ctx)
	if err != nil {
		return "", wallet.NetworkInfo{}, true, fmt.Errorf("request access: %w", err)
	}
	if !strkey.IsValidAccount(address) {
		return "", wallet.NetworkInfo{}, true, txn.NewOpError(domain.KindInvalidInput, domain.StateUnsigned, "connect",
			fmt.Errorf("wallet returned invalid address %q", address))
	}

	network, err := m.wallet.Network(ctx)
	if err != nil {
		return "", wallet.NetworkInfo{}, true, fmt.Errorf("read network: %w", err)
	}
	return address, network, true, nil
}

// Disconnect forgets the connected account. A connect in flight is
// abandoned and will not repopulate the session.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.epoch++
	wasConnected := m.state.Connected()
	m.state = Snapshot{Installed: m.state.Installed}
	m.publishLocked()

	observability.SetConnected(false)
	if wasConnected {
		m.logger.Printf("Wallet disconnected")
	}
}

// Sign asks the wallet to sign env. It refuses when no wallet is connected,
// when the wallet is on another network, or when env's source is not the
// connected account. The returned envelope is verified to be env with a
// valid signature from the connected account.
func (m *Manager) Sign(ctx context.Context, env *soroban.Envelope) (*soroban.Envelope, error) {
	signed, err := m.sign(ctx, env)
	if err != nil {
		observability.RecordSign(string(txn.KindOf(err)))
		return nil, err
	}
	observability.RecordSign("signed")
	return signed, nil
}

func (m *Manager) sign(ctx context.Context, env *soroban.Envelope) (*soroban.Envelope, error) {
	const op = "sign"
	fail := func(kind domain.ErrorKind, err error) (*soroban.Envelope, error) {
		return nil, txn.NewOpError(kind, domain.StateUnsigned, op, err)
	}

	snap := m.Snapshot()
	if !snap.Connected() {
		return fail(domain.KindNotConnected, errors.New("no wallet connected"))
	}
	if m.passphrase != "" && snap.NetworkPassphrase != m.passphrase {
		return fail(domain.KindWrongNetwork, fmt.Errorf("wallet is on %q, expected %q",
			snap.NetworkPassphrase, m.passphrase))
	}
	if env == nil || env.Source != snap.Address {
		return fail(domain.KindInvalidInput, errors.New("envelope source is not the connected account"))
	}

	passphrase := snap.NetworkPassphrase
	encoded, err := m.codec.EncodeEnvelope(env)
	if err != nil {
		return fail(domain.KindInvalidInput, err)
	}

	out, err := m.wallet.SignTransaction(ctx, encoded, wallet.SignOptions{
		NetworkPassphrase: passphrase,
		Address:           snap.Address,
	})
	if err != nil {
		kind := txn.Classify(err)
		if kind == "" {
			kind = domain.KindNetworkUnreachable
		}
		return fail(kind, err)
	}

	signed, err := m.codec.DecodeEnvelope(out)
	if err != nil {
		return fail(domain.KindInvalidInput, fmt.Errorf("decode signed envelope: %w", err))
	}

	want, err := soroban.TransactionHash(passphrase, env)
	if err != nil {
		return fail(domain.KindInvalidInput, err)
	}
	got, err := soroban.TransactionHash(passphrase, signed)
	if err != nil {
		return fail(domain.KindInvalidInput, err)
	}
	if want != got {
		return fail(domain.KindInvalidInput, errors.New("wallet altered the transaction"))
	}
	if err := wallet.VerifyEnvelope(signed, passphrase, snap.Address); err != nil {
		return fail(domain.KindInvalidInput, err)
	}
	return signed, nil
}

// Subscribe returns a channel receiving a snapshot after every state
// change, and a function that ends the subscription. A subscriber that
// falls behind loses the oldest snapshots, never the latest.
func (m *Manager) Subscribe() (<-chan Snapshot, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSub
	m.nextSub++
	ch := make(chan Snapshot, subscriberBuffer)
	m.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.subs, id)
			close(ch)
		})
	}
}

// Watch applies network changes pushed by the wallet until ctx ends.
// Returns immediately if the wallet does not push changes.
func (m *Manager) Watch(ctx context.Context) error {
	notifier, ok := m.wallet.(wallet.NetworkNotifier)
	if !ok {
		return nil
	}
	changes := notifier.NetworkChanges()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case info, ok := <-changes:
			if !ok {
				return nil
			}
			m.applyNetwork(info)
		}
	}
}

func (m *Manager) applyNetwork(info wallet.NetworkInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.state.Connected() {
		return
	}
	if m.state.NetworkPassphrase == info.Passphrase && m.state.Network == info.Network {
		return
	}
	m.state.Network = info.Network
	m.state.NetworkPassphrase = info.Passphrase
	m.state.Error = m.networkMismatchLocked()
	m.publishLocked()
	m.logger.Printf("Wallet network changed to %s", info.Network)
}

func (m *Manager) networkMismatchLocked() string {
	if m.passphrase == "" || m.state.NetworkPassphrase == m.passphrase {
		return ""
	}
	return fmt.Sprintf("wallet is on %s, switch to %s", m.state.Network, wallet.NetworkName(m.passphrase))
}

func (m *Manager) publishLocked() {
	snap := m.state
	for _, ch := range m.subs {
		select {
		case ch <- snap:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
