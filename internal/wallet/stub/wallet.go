// Package stub provides a scriptable in-memory wallet for tests.
package stub

import (
	"context"
	"crypto/ed25519"
	"sync"

	"soroban-dao/internal/soroban"
	"soroban-dao/internal/wallet"
)

// Wallet implements wallet.Wallet with an in-memory ed25519 key.
type Wallet struct {
	mu sync.Mutex

	// NotInstalled makes Installed report false and requests fail.
	NotInstalled bool
	// RejectAccess makes RequestAccess fail with ErrUserRejected.
	RejectAccess bool
	// RejectSign makes SignTransaction fail with ErrUserRejected.
	RejectSign bool
	// AccessErr, when set, is returned by RequestAccess.
	AccessErr error
	// Gate, when set, blocks RequestAccess until it is closed or receives.
	Gate chan struct{}

	key     ed25519.PrivateKey
	network wallet.NetworkInfo
	changes chan wallet.NetworkInfo

	accessCalls int
	signCalls   int
}

// NewWallet creates a stub wallet with a deterministic key from seed.
func NewWallet(seed byte, passphrase string) *Wallet {
	s := make([]byte, ed25519.SeedSize)
	for i := range s {
		s[i] = seed
	}
	return &Wallet{
		key:     ed25519.NewKeyFromSeed(s),
		network: wallet.NetworkInfo{Network: wallet.NetworkName(passphrase), Passphrase: passphrase},
		changes: make(chan wallet.NetworkInfo, 4),
	}
}

var (
	_ wallet.Wallet          = (*Wallet)(nil)
	_ wallet.NetworkNotifier = (*Wallet)(nil)
)

// Addr returns the wallet's address.
func (w *Wallet) Addr() string {
	return wallet.AddressFromKey(w.key)
}

// Key returns the signing key.
func (w *Wallet) Key() ed25519.PrivateKey {
	return w.key
}

// SwitchNetwork changes the network and pushes a notification.
func (w *Wallet) SwitchNetwork(passphrase string) {
	w.mu.Lock()
	w.network = wallet.NetworkInfo{Network: wallet.NetworkName(passphrase), Passphrase: passphrase}
	info := w.network
	w.mu.Unlock()
	w.changes <- info
}

// AccessCalls returns the number of RequestAccess calls.
func (w *Wallet) AccessCalls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.accessCalls
}

// SignCalls returns the number of SignTransaction calls.
func (w *Wallet) SignCalls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.signCalls
}

// Installed reports !NotInstalled.
func (w *Wallet) Installed(_ context.Context) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.NotInstalled, nil
}

// RequestAccess returns the address unless configured to fail.
func (w *Wallet) RequestAccess(ctx context.Context) (string, error) {
	w.mu.Lock()
	w.accessCalls++
	gate := w.Gate
	w.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	switch {
	case w.NotInstalled:
		return "", wallet.ErrNotInstalled
	case w.AccessErr != nil:
		return "", w.AccessErr
	case w.RejectAccess:
		return "", wallet.ErrUserRejected
	}
	return wallet.AddressFromKey(w.key), nil
}

// Address returns the wallet address.
func (w *Wallet) Address(_ context.Context) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.NotInstalled {
		return "", wallet.ErrNotInstalled
	}
	return wallet.AddressFromKey(w.key), nil
}

// Network returns the current network.
func (w *Wallet) Network(_ context.Context) (wallet.NetworkInfo, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.NotInstalled {
		return wallet.NetworkInfo{}, wallet.ErrNotInstalled
	}
	return w.network, nil
}

// SignTransaction signs with the stub key.
func (w *Wallet) SignTransaction(_ context.Context, envelope string, opts wallet.SignOptions) (string, error) {
	w.mu.Lock()
	w.signCalls++
	reject := w.RejectSign
	passphrase := w.network.Passphrase
	w.mu.Unlock()

	if reject {
		return "", wallet.ErrUserRejected
	}
	if opts.NetworkPassphrase != "" {
		passphrase = opts.NetworkPassphrase
	}

	codec := soroban.JSONCodec{}
	env, err := codec.DecodeEnvelope(envelope)
	if err != nil {
		return "", err
	}
	if err := wallet.SignEnvelope(env, passphrase, w.key); err != nil {
		return "", err
	}
	return codec.EncodeEnvelope(env)
}

// NetworkChanges delivers SwitchNetwork notifications.
func (w *Wallet) NetworkChanges() <-chan wallet.NetworkInfo {
	return w.changes
}
