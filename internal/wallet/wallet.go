// Package wallet defines the key holder that signs transactions on request
// and its backends: an encrypted local keystore and a websocket bridge to a
// remote wallet.
package wallet

import (
	"context"
	"errors"
)

// Well-known network passphrases.
const (
	PublicPassphrase     = "Public Global Stellar Network ; September 2015"
	TestnetPassphrase    = "Test SDF Network ; September 2015"
	FuturenetPassphrase  = "Test SDF Future Network ; October 2022"
	StandalonePassphrase = "Standalone Network ; February 2017"
)

var (
	// ErrNotInstalled is returned when no wallet backend is available.
	ErrNotInstalled = errors.New("wallet not installed")
	// ErrUserRejected is returned when the key holder declines a request.
	ErrUserRejected = errors.New("user rejected request")
	// ErrLocked is returned when the keystore has not been unlocked.
	ErrLocked = errors.New("wallet locked")
	// ErrWrongPassphrase is returned when a keystore cannot be decrypted.
	ErrWrongPassphrase = errors.New("wrong passphrase or corrupted keystore")
	// ErrUnreachable is returned when the wallet cannot be reached.
	ErrUnreachable = errors.New("wallet unreachable")
)

// NetworkInfo identifies the network a wallet is pointed at.
type NetworkInfo struct {
	Network    string `json:"network"`
	Passphrase string `json:"networkPassphrase"`
}

// SignOptions accompany a signing request.
type SignOptions struct {
	NetworkPassphrase string `json:"networkPassphrase"`
	Address           string `json:"address,omitempty"`
}

// Wallet is a key holder that can disclose its address and sign
// encoded envelopes.
type Wallet interface {
	// Installed reports whether the wallet is available. Absence is not an error.
	Installed(ctx context.Context) (bool, error)

	// RequestAccess asks the key holder to share its address.
	RequestAccess(ctx context.Context) (string, error)

	// Address returns the address previously shared.
	Address(ctx context.Context) (string, error)

	// Network returns the network the wallet is pointed at.
	Network(ctx context.Context) (NetworkInfo, error)

	// SignTransaction signs an encoded envelope and returns it re-encoded
	// with the signature attached.
	SignTransaction(ctx context.Context, envelope string, opts SignOptions) (string, error)
}

// NetworkNotifier is implemented by wallets that push network changes.
type NetworkNotifier interface {
	NetworkChanges() <-chan NetworkInfo
}

// NetworkName maps a passphrase to its short network name.
func NetworkName(passphrase string) string {
	switch passphrase {
	case PublicPassphrase:
		return "PUBLIC"
	case TestnetPassphrase:
		return "TESTNET"
	case FuturenetPassphrase:
		return "FUTURENET"
	case StandalonePassphrase:
		return "STANDALONE"
	}
	return "CUSTOM"
}
