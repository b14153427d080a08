package wallet

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"

	"soroban-dao/internal/soroban"
	"soroban-dao/internal/strkey"
)

// keystoreFormatVersion is the current on-disk blob version.
const keystoreFormatVersion = 1

// blob is the on-disk JSON structure holding the ciphertext and KDF parameters.
type blob struct {
	V      int    `json:"v"`
	Salt   []byte `json:"salt"`
	N      int    `json:"scrypt_N"`
	R      int    `json:"scrypt_r"`
	P      int    `json:"scrypt_p"`
	Cipher []byte `json:"cipher"`
}

// secret is the plaintext sealed inside a blob.
type secret struct {
	Seed    []byte `json:"seed"`
	Address string `json:"address"`
}

// ApprovalKind distinguishes access and signing prompts.
type ApprovalKind string

// Approval kinds.
const (
	ApproveAccess ApprovalKind = "access"
	ApproveSign   ApprovalKind = "sign"
)

// ApprovalRequest is shown to the key holder before disclosing the address
// or signing.
type ApprovalRequest struct {
	Kind     ApprovalKind
	Address  string
	Envelope *soroban.Envelope // nil for access requests
}

// ApproveFunc decides an approval request. Returning false rejects it.
type ApproveFunc func(ctx context.Context, req ApprovalRequest) bool

// Keystore is a Wallet backed by an encrypted ed25519 seed on disk.
type Keystore struct {
	path    string
	network NetworkInfo
	codec   soroban.Codec
	approve ApproveFunc

	scryptN, scryptR, scryptP int

	mu      sync.Mutex
	key     ed25519.PrivateKey // nil while locked
	address string
	granted bool
}

// KeystoreOption configures Keystore.
type KeystoreOption func(*Keystore)

// WithApprover sets the approval prompt. The default approves everything.
func WithApprover(fn ApproveFunc) KeystoreOption {
	return func(k *Keystore) {
		k.approve = fn
	}
}

// WithCodec sets the envelope codec.
func WithCodec(c soroban.Codec) KeystoreOption {
	return func(k *Keystore) {
		k.codec = c
	}
}

// WithScryptParams overrides the key derivation cost.
func WithScryptParams(n, r, p int) KeystoreOption {
	return func(k *Keystore) {
		k.scryptN, k.scryptR, k.scryptP = n, r, p
	}
}

// NewKeystore creates a keystore wallet for the key file at path.
// The file need not exist yet.
func NewKeystore(path string, network NetworkInfo, opts ...KeystoreOption) *Keystore {
	k := &Keystore{
		path:    path,
		network: network,
		codec:   soroban.JSONCodec{},
		approve: func(context.Context, ApprovalRequest) bool { return true },
		scryptN: 1 << 15,
		scryptR: 8,
		scryptP: 1,
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

var _ Wallet = (*Keystore)(nil)

// Generate creates a fresh key, writes it encrypted under passphrase and
// leaves the keystore unlocked. Returns the new address.
func (k *Keystore) Generate(passphrase string) (string, error) {
	seed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return "", fmt.Errorf("generate seed: %w", err)
	}
	return k.Import(passphrase, seed)
}

// ImportSecret stores an S... secret seed.
func (k *Keystore) ImportSecret(passphrase, secretSeed string) (string, error) {
	seed, err := strkey.Decode(strkey.VersionByteSeed, secretSeed)
	if err != nil {
		return "", fmt.Errorf("secret seed: %w", err)
	}
	return k.Import(passphrase, seed)
}

// Import stores a raw 32-byte seed.
func (k *Keystore) Import(passphrase string, seed []byte) (string, error) {
	if len(seed) != ed25519.SeedSize {
		return "", fmt.Errorf("seed must be %d bytes", ed25519.SeedSize)
	}
	key := ed25519.NewKeyFromSeed(seed)
	address := AddressFromKey(key)

	raw, err := json.Marshal(secret{Seed: seed, Address: address})
	if err != nil {
		return "", err
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	b, err := encrypt(passphrase, raw, k.scryptN, k.scryptR, k.scryptP)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(k.path), 0o700); err != nil {
		return "", err
	}
	if err := writeFile(k.path, b, 0o600); err != nil {
		return "", err
	}
	k.key = key
	k.address = address
	k.granted = false
	return address, nil
}

// Unlock decrypts the key file.
func (k *Keystore) Unlock(passphrase string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	b, err := os.ReadFile(k.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotInstalled
		}
		return err
	}
	raw, err := decrypt(passphrase, b)
	if err != nil {
		return err
	}
	var s secret
	if err := json.Unmarshal(raw, &s); err != nil {
		return fmt.Errorf("keystore contents: %w", err)
	}
	if len(s.Seed) != ed25519.SeedSize {
		return ErrWrongPassphrase
	}
	k.key = ed25519.NewKeyFromSeed(s.Seed)
	k.address = AddressFromKey(k.key)
	return nil
}

// Lock forgets the decrypted key.
func (k *Keystore) Lock() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.key = nil
	k.granted = false
}

// Installed reports whether the key file exists.
func (k *Keystore) Installed(_ context.Context) (bool, error) {
	_, err := os.Stat(k.path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// RequestAccess asks the approver to share the address.
func (k *Keystore) RequestAccess(ctx context.Context) (string, error) {
	k.mu.Lock()
	key, address := k.key, k.address
	k.mu.Unlock()

	if key == nil {
		if ok, _ := k.Installed(ctx); !ok {
			return "", ErrNotInstalled
		}
		return "", ErrLocked
	}
	if !k.approve(ctx, ApprovalRequest{Kind: ApproveAccess, Address: address}) {
		return "", ErrUserRejected
	}

	k.mu.Lock()
	k.granted = true
	k.mu.Unlock()
	return address, nil
}

// Address returns the address once access has been granted.
func (k *Keystore) Address(_ context.Context) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.key == nil {
		return "", ErrLocked
	}
	if !k.granted {
		return "", ErrUserRejected
	}
	return k.address, nil
}

// Network returns the configured network.
func (k *Keystore) Network(_ context.Context) (NetworkInfo, error) {
	return k.network, nil
}

// SignTransaction signs the envelope after approval.
func (k *Keystore) SignTransaction(ctx context.Context, envelope string, opts SignOptions) (string, error) {
	k.mu.Lock()
	key, address, granted := k.key, k.address, k.granted
	k.mu.Unlock()

	if key == nil {
		return "", ErrLocked
	}
	if !granted {
		return "", ErrUserRejected
	}
	if opts.Address != "" && opts.Address != address {
		return "", fmt.Errorf("keystore holds %s, not %s", address, opts.Address)
	}
	passphrase := opts.NetworkPassphrase
	if passphrase == "" {
		passphrase = k.network.Passphrase
	}

	env, err := k.codec.DecodeEnvelope(envelope)
	if err != nil {
		return "", err
	}
	if !k.approve(ctx, ApprovalRequest{Kind: ApproveSign, Address: address, Envelope: env}) {
		return "", ErrUserRejected
	}
	if err := SignEnvelope(env, passphrase, key); err != nil {
		return "", err
	}
	return k.codec.EncodeEnvelope(env)
}

// encrypt derives a key from passphrase and seals raw into a JSON blob.
func encrypt(passphrase string, raw []byte, n, r, p int) ([]byte, error) {
	var salt [16]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return nil, err
	}
	key, err := scrypt.Key([]byte(passphrase), salt[:], n, r, p, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	var nonce [12]byte // zero nonce; each blob has a fresh salt and so a fresh key
	ct := aead.Seal(nil, nonce[:], raw, salt[:])

	return json.Marshal(blob{
		V:      keystoreFormatVersion,
		Salt:   salt[:],
		N:      n,
		R:      r,
		P:      p,
		Cipher: ct,
	})
}

// decrypt opens the JSON blob using a key derived from passphrase.
func decrypt(passphrase string, b []byte) ([]byte, error) {
	var bl blob
	if err := json.Unmarshal(b, &bl); err != nil {
		return nil, fmt.Errorf("keystore format: %w", err)
	}
	if bl.V > keystoreFormatVersion {
		return nil, fmt.Errorf("unsupported keystore version %d", bl.V)
	}

	key, err := scrypt.Key([]byte(passphrase), bl.Salt, bl.N, bl.R, bl.P, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	var nonce [12]byte
	pt, err := aead.Open(nil, nonce[:], bl.Cipher, bl.Salt)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return pt, nil
}

// writeFile writes via a temp file and rename so a crash never leaves a
// truncated key file.
func writeFile(path string, b []byte, mode os.FileMode) error {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()

	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Chmod(mode); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
