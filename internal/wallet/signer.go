package wallet

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"soroban-dao/internal/soroban"
	"soroban-dao/internal/strkey"
)

// SignEnvelope appends an ed25519 signature over the network-bound
// transaction hash.
func SignEnvelope(env *soroban.Envelope, passphrase string, key ed25519.PrivateKey) error {
	hash, err := soroban.TransactionHash(passphrase, env)
	if err != nil {
		return err
	}
	pub := key.Public().(ed25519.PublicKey)
	env.Signatures = append(env.Signatures, soroban.Signature{
		Hint:      hex.EncodeToString(pub[len(pub)-4:]),
		Signature: base64.StdEncoding.EncodeToString(ed25519.Sign(key, hash[:])),
	})
	return nil
}

// VerifyEnvelope checks that the envelope carries a valid signature from
// address for the given network.
func VerifyEnvelope(env *soroban.Envelope, passphrase, address string) error {
	raw, err := strkey.Decode(strkey.VersionByteAccountID, address)
	if err != nil {
		return fmt.Errorf("signer address: %w", err)
	}
	pub := ed25519.PublicKey(raw)
	hint := hex.EncodeToString(raw[len(raw)-4:])

	hash, err := soroban.TransactionHash(passphrase, env)
	if err != nil {
		return err
	}
	for _, sig := range env.Signatures {
		if sig.Hint != hint {
			continue
		}
		b, err := base64.StdEncoding.DecodeString(sig.Signature)
		if err != nil {
			continue
		}
		if ed25519.Verify(pub, hash[:], b) {
			return nil
		}
	}
	return errors.New("no valid signature for signer")
}

// AddressFromKey returns the G... address of an ed25519 key.
func AddressFromKey(key ed25519.PrivateKey) string {
	return strkey.MustEncode(strkey.VersionByteAccountID, key.Public().(ed25519.PublicKey))
}
