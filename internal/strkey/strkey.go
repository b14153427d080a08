// Package strkey encodes and decodes Stellar string keys (G... accounts,
// C... contracts, S... seeds).
package strkey

import (
	"bytes"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
)

// VersionByte identifies the kind of key carried in a strkey.
type VersionByte byte

// Known version bytes.
const (
	VersionByteAccountID VersionByte = 6 << 3  // G
	VersionByteContract  VersionByte = 2 << 3  // C
	VersionByteSeed      VersionByte = 18 << 3 // S
)

// PayloadSize is the raw key length for all supported version bytes.
const PayloadSize = 32

// encodedLen is the length of an encoded 32-byte key: base32(1 + 32 + 2).
const encodedLen = 56

var (
	// ErrInvalidKey is returned when a string is not a well-formed strkey.
	ErrInvalidKey = errors.New("invalid strkey")

	// ErrInvalidVersion is returned when the version byte does not match the expected kind.
	ErrInvalidVersion = errors.New("invalid strkey version byte")

	// ErrInvalidChecksum is returned when the CRC16 checksum does not match.
	ErrInvalidChecksum = errors.New("invalid strkey checksum")
)

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Encode encodes a 32-byte payload with the given version byte.
func Encode(vb VersionByte, payload []byte) (string, error) {
	if len(payload) != PayloadSize {
		return "", fmt.Errorf("%w: payload must be %d bytes, got %d", ErrInvalidKey, PayloadSize, len(payload))
	}

	raw := make([]byte, 0, 1+PayloadSize+2)
	raw = append(raw, byte(vb))
	raw = append(raw, payload...)
	raw = binary.LittleEndian.AppendUint16(raw, crc16(raw))

	return encoding.EncodeToString(raw), nil
}

// Decode decodes s and verifies its version byte and checksum.
func Decode(vb VersionByte, s string) ([]byte, error) {
	if len(s) != encodedLen {
		return nil, fmt.Errorf("%w: length %d", ErrInvalidKey, len(s))
	}

	raw, err := encoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(raw) != 1+PayloadSize+2 {
		return nil, fmt.Errorf("%w: decoded length %d", ErrInvalidKey, len(raw))
	}

	// Reject non-canonical base32 (trailing bits set).
	if encoding.EncodeToString(raw) != s {
		return nil, fmt.Errorf("%w: non-canonical encoding", ErrInvalidKey)
	}

	if VersionByte(raw[0]) != vb {
		return nil, ErrInvalidVersion
	}

	body := raw[:len(raw)-2]
	want := binary.LittleEndian.Uint16(raw[len(raw)-2:])
	if crc16(body) != want {
		return nil, ErrInvalidChecksum
	}

	return bytes.Clone(body[1:]), nil
}

// MustEncode is Encode for payloads known to be well-formed.
func MustEncode(vb VersionByte, payload []byte) string {
	s, err := Encode(vb, payload)
	if err != nil {
		panic(err)
	}
	return s
}

// IsValidAccount reports whether s is a G... address whose key is a valid
// Ed25519 point.
func IsValidAccount(s string) bool {
	raw, err := Decode(VersionByteAccountID, s)
	if err != nil {
		return false
	}
	_, err = new(edwards25519.Point).SetBytes(raw)
	return err == nil
}

// IsValidContract reports whether s is a well-formed C... contract address.
func IsValidContract(s string) bool {
	_, err := Decode(VersionByteContract, s)
	return err == nil
}

// crc16 computes CRC16-XModem (poly 0x1021, init 0).
func crc16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
