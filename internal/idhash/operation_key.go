// Package idhash derives deterministic keys for contract calls.
package idhash

import (
	"crypto/sha256"
	"strings"

	"github.com/mr-tron/base58"

	"soroban-dao/internal/soroban"
)

// OperationKey computes the key identifying a mutating contract call.
// Formula: SHA256(op|source|contract_id|method|type:value|...)
// Two submissions with equal keys are the same operation.
// Returns base58-encoded hash.
func OperationKey(source string, inv soroban.Invocation) string {
	return compute("op", source, inv)
}

// ReadKey computes the key identifying a read-only contract call.
// Reads and writes never share a key.
func ReadKey(inv soroban.Invocation) string {
	return compute("read", "", inv)
}

func compute(kind, source string, inv soroban.Invocation) string {
	var b strings.Builder
	b.WriteString(kind)
	b.WriteByte('|')
	b.WriteString(source)
	b.WriteByte('|')
	b.WriteString(inv.ContractID)
	b.WriteByte('|')
	b.WriteString(inv.Method)
	for _, a := range inv.Args {
		b.WriteByte('|')
		b.WriteString(string(a.Type))
		b.WriteByte(':')
		b.WriteString(a.Value)
	}

	hash := sha256.Sum256([]byte(b.String()))
	return base58.Encode(hash[:])
}
