package soroban

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ArgType names the contract value type of an invocation argument.
type ArgType string

// Argument types.
const (
	TypeAddress ArgType = "address"
	TypeU32     ArgType = "u32"
	TypeU64     ArgType = "u64"
	TypeI128    ArgType = "i128"
	TypeBool    ArgType = "bool"
	TypeSymbol  ArgType = "symbol"
	TypeString  ArgType = "string"
)

// Arg is one typed contract argument. Value is always the canonical
// string form so encoded envelopes are byte-stable.
type Arg struct {
	Type  ArgType `json:"type"`
	Value string  `json:"value"`
}

func (a Arg) String() string {
	return string(a.Type) + ":" + a.Value
}

// Address builds an address argument.
func Address(s string) Arg { return Arg{Type: TypeAddress, Value: s} }

// U32 builds a u32 argument.
func U32(v uint32) Arg { return Arg{Type: TypeU32, Value: strconv.FormatUint(uint64(v), 10)} }

// U64 builds a u64 argument.
func U64(v uint64) Arg { return Arg{Type: TypeU64, Value: strconv.FormatUint(v, 10)} }

// I128 builds an i128 argument from a stroop amount.
func I128(v int64) Arg { return Arg{Type: TypeI128, Value: strconv.FormatInt(v, 10)} }

// Bool builds a bool argument.
func Bool(v bool) Arg { return Arg{Type: TypeBool, Value: strconv.FormatBool(v)} }

// Symbol builds a symbol argument.
func Symbol(s string) Arg { return Arg{Type: TypeSymbol, Value: s} }

// String builds a string argument.
func String(s string) Arg { return Arg{Type: TypeString, Value: s} }

// Uint parses a u32/u64 argument value.
func (a Arg) Uint() (uint64, error) {
	if a.Type != TypeU32 && a.Type != TypeU64 {
		return 0, fmt.Errorf("arg %s is not unsigned", a.Type)
	}
	return strconv.ParseUint(a.Value, 10, 64)
}

// Int parses an i128 argument value that fits in int64.
func (a Arg) Int() (int64, error) {
	if a.Type != TypeI128 {
		return 0, fmt.Errorf("arg %s is not i128", a.Type)
	}
	return strconv.ParseInt(a.Value, 10, 64)
}

// Invocation is a single contract function call.
type Invocation struct {
	ContractID string `json:"contract_id"`
	Method     string `json:"method"`
	Args       []Arg  `json:"args"`
}

// Signature is a decorated signature attached to an envelope.
type Signature struct {
	Hint      string `json:"hint"`      // hex of the last 4 bytes of the public key
	Signature string `json:"signature"` // base64 ed25519 signature
}

// Envelope is a transaction carrying one contract invocation.
type Envelope struct {
	Source          string      `json:"source"`
	Sequence        int64       `json:"sequence,string"`
	Fee             int64       `json:"fee,string"`
	MaxTime         int64       `json:"max_time"` // unix seconds, 0 = unbounded
	Invocation      Invocation  `json:"invocation"`
	ResourceFee     int64       `json:"resource_fee,string,omitempty"`
	TransactionData string      `json:"transaction_data,omitempty"`
	Auth            []string    `json:"auth,omitempty"`
	Signatures      []Signature `json:"signatures,omitempty"`
}

// Signed reports whether the envelope carries at least one signature.
func (e *Envelope) Signed() bool {
	return len(e.Signatures) > 0
}

// Codec encodes envelopes and contract values for the wire.
type Codec interface {
	EncodeEnvelope(env *Envelope) (string, error)
	DecodeEnvelope(s string) (*Envelope, error)
	EncodeValue(v interface{}) (string, error)
	DecodeValue(s string, out interface{}) error
}

// ErrEmptyValue is returned when decoding an absent contract value.
var ErrEmptyValue = errors.New("empty contract value")

// JSONCodec encodes as canonical JSON wrapped in standard base64.
type JSONCodec struct{}

var _ Codec = JSONCodec{}

// EncodeEnvelope encodes an envelope.
func (JSONCodec) EncodeEnvelope(env *Envelope) (string, error) {
	if env == nil {
		return "", errors.New("nil envelope")
	}
	b, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// DecodeEnvelope decodes an envelope.
func (JSONCodec) DecodeEnvelope(s string) (*Envelope, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	return &env, nil
}

// EncodeValue encodes a contract value.
func (JSONCodec) EncodeValue(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal value: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// DecodeValue decodes a contract value into out.
func (JSONCodec) DecodeValue(s string, out interface{}) error {
	if s == "" {
		return ErrEmptyValue
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return fmt.Errorf("decode value: %w", err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("unmarshal value: %w", err)
	}
	return nil
}

// NetworkID returns SHA-256 of the network passphrase.
func NetworkID(passphrase string) [32]byte {
	return sha256.Sum256([]byte(passphrase))
}

// TransactionHash computes SHA-256(network id || envelope body), where the
// body is the canonical JSON of the envelope without signatures.
func TransactionHash(passphrase string, env *Envelope) ([32]byte, error) {
	body := *env
	body.Signatures = nil
	b, err := json.Marshal(&body)
	if err != nil {
		return [32]byte{}, fmt.Errorf("marshal envelope: %w", err)
	}
	id := NetworkID(passphrase)
	h := sha256.New()
	h.Write(id[:])
	h.Write(b)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out, nil
}

// TransactionHashHex is TransactionHash rendered as lowercase hex, the form
// returned by sendTransaction and accepted by getTransaction.
func TransactionHashHex(passphrase string, env *Envelope) (string, error) {
	h, err := TransactionHash(passphrase, env)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(h[:]), nil
}

// Assemble applies simulation output to an unsigned envelope: resource fee,
// footprint and authorization entries.
func Assemble(env *Envelope, sim *SimulateResult) (*Envelope, error) {
	if sim == nil {
		return nil, errors.New("nil simulation")
	}
	if sim.Failed() {
		return nil, fmt.Errorf("simulation failed: %s", sim.Error)
	}
	out := *env
	out.ResourceFee = sim.MinResourceFee
	out.Fee = env.Fee + sim.MinResourceFee
	out.TransactionData = sim.TransactionData
	out.Auth = nil
	if len(sim.Results) > 0 {
		out.Auth = append([]string(nil), sim.Results[0].Auth...)
	}
	out.Signatures = nil
	return &out, nil
}
