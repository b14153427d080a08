// Package txn runs mutating contract operations through the
// build, simulate, sign, submit and confirm lifecycle.
package txn

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"soroban-dao/internal/domain"
	"soroban-dao/internal/soroban"
	"soroban-dao/internal/wallet"
)

// Sentinels matched by errors.Is against an *OpError of the same kind.
var (
	ErrUserRejectedSignature = errors.New(string(domain.KindUserRejectedSignature))
	ErrNetworkUnreachable    = errors.New(string(domain.KindNetworkUnreachable))
	ErrSimulationRejected    = errors.New(string(domain.KindSimulationRejected))
	ErrSubmissionRejected    = errors.New(string(domain.KindSubmissionRejected))
	ErrConfirmationTimeout   = errors.New(string(domain.KindConfirmationTimeout))
	ErrNotConnected          = errors.New(string(domain.KindNotConnected))
	ErrWrongNetwork          = errors.New(string(domain.KindWrongNetwork))
	ErrInvalidInput          = errors.New(string(domain.KindInvalidInput))
	ErrNotFound              = errors.New(string(domain.KindNotFound))
	ErrCanceled              = errors.New(string(domain.KindCanceled))
)

var kindSentinels = map[domain.ErrorKind]error{
	domain.KindUserRejectedSignature: ErrUserRejectedSignature,
	domain.KindNetworkUnreachable:    ErrNetworkUnreachable,
	domain.KindSimulationRejected:    ErrSimulationRejected,
	domain.KindSubmissionRejected:    ErrSubmissionRejected,
	domain.KindConfirmationTimeout:   ErrConfirmationTimeout,
	domain.KindNotConnected:          ErrNotConnected,
	domain.KindWrongNetwork:          ErrWrongNetwork,
	domain.KindInvalidInput:          ErrInvalidInput,
	domain.KindNotFound:              ErrNotFound,
	domain.KindCanceled:              ErrCanceled,
}

// OpError is the failure outcome of a contract operation or session call.
// State is how far the operation got: UNSIGNED means nothing reached the
// network; SIGNED, SUBMITTED and TIMED_OUT mean it may have landed.
type OpError struct {
	Kind   domain.ErrorKind
	State  domain.OperationState
	Op     string // contract method or session action
	TxHash string
	Err    error
}

// NewOpError builds an OpError.
func NewOpError(kind domain.ErrorKind, state domain.OperationState, op string, err error) *OpError {
	return &OpError{Kind: kind, State: state, Op: op, Err: err}
}

func (e *OpError) Error() string {
	msg := fmt.Sprintf("%s: %s (state %s)", e.Op, e.Kind, e.State)
	if e.TxHash != "" {
		msg += " tx " + e.TxHash
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *OpError) Unwrap() error { return e.Err }

// Is matches the sentinel for e.Kind.
func (e *OpError) Is(target error) bool {
	s, ok := kindSentinels[e.Kind]
	return ok && s == target
}

// Indeterminate reports whether the operation may have been applied.
func (e *OpError) Indeterminate() bool {
	return e.State != domain.StateUnsigned && e.State != domain.StateRejected
}

// KindOf returns the kind of the first *OpError in err's chain, or "".
func KindOf(err error) domain.ErrorKind {
	var opErr *OpError
	if errors.As(err, &opErr) {
		return opErr.Kind
	}
	return ""
}

// Classify maps wallet, transport and context errors to a kind.
// Returns "" when err carries no recognizable cause.
func Classify(err error) domain.ErrorKind {
	switch {
	case err == nil:
		return ""
	case KindOf(err) != "":
		return KindOf(err)
	case errors.Is(err, wallet.ErrUserRejected):
		return domain.KindUserRejectedSignature
	case errors.Is(err, wallet.ErrUnreachable),
		errors.Is(err, wallet.ErrNotInstalled),
		errors.Is(err, soroban.ErrUnreachable):
		return domain.KindNetworkUnreachable
	case errors.Is(err, wallet.ErrLocked):
		return domain.KindNotConnected
	case errors.Is(err, wallet.ErrWrongPassphrase):
		return domain.KindInvalidInput
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return domain.KindCanceled
	}
	return ""
}

// ContractError is an error code raised by contract code during simulation
// or execution.
type ContractError struct {
	ContractID string
	Code       uint32
	Name       string // empty when the code is unknown
}

func (e *ContractError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("contract error #%d (%s)", e.Code, e.Name)
	}
	return fmt.Sprintf("contract error #%d", e.Code)
}

var contractErrorRe = regexp.MustCompile(`Error\(Contract, #(\d+)\)`)

// ParseContractError extracts a contract error code from a host error
// message such as "HostError: Error(Contract, #3)". Returns nil if msg
// carries no contract code.
func ParseContractError(contractID, msg string) *ContractError {
	m := contractErrorRe.FindStringSubmatch(msg)
	if m == nil {
		return nil
	}
	code, err := strconv.ParseUint(m[1], 10, 32)
	if err != nil {
		return nil
	}
	return &ContractError{ContractID: contractID, Code: uint32(code)}
}
