package domain

// OperationState is the lifecycle state of a mutating contract operation.
//
//	UNSIGNED -> SIGNED -> SUBMITTED -> CONFIRMED | REJECTED | TIMED_OUT
type OperationState string

// Operation states.
const (
	StateUnsigned  OperationState = "UNSIGNED"
	StateSigned    OperationState = "SIGNED"
	StateSubmitted OperationState = "SUBMITTED"
	StateConfirmed OperationState = "CONFIRMED"
	StateRejected  OperationState = "REJECTED"
	StateTimedOut  OperationState = "TIMED_OUT"
)

// Terminal reports whether no further transition is expected without reconciliation.
func (s OperationState) Terminal() bool {
	switch s {
	case StateConfirmed, StateRejected, StateTimedOut:
		return true
	}
	return false
}

// Pending reports whether the operation may still land on chain.
func (s OperationState) Pending() bool {
	return s == StateSubmitted || s == StateTimedOut
}

// ErrorKind classifies operation failures for callers.
type ErrorKind string

// Error kinds.
const (
	KindUserRejectedSignature ErrorKind = "USER_REJECTED_SIGNATURE"
	KindNetworkUnreachable    ErrorKind = "NETWORK_UNREACHABLE"
	KindSimulationRejected    ErrorKind = "SIMULATION_REJECTED"
	KindSubmissionRejected    ErrorKind = "SUBMISSION_REJECTED"
	KindConfirmationTimeout   ErrorKind = "CONFIRMATION_TIMEOUT"
	KindNotConnected          ErrorKind = "NOT_CONNECTED"
	KindWrongNetwork          ErrorKind = "WRONG_NETWORK"
	KindInvalidInput          ErrorKind = "INVALID_INPUT"
	KindNotFound              ErrorKind = "NOT_FOUND"
	KindCanceled              ErrorKind = "CANCELED"
)

// OperationRecord is a journal entry for one mutating operation.
type OperationRecord struct {
	ID           string // uuid
	Key          string // operation key (idhash)
	ContractID   string
	Method       string
	Source       string // signing account
	State        OperationState
	TxHash       string
	Ledger       uint32
	ErrorKind    ErrorKind
	ErrorMessage string
	CreatedAt    int64 // unix ms
	UpdatedAt    int64 // unix ms
}

// OperationUpdate is a state transition applied to a journal entry.
// Empty fields leave the stored value unchanged.
type OperationUpdate struct {
	State        OperationState
	TxHash       string
	Ledger       uint32
	ErrorKind    ErrorKind
	ErrorMessage string
	UpdatedAt    int64 // unix ms
}
