package reporting

import "time"

// Report is the treasury activity report.
type Report struct {
	GeneratedAt time.Time
	Network     string

	Summary Summary

	// Operations ordered by created_at, id.
	Operations []OperationRow

	// Activity ordered by ledger, event id.
	Activity []ActivityRow

	// ActionCounts ordered by contract, action.
	ActionCounts []ActionCountRow
}

// Summary describes the report contents.
type Summary struct {
	TotalOperations int
	Confirmed       int
	Rejected        int
	TimedOut        int
	InFlight        int // UNSIGNED, SIGNED or SUBMITTED

	TotalEvents int
	FirstLedger uint32
	LastLedger  uint32
}

// OperationRow is one journal entry.
type OperationRow struct {
	ID           string
	Contract     string
	Method       string
	Source       string
	State        string
	TxHash       string
	Ledger       uint32
	ErrorKind    string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ActivityRow is one contract event.
type ActivityRow struct {
	Ledger   uint32
	ClosedAt time.Time
	Contract string
	Action   string
	Topics   []string
	Value    string
	TxHash   string
	EventID  string
}

// ActionCountRow counts events per contract and action.
type ActionCountRow struct {
	Contract string
	Action   string
	Count    int
}

var operationHeaders = []string{
	"id", "contract", "method", "source", "state", "tx_hash", "ledger",
	"error_kind", "error_message", "created_at", "updated_at",
}

func (o OperationRow) values() []interface{} {
	return []interface{}{
		o.ID, o.Contract, o.Method, o.Source, o.State, o.TxHash, o.Ledger,
		o.ErrorKind, o.ErrorMessage, formatTime(o.CreatedAt), formatTime(o.UpdatedAt),
	}
}

var activityHeaders = []string{
	"ledger", "closed_at", "contract", "action", "topics", "value", "tx_hash", "event_id",
}

func (a ActivityRow) values() []interface{} {
	return []interface{}{
		a.Ledger, formatTime(a.ClosedAt), a.Contract, a.Action, joinTopics(a.Topics), a.Value, a.TxHash, a.EventID,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
