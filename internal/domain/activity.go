package domain

// ActivityEvent is a contract event observed on chain.
type ActivityEvent struct {
	EventID        string // RPC event id, unique
	ContractID     string
	Contract       string   // treasury, governance, token_vault, access_control
	Topics         []string // decoded topic symbols, e.g. ["approve", "42"]
	Value          string   // decoded event body as JSON
	TxHash         string
	Ledger         uint32
	LedgerClosedAt int64 // unix ms
}

// Action returns the first topic, which by convention names the action.
func (e *ActivityEvent) Action() string {
	if len(e.Topics) == 0 {
		return ""
	}
	return e.Topics[0]
}

// EventCursor is the resume position for a contract event stream.
type EventCursor struct {
	Stream    string // stream name, one per poller
	Cursor    string // RPC paging cursor
	Ledger    uint32 // last ledger seen
	UpdatedAt int64  // unix ms
}
