package soroban

// Health from getHealth.
type Health struct {
	Status                string `json:"status"`
	LatestLedger          uint32 `json:"latestLedger"`
	OldestLedger          uint32 `json:"oldestLedger"`
	LedgerRetentionWindow uint32 `json:"ledgerRetentionWindow"`
}

// Network from getNetwork.
type Network struct {
	Passphrase      string `json:"passphrase"`
	ProtocolVersion int    `json:"protocolVersion"`
	FriendbotURL    string `json:"friendbotUrl,omitempty"`
}

// LatestLedger from getLatestLedger.
type LatestLedger struct {
	ID              string `json:"id"`
	Sequence        uint32 `json:"sequence"`
	ProtocolVersion int    `json:"protocolVersion"`
}

// Account holds the fields needed to build a transaction for a source account.
type Account struct {
	ID       string `json:"id"`
	Sequence int64  `json:"sequence,string"`
}

// SimulateResult from simulateTransaction.
type SimulateResult struct {
	LatestLedger    uint32           `json:"latestLedger"`
	MinResourceFee  int64            `json:"minResourceFee,string,omitempty"`
	TransactionData string           `json:"transactionData,omitempty"`
	Results         []SimulateReturn `json:"results,omitempty"`
	Events          []string         `json:"events,omitempty"`
	Error           string           `json:"error,omitempty"`
}

// SimulateReturn is the result of one simulated host function.
type SimulateReturn struct {
	Auth []string `json:"auth,omitempty"`
	XDR  string   `json:"xdr"`
}

// Failed reports whether the host rejected the simulation.
func (r *SimulateResult) Failed() bool {
	return r.Error != ""
}

// ReturnValue returns the encoded return value of the first host function.
func (r *SimulateResult) ReturnValue() string {
	if len(r.Results) == 0 {
		return ""
	}
	return r.Results[0].XDR
}

// Send statuses.
const (
	SendPending       = "PENDING"
	SendDuplicate     = "DUPLICATE"
	SendTryAgainLater = "TRY_AGAIN_LATER"
	SendError         = "ERROR"
)

// SendResult from sendTransaction.
type SendResult struct {
	Status         string `json:"status"`
	Hash           string `json:"hash"`
	LatestLedger   uint32 `json:"latestLedger"`
	ErrorResultXDR string `json:"errorResultXdr,omitempty"`
}

// Transaction statuses.
const (
	TxSuccess  = "SUCCESS"
	TxNotFound = "NOT_FOUND"
	TxFailed   = "FAILED"
)

// TransactionResult from getTransaction.
type TransactionResult struct {
	Status       string `json:"status"`
	LatestLedger uint32 `json:"latestLedger"`
	Ledger       uint32 `json:"ledger,omitempty"`
	CreatedAt    int64  `json:"createdAt,string,omitempty"`
	ResultXDR    string `json:"resultXdr,omitempty"`
	ReturnValue  string `json:"returnValue,omitempty"`
	EnvelopeXDR  string `json:"envelopeXdr,omitempty"`
}

// EventFilter selects events by contract and topic.
type EventFilter struct {
	Type        string     `json:"type,omitempty"`
	ContractIDs []string   `json:"contractIds,omitempty"`
	Topics      [][]string `json:"topics,omitempty"`
}

// Pagination for getEvents.
type Pagination struct {
	Cursor string `json:"cursor,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// EventsRequest defines getEvents parameters.
// StartLedger is ignored by the node when a cursor is set.
type EventsRequest struct {
	StartLedger uint32        `json:"startLedger,omitempty"`
	Filters     []EventFilter `json:"filters"`
	Pagination  *Pagination   `json:"pagination,omitempty"`
}

// EventsResult from getEvents.
type EventsResult struct {
	Events       []Event `json:"events"`
	LatestLedger uint32  `json:"latestLedger"`
	Cursor       string  `json:"cursor,omitempty"`
}

// Event is one contract event.
type Event struct {
	Type                     string   `json:"type"`
	Ledger                   uint32   `json:"ledger"`
	LedgerClosedAt           string   `json:"ledgerClosedAt"` // RFC 3339
	ContractID               string   `json:"contractId"`
	ID                       string   `json:"id"`
	PagingToken              string   `json:"pagingToken,omitempty"`
	Topic                    []string `json:"topic"`
	Value                    string   `json:"value"`
	InSuccessfulContractCall bool     `json:"inSuccessfulContractCall"`
	TxHash                   string   `json:"txHash"`
}
