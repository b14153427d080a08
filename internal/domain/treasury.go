package domain

// TreasuryConfig mirrors the treasury contract's get_config result.
type TreasuryConfig struct {
	Admin       string `json:"admin"`
	Threshold   uint32 `json:"threshold"`
	SignerCount uint32 `json:"signer_count"`
	Balance     int64  `json:"balance,string"` // stroops (i128 on chain)
	TxCount     uint64 `json:"tx_count"`
}

// TreasuryTransaction is a withdrawal awaiting (or past) multi-signature approval.
type TreasuryTransaction struct {
	ID        uint64 `json:"id"`
	Proposer  string `json:"proposer"`
	To        string `json:"to"`
	Amount    int64  `json:"amount,string"` // stroops
	Memo      string `json:"memo"`
	Approvals uint32 `json:"approvals"`
	Threshold uint32 `json:"threshold"`
	Executed  bool   `json:"executed"`
	CreatedAt uint32 `json:"created_at"` // ledger sequence
}

// Ready reports whether the transaction has enough approvals to execute.
func (t *TreasuryTransaction) Ready() bool {
	return !t.Executed && t.Approvals >= t.Threshold
}
