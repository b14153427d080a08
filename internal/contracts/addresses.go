package contracts

// Addresses holds the deployed contract IDs.
type Addresses struct {
	Treasury      string
	Governance    string
	TokenVault    string
	AccessControl string
}

// Contract names used in logs, activity records and reports.
const (
	NameTreasury      = "treasury"
	NameGovernance    = "governance"
	NameTokenVault    = "token_vault"
	NameAccessControl = "access_control"
)

// Name returns the short name of a known contract, or the id itself.
func (a Addresses) Name(contractID string) string {
	switch contractID {
	case "":
		return ""
	case a.Treasury:
		return NameTreasury
	case a.Governance:
		return NameGovernance
	case a.TokenVault:
		return NameTokenVault
	case a.AccessControl:
		return NameAccessControl
	}
	return contractID
}

// ID resolves a contract name to its id. Unknown names are returned as is,
// so ids pass through.
func (a Addresses) ID(name string) string {
	switch name {
	case NameTreasury:
		return a.Treasury
	case NameGovernance:
		return a.Governance
	case NameTokenVault:
		return a.TokenVault
	case NameAccessControl:
		return a.AccessControl
	}
	return name
}

// IDs returns the configured contract IDs, skipping empty ones.
func (a Addresses) IDs() []string {
	var ids []string
	for _, id := range []string{a.Treasury, a.Governance, a.TokenVault, a.AccessControl} {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// ErrorName resolves a contract error code raised by contractID.
// Returns "" for unknown contracts or codes.
func (a Addresses) ErrorName(contractID string, code uint32) string {
	var table map[uint32]string
	switch a.Name(contractID) {
	case NameTreasury:
		table = TreasuryErrors
	case NameGovernance:
		table = GovernanceErrors
	case NameTokenVault:
		table = VaultErrors
	}
	return table[code]
}

// TreasuryErrors maps treasury contract error codes to names.
var TreasuryErrors = map[uint32]string{
	1: "NotInitialized",
	2: "AlreadyInitialized",
	3: "Unauthorized",
	4: "InvalidAmount",
	5: "InsufficientBalance",
	6: "TransactionNotFound",
	7: "AlreadyApproved",
	8: "AlreadyExecuted",
	9: "ThresholdNotMet",
}

// GovernanceErrors maps governance contract error codes to names.
var GovernanceErrors = map[uint32]string{
	1:  "NotInitialized",
	2:  "AlreadyInitialized",
	3:  "Unauthorized",
	4:  "NotMember",
	5:  "ProposalNotFound",
	6:  "VotingClosed",
	7:  "AlreadyVoted",
	8:  "VotingNotEnded",
	9:  "ProposalNotPassed",
	10: "AlreadyExecuted",
}

// VaultErrors maps token vault contract error codes to names.
var VaultErrors = map[uint32]string{
	1:  "NotInitialized",
	2:  "AlreadyInitialized",
	3:  "Unauthorized",
	4:  "InvalidAmount",
	5:  "InvalidDuration",
	6:  "LockNotFound",
	7:  "LockStillActive",
	8:  "AlreadyClaimed",
	9:  "EmergencyNotApproved",
	10: "VestingNotFound",
	11: "NothingToClaim",
	12: "AlreadyApprovedEmergency",
}
