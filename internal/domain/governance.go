package domain

// GovernanceConfig mirrors the governance contract's get_config result.
type GovernanceConfig struct {
	Admin         string `json:"admin"`
	MemberCount   uint32 `json:"member_count"`
	QuorumPercent uint32 `json:"quorum_percent"`
	VotingPeriod  uint32 `json:"voting_period"` // ledgers
	ProposalCount uint64 `json:"proposal_count"`
}

// ProposalStatus is the lifecycle status of a governance proposal.
type ProposalStatus string

// Proposal statuses as reported by the governance contract.
const (
	ProposalActive   ProposalStatus = "Active"
	ProposalPassed   ProposalStatus = "Passed"
	ProposalRejected ProposalStatus = "Rejected"
	ProposalExecuted ProposalStatus = "Executed"
	ProposalExpired  ProposalStatus = "Expired"
)

// Valid reports whether s is one of the five known statuses.
func (s ProposalStatus) Valid() bool {
	switch s {
	case ProposalActive, ProposalPassed, ProposalRejected, ProposalExecuted, ProposalExpired:
		return true
	}
	return false
}

// Proposal is a vote-gated decision record.
type Proposal struct {
	ID           uint64         `json:"id"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	Action       string         `json:"action"`
	Amount       int64          `json:"amount,string"` // stroops
	Target       string         `json:"target"`
	Proposer     string         `json:"proposer"`
	VotesFor     uint32         `json:"votes_for"`
	VotesAgainst uint32         `json:"votes_against"`
	Status       ProposalStatus `json:"status"`
	CreatedAt    uint32         `json:"created_at"` // ledger sequence
	EndsAt       uint32         `json:"ends_at"`    // ledger sequence
}

// TotalVotes returns the number of votes cast.
func (p *Proposal) TotalVotes() uint32 {
	return p.VotesFor + p.VotesAgainst
}

// VotingClosed reports whether no more votes are accepted at the given ledger.
func (p *Proposal) VotingClosed(ledger uint32) bool {
	if p.Status != ProposalActive {
		return true
	}
	return p.EndsAt > 0 && ledger > p.EndsAt
}

// QuorumReached reports whether enough members voted for the proposal to be decided.
func (p *Proposal) QuorumReached(memberCount, quorumPercent uint32) bool {
	if memberCount == 0 {
		return false
	}
	return uint64(p.TotalVotes())*100 >= uint64(memberCount)*uint64(quorumPercent)
}
