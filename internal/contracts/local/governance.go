package local

import (
	"sync"

	"soroban-dao/internal/domain"
	"soroban-dao/internal/soroban/stub"
)

// Governance error codes.
const (
	govNotMember         = 4
	govProposalNotFound  = 5
	govVotingClosed      = 6
	govAlreadyVoted      = 7
	govVotingNotEnded    = 8
	govProposalNotPassed = 9
	govAlreadyExecuted   = 10
)

// Governance is an in-memory DAO governance contract.
type Governance struct {
	mu        sync.Mutex
	admin     string
	members   []string
	quorum    uint32
	period    uint32
	proposals map[uint64]*domain.Proposal
	votes     map[uint64]map[string]bool
	counter   uint64
}

// NewGovernance creates a governance contract from genesis.
func NewGovernance(g Genesis) *Governance {
	period := g.VotingPeriod
	if period == 0 {
		period = 17280 // about a day of 5s ledgers
	}
	return &Governance{
		admin:     g.Admin,
		members:   append([]string(nil), g.Members...),
		quorum:    g.QuorumPercent,
		period:    period,
		proposals: make(map[uint64]*domain.Proposal),
		votes:     make(map[uint64]map[string]bool),
	}
}

// Handle executes a contract call. State changes only when call.Commit.
func (g *Governance) Handle(call stub.Call) (interface{}, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	r := newArgReader(call.Args)
	switch call.Method {
	case "get_config":
		return domain.GovernanceConfig{
			Admin:         g.admin,
			MemberCount:   uint32(len(g.members)),
			QuorumPercent: g.quorum,
			VotingPeriod:  g.period,
			ProposalCount: g.counter,
		}, nil

	case "get_proposal":
		id := r.u64()
		if r.err != nil {
			return nil, r.err
		}
		p, ok := g.proposals[id]
		if !ok {
			return nil, contractError(govProposalNotFound)
		}
		return *p, nil

	case "has_voted":
		id, voter := r.u64(), r.address()
		if r.err != nil {
			return nil, r.err
		}
		if _, ok := g.proposals[id]; !ok {
			return nil, contractError(govProposalNotFound)
		}
		_, voted := g.votes[id][voter]
		return voted, nil

	case "get_members":
		return append([]string{}, g.members...), nil

	case "create_proposal":
		proposer := r.address()
		title, description, action, amt, target := r.str(), r.str(), r.symbol(), r.i128(), r.str()
		if r.err != nil {
			return nil, r.err
		}
		if proposer != call.Source || !contains(g.members, proposer) {
			return nil, contractError(govNotMember)
		}
		id := g.counter + 1
		if call.Commit {
			g.counter = id
			g.proposals[id] = &domain.Proposal{
				ID:          id,
				Title:       title,
				Description: description,
				Action:      action,
				Amount:      amt,
				Target:      target,
				Proposer:    proposer,
				Status:      domain.ProposalActive,
				CreatedAt:   call.Ledger,
				EndsAt:      call.Ledger + g.period,
			}
			g.votes[id] = make(map[string]bool)
		}
		return id, nil

	case "vote":
		voter, id, support := r.address(), r.u64(), r.boolean()
		if r.err != nil {
			return nil, r.err
		}
		if voter != call.Source || !contains(g.members, voter) {
			return nil, contractError(govNotMember)
		}
		p, ok := g.proposals[id]
		if !ok {
			return nil, contractError(govProposalNotFound)
		}
		if p.VotingClosed(call.Ledger) {
			return nil, contractError(govVotingClosed)
		}
		if _, voted := g.votes[id][voter]; voted {
			return nil, contractError(govAlreadyVoted)
		}
		if call.Commit {
			g.votes[id][voter] = support
			if support {
				p.VotesFor++
			} else {
				p.VotesAgainst++
			}
		}
		return nil, nil

	case "finalize":
		_, id := r.address(), r.u64()
		if r.err != nil {
			return nil, r.err
		}
		p, ok := g.proposals[id]
		if !ok {
			return nil, contractError(govProposalNotFound)
		}
		if p.Status != domain.ProposalActive {
			return nil, contractError(govVotingClosed)
		}
		// Voting may end early once every member has voted.
		if call.Ledger <= p.EndsAt && int(p.TotalVotes()) < len(g.members) {
			return nil, contractError(govVotingNotEnded)
		}
		status := domain.ProposalRejected
		if p.QuorumReached(uint32(len(g.members)), g.quorum) && p.VotesFor > p.VotesAgainst {
			status = domain.ProposalPassed
		}
		if call.Commit {
			p.Status = status
		}
		return status, nil

	case "execute":
		_, id := r.address(), r.u64()
		if r.err != nil {
			return nil, r.err
		}
		p, ok := g.proposals[id]
		if !ok {
			return nil, contractError(govProposalNotFound)
		}
		if p.Status == domain.ProposalExecuted {
			return nil, contractError(govAlreadyExecuted)
		}
		if p.Status != domain.ProposalPassed {
			return nil, contractError(govProposalNotPassed)
		}
		if call.Commit {
			p.Status = domain.ProposalExecuted
		}
		return nil, nil
	}
	return nil, errUnknownMethod
}
