package contracts

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"soroban-dao/internal/domain"
	"soroban-dao/internal/soroban"
	"soroban-dao/internal/txn"
)

// Governance is a client for the DAO governance contract.
type Governance struct {
	inv *Invoker
	id  string
}

// NewGovernance creates a governance client.
func NewGovernance(inv *Invoker, contractID string) *Governance {
	return &Governance{inv: inv, id: contractID}
}

// ContractID returns the governance contract id.
func (g *Governance) ContractID() string {
	return g.id
}

func (g *Governance) read(ctx context.Context, method string, out interface{}, args ...soroban.Arg) error {
	return g.inv.Read(ctx, soroban.Invocation{ContractID: g.id, Method: method, Args: args}, out)
}

// GetConfig returns the governance configuration.
func (g *Governance) GetConfig(ctx context.Context) (*domain.GovernanceConfig, error) {
	var cfg domain.GovernanceConfig
	if err := g.read(ctx, "get_config", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// GetProposal returns a proposal by id.
func (g *Governance) GetProposal(ctx context.Context, id uint64) (*domain.Proposal, error) {
	var p domain.Proposal
	if err := g.read(ctx, "get_proposal", &p, soroban.U64(id)); err != nil {
		return nil, err
	}
	if !p.Status.Valid() {
		return nil, txn.NewOpError(domain.KindInvalidInput, domain.StateUnsigned, "get_proposal",
			fmt.Errorf("unknown proposal status %q", p.Status))
	}
	return &p, nil
}

// ListProposals returns all proposals ordered by id.
func (g *Governance) ListProposals(ctx context.Context) ([]*domain.Proposal, error) {
	cfg, err := g.GetConfig(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireListCount("list_proposals", cfg.ProposalCount); err != nil {
		return nil, err
	}

	var (
		mu  sync.Mutex
		out []*domain.Proposal
	)

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(listConcurrency)
	for id := uint64(1); id <= cfg.ProposalCount; id++ {
		id := id
		eg.Go(func() error {
			p, err := g.GetProposal(gctx, id)
			if errors.Is(err, txn.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			mu.Lock()
			out = append(out, p)
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// HasVoted reports whether voter has voted on a proposal.
func (g *Governance) HasVoted(ctx context.Context, proposalID uint64, voter string) (bool, error) {
	if err := requireAddress("has_voted", voter); err != nil {
		return false, err
	}
	var voted bool
	if err := g.read(ctx, "has_voted", &voted, soroban.U64(proposalID), soroban.Address(voter)); err != nil {
		return false, err
	}
	return voted, nil
}

// GetMembers returns the DAO member addresses.
func (g *Governance) GetMembers(ctx context.Context) ([]string, error) {
	var members []string
	if err := g.read(ctx, "get_members", &members); err != nil {
		return nil, err
	}
	return members, nil
}

// ProposalInput describes a new proposal.
type ProposalInput struct {
	Title       string
	Description string
	Action      string
	Amount      int64 // stroops, 0 for actions that move no funds
	Target      string
}

// CreateProposal opens a proposal from the connected member and returns its id.
func (g *Governance) CreateProposal(ctx context.Context, in ProposalInput) (uint64, *txn.Receipt, error) {
	const method = "create_proposal"
	if in.Title == "" {
		return 0, nil, invalid(method, "title is required")
	}
	if in.Amount < 0 {
		return 0, nil, invalid(method, "amount must not be negative, got %d", in.Amount)
	}
	if in.Target != "" {
		if err := requireAddress(method, in.Target); err != nil {
			return 0, nil, err
		}
	}

	var id uint64
	receipt, err := g.inv.Invoke(ctx, g.id, method, &id, func(source string) []soroban.Arg {
		return []soroban.Arg{
			soroban.Address(source),
			soroban.String(in.Title),
			soroban.String(in.Description),
			soroban.Symbol(in.Action),
			soroban.I128(in.Amount),
			soroban.String(in.Target),
		}
	})
	return id, receipt, err
}

// Vote casts the connected member's vote.
func (g *Governance) Vote(ctx context.Context, proposalID uint64, support bool) (*txn.Receipt, error) {
	return g.inv.Invoke(ctx, g.id, "vote", nil, func(source string) []soroban.Arg {
		return []soroban.Arg{soroban.Address(source), soroban.U64(proposalID), soroban.Bool(support)}
	})
}

// Finalize closes voting on a proposal and returns its resulting status.
func (g *Governance) Finalize(ctx context.Context, proposalID uint64) (domain.ProposalStatus, *txn.Receipt, error) {
	var status domain.ProposalStatus
	receipt, err := g.inv.Invoke(ctx, g.id, "finalize", &status, func(source string) []soroban.Arg {
		return []soroban.Arg{soroban.Address(source), soroban.U64(proposalID)}
	})
	return status, receipt, err
}

// ExecuteProposal carries out a passed proposal.
func (g *Governance) ExecuteProposal(ctx context.Context, proposalID uint64) (*txn.Receipt, error) {
	return g.inv.Invoke(ctx, g.id, "execute", nil, func(source string) []soroban.Arg {
		return []soroban.Arg{soroban.Address(source), soroban.U64(proposalID)}
	})
}
