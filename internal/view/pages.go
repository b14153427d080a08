package view

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"soroban-dao/internal/domain"
	"soroban-dao/internal/session"
)

// TreasuryReader is the read side of the treasury client.
type TreasuryReader interface {
	GetConfig(ctx context.Context) (*domain.TreasuryConfig, error)
	ListTransactions(ctx context.Context) ([]*domain.TreasuryTransaction, error)
}

// GovernanceReader is the read side of the governance client.
type GovernanceReader interface {
	GetConfig(ctx context.Context) (*domain.GovernanceConfig, error)
	GetProposal(ctx context.Context, id uint64) (*domain.Proposal, error)
	ListProposals(ctx context.Context) ([]*domain.Proposal, error)
	HasVoted(ctx context.Context, proposalID uint64, voter string) (bool, error)
}

// Loader assembles page models from contract reads. Reads for one page run
// concurrently and the first failure cancels the rest.
type Loader struct {
	Treasury   TreasuryReader
	Governance GovernanceReader
	Session    session.View
}

// Dashboard is the landing page summary.
type Dashboard struct {
	Balance         string `json:"balance"`
	BalanceStroops  int64  `json:"balance_stroops,string"`
	ActiveProposals int    `json:"active_proposals"`
	SignerCount     uint32 `json:"signer_count"`
	Threshold       uint32 `json:"threshold"`
	MemberCount     uint32 `json:"member_count"`
	Wallet          Button `json:"wallet"`
}

// Dashboard loads the landing page summary.
func (l *Loader) Dashboard(ctx context.Context) (*Dashboard, error) {
	var (
		tcfg      *domain.TreasuryConfig
		gcfg      *domain.GovernanceConfig
		proposals []*domain.Proposal
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		tcfg, err = l.Treasury.GetConfig(gctx)
		return err
	})
	g.Go(func() (err error) {
		gcfg, err = l.Governance.GetConfig(gctx)
		return err
	})
	g.Go(func() (err error) {
		proposals, err = l.Governance.ListProposals(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	active := 0
	for _, p := range proposals {
		if p.Status == domain.ProposalActive {
			active++
		}
	}
	return &Dashboard{
		Balance:         FormatStroops(tcfg.Balance),
		BalanceStroops:  tcfg.Balance,
		ActiveProposals: active,
		SignerCount:     tcfg.SignerCount,
		Threshold:       tcfg.Threshold,
		MemberCount:     gcfg.MemberCount,
		Wallet:          l.walletButton(),
	}, nil
}

// TxRow is a treasury transaction prepared for display.
type TxRow struct {
	ID        uint64 `json:"id"`
	To        string `json:"to"`
	ToShort   string `json:"to_short"`
	Amount    string `json:"amount"`
	Memo      string `json:"memo,omitempty"`
	Approvals string `json:"approvals"`
	Status    Badge  `json:"status"`
	CanAct    bool   `json:"can_act"`
}

// NewTxRow formats a treasury transaction.
func NewTxRow(tx *domain.TreasuryTransaction) TxRow {
	return TxRow{
		ID:        tx.ID,
		To:        tx.To,
		ToShort:   TruncateAddress(tx.To),
		Amount:    FormatStroops(tx.Amount),
		Memo:      tx.Memo,
		Approvals: fmt.Sprintf("%d/%d", tx.Approvals, tx.Threshold),
		Status:    TxBadge(tx),
		CanAct:    !tx.Executed,
	}
}

// TreasuryPage lists pending and executed transactions.
type TreasuryPage struct {
	Balance   string  `json:"balance"`
	Threshold string  `json:"threshold"`
	Pending   []TxRow `json:"pending"`
	History   []TxRow `json:"history"`
}

// TreasuryPage loads the treasury page.
func (l *Loader) TreasuryPage(ctx context.Context) (*TreasuryPage, error) {
	var (
		cfg *domain.TreasuryConfig
		txs []*domain.TreasuryTransaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		cfg, err = l.Treasury.GetConfig(gctx)
		return err
	})
	g.Go(func() (err error) {
		txs, err = l.Treasury.ListTransactions(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	page := &TreasuryPage{
		Balance:   FormatStroops(cfg.Balance),
		Threshold: fmt.Sprintf("%d of %d", cfg.Threshold, cfg.SignerCount),
		Pending:   []TxRow{},
		History:   []TxRow{},
	}
	for _, tx := range txs {
		row := NewTxRow(tx)
		if tx.Executed {
			page.History = append(page.History, row)
		} else {
			page.Pending = append(page.Pending, row)
		}
	}
	return page, nil
}

// ProposalCard is a proposal prepared for display.
type ProposalCard struct {
	ID           uint64  `json:"id"`
	Title        string  `json:"title"`
	Description  string  `json:"description,omitempty"`
	Status       Badge   `json:"status"`
	Proposer     string  `json:"proposer"`
	VotesFor     uint32  `json:"votes_for"`
	VotesAgainst uint32  `json:"votes_against"`
	Turnout      string  `json:"turnout"`
	ForPercent   float64 `json:"for_percent"`
	Amount       string  `json:"amount,omitempty"`
	VoteFor      *Button `json:"vote_for,omitempty"`
	VoteAgainst  *Button `json:"vote_against,omitempty"`
	VotingClosed bool    `json:"voting_closed"`
	HasVoted     bool    `json:"has_voted"`
}

// NewProposalCard formats a proposal. ledger is the current ledger, 0 if unknown.
func NewProposalCard(p *domain.Proposal, memberCount, ledger uint32) ProposalCard {
	card := ProposalCard{
		ID:           p.ID,
		Title:        p.Title,
		Description:  p.Description,
		Status:       ProposalBadge(p.Status),
		Proposer:     TruncateAddress(p.Proposer),
		VotesFor:     p.VotesFor,
		VotesAgainst: p.VotesAgainst,
		Turnout:      fmt.Sprintf("%d/%d voted", p.TotalVotes(), memberCount),
		ForPercent:   ForPercent(p.VotesFor, p.VotesAgainst),
		VotingClosed: p.VotingClosed(ledger),
	}
	if p.Amount > 0 {
		card.Amount = FormatStroops(p.Amount)
	}
	return card
}

// Proposals loads the governance page cards. When a wallet is connected
// each card carries the vote buttons for that account.
func (l *Loader) Proposals(ctx context.Context, ledger uint32) ([]ProposalCard, error) {
	var (
		cfg       *domain.GovernanceConfig
		proposals []*domain.Proposal
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		cfg, err = l.Governance.GetConfig(gctx)
		return err
	})
	g.Go(func() (err error) {
		proposals, err = l.Governance.ListProposals(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	cards := make([]ProposalCard, len(proposals))
	for i, p := range proposals {
		cards[i] = NewProposalCard(p, cfg.MemberCount, ledger)
	}

	voter, ok := l.voter()
	if !ok {
		return cards, nil
	}
	g, gctx = errgroup.WithContext(ctx)
	for i := range cards {
		card := &cards[i]
		g.Go(func() error {
			voted, err := l.Governance.HasVoted(gctx, card.ID, voter)
			if err != nil {
				return err
			}
			card.withVoteButtons(voted)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return cards, nil
}

// ProposalDetail loads one proposal card.
func (l *Loader) ProposalDetail(ctx context.Context, id uint64, ledger uint32) (*ProposalCard, error) {
	var (
		cfg   *domain.GovernanceConfig
		p     *domain.Proposal
		voted bool
	)
	voter, connected := l.voter()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		cfg, err = l.Governance.GetConfig(gctx)
		return err
	})
	g.Go(func() (err error) {
		p, err = l.Governance.GetProposal(gctx, id)
		return err
	})
	if connected {
		g.Go(func() (err error) {
			voted, err = l.Governance.HasVoted(gctx, id, voter)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	card := NewProposalCard(p, cfg.MemberCount, ledger)
	if connected {
		card.withVoteButtons(voted)
	}
	return &card, nil
}

func (c *ProposalCard) withVoteButtons(voted bool) {
	yes := VoteButton(true, voted, c.VotingClosed)
	no := VoteButton(false, voted, c.VotingClosed)
	c.VoteFor, c.VoteAgainst = &yes, &no
	c.HasVoted = voted
}

func (l *Loader) voter() (string, bool) {
	if l.Session == nil {
		return "", false
	}
	s := l.Session.Snapshot()
	return s.Address, s.Connected()
}

func (l *Loader) walletButton() Button {
	if l.Session == nil {
		return WalletButton(session.Snapshot{Installed: true})
	}
	return WalletButton(l.Session.Snapshot())
}
