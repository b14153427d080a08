package view

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"soroban-dao/internal/domain"
	"soroban-dao/internal/session"
)

type mockTreasury struct {
	mock.Mock
}

func (m *mockTreasury) GetConfig(ctx context.Context) (*domain.TreasuryConfig, error) {
	args := m.Called(ctx)
	cfg, _ := args.Get(0).(*domain.TreasuryConfig)
	return cfg, args.Error(1)
}

func (m *mockTreasury) ListTransactions(ctx context.Context) ([]*domain.TreasuryTransaction, error) {
	args := m.Called(ctx)
	txs, _ := args.Get(0).([]*domain.TreasuryTransaction)
	return txs, args.Error(1)
}

type mockGovernance struct {
	mock.Mock
}

func (m *mockGovernance) GetConfig(ctx context.Context) (*domain.GovernanceConfig, error) {
	args := m.Called(ctx)
	cfg, _ := args.Get(0).(*domain.GovernanceConfig)
	return cfg, args.Error(1)
}

func (m *mockGovernance) GetProposal(ctx context.Context, id uint64) (*domain.Proposal, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*domain.Proposal)
	return p, args.Error(1)
}

func (m *mockGovernance) ListProposals(ctx context.Context) ([]*domain.Proposal, error) {
	args := m.Called(ctx)
	ps, _ := args.Get(0).([]*domain.Proposal)
	return ps, args.Error(1)
}

func (m *mockGovernance) HasVoted(ctx context.Context, id uint64, voter string) (bool, error) {
	args := m.Called(ctx, id, voter)
	return args.Bool(0), args.Error(1)
}

type fixedSession session.Snapshot

func (f fixedSession) Snapshot() session.Snapshot { return session.Snapshot(f) }

func (f fixedSession) Subscribe() (<-chan session.Snapshot, func()) {
	ch := make(chan session.Snapshot)
	return ch, func() {}
}

const voter = "GVOTERAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

var anyCtx = mock.Anything

func proposals() []*domain.Proposal {
	return []*domain.Proposal{
		{ID: 1, Title: "Audit", Proposer: "GPROPOSERXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXX1234", Status: domain.ProposalActive, VotesFor: 3, VotesAgainst: 1, EndsAt: 2000, Amount: 50_000_000},
		{ID: 2, Title: "Rename", Status: domain.ProposalExecuted, VotesFor: 4},
	}
}

func TestLoader_Dashboard(t *testing.T) {
	tr, gov := new(mockTreasury), new(mockGovernance)
	tr.On("GetConfig", anyCtx).Return(&domain.TreasuryConfig{Balance: 1_234_500_000, SignerCount: 3, Threshold: 2}, nil)
	gov.On("GetConfig", anyCtx).Return(&domain.GovernanceConfig{MemberCount: 5}, nil)
	gov.On("ListProposals", anyCtx).Return(proposals(), nil)

	l := &Loader{Treasury: tr, Governance: gov, Session: fixedSession{Installed: true}}
	d, err := l.Dashboard(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "123.45", d.Balance)
	assert.Equal(t, 1, d.ActiveProposals)
	assert.Equal(t, uint32(3), d.SignerCount)
	assert.Equal(t, uint32(5), d.MemberCount)
	assert.Equal(t, "Connect Wallet", d.Wallet.Label)
}

func TestLoader_DashboardPropagatesErrors(t *testing.T) {
	boom := errors.New("rpc down")
	tr, gov := new(mockTreasury), new(mockGovernance)
	tr.On("GetConfig", anyCtx).Return(nil, boom)
	gov.On("GetConfig", anyCtx).Return(&domain.GovernanceConfig{}, nil).Maybe()
	gov.On("ListProposals", anyCtx).Return(nil, nil).Maybe()

	l := &Loader{Treasury: tr, Governance: gov}
	_, err := l.Dashboard(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestLoader_TreasuryPage(t *testing.T) {
	tr := new(mockTreasury)
	tr.On("GetConfig", anyCtx).Return(&domain.TreasuryConfig{Balance: 50_000_000, SignerCount: 3, Threshold: 2}, nil)
	tr.On("ListTransactions", anyCtx).Return([]*domain.TreasuryTransaction{
		{ID: 1, To: "GDESTINATIONXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXWXYZ", Amount: 20_000_000, Approvals: 2, Threshold: 2, Executed: true},
		{ID: 2, To: "GSHORT", Amount: 5_000_000, Approvals: 2, Threshold: 2, Memo: "rent"},
		{ID: 3, To: "GSHORT", Amount: 1, Approvals: 0, Threshold: 2},
	}, nil)

	l := &Loader{Treasury: tr}
	page, err := l.TreasuryPage(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "5.00", page.Balance)
	assert.Equal(t, "2 of 3", page.Threshold)
	require.Len(t, page.History, 1)
	assert.Equal(t, "GDESTI...WXYZ", page.History[0].ToShort)
	assert.Equal(t, TxExecuted, page.History[0].Status.Label)
	assert.False(t, page.History[0].CanAct)

	require.Len(t, page.Pending, 2)
	assert.Equal(t, TxReady, page.Pending[0].Status.Label)
	assert.Equal(t, "0.50", page.Pending[0].Amount)
	assert.Equal(t, "2/2", page.Pending[0].Approvals)
	assert.Equal(t, TxPending, page.Pending[1].Status.Label)
}

func TestLoader_ProposalsDisconnected(t *testing.T) {
	gov := new(mockGovernance)
	gov.On("GetConfig", anyCtx).Return(&domain.GovernanceConfig{MemberCount: 5}, nil)
	gov.On("ListProposals", anyCtx).Return(proposals(), nil)

	l := &Loader{Governance: gov, Session: fixedSession{Installed: true}}
	cards, err := l.Proposals(context.Background(), 1500)
	require.NoError(t, err)
	require.Len(t, cards, 2)

	c := cards[0]
	assert.Equal(t, float64(75), c.ForPercent)
	assert.Equal(t, "4/5 voted", c.Turnout)
	assert.Equal(t, "GPROPO...1234", c.Proposer)
	assert.Equal(t, "5.00", c.Amount)
	assert.Equal(t, ToneGreen, c.Status.Tone)
	assert.False(t, c.VotingClosed)
	assert.Nil(t, c.VoteFor)

	assert.True(t, cards[1].VotingClosed)
	gov.AssertNotCalled(t, "HasVoted", anyCtx, mock.Anything, mock.Anything)
}

func TestLoader_ProposalsConnected(t *testing.T) {
	gov := new(mockGovernance)
	gov.On("GetConfig", anyCtx).Return(&domain.GovernanceConfig{MemberCount: 5}, nil)
	gov.On("ListProposals", anyCtx).Return(proposals(), nil)
	gov.On("HasVoted", anyCtx, uint64(1), voter).Return(false, nil)
	gov.On("HasVoted", anyCtx, uint64(2), voter).Return(true, nil)

	l := &Loader{Governance: gov, Session: fixedSession{Installed: true, Address: voter}}
	cards, err := l.Proposals(context.Background(), 2001)
	require.NoError(t, err)
	require.Len(t, cards, 2)

	// Ledger is past EndsAt, so voting on #1 is closed.
	assert.True(t, cards[0].VotingClosed)
	assert.Equal(t, "Voting Closed", cards[0].VoteFor.Label)
	assert.True(t, cards[0].VoteFor.Disabled)

	assert.True(t, cards[1].HasVoted)
	assert.Equal(t, "Already Voted", cards[1].VoteAgainst.Label)
	gov.AssertExpectations(t)
}

func TestLoader_ProposalDetail(t *testing.T) {
	gov := new(mockGovernance)
	gov.On("GetConfig", anyCtx).Return(&domain.GovernanceConfig{MemberCount: 4}, nil)
	gov.On("GetProposal", anyCtx, uint64(1)).Return(proposals()[0], nil)
	gov.On("HasVoted", anyCtx, uint64(1), voter).Return(false, nil)

	l := &Loader{Governance: gov, Session: fixedSession{Installed: true, Address: voter}}
	card, err := l.ProposalDetail(context.Background(), 1, 1500)
	require.NoError(t, err)

	assert.Equal(t, "4/4 voted", card.Turnout)
	assert.Equal(t, Button{Label: "Vote For"}, *card.VoteFor)
	assert.Equal(t, Button{Label: "Vote Against"}, *card.VoteAgainst)
}
