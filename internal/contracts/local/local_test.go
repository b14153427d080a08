package local

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soroban-dao/internal/domain"
	"soroban-dao/internal/soroban"
	"soroban-dao/internal/soroban/stub"
)

const (
	alice = "GALICE"
	bob   = "GBOB"
	carol = "GCAROL"
)

func commit(source, method string, ledger uint32, args ...soroban.Arg) stub.Call {
	return stub.Call{Source: source, Method: method, Args: args, Commit: true, Ledger: ledger, Timestamp: 1_700_000_000}
}

func simulate(source, method string, args ...soroban.Arg) stub.Call {
	return stub.Call{Source: source, Method: method, Args: args, Ledger: 1000, Timestamp: 1_700_000_000}
}

func requireCode(t *testing.T, err error, code uint32) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, contractError(code).Error(), err.Error())
}

func TestTreasury_WithdrawalFlow(t *testing.T) {
	tr := NewTreasury(Genesis{Admin: alice, Signers: []string{alice, bob, carol}, Threshold: 2, Balance: 1000})

	// Simulation returns the next id without storing anything.
	id, err := tr.Handle(simulate(alice, "propose_withdrawal", soroban.Address(alice), soroban.Address(carol), soroban.I128(400), soroban.String("rent")))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)
	_, err = tr.Handle(simulate(alice, "get_transaction", soroban.U64(1)))
	requireCode(t, err, treasuryTxNotFound)

	id, err = tr.Handle(commit(alice, "propose_withdrawal", 1001, soroban.Address(alice), soroban.Address(carol), soroban.I128(400), soroban.String("rent")))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)

	_, err = tr.Handle(commit(alice, "execute", 1002, soroban.Address(alice), soroban.U64(1)))
	requireCode(t, err, treasuryThresholdNotMet)

	_, err = tr.Handle(commit(alice, "approve", 1002, soroban.Address(alice), soroban.U64(1)))
	require.NoError(t, err)
	_, err = tr.Handle(commit(alice, "approve", 1003, soroban.Address(alice), soroban.U64(1)))
	requireCode(t, err, treasuryAlreadyApproved)
	_, err = tr.Handle(commit(bob, "approve", 1003, soroban.Address(bob), soroban.U64(1)))
	require.NoError(t, err)

	_, err = tr.Handle(commit(bob, "execute", 1004, soroban.Address(bob), soroban.U64(1)))
	require.NoError(t, err)
	assert.Equal(t, int64(600), tr.Balance())

	got, err := tr.Handle(simulate(alice, "get_transaction", soroban.U64(1)))
	require.NoError(t, err)
	tx := got.(domain.TreasuryTransaction)
	assert.True(t, tx.Executed)
	assert.Equal(t, uint32(2), tx.Approvals)
	assert.Equal(t, uint32(1001), tx.CreatedAt)

	_, err = tr.Handle(commit(carol, "approve", 1005, soroban.Address(carol), soroban.U64(1)))
	requireCode(t, err, treasuryAlreadyExecuted)
}

func TestTreasury_Rejections(t *testing.T) {
	tr := NewTreasury(Genesis{Signers: []string{alice}, Threshold: 1, Balance: 100})

	_, err := tr.Handle(commit(bob, "propose_withdrawal", 1001, soroban.Address(bob), soroban.Address(carol), soroban.I128(10), soroban.String("")))
	requireCode(t, err, treasuryUnauthorized)

	_, err = tr.Handle(commit(alice, "propose_withdrawal", 1001, soroban.Address(alice), soroban.Address(carol), soroban.I128(101), soroban.String("")))
	requireCode(t, err, treasuryInsufficientBalance)

	_, err = tr.Handle(commit(bob, "deposit", 1001, soroban.Address(bob), soroban.I128(0)))
	requireCode(t, err, treasuryInvalidAmount)

	// Signing for someone else is refused.
	_, err = tr.Handle(commit(bob, "deposit", 1001, soroban.Address(alice), soroban.I128(5)))
	requireCode(t, err, treasuryUnauthorized)

	_, err = tr.Handle(commit(bob, "deposit", 1001, soroban.Address(bob), soroban.I128(5)))
	require.NoError(t, err)
	assert.Equal(t, int64(105), tr.Balance())

	_, err = tr.Handle(simulate(alice, "get_transaction"))
	require.Error(t, err)

	_, err = tr.Handle(simulate(alice, "get_transaction", soroban.String("1")))
	require.Error(t, err)

	_, err = tr.Handle(simulate(alice, "burn"))
	assert.Equal(t, errUnknownMethod, err)
}

func TestTreasury_SignersAreCopied(t *testing.T) {
	tr := NewTreasury(Genesis{Signers: []string{alice, bob}})

	got, err := tr.Handle(simulate(alice, "get_signers"))
	require.NoError(t, err)
	signers := got.([]string)
	signers[0] = carol

	got, err = tr.Handle(simulate(alice, "get_signers"))
	require.NoError(t, err)
	assert.Equal(t, []string{alice, bob}, got)
}

func TestGovernance_ProposalPasses(t *testing.T) {
	g := NewGovernance(Genesis{Members: []string{alice, bob, carol}, QuorumPercent: 50, VotingPeriod: 10})

	id, err := g.Handle(commit(alice, "create_proposal", 1000,
		soroban.Address(alice), soroban.String("Fund audit"), soroban.String("Pay the auditors"),
		soroban.Symbol("transfer"), soroban.I128(500), soroban.String(carol)))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)

	_, err = g.Handle(commit(alice, "vote", 1001, soroban.Address(alice), soroban.U64(1), soroban.Bool(true)))
	require.NoError(t, err)
	_, err = g.Handle(commit(alice, "vote", 1002, soroban.Address(alice), soroban.U64(1), soroban.Bool(false)))
	requireCode(t, err, govAlreadyVoted)
	_, err = g.Handle(commit(bob, "vote", 1002, soroban.Address(bob), soroban.U64(1), soroban.Bool(true)))
	require.NoError(t, err)

	voted, err := g.Handle(simulate(carol, "has_voted", soroban.U64(1), soroban.Address(bob)))
	require.NoError(t, err)
	assert.Equal(t, true, voted)

	// Carol has not voted and the period is still open.
	_, err = g.Handle(commit(alice, "finalize", 1005, soroban.Address(alice), soroban.U64(1)))
	requireCode(t, err, govVotingNotEnded)

	_, err = g.Handle(commit(alice, "execute", 1005, soroban.Address(alice), soroban.U64(1)))
	requireCode(t, err, govProposalNotPassed)

	status, err := g.Handle(commit(alice, "finalize", 1011, soroban.Address(alice), soroban.U64(1)))
	require.NoError(t, err)
	assert.Equal(t, domain.ProposalPassed, status)

	_, err = g.Handle(commit(bob, "vote", 1012, soroban.Address(carol), soroban.U64(1), soroban.Bool(true)))
	requireCode(t, err, govNotMember)
	_, err = g.Handle(commit(carol, "vote", 1012, soroban.Address(carol), soroban.U64(1), soroban.Bool(true)))
	requireCode(t, err, govVotingClosed)

	_, err = g.Handle(commit(alice, "execute", 1012, soroban.Address(alice), soroban.U64(1)))
	require.NoError(t, err)
	_, err = g.Handle(commit(alice, "execute", 1013, soroban.Address(alice), soroban.U64(1)))
	requireCode(t, err, govAlreadyExecuted)

	got, err := g.Handle(simulate(alice, "get_proposal", soroban.U64(1)))
	require.NoError(t, err)
	p := got.(domain.Proposal)
	assert.Equal(t, domain.ProposalExecuted, p.Status)
	assert.Equal(t, uint32(2), p.VotesFor)
	assert.Equal(t, uint32(1010), p.EndsAt)
}

func TestGovernance_EarlyFinalizeRejects(t *testing.T) {
	g := NewGovernance(Genesis{Members: []string{alice, bob}, QuorumPercent: 50})

	_, err := g.Handle(commit(carol, "create_proposal", 1000,
		soroban.Address(carol), soroban.String("x"), soroban.String(""), soroban.Symbol("none"), soroban.I128(0), soroban.String("")))
	requireCode(t, err, govNotMember)

	_, err = g.Handle(commit(alice, "create_proposal", 1000,
		soroban.Address(alice), soroban.String("x"), soroban.String(""), soroban.Symbol("none"), soroban.I128(0), soroban.String("")))
	require.NoError(t, err)

	_, err = g.Handle(commit(alice, "vote", 1001, soroban.Address(alice), soroban.U64(1), soroban.Bool(true)))
	require.NoError(t, err)
	_, err = g.Handle(commit(bob, "vote", 1001, soroban.Address(bob), soroban.U64(1), soroban.Bool(false)))
	require.NoError(t, err)

	// Everyone voted, so the period need not end. A tie does not pass.
	status, err := g.Handle(commit(bob, "finalize", 1002, soroban.Address(bob), soroban.U64(1)))
	require.NoError(t, err)
	assert.Equal(t, domain.ProposalRejected, status)

	_, err = g.Handle(commit(bob, "finalize", 1003, soroban.Address(bob), soroban.U64(1)))
	requireCode(t, err, govVotingClosed)

	_, err = g.Handle(simulate(alice, "get_proposal", soroban.U64(9)))
	requireCode(t, err, govProposalNotFound)
}

func TestVault_LockAndClaim(t *testing.T) {
	v := NewVault(Genesis{Admin: alice, EmergencySigners: []string{bob, carol}, EmergencyThreshold: 2})

	lock := func(ts int64) stub.Call {
		c := commit(alice, "lock_tokens", 1000, soroban.Address(alice), soroban.I128(300), soroban.U64(3600), soroban.Symbol("payroll"))
		c.Timestamp = ts
		return c
	}
	id, err := v.Handle(lock(1_700_000_000))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)

	claim := commit(alice, "claim", 1001, soroban.Address(alice), soroban.U64(1))
	claim.Timestamp = 1_700_000_100
	_, err = v.Handle(claim)
	requireCode(t, err, vaultLockStillActive)

	claim.Timestamp = 1_700_003_600
	got, err := v.Handle(claim)
	require.NoError(t, err)
	assert.Equal(t, "300", got)

	_, err = v.Handle(claim)
	requireCode(t, err, vaultAlreadyClaimed)

	stats, err := v.Handle(simulate(alice, "get_stats"))
	require.NoError(t, err)
	assert.Equal(t, domain.VaultStats{TotalLocked: 0, LockCount: 1, Admin: alice}, stats)

	_, err = v.Handle(commit(alice, "lock_tokens", 1000, soroban.Address(alice), soroban.I128(300), soroban.U64(0), soroban.Symbol("x")))
	requireCode(t, err, vaultInvalidDuration)
	_, err = v.Handle(commit(alice, "lock_tokens", 1000, soroban.Address(alice), soroban.I128(-1), soroban.U64(1), soroban.Symbol("x")))
	requireCode(t, err, vaultInvalidAmount)
}

func TestVault_EmergencyUnlock(t *testing.T) {
	v := NewVault(Genesis{EmergencySigners: []string{bob, carol}, EmergencyThreshold: 2})

	_, err := v.Handle(commit(alice, "lock_tokens", 1000, soroban.Address(alice), soroban.I128(50), soroban.U64(86400), soroban.Symbol("x")))
	require.NoError(t, err)

	_, err = v.Handle(commit(alice, "approve_emergency", 1001, soroban.Address(alice), soroban.U64(1)))
	requireCode(t, err, vaultUnauthorized)

	count, err := v.Handle(commit(bob, "approve_emergency", 1001, soroban.Address(bob), soroban.U64(1)))
	require.NoError(t, err)
	assert.Equal(t, uint32(1), count)
	_, err = v.Handle(commit(bob, "approve_emergency", 1002, soroban.Address(bob), soroban.U64(1)))
	requireCode(t, err, vaultAlreadyApprovedEmergency)

	_, err = v.Handle(commit(alice, "emergency_unlock", 1002, soroban.Address(alice), soroban.U64(1)))
	requireCode(t, err, vaultEmergencyNotApproved)

	count, err = v.Handle(commit(carol, "approve_emergency", 1002, soroban.Address(carol), soroban.U64(1)))
	require.NoError(t, err)
	assert.Equal(t, uint32(2), count)

	released, err := v.Handle(commit(alice, "emergency_unlock", 1003, soroban.Address(alice), soroban.U64(1)))
	require.NoError(t, err)
	assert.Equal(t, "50", released)

	_, err = v.Handle(commit(alice, "claim", 1004, soroban.Address(alice), soroban.U64(1)))
	requireCode(t, err, vaultAlreadyClaimed)
}

func TestVault_ClaimVested(t *testing.T) {
	v := NewVault(Genesis{})
	id := v.AddVesting(domain.VestingSchedule{
		Beneficiary: alice,
		TotalAmount: 1000,
		StartTime:   1_700_000_000,
		Duration:    1000,
		Cliff:       100,
	})
	require.Equal(t, uint64(1), id)

	call := commit(alice, "claim_vested", 1000, soroban.Address(alice), soroban.U64(id))

	call.Timestamp = 1_700_000_050
	_, err := v.Handle(call)
	requireCode(t, err, vaultNothingToClaim)

	call.Timestamp = 1_700_000_250
	got, err := v.Handle(call)
	require.NoError(t, err)
	assert.Equal(t, "250", got)

	// Nothing new vested since the last claim.
	_, err = v.Handle(call)
	requireCode(t, err, vaultNothingToClaim)

	call.Timestamp = 1_700_005_000
	got, err = v.Handle(call)
	require.NoError(t, err)
	assert.Equal(t, "750", got)

	_, err = v.Handle(commit(bob, "claim_vested", 1000, soroban.Address(bob), soroban.U64(id)))
	requireCode(t, err, vaultUnauthorized)
	_, err = v.Handle(commit(alice, "claim_vested", 1000, soroban.Address(alice), soroban.U64(7)))
	requireCode(t, err, vaultVestingNotFound)
}
