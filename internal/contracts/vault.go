package contracts

import (
	"context"
	"time"

	"soroban-dao/internal/domain"
	"soroban-dao/internal/soroban"
	"soroban-dao/internal/txn"
)

// Vault is a client for the token vault contract.
type Vault struct {
	inv *Invoker
	id  string
}

// NewVault creates a token vault client.
func NewVault(inv *Invoker, contractID string) *Vault {
	return &Vault{inv: inv, id: contractID}
}

// ContractID returns the vault contract id.
func (v *Vault) ContractID() string {
	return v.id
}

func (v *Vault) read(ctx context.Context, method string, out interface{}, args ...soroban.Arg) error {
	return v.inv.Read(ctx, soroban.Invocation{ContractID: v.id, Method: method, Args: args}, out)
}

// GetStats returns vault totals.
func (v *Vault) GetStats(ctx context.Context) (*domain.VaultStats, error) {
	var stats domain.VaultStats
	if err := v.read(ctx, "get_stats", &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// GetLock returns a token lock by id.
func (v *Vault) GetLock(ctx context.Context, lockID uint64) (*domain.TokenLock, error) {
	var lock domain.TokenLock
	if err := v.read(ctx, "get_lock", &lock, soroban.U64(lockID)); err != nil {
		return nil, err
	}
	return &lock, nil
}

// GetVesting returns a vesting schedule by id.
func (v *Vault) GetVesting(ctx context.Context, vestingID uint64) (*domain.VestingSchedule, error) {
	var schedule domain.VestingSchedule
	if err := v.read(ctx, "get_vesting", &schedule, soroban.U64(vestingID)); err != nil {
		return nil, err
	}
	return &schedule, nil
}

// VestingProjection is a vesting schedule evaluated at a point in time.
type VestingProjection struct {
	Schedule  *domain.VestingSchedule
	At        time.Time
	Vested    int64
	Claimable int64
}

// ProjectVesting reads a schedule and computes what claim_vested would
// release at the given time, without submitting anything.
func (v *Vault) ProjectVesting(ctx context.Context, vestingID uint64, at time.Time) (*VestingProjection, error) {
	schedule, err := v.GetVesting(ctx, vestingID)
	if err != nil {
		return nil, err
	}
	now := uint64(at.Unix())
	return &VestingProjection{
		Schedule:  schedule,
		At:        at,
		Vested:    schedule.Vested(now),
		Claimable: schedule.Claimable(now),
	}, nil
}

// LockTokens locks amount stroops from the connected account for duration
// and returns the lock id.
func (v *Vault) LockTokens(ctx context.Context, amount int64, duration time.Duration, memo string) (uint64, *txn.Receipt, error) {
	const method = "lock_tokens"
	if err := requireAmount(method, amount); err != nil {
		return 0, nil, err
	}
	secs := uint64(duration / time.Second)
	if secs == 0 {
		return 0, nil, invalid(method, "duration must be at least one second, got %s", duration)
	}

	var id uint64
	receipt, err := v.inv.Invoke(ctx, v.id, method, &id, func(source string) []soroban.Arg {
		return []soroban.Arg{soroban.Address(source), soroban.I128(amount), soroban.U64(secs), soroban.Symbol(memo)}
	})
	return id, receipt, err
}

// Claim releases an expired lock and returns the amount released.
func (v *Vault) Claim(ctx context.Context, lockID uint64) (int64, *txn.Receipt, error) {
	var amount i128
	receipt, err := v.inv.Invoke(ctx, v.id, "claim", &amount, func(source string) []soroban.Arg {
		return []soroban.Arg{soroban.Address(source), soroban.U64(lockID)}
	})
	return int64(amount), receipt, err
}

// ApproveEmergency records the connected emergency signer's approval to
// unlock early and returns the approval count.
func (v *Vault) ApproveEmergency(ctx context.Context, lockID uint64) (uint32, *txn.Receipt, error) {
	var count uint32
	receipt, err := v.inv.Invoke(ctx, v.id, "approve_emergency", &count, func(source string) []soroban.Arg {
		return []soroban.Arg{soroban.Address(source), soroban.U64(lockID)}
	})
	return count, receipt, err
}

// EmergencyUnlock releases a lock that gathered enough emergency approvals.
func (v *Vault) EmergencyUnlock(ctx context.Context, lockID uint64) (int64, *txn.Receipt, error) {
	var amount i128
	receipt, err := v.inv.Invoke(ctx, v.id, "emergency_unlock", &amount, func(source string) []soroban.Arg {
		return []soroban.Arg{soroban.Address(source), soroban.U64(lockID)}
	})
	return int64(amount), receipt, err
}

// ClaimVested releases the vested, unclaimed part of a schedule.
func (v *Vault) ClaimVested(ctx context.Context, vestingID uint64) (int64, *txn.Receipt, error) {
	var amount i128
	receipt, err := v.inv.Invoke(ctx, v.id, "claim_vested", &amount, func(source string) []soroban.Arg {
		return []soroban.Arg{soroban.Address(source), soroban.U64(vestingID)}
	})
	return int64(amount), receipt, err
}
