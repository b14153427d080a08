package domain

import "math/big"

// TokenLock is a time-locked deposit in the token vault.
type TokenLock struct {
	ID       uint64 `json:"id"`
	Owner    string `json:"owner"`
	Amount   int64  `json:"amount,string"`
	LockedAt uint64 `json:"locked_at"` // unix seconds
	UnlockAt uint64 `json:"unlock_at"` // unix seconds
	Claimed  bool   `json:"claimed"`
	Memo     string `json:"memo"`
}

// Unlockable reports whether the lock can be claimed at the given time.
func (l *TokenLock) Unlockable(now uint64) bool {
	return !l.Claimed && now >= l.UnlockAt
}

// VestingSchedule releases tokens linearly after a cliff.
type VestingSchedule struct {
	ID            uint64 `json:"id"`
	Beneficiary   string `json:"beneficiary"`
	TotalAmount   int64  `json:"total_amount,string"`
	ClaimedAmount int64  `json:"claimed_amount,string"`
	StartTime     uint64 `json:"start_time"` // unix seconds
	Duration      uint64 `json:"duration"`   // seconds
	Cliff         uint64 `json:"cliff"`      // seconds
	Memo          string `json:"memo"`
}

// Vested returns the total amount vested at now, using the same integer
// arithmetic as the vault contract.
func (v *VestingSchedule) Vested(now uint64) int64 {
	if now < v.StartTime+v.Cliff {
		return 0
	}
	elapsed := now - v.StartTime
	if elapsed >= v.Duration || v.Duration == 0 {
		return v.TotalAmount
	}
	// i128 on chain; total*elapsed can exceed int64.
	n := new(big.Int).Mul(big.NewInt(v.TotalAmount), new(big.Int).SetUint64(elapsed))
	n.Quo(n, new(big.Int).SetUint64(v.Duration))
	return n.Int64()
}

// Claimable returns the amount that claim_vested would release at now.
func (v *VestingSchedule) Claimable(now uint64) int64 {
	c := v.Vested(now) - v.ClaimedAmount
	if c < 0 {
		return 0
	}
	return c
}

// VaultStats mirrors the vault contract's get_stats result.
type VaultStats struct {
	TotalLocked  int64  `json:"total_locked,string"`
	LockCount    uint64 `json:"lock_count"`
	VestingCount uint64 `json:"vesting_count"`
	Admin        string `json:"admin"`
}
