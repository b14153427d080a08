package local

import (
	"sync"

	"soroban-dao/internal/domain"
	"soroban-dao/internal/soroban/stub"
)

// Vault error codes, as raised by the token vault contract.
const (
	vaultUnauthorized             = 3
	vaultInvalidAmount            = 4
	vaultInvalidDuration          = 5
	vaultLockNotFound             = 6
	vaultLockStillActive          = 7
	vaultAlreadyClaimed           = 8
	vaultEmergencyNotApproved     = 9
	vaultVestingNotFound          = 10
	vaultNothingToClaim           = 11
	vaultAlreadyApprovedEmergency = 12
)

// Vault is an in-memory token vault.
type Vault struct {
	mu               sync.Mutex
	admin            string
	emergencySigners []string
	threshold        uint32
	locks            map[uint64]*domain.TokenLock
	vestings         map[uint64]*domain.VestingSchedule
	approvals        map[uint64][]string
	totalLocked      int64
	lockCounter      uint64
	vestingCounter   uint64
}

// NewVault creates a vault from genesis.
func NewVault(g Genesis) *Vault {
	threshold := g.EmergencyThreshold
	if threshold == 0 {
		threshold = 2
	}
	return &Vault{
		admin:            g.Admin,
		emergencySigners: append([]string(nil), g.EmergencySigners...),
		threshold:        threshold,
		locks:            make(map[uint64]*domain.TokenLock),
		vestings:         make(map[uint64]*domain.VestingSchedule),
		approvals:        make(map[uint64][]string),
	}
}

// AddVesting creates a vesting schedule directly, as the admin would, and
// returns its id.
func (v *Vault) AddVesting(s domain.VestingSchedule) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.vestingCounter++
	s.ID = v.vestingCounter
	v.vestings[s.ID] = &s
	v.totalLocked += s.TotalAmount - s.ClaimedAmount
	return s.ID
}

// Handle executes a contract call. State changes only when call.Commit.
func (v *Vault) Handle(call stub.Call) (interface{}, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	now := uint64(call.Timestamp)
	r := newArgReader(call.Args)
	switch call.Method {
	case "get_stats":
		return domain.VaultStats{
			TotalLocked:  v.totalLocked,
			LockCount:    v.lockCounter,
			VestingCount: v.vestingCounter,
			Admin:        v.admin,
		}, nil

	case "get_lock":
		id := r.u64()
		if r.err != nil {
			return nil, r.err
		}
		lock, ok := v.locks[id]
		if !ok {
			return nil, contractError(vaultLockNotFound)
		}
		return *lock, nil

	case "get_vesting":
		id := r.u64()
		if r.err != nil {
			return nil, r.err
		}
		s, ok := v.vestings[id]
		if !ok {
			return nil, contractError(vaultVestingNotFound)
		}
		return *s, nil

	case "lock_tokens":
		owner, amt, duration, memo := r.address(), r.i128(), r.u64(), r.symbol()
		if r.err != nil {
			return nil, r.err
		}
		if owner != call.Source {
			return nil, contractError(vaultUnauthorized)
		}
		if amt <= 0 {
			return nil, contractError(vaultInvalidAmount)
		}
		if duration == 0 {
			return nil, contractError(vaultInvalidDuration)
		}
		id := v.lockCounter + 1
		if call.Commit {
			v.lockCounter = id
			v.locks[id] = &domain.TokenLock{
				ID:       id,
				Owner:    owner,
				Amount:   amt,
				LockedAt: now,
				UnlockAt: now + duration,
				Memo:     memo,
			}
			v.totalLocked += amt
		}
		return id, nil

	case "claim":
		owner, id := r.address(), r.u64()
		if r.err != nil {
			return nil, r.err
		}
		lock, ok := v.locks[id]
		if !ok {
			return nil, contractError(vaultLockNotFound)
		}
		if lock.Owner != owner || owner != call.Source {
			return nil, contractError(vaultUnauthorized)
		}
		if lock.Claimed {
			return nil, contractError(vaultAlreadyClaimed)
		}
		if !lock.Unlockable(now) {
			return nil, contractError(vaultLockStillActive)
		}
		if call.Commit {
			v.release(lock)
		}
		return amount(lock.Amount), nil

	case "approve_emergency":
		signer, id := r.address(), r.u64()
		if r.err != nil {
			return nil, r.err
		}
		if signer != call.Source || !contains(v.emergencySigners, signer) {
			return nil, contractError(vaultUnauthorized)
		}
		lock, ok := v.locks[id]
		if !ok {
			return nil, contractError(vaultLockNotFound)
		}
		if lock.Claimed {
			return nil, contractError(vaultAlreadyClaimed)
		}
		if contains(v.approvals[id], signer) {
			return nil, contractError(vaultAlreadyApprovedEmergency)
		}
		count := uint32(len(v.approvals[id]) + 1)
		if call.Commit {
			v.approvals[id] = append(v.approvals[id], signer)
		}
		return count, nil

	case "emergency_unlock":
		_, id := r.address(), r.u64()
		if r.err != nil {
			return nil, r.err
		}
		lock, ok := v.locks[id]
		if !ok {
			return nil, contractError(vaultLockNotFound)
		}
		if lock.Claimed {
			return nil, contractError(vaultAlreadyClaimed)
		}
		if uint32(len(v.approvals[id])) < v.threshold {
			return nil, contractError(vaultEmergencyNotApproved)
		}
		if call.Commit {
			v.release(lock)
		}
		return amount(lock.Amount), nil

	case "claim_vested":
		beneficiary, id := r.address(), r.u64()
		if r.err != nil {
			return nil, r.err
		}
		s, ok := v.vestings[id]
		if !ok {
			return nil, contractError(vaultVestingNotFound)
		}
		if s.Beneficiary != beneficiary || beneficiary != call.Source {
			return nil, contractError(vaultUnauthorized)
		}
		claimable := s.Claimable(now)
		if claimable <= 0 {
			return nil, contractError(vaultNothingToClaim)
		}
		if call.Commit {
			s.ClaimedAmount += claimable
			v.totalLocked -= claimable
			if v.totalLocked < 0 {
				v.totalLocked = 0
			}
		}
		return amount(claimable), nil
	}
	return nil, errUnknownMethod
}

func (v *Vault) release(lock *domain.TokenLock) {
	lock.Claimed = true
	v.totalLocked -= lock.Amount
	if v.totalLocked < 0 {
		v.totalLocked = 0
	}
}
