// Package local implements the treasury, governance and token vault
// contracts in memory, as handlers for the stub Soroban RPC. It backs the
// server's offline mode and the client tests.
package local

import (
	"errors"
	"fmt"
	"strconv"

	"soroban-dao/internal/soroban"
	"soroban-dao/internal/soroban/stub"
)

// Genesis is the initial state of a local deployment.
type Genesis struct {
	Admin string

	// Treasury
	Signers   []string
	Threshold uint32
	Balance   int64

	// Governance
	Members       []string
	QuorumPercent uint32
	VotingPeriod  uint32 // ledgers

	// Vault
	EmergencySigners   []string
	EmergencyThreshold uint32
}

// Deployment is a set of local contracts registered on a stub RPC.
type Deployment struct {
	Treasury   *Treasury
	Governance *Governance
	Vault      *Vault
}

// Deploy registers the three contracts on rpc under the given ids.
// Empty ids are skipped.
func Deploy(rpc *stub.RPCClient, treasuryID, governanceID, vaultID string, g Genesis) *Deployment {
	d := &Deployment{
		Treasury:   NewTreasury(g),
		Governance: NewGovernance(g),
		Vault:      NewVault(g),
	}
	if treasuryID != "" {
		rpc.Register(treasuryID, d.Treasury.Handle)
	}
	if governanceID != "" {
		rpc.Register(governanceID, d.Governance.Handle)
	}
	if vaultID != "" {
		rpc.Register(vaultID, d.Vault.Handle)
	}
	return d
}

// contractError is the host error string for a contract error code, in
// the form simulation and failed transactions report it.
func contractError(code uint32) error {
	return fmt.Errorf("HostError: Error(Contract, #%d)", code)
}

var errUnknownMethod = errors.New("HostError: Error(WasmVm, MissingValue): function not found")

// argReader decodes positional arguments, keeping the first error.
type argReader struct {
	args []soroban.Arg
	i    int
	err  error
}

func newArgReader(args []soroban.Arg) *argReader {
	return &argReader{args: args}
}

func (r *argReader) next(want soroban.ArgType) (soroban.Arg, bool) {
	if r.err != nil {
		return soroban.Arg{}, false
	}
	if r.i >= len(r.args) {
		r.err = fmt.Errorf("HostError: Error(Value, InvalidInput): missing argument %d", r.i)
		return soroban.Arg{}, false
	}
	a := r.args[r.i]
	r.i++
	if a.Type != want {
		r.err = fmt.Errorf("HostError: Error(Value, UnexpectedType): argument %d is %s, want %s", r.i-1, a.Type, want)
		return soroban.Arg{}, false
	}
	return a, true
}

func (r *argReader) address() string {
	a, _ := r.next(soroban.TypeAddress)
	return a.Value
}

func (r *argReader) str() string {
	a, _ := r.next(soroban.TypeString)
	return a.Value
}

func (r *argReader) symbol() string {
	a, _ := r.next(soroban.TypeSymbol)
	return a.Value
}

func (r *argReader) u64() uint64 {
	a, ok := r.next(soroban.TypeU64)
	if !ok {
		return 0
	}
	v, err := a.Uint()
	if err != nil {
		r.err = err
	}
	return v
}

func (r *argReader) i128() int64 {
	a, ok := r.next(soroban.TypeI128)
	if !ok {
		return 0
	}
	v, err := a.Int()
	if err != nil {
		r.err = err
	}
	return v
}

func (r *argReader) boolean() bool {
	a, ok := r.next(soroban.TypeBool)
	if !ok {
		return false
	}
	v, err := strconv.ParseBool(a.Value)
	if err != nil {
		r.err = err
	}
	return v
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func amount(v int64) string {
	return strconv.FormatInt(v, 10)
}
