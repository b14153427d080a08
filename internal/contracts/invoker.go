// Package contracts provides typed clients for the treasury, governance
// and token vault contracts.
package contracts

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"soroban-dao/internal/domain"
	"soroban-dao/internal/idhash"
	"soroban-dao/internal/observability"
	"soroban-dao/internal/soroban"
	"soroban-dao/internal/strkey"
	"soroban-dao/internal/txn"
)

// readSource is the zero account, used as the source of read simulations
// when nobody is connected. Simulation does not check the source exists.
var readSource = strkey.MustEncode(strkey.VersionByteAccountID, make([]byte, 32))

// Invoker reads contract state through simulation and submits mutating
// calls through a txn.Submitter.
type Invoker struct {
	rpc       soroban.RPCClient
	submitter *txn.Submitter
	codec     soroban.Codec
	addrs     Addresses

	reads txn.Group
}

// NewInvoker creates a new Invoker.
func NewInvoker(rpc soroban.RPCClient, submitter *txn.Submitter, addrs Addresses) *Invoker {
	return &Invoker{
		rpc:       rpc,
		submitter: submitter,
		codec:     submitter.Codec(),
		addrs:     addrs,
	}
}

// Codec returns the value codec.
func (i *Invoker) Codec() soroban.Codec {
	return i.codec
}

// Read simulates inv and decodes its return value into out. Identical
// reads in flight at the same time share one simulation, which is
// cancelled once every caller waiting on it has gone.
func (i *Invoker) Read(ctx context.Context, inv soroban.Invocation, out interface{}) error {
	key := idhash.ReadKey(inv)
	val, err, shared := i.reads.Do(ctx, key, func(runCtx context.Context) (interface{}, error) {
		return i.simulate(runCtx, inv)
	})
	if shared {
		observability.RecordReadCollapsed()
	}
	if err != nil {
		var opErr *txn.OpError
		if errors.As(err, &opErr) {
			return err
		}
		return txn.NewOpError(domain.KindCanceled, domain.StateUnsigned, inv.Method, err)
	}
	if out == nil {
		return nil
	}
	if err := i.codec.DecodeValue(val.(string), out); err != nil {
		return txn.NewOpError(domain.KindInvalidInput, domain.StateUnsigned, inv.Method, err)
	}
	return nil
}

func (i *Invoker) simulate(ctx context.Context, inv soroban.Invocation) (string, error) {
	source, ok := i.submitter.Source()
	if !ok {
		source = readSource
	}
	encoded, err := i.codec.EncodeEnvelope(&soroban.Envelope{Source: source, Fee: 100, Invocation: inv})
	if err != nil {
		return "", txn.NewOpError(domain.KindInvalidInput, domain.StateUnsigned, inv.Method, err)
	}

	sim, err := i.rpc.SimulateTransaction(ctx, encoded)
	if err != nil {
		kind := txn.Classify(err)
		if kind == "" {
			kind = domain.KindNetworkUnreachable
		}
		return "", txn.NewOpError(kind, domain.StateUnsigned, inv.Method, err)
	}
	if sim.Failed() {
		ce := txn.ParseContractError(inv.ContractID, sim.Error)
		if ce == nil {
			return "", txn.NewOpError(domain.KindSimulationRejected, domain.StateUnsigned, inv.Method, errors.New(sim.Error))
		}
		ce.Name = i.addrs.ErrorName(inv.ContractID, ce.Code)
		kind := domain.KindSimulationRejected
		if isNotFound(ce.Name) {
			kind = domain.KindNotFound
		}
		return "", txn.NewOpError(kind, domain.StateUnsigned, inv.Method, ce)
	}
	return sim.ReturnValue(), nil
}

// Invoke submits a mutating call built from the connected account and
// decodes the return value into out when out is non-nil.
// Fails with NOT_CONNECTED in state UNSIGNED when no wallet is connected.
func (i *Invoker) Invoke(ctx context.Context, contractID, method string, out interface{}, args func(source string) []soroban.Arg) (*txn.Receipt, error) {
	source, ok := i.submitter.Source()
	if !ok {
		return nil, txn.NewOpError(domain.KindNotConnected, domain.StateUnsigned, method, errors.New("no wallet connected"))
	}

	inv := soroban.Invocation{ContractID: contractID, Method: method, Args: args(source)}
	receipt, err := i.submitter.Submit(ctx, txn.Operation{
		Label:      i.addrs.Name(contractID) + "." + method,
		Invocation: inv,
	})
	if err != nil {
		return nil, err
	}
	if out != nil {
		if err := receipt.Decode(i.codec, out); err != nil {
			// The operation landed; only the return value is unreadable.
			return receipt, fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return receipt, nil
}

func isNotFound(name string) bool {
	return strings.HasSuffix(name, "NotFound")
}

// i128 decodes an i128 carried as a decimal string (or a bare number).
type i128 int64

func (v *i128) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("i128 %s: %w", s, err)
	}
	*v = i128(n)
	return nil
}

func invalid(method, format string, args ...interface{}) error {
	return txn.NewOpError(domain.KindInvalidInput, domain.StateUnsigned, method, fmt.Errorf(format, args...))
}

func requireAmount(method string, amount int64) error {
	if amount <= 0 {
		return invalid(method, "amount must be positive, got %d", amount)
	}
	return nil
}

func requireAddress(method, addr string) error {
	if !strkey.IsValidAccount(addr) && !strkey.IsValidContract(addr) {
		return invalid(method, "invalid address %q", addr)
	}
	return nil
}
