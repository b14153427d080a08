package contracts

import (
	"soroban-dao/internal/soroban"
	"soroban-dao/internal/txn"
)

// Clients bundles the contract clients sharing one Invoker.
type Clients struct {
	Invoker    *Invoker
	Treasury   *Treasury
	Governance *Governance
	Vault      *Vault
	Addresses  Addresses
}

// New builds clients for every configured contract.
func New(rpc soroban.RPCClient, submitter *txn.Submitter, addrs Addresses) *Clients {
	inv := NewInvoker(rpc, submitter, addrs)
	return &Clients{
		Invoker:    inv,
		Treasury:   NewTreasury(inv, addrs.Treasury),
		Governance: NewGovernance(inv, addrs.Governance),
		Vault:      NewVault(inv, addrs.TokenVault),
		Addresses:  addrs,
	}
}
