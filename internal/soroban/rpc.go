package soroban

import "context"

// RPCClient defines the Soroban RPC interface used by the contract clients.
type RPCClient interface {
	// GetHealth reports node health and the retained ledger window.
	GetHealth(ctx context.Context) (*Health, error)

	// GetNetwork returns the network passphrase the node serves.
	GetNetwork(ctx context.Context) (*Network, error)

	// GetLatestLedger returns the most recent closed ledger.
	GetLatestLedger(ctx context.Context) (*LatestLedger, error)

	// GetAccount returns the account sequence for a G... address.
	// Returns nil if the account does not exist.
	GetAccount(ctx context.Context, address string) (*Account, error)

	// SimulateTransaction dry-runs an encoded envelope.
	SimulateTransaction(ctx context.Context, envelope string) (*SimulateResult, error)

	// SendTransaction submits a signed encoded envelope.
	SendTransaction(ctx context.Context, envelope string) (*SendResult, error)

	// GetTransaction polls the status of a submitted transaction by hash.
	GetTransaction(ctx context.Context, hash string) (*TransactionResult, error)

	// GetEvents returns contract events matching the request.
	GetEvents(ctx context.Context, req EventsRequest) (*EventsResult, error)
}
