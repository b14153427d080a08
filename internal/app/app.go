// Package app wires the configured RPC, wallet, session, stores and
// contract clients together for the server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"

	"soroban-dao/internal/config"
	"soroban-dao/internal/contracts"
	"soroban-dao/internal/contracts/local"
	"soroban-dao/internal/ingestion"
	"soroban-dao/internal/reporting"
	"soroban-dao/internal/session"
	"soroban-dao/internal/soroban"
	"soroban-dao/internal/soroban/stub"
	"soroban-dao/internal/storage"
	chstore "soroban-dao/internal/storage/clickhouse"
	"soroban-dao/internal/storage/memory"
	"soroban-dao/internal/storage/migrations"
	pgstore "soroban-dao/internal/storage/postgres"
	"soroban-dao/internal/strkey"
	"soroban-dao/internal/txn"
	"soroban-dao/internal/wallet"
)

// LocalPassphrase encrypts the keystore generated for a local chain when
// no passphrase is configured.
const LocalPassphrase = "local"

// App holds the wired components.
type App struct {
	Config *config.Config

	RPC        soroban.RPCClient
	Chain      *stub.RPCClient   // local mode only
	Deployment *local.Deployment // local mode only
	Keystore   *wallet.Keystore  // keystore backend only
	Wallet     wallet.Wallet
	Session    *session.Manager
	Submitter  *txn.Submitter
	Clients    *contracts.Clients
	Addresses  contracts.Addresses

	Journal  storage.OperationJournal
	Activity storage.ActivityStore
	Cursors  storage.EventCursorStore
	Reports  *reporting.Generator

	logger  *log.Logger
	closers []func()
}

// New builds an App from cfg. Close releases connections.
func New(ctx context.Context, cfg *config.Config, logger *log.Logger, opts ...wallet.KeystoreOption) (*App, error) {
	if logger == nil {
		logger = log.Default()
	}
	a := &App{Config: cfg, logger: logger}

	if err := a.openStores(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openWallet(opts); err != nil {
		a.Close()
		return nil, err
	}

	a.Addresses = cfg.Contracts.Addresses()
	if cfg.Local {
		if err := a.deployLocal(); err != nil {
			a.Close()
			return nil, err
		}
	} else {
		a.RPC = soroban.NewHTTPClient(cfg.RPC.URL,
			soroban.WithTimeout(cfg.RPC.Timeout),
			soroban.WithMaxRetries(cfg.RPC.MaxRetries),
		)
	}

	a.Session = session.NewManager(session.Options{
		Wallet:            a.Wallet,
		NetworkPassphrase: cfg.RPC.NetworkPassphrase,
		Logger:            a.childLogger("session"),
	})
	a.Submitter = txn.NewSubmitter(txn.Options{
		RPC:               a.RPC,
		Signer:            a.Session,
		Journal:           a.Journal,
		NetworkPassphrase: cfg.RPC.NetworkPassphrase,
		BaseFee:           cfg.RPC.BaseFee,
		TxTimeout:         cfg.RPC.TxTimeout,
		ConfirmTimeout:    cfg.RPC.ConfirmTimeout,
		PollInterval:      cfg.RPC.PollInterval,
		Logger:            a.childLogger("txn"),
		ErrorName:         a.Addresses.ErrorName,
	})
	a.Clients = contracts.New(a.RPC, a.Submitter, a.Addresses)
	a.Reports = reporting.NewGenerator(a.Journal, a.Activity, a.Addresses, cfg.RPC.NetworkPassphrase)
	return a, nil
}

// Poller creates the contract event poller.
func (a *App) Poller() *ingestion.Poller {
	return ingestion.NewPoller(ingestion.PollerOptions{
		RPC:         a.RPC,
		Store:       a.Activity,
		Cursors:     a.Cursors,
		Names:       a.Addresses,
		ContractIDs: a.Addresses.IDs(),
		StartLedger: a.Config.Server.EventStartLedger,
		Interval:    a.Config.Server.EventPollInterval,
		Logger:      a.childLogger("events"),
	})
}

// Reconciler creates the journal reconciler.
func (a *App) Reconciler() *txn.Reconciler {
	return txn.NewReconciler(txn.ReconcilerOptions{
		RPC:      a.RPC,
		Journal:  a.Journal,
		Interval: a.Config.Server.ReconcileInterval,
		Logger:   a.childLogger("reconciler"),
	})
}

// Close releases connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) childLogger(name string) *log.Logger {
	return log.New(a.logger.Writer(), "["+name+"] ", a.logger.Flags())
}

func (a *App) openStores(ctx context.Context) error {
	cfg := a.Config.Storage
	if cfg.UseMemory {
		a.Journal = memory.NewOperationJournal()
		a.Cursors = memory.NewEventCursorStore()
		a.Activity = memory.NewActivityStore()
		return nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	a.closers = append(a.closers, pool.Close)
	applied, err := migrations.RunPostgres(ctx, pool)
	if err != nil {
		return fmt.Errorf("migrate postgres: %w", err)
	}
	if len(applied) > 0 {
		a.logger.Printf("Applied postgres migrations: %v", applied)
	}

	conn, err := migrations.RunClickhouse(ctx, cfg.ClickhouseDSN)
	if err != nil {
		return fmt.Errorf("migrate clickhouse: %w", err)
	}
	a.closers = append(a.closers, func() { conn.Close() })

	a.Journal = pgstore.NewOperationJournal(pool)
	a.Cursors = pgstore.NewEventCursorStore(pool)
	a.Activity = chstore.NewActivityStore(conn)
	return nil
}

func (a *App) openWallet(opts []wallet.KeystoreOption) error {
	cfg := a.Config.Wallet
	passphrase := a.Config.RPC.NetworkPassphrase

	switch cfg.Backend {
	case config.WalletBridge:
		b := wallet.NewBridge(cfg.BridgeURL, nil)
		a.closers = append(a.closers, func() { b.Close() })
		a.Wallet = b
		return nil

	case config.WalletKeystore:
		network := wallet.NetworkInfo{Network: wallet.NetworkName(passphrase), Passphrase: passphrase}
		ks := wallet.NewKeystore(cfg.KeystorePath, network, opts...)
		a.Keystore = ks
		a.Wallet = ks
		a.closers = append(a.closers, ks.Lock)

		secret := cfg.KeystorePassphrase
		if a.Config.Local && secret == "" {
			secret = LocalPassphrase
		}
		if secret == "" {
			return nil
		}
		err := ks.Unlock(secret)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, wallet.ErrNotInstalled) && a.Config.Local:
			address, err := ks.Generate(secret)
			if err != nil {
				return fmt.Errorf("generate local keystore: %w", err)
			}
			a.logger.Printf("Generated local keystore %s for %s", cfg.KeystorePath, address)
			return nil
		case errors.Is(err, wallet.ErrNotInstalled):
			a.logger.Printf("WARN: keystore %s not found, wallet unavailable", cfg.KeystorePath)
			return nil
		}
		return fmt.Errorf("unlock keystore: %w", err)
	}
	return fmt.Errorf("%w: unknown wallet backend %q", config.ErrInvalid, cfg.Backend)
}

// localContractID derives a stable contract id for a local deployment.
func localContractID(n byte) string {
	payload := make([]byte, 32)
	payload[31] = n
	return strkey.MustEncode(strkey.VersionByteContract, payload)
}

// deployLocal starts an in-process chain whose only signer, member and
// emergency signer is the keystore account.
func (a *App) deployLocal() error {
	address, err := a.Keystore.RequestAccess(context.Background())
	if err != nil {
		return fmt.Errorf("local chain needs an unlocked keystore: %w", err)
	}

	if a.Addresses.Treasury == "" {
		a.Addresses.Treasury = localContractID(1)
	}
	if a.Addresses.Governance == "" {
		a.Addresses.Governance = localContractID(2)
	}
	if a.Addresses.TokenVault == "" {
		a.Addresses.TokenVault = localContractID(3)
	}

	chain := stub.NewRPCClient(a.Config.RPC.NetworkPassphrase)
	a.Deployment = local.Deploy(chain, a.Addresses.Treasury, a.Addresses.Governance, a.Addresses.TokenVault, local.Genesis{
		Admin:              address,
		Signers:            []string{address},
		Threshold:          1,
		Members:            []string{address},
		QuorumPercent:      50,
		EmergencySigners:   []string{address},
		EmergencyThreshold: 1,
	})
	chain.AddAccount(address, 1)

	a.Chain = chain
	a.RPC = chain
	a.logger.Printf("Local chain: treasury %s, governance %s, vault %s",
		a.Addresses.Treasury, a.Addresses.Governance, a.Addresses.TokenVault)
	return nil
}

