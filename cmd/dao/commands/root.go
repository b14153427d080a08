// Package commands implements the dao command line client.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"soroban-dao/internal/app"
	"soroban-dao/internal/config"
	"soroban-dao/internal/txn"
	"soroban-dao/internal/view"
)

var (
	envFile    string
	passphrase string
	verbose    bool

	cfg    *config.Config
	appCtx *app.App
)

// Execute runs the root command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRoot().ExecuteContext(ctx)
	closeApp()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", describeError(err))
	}
	return err
}

func newRoot() *cobra.Command {
	root := &cobra.Command{
		Use:           "dao",
		Short:         "Treasury, governance and token vault client for Soroban",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.LoadEnv(envFile)
			if err != nil {
				return err
			}
			if passphrase != "" {
				cfg.Wallet.KeystorePassphrase = passphrase
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "path to .env file (skipped if missing)")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "keystore passphrase (default KEYSTORE_PASSPHRASE)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log component activity to stderr")

	root.AddCommand(walletCmd(), treasuryCmd(), governanceCmd(), vaultCmd(), journalCmd(), syncCmd(), exportCmd())
	return root
}

// openApp validates the configuration and wires the clients.
func openApp(ctx context.Context) (*app.App, error) {
	if appCtx != nil {
		return appCtx, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := log.New(io.Discard, "", 0)
	if verbose {
		logger = log.New(os.Stderr, "[dao] ", log.LstdFlags)
	}
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	appCtx = a
	return a, nil
}

func closeApp() {
	if appCtx != nil {
		appCtx.Close()
		appCtx = nil
	}
}

// connectApp opens the app and connects the wallet for signing.
func connectApp(ctx context.Context) (*app.App, error) {
	a, err := openApp(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.Session.Connect(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func parseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func parseAmount(s string, stroops bool) (int64, error) {
	if stroops {
		return strconv.ParseInt(s, 10, 64)
	}
	return view.ParseUnits(s)
}

func printReceipt(w io.Writer, r *txn.Receipt) {
	if r == nil {
		return
	}
	fmt.Fprintf(w, "state:  %s\n", r.State)
	fmt.Fprintf(w, "tx:     %s\n", r.TxHash)
	if r.Ledger > 0 {
		fmt.Fprintf(w, "ledger: %d\n", r.Ledger)
	}
}

// describeError adds a reconcile hint to failures that may still land.
func describeError(err error) string {
	var opErr *txn.OpError
	if errors.As(err, &opErr) && opErr.Indeterminate() {
		return err.Error() + "\nthe transaction may still land; run `dao sync` to reconcile"
	}
	return err.Error()
}
