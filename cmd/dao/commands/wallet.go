package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"soroban-dao/internal/wallet"
)

func walletCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Manage the local keystore",
	}
	cmd.AddCommand(walletInitCmd(), walletImportCmd(), walletAddressCmd())
	return cmd
}

func keystore() (*wallet.Keystore, error) {
	if cfg.Wallet.KeystorePassphrase == "" {
		return nil, fmt.Errorf("passphrase required (-p or KEYSTORE_PASSPHRASE)")
	}
	network := wallet.NetworkInfo{
		Network:    wallet.NetworkName(cfg.RPC.NetworkPassphrase),
		Passphrase: cfg.RPC.NetworkPassphrase,
	}
	return wallet.NewKeystore(cfg.Wallet.KeystorePath, network), nil
}

func refuseOverwrite(ks *wallet.Keystore, force bool) error {
	installed, err := ks.Installed(context.Background())
	if err != nil {
		return err
	}
	if installed && !force {
		return fmt.Errorf("keystore %s already exists (use --force to replace it)", cfg.Wallet.KeystorePath)
	}
	return nil
}

func walletInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Generate a key and store it encrypted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ks, err := keystore()
			if err != nil {
				return err
			}
			if err := refuseOverwrite(ks, force); err != nil {
				return err
			}
			address, err := ks.Generate(cfg.Wallet.KeystorePassphrase)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Keystore created at %s\nAddress: %s\n", cfg.Wallet.KeystorePath, address)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "replace an existing keystore")
	return cmd
}

func walletImportCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "import <secret-seed>",
		Short: "Store an existing S... secret seed encrypted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ks, err := keystore()
			if err != nil {
				return err
			}
			if err := refuseOverwrite(ks, force); err != nil {
				return err
			}
			address, err := ks.ImportSecret(cfg.Wallet.KeystorePassphrase, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %s into %s\n", address, cfg.Wallet.KeystorePath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "replace an existing keystore")
	return cmd
}

func walletAddressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "address",
		Short: "Print the keystore address",
		RunE: func(cmd *cobra.Command, args []string) error {
			ks, err := keystore()
			if err != nil {
				return err
			}
			if err := ks.Unlock(cfg.Wallet.KeystorePassphrase); err != nil {
				return err
			}
			address, err := ks.RequestAccess(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), address)
			return nil
		},
	}
}
