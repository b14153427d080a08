package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"soroban-dao/internal/view"
)

func vaultCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vault",
		Short: "Token locks and vesting",
	}
	cmd.PersistentFlags().Bool("stroops", false, "amounts are integer stroops instead of whole units")
	cmd.AddCommand(
		vaultStatsCmd(),
		vaultLockCmd(),
		vaultShowLockCmd(),
		vaultClaimCmd(),
		vaultApproveEmergencyCmd(),
		vaultEmergencyUnlockCmd(),
		vaultVestingCmd(),
		vaultClaimVestedCmd(),
	)
	return cmd
}

func vaultStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show vault totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			stats, err := a.Clients.Vault.GetStats(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Total locked: %s\n", view.FormatStroops(stats.TotalLocked))
			fmt.Fprintf(out, "Locks:        %d\n", stats.LockCount)
			fmt.Fprintf(out, "Vestings:     %d\n", stats.VestingCount)
			return nil
		},
	}
}

func vaultLockCmd() *cobra.Command {
	var memo string
	cmd := &cobra.Command{
		Use:   "lock <amount> <duration>",
		Short: "Lock tokens from the connected account, e.g. lock 100 720h",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[0], stroopsFlag(cmd))
			if err != nil {
				return err
			}
			duration, err := time.ParseDuration(args[1])
			if err != nil {
				return fmt.Errorf("invalid duration %q: %w", args[1], err)
			}
			a, err := connectApp(cmd.Context())
			if err != nil {
				return err
			}
			id, receipt, err := a.Clients.Vault.LockTokens(cmd.Context(), amount, duration, memo)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created lock %d\n", id)
			printReceipt(cmd.OutOrStdout(), receipt)
			return nil
		},
	}
	cmd.Flags().StringVar(&memo, "memo", "", "lock memo")
	return cmd
}

func vaultShowLockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <lock-id>",
		Short: "Show a token lock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			lock, err := a.Clients.Vault.GetLock(cmd.Context(), id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:        %d\n", lock.ID)
			fmt.Fprintf(out, "Owner:     %s\n", lock.Owner)
			fmt.Fprintf(out, "Amount:    %s\n", view.FormatStroops(lock.Amount))
			fmt.Fprintf(out, "Unlocks:   %s\n", time.Unix(int64(lock.UnlockAt), 0).UTC().Format(time.RFC3339))
			fmt.Fprintf(out, "Claimed:   %v\n", lock.Claimed)
			fmt.Fprintf(out, "Claimable: %v\n", lock.Unlockable(uint64(time.Now().Unix())))
			return nil
		},
	}
}

func vaultClaimCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "claim <lock-id>",
		Short: "Release an expired lock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := connectApp(cmd.Context())
			if err != nil {
				return err
			}
			amount, receipt, err := a.Clients.Vault.Claim(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Released %s\n", view.FormatStroops(amount))
			printReceipt(cmd.OutOrStdout(), receipt)
			return nil
		},
	}
}

func vaultApproveEmergencyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "approve-emergency <lock-id>",
		Short: "Approve an early unlock as an emergency signer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := connectApp(cmd.Context())
			if err != nil {
				return err
			}
			count, receipt, err := a.Clients.Vault.ApproveEmergency(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Lock %d has %d emergency approvals\n", id, count)
			printReceipt(cmd.OutOrStdout(), receipt)
			return nil
		},
	}
}

func vaultEmergencyUnlockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "emergency-unlock <lock-id>",
		Short: "Release a lock early after enough emergency approvals",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := connectApp(cmd.Context())
			if err != nil {
				return err
			}
			amount, receipt, err := a.Clients.Vault.EmergencyUnlock(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Released %s\n", view.FormatStroops(amount))
			printReceipt(cmd.OutOrStdout(), receipt)
			return nil
		},
	}
}

func vaultVestingCmd() *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "vesting <vesting-id>",
		Short: "Show a vesting schedule and what is claimable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			when := time.Now()
			if at != "" {
				when, err = time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --at: %w", err)
				}
			}
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			p, err := a.Clients.Vault.ProjectVesting(cmd.Context(), id, when)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Beneficiary: %s\n", p.Schedule.Beneficiary)
			fmt.Fprintf(out, "Total:       %s\n", view.FormatStroops(p.Schedule.TotalAmount))
			fmt.Fprintf(out, "Claimed:     %s\n", view.FormatStroops(p.Schedule.ClaimedAmount))
			fmt.Fprintf(out, "Vested:      %s at %s\n", view.FormatStroops(p.Vested), p.At.UTC().Format(time.RFC3339))
			fmt.Fprintf(out, "Claimable:   %s\n", view.FormatStroops(p.Claimable))
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "evaluate at this RFC3339 time instead of now")
	return cmd
}

func vaultClaimVestedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "claim-vested <vesting-id>",
		Short: "Release the vested, unclaimed part of a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := connectApp(cmd.Context())
			if err != nil {
				return err
			}
			amount, receipt, err := a.Clients.Vault.ClaimVested(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Released %s\n", view.FormatStroops(amount))
			printReceipt(cmd.OutOrStdout(), receipt)
			return nil
		},
	}
}
