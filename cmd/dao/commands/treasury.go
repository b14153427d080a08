package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"soroban-dao/internal/view"
)

func treasuryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "treasury",
		Short: "Multi-signature treasury",
	}
	cmd.PersistentFlags().Bool("stroops", false, "amounts are integer stroops instead of whole units")
	cmd.AddCommand(
		treasuryBalanceCmd(),
		treasurySignersCmd(),
		treasuryListCmd(),
		treasuryShowCmd(),
		treasuryDepositCmd(),
		treasuryProposeCmd(),
		treasuryApproveCmd(),
		treasuryExecuteCmd(),
	)
	return cmd
}

func treasuryBalanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show the treasury balance and approval threshold",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			tcfg, err := a.Clients.Treasury.GetConfig(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Balance:   %s (%d stroops)\n", view.FormatStroops(tcfg.Balance), tcfg.Balance)
			fmt.Fprintf(out, "Threshold: %d of %d signers\n", tcfg.Threshold, tcfg.SignerCount)
			fmt.Fprintf(out, "Proposals: %d\n", tcfg.TxCount)
			return nil
		},
	}
}

func treasurySignersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signers",
		Short: "List the treasury signers",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			signers, err := a.Clients.Treasury.GetSigners(cmd.Context())
			if err != nil {
				return err
			}
			for _, s := range signers {
				fmt.Fprintln(cmd.OutOrStdout(), s)
			}
			return nil
		},
	}
}

func treasuryListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List withdrawal transactions",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			page, err := loader(a).TreasuryPage(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Balance %s, threshold %s\n\n", page.Balance, page.Threshold)
			tw := newTable(out)
			fmt.Fprintln(tw, "ID\tTO\tAMOUNT\tAPPROVALS\tSTATUS\tMEMO")
			for _, rows := range [][]view.TxRow{page.Pending, page.History} {
				for _, r := range rows {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", r.ID, r.ToShort, r.Amount, r.Approvals, r.Status.Label, r.Memo)
				}
			}
			return tw.Flush()
		},
	}
}

func treasuryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a withdrawal transaction",
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
			tx, err := a.Clients.Treasury.GetTransaction(cmd.Context(), id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:        %d\n", tx.ID)
			fmt.Fprintf(out, "Proposer:  %s\n", tx.Proposer)
			fmt.Fprintf(out, "To:        %s\n", tx.To)
			fmt.Fprintf(out, "Amount:    %s\n", view.FormatStroops(tx.Amount))
			fmt.Fprintf(out, "Approvals: %d/%d\n", tx.Approvals, tx.Threshold)
			fmt.Fprintf(out, "Status:    %s\n", view.TxStatusLabel(tx))
			if tx.Memo != "" {
				fmt.Fprintf(out, "Memo:      %s\n", tx.Memo)
			}
			return nil
		},
	}
}

func stroopsFlag(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("stroops")
	return v
}

func treasuryDepositCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deposit <amount>",
		Short: "Deposit into the treasury from the connected account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[0], stroopsFlag(cmd))
			if err != nil {
				return err
			}
			a, err := connectApp(cmd.Context())
			if err != nil {
				return err
			}
			receipt, err := a.Clients.Treasury.Deposit(cmd.Context(), amount)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deposited %s\n", view.FormatStroops(amount))
			printReceipt(cmd.OutOrStdout(), receipt)
			return nil
		},
	}
}

func treasuryProposeCmd() *cobra.Command {
	var memo string
	cmd := &cobra.Command{
		Use:   "propose <to> <amount>",
		Short: "Propose a withdrawal",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[1], stroopsFlag(cmd))
			if err != nil {
				return err
			}
			a, err := connectApp(cmd.Context())
			if err != nil {
				return err
			}
			id, receipt, err := a.Clients.Treasury.ProposeWithdrawal(cmd.Context(), args[0], amount, memo)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Proposed withdrawal %d\n", id)
			printReceipt(cmd.OutOrStdout(), receipt)
			return nil
		},
	}
	cmd.Flags().StringVar(&memo, "memo", "", "withdrawal memo")
	return cmd
}

func treasuryApproveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "approve <id>",
		Short: "Approve a withdrawal as the connected signer",
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
			receipt, err := a.Clients.Treasury.Approve(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Approved withdrawal %d\n", id)
			printReceipt(cmd.OutOrStdout(), receipt)
			return nil
		},
	}
}

func treasuryExecuteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "execute <id>",
		Short: "Execute an approved withdrawal",
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
			receipt, err := a.Clients.Treasury.Execute(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Executed withdrawal %d\n", id)
			printReceipt(cmd.OutOrStdout(), receipt)
			return nil
		},
	}
}
