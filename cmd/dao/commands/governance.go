package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"soroban-dao/internal/app"
	"soroban-dao/internal/contracts"
	"soroban-dao/internal/view"
)

func governanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "governance",
		Aliases: []string{"gov"},
		Short:   "DAO proposals and voting",
	}
	cmd.AddCommand(
		governanceMembersCmd(),
		governanceListCmd(),
		governanceShowCmd(),
		governanceProposeCmd(),
		governanceVoteCmd(),
		governanceFinalizeCmd(),
		governanceExecuteCmd(),
	)
	return cmd
}

// currentLedger returns the latest ledger, or 0 when it cannot be read.
func currentLedger(ctx context.Context, a *app.App) uint32 {
	latest, err := a.RPC.GetLatestLedger(ctx)
	if err != nil {
		return 0
	}
	return latest.Sequence
}

func loader(a *app.App) *view.Loader {
	return &view.Loader{Treasury: a.Clients.Treasury, Governance: a.Clients.Governance, Session: a.Session}
}

func governanceMembersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "members",
		Short: "List DAO members",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			members, err := a.Clients.Governance.GetMembers(cmd.Context())
			if err != nil {
				return err
			}
			for _, m := range members {
				fmt.Fprintln(cmd.OutOrStdout(), m)
			}
			return nil
		},
	}
}

func governanceListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List proposals",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			cards, err := loader(a).Proposals(cmd.Context(), currentLedger(cmd.Context(), a))
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "ID\tSTATUS\tFOR\tAGAINST\tTURNOUT\tTITLE")
			for _, c := range cards {
				fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\t%s\n", c.ID, c.Status.Label, c.VotesFor, c.VotesAgainst, c.Turnout, c.Title)
			}
			return tw.Flush()
		},
	}
}

func governanceShowCmd() *cobra.Command {
	var asVoter bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a proposal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			open := openApp
			if asVoter {
				open = connectApp
			}
			a, err := open(cmd.Context())
			if err != nil {
				return err
			}
			card, err := loader(a).ProposalDetail(cmd.Context(), id, currentLedger(cmd.Context(), a))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "#%d %s [%s]\n", card.ID, card.Title, card.Status.Label)
			if card.Description != "" {
				fmt.Fprintf(out, "\n%s\n\n", card.Description)
			}
			fmt.Fprintf(out, "Proposer: %s\n", card.Proposer)
			if card.Amount != "" {
				fmt.Fprintf(out, "Amount:   %s\n", card.Amount)
			}
			fmt.Fprintf(out, "Votes:    %d for, %d against (%.1f%% for, %s)\n",
				card.VotesFor, card.VotesAgainst, card.ForPercent, card.Turnout)
			if card.VoteFor != nil {
				fmt.Fprintf(out, "Actions:  %s / %s\n", buttonText(*card.VoteFor), buttonText(*card.VoteAgainst))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asVoter, "as-voter", false, "connect the wallet and show whether it can vote")
	return cmd
}

func buttonText(b view.Button) string {
	if b.Disabled {
		return b.Label + " (disabled)"
	}
	return b.Label
}

func governanceProposeCmd() *cobra.Command {
	var (
		in      contracts.ProposalInput
		amount  string
		stroops bool
	)
	cmd := &cobra.Command{
		Use:   "propose",
		Short: "Open a proposal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if amount != "" {
				v, err := parseAmount(amount, stroops)
				if err != nil {
					return err
				}
				in.Amount = v
			}
			a, err := connectApp(cmd.Context())
			if err != nil {
				return err
			}
			id, receipt, err := a.Clients.Governance.CreateProposal(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created proposal %d\n", id)
			printReceipt(cmd.OutOrStdout(), receipt)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Title, "title", "", "proposal title")
	cmd.Flags().StringVar(&in.Description, "description", "", "proposal description")
	cmd.Flags().StringVar(&in.Action, "action", "", "action symbol carried out on execution")
	cmd.Flags().StringVar(&amount, "amount", "", "amount moved by the action")
	cmd.Flags().BoolVar(&stroops, "stroops", false, "amount is integer stroops instead of whole units")
	cmd.Flags().StringVar(&in.Target, "target", "", "address the action applies to")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func governanceVoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vote <id> <for|against>",
		Short: "Vote on a proposal",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var support bool
			switch strings.ToLower(args[1]) {
			case "for", "yes":
				support = true
			case "against", "no":
			default:
				return fmt.Errorf("vote must be for or against, got %q", args[1])
			}
			a, err := connectApp(cmd.Context())
			if err != nil {
				return err
			}
			receipt, err := a.Clients.Governance.Vote(cmd.Context(), id, support)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Voted %s proposal %d\n", strings.ToLower(args[1]), id)
			printReceipt(cmd.OutOrStdout(), receipt)
			return nil
		},
	}
}

func governanceFinalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "finalize <id>",
		Short: "Close voting on a proposal",
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
			status, receipt, err := a.Clients.Governance.Finalize(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Proposal %d is %s\n", id, status)
			printReceipt(cmd.OutOrStdout(), receipt)
			return nil
		},
	}
}

func governanceExecuteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "execute <id>",
		Short: "Execute a passed proposal",
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
			receipt, err := a.Clients.Governance.ExecuteProposal(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Executed proposal %d\n", id)
			printReceipt(cmd.OutOrStdout(), receipt)
			return nil
		},
	}
}
