package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"soroban-dao/internal/domain"
	"soroban-dao/internal/reporting"
	"soroban-dao/internal/view"
)

func journalCmd() *cobra.Command {
	var (
		limit  int
		states []string
	)
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "List journaled operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}

			var records []*domain.OperationRecord
			if len(states) > 0 {
				filter := make([]domain.OperationState, len(states))
				for i, s := range states {
					filter[i] = domain.OperationState(strings.ToUpper(strings.TrimSpace(s)))
				}
				records, err = a.Journal.ListByState(cmd.Context(), filter...)
			} else {
				records, err = a.Journal.ListRecent(cmd.Context(), limit)
			}
			if err != nil {
				return err
			}

			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "CREATED\tCONTRACT\tMETHOD\tSTATE\tTX\tERROR")
			for _, r := range records {
				created := time.UnixMilli(r.CreatedAt).UTC().Format(time.RFC3339)
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					created, a.Addresses.Name(r.ContractID), r.Method, r.State, view.TruncateAddress(r.TxHash), r.ErrorKind)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum records")
	cmd.Flags().StringSliceVar(&states, "state", nil, "only records in these states (e.g. SUBMITTED,TIMED_OUT)")
	return cmd
}

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Reconcile in-flight operations and fetch new contract events",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			reconciled, err := a.Reconciler().ReconcileOnce(cmd.Context())
			if err != nil {
				return fmt.Errorf("reconcile: %w", err)
			}
			events, err := a.Poller().PollOnce(cmd.Context())
			if err != nil {
				return fmt.Errorf("poll events: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reconciled %d operations, stored %d events\n", reconciled, events)
			return nil
		},
	}
}

func exportCmd() *cobra.Command {
	var (
		outDir string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write Markdown, CSV and XLSX activity reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			if outDir == "" {
				outDir = a.Config.Server.OutputDir
			}
			report, err := a.Reports.Generate(cmd.Context(), limit)
			if err != nil {
				return err
			}
			files, err := reporting.WriteFiles(outDir, report)
			if err != nil {
				return err
			}
			for _, f := range files {
				fmt.Fprintln(cmd.OutOrStdout(), f)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory (default OUTPUT_DIR)")
	cmd.Flags().IntVar(&limit, "limit", 1000, "maximum operations and events")
	return cmd
}
