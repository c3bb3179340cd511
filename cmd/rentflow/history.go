// cmd/rentflow/history.go
package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/altuslabsxyz/rentflow/internal/history"
	"github.com/altuslabsxyz/rentflow/internal/historyapi"
	"github.com/altuslabsxyz/rentflow/internal/output"
	"github.com/altuslabsxyz/rentflow/pkg/network/soroban"
)

func newHistoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Serve and inspect the transaction history",
		Long:  `Commands for running the history API and reading recorded transactions.`,
	}

	cmd.AddCommand(newHistoryServeCmd(a))
	cmd.AddCommand(newHistoryGetCmd(a))
	cmd.AddCommand(newHistoryListCmd(a))

	return cmd
}

func newHistoryServeCmd(a *app) *cobra.Command {
	var listen, backend, path, dsn string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the history API",
		Long: `Serve the transaction history over HTTP.

Status requests for submitted transactions are resolved against the ledger of
the record's network and the outcome is persisted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("listen") {
				a.cfg.History.Listen = listen
			}
			if cmd.Flags().Changed("backend") {
				a.cfg.History.Backend = backend
			}
			if cmd.Flags().Changed("path") {
				a.cfg.History.Path = path
			}
			if cmd.Flags().Changed("dsn") {
				a.cfg.History.DSN = dsn
			}

			store, err := openStore(a.cfg.History)
			if err != nil {
				return err
			}
			queriers, err := newQueriers(a.cfg, newHTTPClient(soroban.DefaultHTTPTimeout))
			if err != nil {
				store.Close()
				return err
			}

			srv, err := historyapi.New(historyapi.Config{
				ListenAddr: a.cfg.History.Listen,
				Store:      store,
				Queriers:   queriers,
				Metrics:    a.metrics,
				Logger:     a.logger,
			})
			if err != nil {
				store.Close()
				return err
			}

			a.out.Success("history api listening on %s (%s backend)", a.cfg.History.Listen, a.cfg.History.Backend)
			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "TCP address to listen on")
	cmd.Flags().StringVar(&backend, "backend", "", "Store backend: memory, bolt, sqlite, postgres")
	cmd.Flags().StringVar(&path, "path", "", "Database file for the bolt and sqlite backends")
	cmd.Flags().StringVar(&dsn, "dsn", "", "PostgreSQL connection string")

	return cmd
}

func newHistoryGetCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <record-id>",
		Short: "Show a recorded transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := a.openHistory()
			if err != nil {
				return err
			}
			defer backend.close()

			r, err := backend.reader.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if a.out.IsJSONMode() {
				return a.out.JSON(r)
			}
			printRecord(a.out, r)
			return nil
		},
	}

	return cmd
}

func newHistoryListCmd(a *app) *cobra.Command {
	var (
		contractID string
		wallet     string
		status     string
		limit      int
	)

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List recorded transactions, newest first",
		Aliases: []string{"ls"},
		RunE: func(cmd *cobra.Command, args []string) error {
			st := history.Status(status)
			if status != "" && !st.Valid() {
				return fmt.Errorf("invalid status %q", status)
			}

			backend, err := a.openHistory()
			if err != nil {
				return err
			}
			defer backend.close()

			records, err := backend.reader.List(cmd.Context(), history.ListOptions{
				ContractID:    contractID,
				WalletAddress: wallet,
				Status:        st,
				Limit:         limit,
			})
			if err != nil {
				return err
			}

			if a.out.IsJSONMode() {
				if records == nil {
					records = []*history.Record{}
				}
				return a.out.JSON(records)
			}
			if len(records) == 0 {
				a.out.Info("No transactions recorded.")
				return nil
			}

			w := tabwriter.NewWriter(a.out.Writer(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCONTRACT\tMETHOD\tSTATUS\tTX\tCREATED")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					r.ID, output.ShortHash(r.ContractID), r.Method, r.Status,
					output.ShortHash(r.TransactionID), r.CreatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&contractID, "contract", "", "Filter by contract id")
	cmd.Flags().StringVar(&wallet, "source", "", "Filter by source account")
	cmd.Flags().StringVar(&status, "status", "", "Filter by lifecycle status")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of records (0 = all)")

	return cmd
}

func printRecord(out *output.Logger, r *history.Record) {
	out.Bold("%s.%s", r.ContractID, r.Method)
	out.Field("Record", r.ID)
	out.Field("Status", r.Status)
	out.Field("On-chain", r.DeriveOnchainStatus())
	out.Field("Network", r.Network)
	out.Field("Source", r.WalletAddress)
	out.Field("Fee", r.FeeUnits)
	if r.CostEstimate != nil {
		out.Field("Estimate", fmt.Sprintf("%d (%s)", r.CostEstimate.FeeUnits, r.CostEstimate.Provenance))
	}
	if r.TransactionID != "" {
		out.Field("Transaction", r.TransactionID)
	}
	if r.Ledger > 0 {
		out.Field("Ledger", r.Ledger)
	}
	if r.ErrorMessage != "" {
		out.Field("Error", r.ErrorMessage)
	}
	if r.RejectionEnvelope != "" {
		out.Field("Rejection", r.RejectionEnvelope)
	}
	if len(r.Metadata) > 0 {
		out.Field("Metadata", strings.TrimSpace(string(r.Metadata)))
	}
	out.Field("Created", r.CreatedAt.Format(time.RFC3339))
	out.Field("Updated", r.UpdatedAt.Format(time.RFC3339))
}
