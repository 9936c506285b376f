package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/possync/internal/pos"
	"github.com/roach88/possync/internal/store"
)

// NewTxCommand creates the tx command group.
func NewTxCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tx",
		Short: "Inspect recorded transactions",
	}
	cmd.AddCommand(newTxListCommand(rootOpts))
	cmd.AddCommand(newTxShowCommand(rootOpts))
	return cmd
}

// TxSummary is one row of tx list.
type TxSummary struct {
	ID         string    `json:"id"`
	CapturedAt time.Time `json:"captured_at"`
	Amount     string    `json:"total"`
	Items      int64     `json:"items"`
	Method     string    `json:"method,omitempty"`
	Synced     bool      `json:"synced"`
	Attempts   int       `json:"attempts,omitempty"`
	LastError  string    `json:"last_error,omitempty"`
	Customer   string    `json:"customer,omitempty"`
}

func newTxListCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		unsynced bool
		since    time.Duration
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions, oldest first",
		Long: `List recorded transactions in capture order.

Examples:
  possync tx list
  possync tx list --unsynced
  possync tx list --since 24h --limit 20`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, err := rootOpts.openStore()
			if err != nil {
				return err
			}
			defer closeStore(st)
			ctx := cmd.Context()

			var txs []pos.OfflineTransaction
			if unsynced {
				txs, err = st.UnsyncedTransactions(ctx)
				if err == nil && limit > 0 && len(txs) > limit {
					txs = txs[:limit]
				}
			} else {
				var from time.Time
				if since > 0 {
					from = rootOpts.now().Add(-since)
				}
				txs, err = st.ListTransactions(ctx, from, time.Time{}, limit)
			}
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to list transactions", err)
			}

			rows := make([]TxSummary, len(txs))
			for i, tx := range txs {
				rows[i] = summarize(tx)
			}
			f := rootOpts.formatter(cmd)
			return f.Render(rows, func(w io.Writer) error {
				if len(rows) == 0 {
					_, err := fmt.Fprintln(w, "No transactions.")
					return err
				}
				table := make([][]string, len(rows))
				for i, r := range rows {
					state := "pending"
					if r.Synced {
						state = "synced"
					} else if r.Attempts > 0 {
						state = fmt.Sprintf("pending (%d failed)", r.Attempts)
					}
					table[i] = []string{r.ID, r.CapturedAt.Format(time.RFC3339), r.Amount, fmt.Sprint(r.Items), state}
				}
				return f.Table(w, []string{"ID", "CAPTURED", "TOTAL", "ITEMS", "STATE"}, table)
			})
		},
	}

	cmd.Flags().BoolVar(&unsynced, "unsynced", false, "only transactions not yet synced")
	cmd.Flags().DurationVar(&since, "since", 0, "only transactions captured within this duration")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of transactions (0 = all)")

	return cmd
}

func summarize(tx pos.OfflineTransaction) TxSummary {
	s := TxSummary{
		ID:         tx.ID,
		CapturedAt: tx.CapturedAt,
		Amount:     tx.Cart.Total.String(),
		Items:      tx.Cart.ItemCount(),
		Method:     string(tx.Payment.Method),
		Synced:     tx.Synced,
		Attempts:   tx.Attempts,
		LastError:  tx.LastError,
	}
	if tx.Customer != nil {
		s.Customer = tx.Customer.Name
	}
	return s
}

func newTxShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <id>",
		Short:         "Show one transaction as a receipt",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, err := rootOpts.openStore()
			if err != nil {
				return err
			}
			defer closeStore(st)

			tx, err := st.GetTransaction(cmd.Context(), args[0])
			if err != nil {
				if store.IsNotFound(err) {
					return WrapExitError(ExitFailure, fmt.Sprintf("transaction %s not found", args[0]), err)
				}
				return WrapExitError(ExitCommandError, "failed to read transaction", err)
			}
			return rootOpts.formatter(cmd).Render(tx, func(w io.Writer) error {
				return WriteReceipt(w, tx)
			})
		},
	}
}
