package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/possync/internal/menucache"
	"github.com/roach88/possync/internal/store"
)

// StatusOutput is the JSON data of the status command.
type StatusOutput struct {
	TerminalID     string     `json:"terminal_id,omitempty"`
	DB             string     `json:"db"`
	SchemaVersion  int        `json:"schema_version"`
	Transport      string     `json:"transport"`
	Online         bool       `json:"online"`
	Pending        int        `json:"pending"`
	OldestPending  *time.Time `json:"oldest_pending,omitempty"`
	HeldCarts      int        `json:"held_carts"`
	MenuCapturedAt *time.Time `json:"menu_captured_at,omitempty"`
	MenuFresh      bool       `json:"menu_fresh"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "status",
		Short:         "Show pending transactions and connectivity",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := rootOpts.openTerminal()
			if err != nil {
				return err
			}
			defer t.Close()
			ctx := cmd.Context()

			out := StatusOutput{
				TerminalID: t.cfg.TerminalID,
				DB:         t.cfg.DB,
				Transport:  t.cfg.Sync.Transport,
				Online:     t.probeOnce(ctx),
			}
			if out.SchemaVersion, err = t.store.SchemaVersion(ctx); err != nil {
				return WrapExitError(ExitCommandError, "failed to read schema version", err)
			}

			pending, err := t.store.UnsyncedTransactions(ctx)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read pending transactions", err)
			}
			out.Pending = len(pending)
			if len(pending) > 0 {
				oldest := pending[0].CapturedAt
				out.OldestPending = &oldest
			}

			carts, err := t.store.ListCarts(ctx)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read held carts", err)
			}
			out.HeldCarts = len(carts)

			snap, err := t.store.MenuSnapshot(ctx)
			switch {
			case err == nil:
				out.MenuCapturedAt = &snap.CapturedAt
				out.MenuFresh = menucache.IsFresh(snap, rootOpts.now(), t.cfg.Menu.Freshness)
			case !store.IsNotFound(err):
				return WrapExitError(ExitCommandError, "failed to read menu", err)
			}

			return rootOpts.formatter(cmd).Render(out, func(w io.Writer) error {
				return writeStatusText(w, out)
			})
		},
	}
}

func writeStatusText(w io.Writer, out StatusOutput) error {
	online := "offline"
	if out.Online {
		online = "online"
	}
	if out.TerminalID != "" {
		fmt.Fprintf(w, "Terminal:  %s\n", out.TerminalID)
	}
	fmt.Fprintf(w, "Database:  %s (schema v%d)\n", out.DB, out.SchemaVersion)
	fmt.Fprintf(w, "Transport: %s (%s)\n", out.Transport, online)
	fmt.Fprintf(w, "Pending:   %d", out.Pending)
	if out.OldestPending != nil {
		fmt.Fprintf(w, " (oldest %s)", out.OldestPending.Format(time.RFC3339))
	}
	fmt.Fprintln(w)
	if out.HeldCarts > 0 {
		fmt.Fprintf(w, "Held:      %d cart(s)\n", out.HeldCarts)
	}
	switch {
	case out.MenuCapturedAt == nil:
		fmt.Fprintln(w, "Menu:      none cached")
	case out.MenuFresh:
		fmt.Fprintf(w, "Menu:      fresh (captured %s)\n", out.MenuCapturedAt.Format(time.RFC3339))
	default:
		fmt.Fprintf(w, "Menu:      stale (captured %s)\n", out.MenuCapturedAt.Format(time.RFC3339))
	}
	return nil
}
