package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/possync/internal/syncer"
)

// SyncOutput is the JSON data of the sync command.
type SyncOutput struct {
	Skipped   string   `json:"skipped,omitempty"`
	Sent      int      `json:"sent"`
	Failed    int      `json:"failed"`
	Remaining int      `json:"remaining"`
	Errors    []string `json:"errors,omitempty"`
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Upload pending transactions once",
		Long: `Run a single sync cycle: send every unsynced transaction, oldest first,
and mark each one synced after the remote accepts it.

Exits 1 if any transaction failed to send or the remote is offline.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := rootOpts.openTerminal()
			if err != nil {
				return err
			}
			defer t.Close()

			f := rootOpts.formatter(cmd)
			if t.manager == nil {
				_ = f.Error("SYNC_DISABLED", "sync.transport is none", nil)
				return NewExitError(ExitCommandError, "sync is not configured")
			}

			ctx := cmd.Context()
			t.probeOnce(ctx)
			res, err := t.manager.SyncNow(ctx)
			if err != nil {
				_ = f.Error("STORAGE_UNAVAILABLE", err.Error(), nil)
				return WrapExitError(ExitCommandError, "sync failed", err)
			}

			out := syncOutput(res)
			if err := f.Render(out, func(w io.Writer) error {
				return writeSyncText(w, out)
			}); err != nil {
				return err
			}

			if res.Skipped == syncer.SkipOffline {
				return NewExitError(ExitFailure, "remote is offline")
			}
			if res.Failed > 0 {
				return NewExitError(ExitFailure, fmt.Sprintf("%d transaction(s) failed to send", res.Failed))
			}
			return nil
		},
	}
}

func syncOutput(res syncer.CycleResult) SyncOutput {
	out := SyncOutput{
		Skipped:   string(res.Skipped),
		Sent:      res.Sent,
		Failed:    res.Failed,
		Remaining: res.Remaining,
	}
	for _, e := range res.Errors {
		out.Errors = append(out.Errors, e.Error())
	}
	return out
}

func writeSyncText(w io.Writer, out SyncOutput) error {
	if out.Skipped != "" {
		_, err := fmt.Fprintf(w, "Sync skipped: %s\n", out.Skipped)
		return err
	}
	fmt.Fprintf(w, "Sent: %d  Failed: %d  Remaining: %d\n", out.Sent, out.Failed, out.Remaining)
	for _, e := range out.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
	return nil
}

// SweepOutput is the JSON data of the sweep command.
type SweepOutput struct {
	Cutoff   time.Time `json:"cutoff"`
	Deleted  int       `json:"deleted"`
	Failures []string  `json:"failures,omitempty"`
}

// NewSweepCommand creates the sweep command.
func NewSweepCommand(rootOpts *RootOptions) *cobra.Command {
	var window time.Duration

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete synced transactions older than the retention window",
		Long: `Delete synced transactions captured before now minus the retention
window. Unsynced transactions are never deleted, however old.

Examples:
  possync sweep
  possync sweep --window 168h`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := rootOpts.openTerminal()
			if err != nil {
				return err
			}
			defer t.Close()

			w := window
			if w == 0 {
				w = t.sweeper.Window()
			}
			res, err := t.sweeper.Sweep(cmd.Context(), w)
			if err != nil {
				return WrapExitError(ExitCommandError, "sweep failed", err)
			}

			out := SweepOutput{Cutoff: res.Cutoff, Deleted: res.Deleted}
			for _, e := range res.Failures {
				out.Failures = append(out.Failures, e.Error())
			}
			if err := rootOpts.formatter(cmd).Render(out, func(w io.Writer) error {
				fmt.Fprintf(w, "Deleted %d synced transaction(s) captured before %s\n",
					out.Deleted, out.Cutoff.Format(time.RFC3339))
				for _, e := range out.Failures {
					fmt.Fprintf(w, "  %s\n", e)
				}
				return nil
			}); err != nil {
				return err
			}
			if len(res.Failures) > 0 {
				return NewExitError(ExitFailure, fmt.Sprintf("%d transaction(s) could not be deleted", len(res.Failures)))
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&window, "window", 0, "retention window (default retention.window)")

	return cmd
}
