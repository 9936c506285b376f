package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/possync/internal/status"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the terminal's background services",
		Long: `Run the sync manager, connectivity probe, retention sweeper and
(optionally) the local status API until interrupted.

Pending transactions are uploaded immediately, on every sync interval and
whenever connectivity returns.

Examples:
  possync serve --db ./pos.db
  possync serve --config ./possync.yaml --addr 127.0.0.1:8088`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, rootOpts, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "status API listen address (overrides status.addr)")

	return cmd
}

func runServe(cmd *cobra.Command, opts *RootOptions, addr string) error {
	t, err := opts.openTerminal()
	if err != nil {
		return err
	}
	defer t.Close()
	if addr == "" {
		addr = t.cfg.Status.Addr
	}

	// Setup signal handling for graceful shutdown
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	if t.prober != nil {
		g.Go(func() error {
			t.prober.Run(gctx)
			return nil
		})
	}
	if t.manager != nil {
		if err := t.manager.Start(gctx); err != nil {
			return WrapExitError(ExitFailure, "failed to start sync", err)
		}
	} else {
		slog.Warn("sync transport is none; transactions will stay local", "db", t.cfg.DB)
	}
	g.Go(func() error {
		t.sweeper.Run(gctx)
		return nil
	})
	if addr != "" {
		srv := &status.Server{
			TerminalID:   t.cfg.TerminalID,
			Transactions: t.store,
			Customers:    t.customers,
			Menu:         t.menu,
			Logger:       opts.log(),
		}
		if t.manager != nil {
			srv.Syncer = t.manager
		}
		g.Go(func() error {
			return srv.ListenAndServe(gctx, addr)
		})
	}

	slog.Info("terminal running",
		"terminal_id", t.cfg.TerminalID, "transport", t.cfg.Sync.Transport, "db", t.cfg.DB)

	if err := g.Wait(); err != nil {
		return WrapExitError(ExitFailure, "service failed", err)
	}
	return nil
}
