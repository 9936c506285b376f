package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/roach88/possync/internal/config"
	"github.com/roach88/possync/internal/recorder"
	"github.com/roach88/possync/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string
	DB         string
	TerminalID string

	// Config, if set, is used as-is instead of loading from file/env/flags.
	Config *config.Config

	// Now and IDs override the clock and transaction ids (for testing).
	Now func() time.Time
	IDs recorder.IDGenerator

	v      *viper.Viper
	logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the possync CLI.
func NewRootCommand() *cobra.Command {
	return NewRootCommandWithOptions(&RootOptions{})
}

// NewRootCommandWithOptions creates the root command around opts, so tests
// can inject a clock, an id generator or a ready-made config.
func NewRootCommandWithOptions(opts *RootOptions) *cobra.Command {
	opts.v = viper.New()

	cmd := &cobra.Command{
		Use:   "possync",
		Short: "possync - offline POS transaction store and sync",
		Long: `possync records point-of-sale transactions on the terminal, keeps them
durable while the network is down, and uploads them in order once it is back.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			opts.logger = newLogger(cmd.ErrOrStderr(), opts.Format, opts.Verbose)
			slog.SetDefault(opts.logger)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.ConfigFile, "config", "", "config file (default ./possync.yaml or ~/.config/possync/possync.yaml)")
	flags.StringVar(&opts.DB, "db", "", "path to the SQLite database")
	flags.StringVar(&opts.TerminalID, "terminal", "", "terminal id stamped on recorded sales")
	_ = opts.v.BindPFlag("db", flags.Lookup("db"))
	_ = opts.v.BindPFlag("terminal_id", flags.Lookup("terminal"))

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewSweepCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewTxCommand(opts))
	cmd.AddCommand(NewCheckoutCommand(opts))
	cmd.AddCommand(NewMenuCommand(opts))
	cmd.AddCommand(NewCustomersCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// newLogger writes diagnostics to w, as JSON when the output is JSON so
// that log lines and results can be told apart by a machine.
func newLogger(w io.Writer, format string, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	hopts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}

// loadConfig returns the effective configuration.
func (o *RootOptions) loadConfig() (config.Config, error) {
	if o.Config != nil {
		cfg := *o.Config
		if o.DB != "" {
			cfg.DB = o.DB
		}
		return cfg, nil
	}
	v := o.v
	if v == nil {
		v = viper.New()
		if o.DB != "" {
			v.Set("db", o.DB)
		}
		if o.TerminalID != "" {
			v.Set("terminal_id", o.TerminalID)
		}
	}
	cfg, err := config.Load(v, o.ConfigFile)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	return cfg, nil
}

// openStore loads the config and opens its database.
func (o *RootOptions) openStore() (config.Config, *store.Store, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return config.Config{}, nil, err
	}
	st, err := store.Open(cfg.DB)
	if err != nil {
		return config.Config{}, nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	o.log().Debug("database ready", "path", cfg.DB)
	return cfg, st, nil
}

func (o *RootOptions) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o *RootOptions) log() *slog.Logger {
	if o.logger != nil {
		return o.logger
	}
	return slog.Default()
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

func closeStore(st *store.Store) {
	if err := st.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}
