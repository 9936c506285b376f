package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/roach88/possync/internal/customers"
	"github.com/roach88/possync/internal/pos"
)

// NewCustomersCommand creates the customers command group.
func NewCustomersCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "customers",
		Short: "Manage the cached customer directory",
	}
	cmd.AddCommand(newCustomersImportCommand(rootOpts))
	cmd.AddCommand(newCustomersSearchCommand(rootOpts))
	cmd.AddCommand(newCustomersLookupCommand(rootOpts))
	return cmd
}

// ImportOutput is the JSON data of customers import.
type ImportOutput struct {
	Imported int      `json:"imported"`
	Skipped  []string `json:"skipped,omitempty"`
}

func newCustomersImportCommand(rootOpts *RootOptions) *cobra.Command {
	var noProgress bool

	cmd := &cobra.Command{
		Use:   "import <customers.yaml|customers.json>",
		Short: "Cache a batch of customers",
		Long: `Cache every customer in a YAML or JSON list. Entries without an id or
a phone number are skipped and reported.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var batch []pos.Customer
			if err := decodeFile(args[0], &batch); err != nil {
				return WrapExitError(ExitCommandError, "failed to read customers", err)
			}

			t, err := rootOpts.openTerminal()
			if err != nil {
				return err
			}
			defer t.Close()

			var progress func()
			if !noProgress && rootOpts.Format == "text" {
				bar := progressbar.NewOptions(len(batch),
					progressbar.OptionSetWriter(cmd.ErrOrStderr()),
					progressbar.OptionSetDescription("importing customers"),
					progressbar.OptionShowCount(),
					progressbar.OptionClearOnFinish(),
				)
				defer func() { _ = bar.Finish() }()
				progress = func() { _ = bar.Add(1) }
			}

			res, err := t.customers.Import(cmd.Context(), batch, progress)
			if err != nil {
				return WrapExitError(ExitCommandError, fmt.Sprintf("import aborted after %d customers", res.Imported), err)
			}

			out := ImportOutput{Imported: res.Imported}
			for _, e := range res.Skipped {
				out.Skipped = append(out.Skipped, e.Error())
			}
			return rootOpts.formatter(cmd).Render(out, func(w io.Writer) error {
				fmt.Fprintf(w, "Imported %d customers, skipped %d\n", out.Imported, len(out.Skipped))
				for _, s := range out.Skipped {
					fmt.Fprintf(w, "  %s\n", s)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "do not draw a progress bar")

	return cmd
}

func newCustomersSearchCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search cached customers by phone, email or name",
		Long: `Search cached customers. Phone matching ignores punctuation; email and
name matching ignore case.

Examples:
  possync customers search 0101
  possync customers search "ann lee"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := rootOpts.openTerminal()
			if err != nil {
				return err
			}
			defer t.Close()

			found, err := t.customers.Search(cmd.Context(), args[0], limit)
			if err != nil {
				return WrapExitError(ExitCommandError, "search failed", err)
			}
			f := rootOpts.formatter(cmd)
			return f.Render(found, func(w io.Writer) error {
				return writeCustomers(f, w, found)
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", customers.DefaultSearchLimit, "maximum number of results")

	return cmd
}

func newCustomersLookupCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "lookup <phone>",
		Short:         "Find a customer by phone, asking the customer service if online",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := rootOpts.openTerminal()
			if err != nil {
				return err
			}
			defer t.Close()
			ctx := cmd.Context()

			t.probeOnce(ctx)
			c, err := t.customers.Lookup(ctx, args[0])
			if err != nil {
				if errors.Is(err, customers.ErrNotFound) {
					return WrapExitError(ExitFailure, "customer not found", err)
				}
				return WrapExitError(ExitCommandError, "lookup failed", err)
			}
			f := rootOpts.formatter(cmd)
			return f.Render(c, func(w io.Writer) error {
				return writeCustomers(f, w, []pos.Customer{c})
			})
		},
	}
}

func writeCustomers(f *OutputFormatter, w io.Writer, cs []pos.Customer) error {
	if len(cs) == 0 {
		_, err := fmt.Fprintln(w, "No customers found.")
		return err
	}
	rows := make([][]string, len(cs))
	for i, c := range cs {
		rows[i] = []string{c.ID, c.Name, c.Phone, c.Email, fmt.Sprint(c.VisitCount), c.TotalSpent.String()}
	}
	return f.Table(w, []string{"ID", "NAME", "PHONE", "EMAIL", "VISITS", "SPENT"}, rows)
}
