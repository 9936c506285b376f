package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/possync/internal/menucache"
	"github.com/roach88/possync/internal/pos"
)

// NewMenuCommand creates the menu command group.
func NewMenuCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "menu",
		Short: "Manage the cached menu",
	}
	cmd.AddCommand(newMenuImportCommand(rootOpts))
	cmd.AddCommand(newMenuShowCommand(rootOpts))
	cmd.AddCommand(newMenuRefreshCommand(rootOpts))
	return cmd
}

func newMenuImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <menu.yaml|menu.json>",
		Short: "Replace the cached menu from a file",
		Long: `Replace the cached menu with the categories in a YAML or JSON file
(JSON is valid YAML). The snapshot is stamped with the current time.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var categories []pos.MenuCategory
			if err := decodeFile(args[0], &categories); err != nil {
				return WrapExitError(ExitCommandError, "failed to read menu", err)
			}

			t, err := rootOpts.openTerminal()
			if err != nil {
				return err
			}
			defer t.Close()

			snap, err := t.menu.Replace(cmd.Context(), categories)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to cache menu", err)
			}
			return rootOpts.formatter(cmd).Render(menuSummary(snap, true), func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Cached %d categories, %d items\n", len(snap.Categories), snap.ItemCount())
				return err
			})
		},
	}
}

// MenuOutput is the JSON data of menu show and menu refresh.
type MenuOutput struct {
	CapturedAt time.Time          `json:"captured_at"`
	Fresh      bool               `json:"fresh"`
	Items      int                `json:"items"`
	Categories []pos.MenuCategory `json:"categories"`
}

func menuSummary(snap pos.MenuSnapshot, fresh bool) MenuOutput {
	return MenuOutput{CapturedAt: snap.CapturedAt, Fresh: fresh, Items: snap.ItemCount(), Categories: snap.Categories}
}

func newMenuShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the cached menu, refreshing it if stale",
		Long: `Show the cached menu. If it is older than menu.freshness and a menu
URL is configured, it is refreshed first; if the refresh fails the stale
menu is shown with a warning.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := rootOpts.openTerminal()
			if err != nil {
				return err
			}
			defer t.Close()

			snap, err := t.menu.Get(cmd.Context())
			fresh := err == nil
			if err != nil && !errors.Is(err, menucache.ErrStale) {
				if errors.Is(err, menucache.ErrNoMenu) {
					return WrapExitError(ExitFailure, "no menu cached", err)
				}
				return WrapExitError(ExitCommandError, "failed to read menu", err)
			}
			return renderMenu(cmd, rootOpts, snap, fresh)
		},
	}
}

func newMenuRefreshCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "refresh",
		Short:         "Fetch the menu from menu.url now",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := rootOpts.openTerminal()
			if err != nil {
				return err
			}
			defer t.Close()

			snap, err := t.menu.Refresh(cmd.Context())
			if err != nil {
				if errors.Is(err, menucache.ErrNoFetcher) {
					return WrapExitError(ExitCommandError, "menu.url is not configured", err)
				}
				return WrapExitError(ExitFailure, "menu refresh failed", err)
			}
			return renderMenu(cmd, rootOpts, snap, true)
		},
	}
}

func renderMenu(cmd *cobra.Command, rootOpts *RootOptions, snap pos.MenuSnapshot, fresh bool) error {
	out := menuSummary(snap, fresh)
	f := rootOpts.formatter(cmd)
	return f.Render(out, func(w io.Writer) error {
		state := "fresh"
		if !fresh {
			state = "STALE"
		}
		fmt.Fprintf(w, "Menu captured %s (%s)\n", snap.CapturedAt.UTC().Format(time.RFC3339), state)
		for _, c := range snap.Categories {
			fmt.Fprintf(w, "\n%s\n", c.Name)
			rows := make([][]string, 0, len(c.Items))
			for _, it := range c.Items {
				avail := ""
				if !it.Available {
					avail = "unavailable"
				}
				rows = append(rows, []string{"  " + it.ID, it.Name, it.Price.String(), avail})
			}
			if err := f.Table(w, []string{"  ID", "NAME", "PRICE", ""}, rows); err != nil {
				return err
			}
		}
		return nil
	})
}

// decodeFile reads a YAML or JSON document, rejecting unknown fields.
func decodeFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
