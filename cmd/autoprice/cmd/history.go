package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/autoprice/internal/catalog"
	apperrors "github.com/Aman-CERP/autoprice/internal/errors"
	"github.com/Aman-CERP/autoprice/internal/history"
	"github.com/Aman-CERP/autoprice/internal/ui"
)

func newHistoryCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Manage recently selected vehicles",
	}

	cmd.AddCommand(newHistoryListCmd(g))
	cmd.AddCommand(newHistoryAddCmd(g))
	cmd.AddCommand(newHistoryClearCmd(g))
	cmd.AddCommand(newHistoryMatchCmd(g))

	return cmd
}

func newHistoryListCmd(g *globalOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent vehicles, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := g.openApp(cmd.Context(), false, false)
			if err != nil {
				return err
			}
			defer closeApp(a)
			return ui.NewRenderer(cmd.OutOrStdout(), jsonOutput).History(a.History.List())
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newHistoryAddCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "add <document-id> [config-id]",
		Short:   "Remember a catalog entry",
		Example: "  autoprice history add tesla-3 lr",
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.openApp(cmd.Context(), true, true)
			if err != nil {
				return err
			}
			defer closeApp(a)

			doc, ok := a.Index.Document(args[0])
			if !ok {
				return apperrors.ValidationError(fmt.Sprintf("unknown document %q", args[0]), nil)
			}
			var cfg *catalog.Config
			if len(args) == 2 {
				c, ok := doc.Config(args[1])
				if !ok {
					return apperrors.ValidationError(fmt.Sprintf("document %q has no config %q", args[0], args[1]), nil)
				}
				cfg = &c
			}

			item := a.History.Add(history.Snapshot(doc, cfg))
			ui.NewRenderer(cmd.OutOrStdout(), false).Message("Added %s %s (%s)",
				item.Brand, item.Name, ui.FormatPrice(item.Price))
			return nil
		},
	}
}

func newHistoryClearCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Forget all recent vehicles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := g.openApp(cmd.Context(), false, false)
			if err != nil {
				return err
			}
			defer closeApp(a)

			n := a.History.Len()
			a.History.Clear()
			ui.NewRenderer(cmd.OutOrStdout(), false).Message("Cleared %d item(s)", n)
			return nil
		},
	}
}

func newHistoryMatchCmd(g *globalOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "match <brand> <name> <price>",
		Short:   "Find the live catalog entry for a remembered vehicle",
		Example: `  autoprice history match Tesla "Model 3" 49990`,
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			price, err := strconv.ParseFloat(args[2], 64)
			if err != nil {
				return apperrors.ValidationError(fmt.Sprintf("invalid price %q", args[2]), nil)
			}

			a, err := g.openApp(cmd.Context(), true, true)
			if err != nil {
				return err
			}
			defer closeApp(a)

			r := ui.NewRenderer(cmd.OutOrStdout(), jsonOutput)
			m, ok := a.History.FindMatch(args[0], args[1], price)
			if !ok {
				if jsonOutput {
					return r.JSON(map[string]any{"found": false})
				}
				r.Warn("No catalog entry matches %s %s at %s", args[0], args[1], ui.FormatPrice(price))
				return nil
			}

			resolved := m.Resolved()
			if jsonOutput {
				return r.JSON(map[string]any{"found": true, "entry": resolved})
			}
			r.Message("%s  %s  (%s)", resolved.DisplayText(), ui.FormatPrice(resolved.Price), resolved.DocumentID)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
