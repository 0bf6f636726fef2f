package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/autoprice/internal/ui"
)

func newSearchCmd(g *globalOptions) *cobra.Command {
	var (
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the vehicle catalog",
		Long: `Rank catalog entries against the query.

Each query word scores 10 for an exact word match and 5 for a prefix
match; names containing the whole query get 5 more. Documents with
configurations yield one result per configuration.`,
		Example: `  autoprice search tesla model
  autoprice search "x5" --limit 5
  autoprice search mod --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.openApp(cmd.Context(), true, true)
			if err != nil {
				return err
			}
			defer closeApp(a)

			query := strings.Join(args, " ")
			results := a.Engine.Query(query)
			if limit > 0 && limit < len(results) {
				results = results[:limit]
			}
			return ui.NewRenderer(cmd.OutOrStdout(), jsonOutput).SearchResults(query, results)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of results (default: search.max_results)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
