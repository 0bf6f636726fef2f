package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/autoprice/internal/cache"
	"github.com/Aman-CERP/autoprice/internal/ui"
)

func newCacheCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the tiered cache",
		Long: `Inspect and maintain the tiered cache.

The fast tier lives only inside a running process, so from the CLI it is
empty; the session and durable tiers are read from storage.`,
	}

	cmd.AddCommand(newCacheStatsCmd(g))
	cmd.AddCommand(newCacheKeysCmd(g))
	cmd.AddCommand(newCacheGetCmd(g))
	cmd.AddCommand(newCacheSetCmd(g))
	cmd.AddCommand(newCacheClearCmd(g))
	cmd.AddCommand(newCacheCleanupCmd(g))

	return cmd
}

func newCacheStatsCmd(g *globalOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show per-tier counters and the index summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := g.openApp(cmd.Context(), true, false)
			if err != nil {
				return err
			}
			defer closeApp(a)
			return ui.NewRenderer(cmd.OutOrStdout(), jsonOutput).CacheStats(a.Cache.Stats(), a.Index.Stats())
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newCacheKeysCmd(g *globalOptions) *cobra.Command {
	var tierName string

	cmd := &cobra.Command{
		Use:   "keys",
		Short: "List live keys with their remaining TTL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tier, err := cache.ParseTier(tierName, true)
			if err != nil {
				return err
			}
			a, err := g.openApp(cmd.Context(), false, false)
			if err != nil {
				return err
			}
			defer closeApp(a)

			tiers := []cache.Tier{tier}
			if tier == cache.TierAll {
				tiers = cache.Tiers()
			}
			now := a.Cache.Now()
			out := cmd.OutOrStdout()
			for _, t := range tiers {
				for _, key := range a.Cache.Keys(t) {
					e, ok := a.Cache.Entry(t, key)
					if !ok {
						continue
					}
					remaining := time.UnixMilli(e.ExpiresAt).Sub(now).Round(time.Second)
					_, _ = fmt.Fprintf(out, "%-8s %-40s %s\n", t, key, remaining)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&tierName, "tier", "all", "Tier: fast, session, durable or all")
	return cmd
}

func newCacheGetCmd(g *globalOptions) *cobra.Command {
	var tierName string

	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print a cached value as JSON",
		Long: `Look the key up starting at --tier and falling through to lower tiers.
A hit in a lower tier is promoted into --tier.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tier, err := cache.ParseTier(tierName, false)
			if err != nil {
				return err
			}
			a, err := g.openApp(cmd.Context(), false, false)
			if err != nil {
				return err
			}
			defer closeApp(a)

			v, ok := a.Cache.Get(args[0], tier)
			if !ok {
				return fmt.Errorf("key %q not found", args[0])
			}
			return ui.NewRenderer(cmd.OutOrStdout(), true).JSON(v)
		},
	}
	cmd.Flags().StringVar(&tierName, "tier", string(cache.TierSession), "Tier to start the lookup at")
	return cmd
}

func newCacheSetCmd(g *globalOptions) *cobra.Command {
	var (
		tierName string
		ttl      time.Duration
		priority int
	)

	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a value; JSON values are decoded, anything else is a string",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tier, err := cache.ParseTier(tierName, false)
			if err != nil {
				return err
			}
			a, err := g.openApp(cmd.Context(), false, false)
			if err != nil {
				return err
			}
			defer closeApp(a)

			var value any = args[1]
			var decoded any
			if json.Unmarshal([]byte(args[1]), &decoded) == nil {
				value = decoded
			}

			setOpts := []cache.SetOption{cache.WithTier(tier), cache.WithPriority(priority)}
			if ttl > 0 {
				setOpts = append(setOpts, cache.WithTTL(ttl))
			}
			a.Cache.Set(args[0], value, setOpts...)
			ui.NewRenderer(cmd.OutOrStdout(), false).Message("Stored %s in %s", args[0], tier)
			return nil
		},
	}
	cmd.Flags().StringVar(&tierName, "tier", string(cache.TierDurable), "Tier: fast, session or durable")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Time to live (default: the tier's TTL)")
	cmd.Flags().IntVar(&priority, "priority", cache.DefaultPriority, "Entry priority")
	return cmd
}

func newCacheClearCmd(g *globalOptions) *cobra.Command {
	var tierName string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every entry from a tier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tier, err := cache.ParseTier(tierName, true)
			if err != nil {
				return err
			}
			a, err := g.openApp(cmd.Context(), false, false)
			if err != nil {
				return err
			}
			defer closeApp(a)

			n := a.Cache.Clear(tier)
			ui.NewRenderer(cmd.OutOrStdout(), false).Message("Removed %d entries from %s", n, tier)
			return nil
		},
	}
	cmd.Flags().StringVar(&tierName, "tier", "all", "Tier: fast, session, durable or all")
	return cmd
}

func newCacheCleanupCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove expired entries from every tier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := g.openApp(cmd.Context(), false, false)
			if err != nil {
				return err
			}
			defer closeApp(a)

			n := a.Janitor.RunOnce()
			ui.NewRenderer(cmd.OutOrStdout(), false).Message("Expired %d entries", n)
			return nil
		},
	}
}
