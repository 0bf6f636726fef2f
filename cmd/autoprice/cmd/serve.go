package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/autoprice/internal/logging"
	"github.com/Aman-CERP/autoprice/internal/mcp"
	"github.com/Aman-CERP/autoprice/pkg/version"
)

func newServeCmd(g *globalOptions) *cobra.Command {
	var transport string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server over stdio",
		Long: `Run the Model Context Protocol server.

Stdout carries JSON-RPC only; logs go to ~/.autoprice/logs/autoprice.log
(view them with 'autoprice logs -f'). The cache janitor runs in the
background and, unless catalog.watch is false, catalog edits are
re-indexed automatically.

Tools: search_catalog, history_list, history_add, history_clear,
history_match, cache_stats.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), g, transport)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport: stdio")
	return cmd
}

func runServe(ctx context.Context, g *globalOptions, transport string) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}

	level := cfg.Server.LogLevel
	if g.debug {
		level = "debug"
	}
	cleanup, err := logging.Install(logging.ServeConfig(level))
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer cleanup()

	slog.Info("serve_starting",
		slog.String("version", version.Version),
		slog.String("catalog", cfg.Catalog.Dir),
		slog.Int("pid", os.Getpid()))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := g.openApp(ctx, true, false)
	if err != nil {
		slog.Error("serve_init_failed", slog.String("error", err.Error()))
		return err
	}
	defer closeApp(a)

	if err := a.StartBackground(ctx); err != nil {
		// Searching still works against the catalog loaded at startup.
		slog.Warn("background_start_failed", slog.String("error", err.Error()))
	}

	srv, err := mcp.NewServer(mcp.Deps{
		Searcher: a.Engine,
		Catalog:  a.Index,
		History:  a.History,
		Cache:    a.Cache,
		Logger:   slog.Default(),
	})
	if err != nil {
		return err
	}
	return srv.Serve(ctx, transport)
}
