// Package cmd provides the CLI commands for autoprice.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/autoprice/internal/app"
	"github.com/Aman-CERP/autoprice/internal/config"
	apperrors "github.com/Aman-CERP/autoprice/internal/errors"
	"github.com/Aman-CERP/autoprice/internal/logging"
	"github.com/Aman-CERP/autoprice/pkg/version"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	debug      bool
	configDir  string
	catalogDir string
}

// NewRootCmd creates the root command for the autoprice CLI.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}
	var loggingCleanup func()

	cmd := &cobra.Command{
		Use:   "autoprice",
		Short: "Search a vehicle price catalog from the terminal or over MCP",
		Long: `autoprice indexes a directory of JSON vehicle catalogs and answers
ranked brand/model searches with prices.

Search results are memoized in a tiered cache, and recently selected
vehicles are kept in a short history that survives restarts.

Run 'autoprice serve' to expose the same operations to AI assistants
over the Model Context Protocol (stdio).`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// serve installs its own file-only logger.
			if cmd.Name() == "serve" {
				return nil
			}
			cleanup, err := logging.Install(logging.CLIConfig(opts.debug))
			if err != nil {
				return fmt.Errorf("failed to setup logging: %w", err)
			}
			loggingCleanup = cleanup
			if opts.debug {
				slog.Debug("debug_logging_enabled",
					slog.String("log_file", logging.DefaultLogPath()),
					slog.String("version", version.Version))
			}
			return nil
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			if loggingCleanup != nil {
				loggingCleanup()
				loggingCleanup = nil
			}
			return nil
		},
	}

	cmd.SetVersionTemplate("autoprice version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging to ~/.autoprice/logs/")
	cmd.PersistentFlags().StringVar(&opts.configDir, "config-dir", ".", "Directory holding .autoprice.yaml; relative paths resolve against it")
	cmd.PersistentFlags().StringVar(&opts.catalogDir, "catalog", "", "Catalog directory (overrides catalog.dir)")

	cmd.AddCommand(newSearchCmd(opts))
	cmd.AddCommand(newHistoryCmd(opts))
	cmd.AddCommand(newCacheCmd(opts))
	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command and prints any error to stderr.
func Execute() error {
	err := NewRootCmd().Execute()
	if err != nil {
		_, _ = fmt.Fprint(os.Stderr, formatError(err))
	}
	return err
}

// formatError renders structured errors with their hint and code, and
// anything else (flag and argument errors) as a single line.
func formatError(err error) string {
	if apperrors.GetCode(err) != "" {
		return apperrors.FormatForCLI(err)
	}
	return fmt.Sprintf("Error: %s\n", err)
}

// loadConfig loads the layered configuration and applies --catalog.
func (o *globalOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configDir)
	if err != nil {
		return nil, err
	}
	if o.catalogDir != "" {
		cfg.Catalog.Dir = o.catalogDir
	}
	return cfg, nil
}

// openApp builds the application. With loadCatalog the catalog directory
// is ingested; a failure is returned only when requireCatalog is set and
// logged otherwise, so history and cache commands work without a catalog.
func (o *globalOptions) openApp(ctx context.Context, loadCatalog, requireCatalog bool) (*app.App, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	a, err := app.New(cfg)
	if err != nil {
		return nil, err
	}
	if !loadCatalog {
		return a, nil
	}

	res, err := a.Reload(ctx)
	if err != nil {
		if requireCatalog {
			_ = a.Close()
			return nil, err
		}
		slog.Warn("catalog_unavailable", slog.String("error", err.Error()))
		return a, nil
	}
	slog.Debug("catalog_ingested",
		slog.Uint64("generation", res.Stats.Generation),
		slog.Int("documents", res.Stats.Documents),
		slog.Int("skipped", res.Stats.Skipped))
	return a, nil
}

func closeApp(a *app.App) {
	if err := a.Close(); err != nil {
		slog.Warn("app_close_failed", slog.String("error", err.Error()))
	}
}
