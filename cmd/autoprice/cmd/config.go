package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/autoprice/internal/config"
	"github.com/Aman-CERP/autoprice/internal/ui"
)

func newConfigCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or create configuration",
		Long: `Show or create configuration.

Configuration precedence (lowest to highest):
  1. Built-in defaults
  2. User config ($XDG_CONFIG_HOME/autoprice/config.yaml)
  3. Project config (.autoprice.yaml in --config-dir)
  4. Environment variables (AUTOPRICE_*)`,
	}

	cmd.AddCommand(newConfigShowCmd(g))
	cmd.AddCommand(newConfigInitCmd(g))
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigShowCmd(g *globalOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(cfg)
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return err
			}
			return enc.Close()
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newConfigInitCmd(g *globalOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a project .autoprice.yaml with the defaults",
		Long: `Write .autoprice.yaml into --config-dir with every option at its default.

An existing file is left alone unless --force is given; with --force it is
backed up first (the three most recent backups are kept).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, g.configDir, force, time.Now())
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file after backing it up")
	return cmd
}

func runConfigInit(cmd *cobra.Command, dir string, force bool, now time.Time) error {
	r := ui.NewRenderer(cmd.OutOrStdout(), false)
	path := filepath.Join(dir, config.ProjectConfigName)

	if _, err := os.Stat(path); err == nil {
		if !force {
			r.Warn("%s already exists; use --force to overwrite", path)
			return nil
		}
		backup, err := config.BackupFile(path, now)
		if err != nil {
			return fmt.Errorf("failed to back up %s: %w", path, err)
		}
		r.Message("Backed up to %s", backup)
	}

	cfg := config.NewConfig()
	// Keep the storage path out of the project file so each user gets
	// their own ~/.autoprice data.
	cfg.Storage.Path = ""
	if err := cfg.WriteYAML(path); err != nil {
		return err
	}
	r.Message("Wrote %s", path)
	return nil
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the user config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), config.GetUserConfigPath())
			return err
		},
	}
}
