package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/chrissnell/deltah/internal/log"
	"github.com/chrissnell/deltah/pkg/config"
)

var (
	convertForce  bool
	convertDryRun bool
)

var configConvertCmd = &cobra.Command{
	Use:   "config-convert <config.yaml> <config.db>",
	Short: "Convert a YAML configuration into a SQLite configuration database",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigConvert,
}

func init() {
	configConvertCmd.Flags().BoolVar(&convertForce, "force", false, "Overwrite an existing SQLite database")
	configConvertCmd.Flags().BoolVar(&convertDryRun, "dry-run", false, "Show what would be done without executing")
}

func runConfigConvert(cmd *cobra.Command, args []string) error {
	yamlFile, sqliteFile := args[0], args[1]
	out := cmd.OutOrStdout()

	if _, err := os.Stat(sqliteFile); err == nil && !convertForce {
		return fmt.Errorf("SQLite file already exists: %s (use --force to overwrite)", sqliteFile)
	}

	cfg, err := config.NewYAMLProvider(yamlFile).LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading YAML configuration: %w", err)
	}
	printConfigSummary(out, cfg)

	if convertDryRun {
		fmt.Fprintln(out, "DRY RUN complete - no database created")
		return nil
	}

	if convertForce {
		if err := os.Remove(sqliteFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("error removing existing SQLite file: %w", err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(sqliteFile), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	provider, err := config.NewSQLiteProvider(sqliteFile, log.GetSugaredLogger())
	if err != nil {
		return err
	}
	defer provider.Close()

	if err := provider.SaveConfig(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Fprintf(out, "Conversion completed. Use it with: --config-backend sqlite --config %s\n", sqliteFile)
	return nil
}

func printConfigSummary(w io.Writer, cfg *config.ConfigData) {
	fmt.Fprintf(w, "Runs (%d):\n", len(cfg.Runs))
	for _, r := range cfg.Runs {
		fmt.Fprintf(w, "  - %s (%s, %d increments)\n", r.Name, r.Engine, r.Increments)
	}
	fmt.Fprintf(w, "Seasonal conversions: %d\n", len(cfg.Seasonal))
	switch {
	case cfg.Storage.SQLite != nil:
		fmt.Fprintf(w, "Table store: sqlite %s\n", cfg.Storage.SQLite.Path)
	case cfg.Storage.Postgres != nil:
		fmt.Fprintln(w, "Table store: postgres")
	}
}
