package main

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"github.com/chrissnell/deltah/internal/log"
	"github.com/chrissnell/deltah/internal/storage/sqlite"
)

var (
	migrateTarget int
	migrateStatus bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate <tables.db>",
	Short: "Migrate the schema of a SQLite table store",
	Long: `Brings the schema of a SQLite lookup table store up to date, or to --target.
A lower target rolls migrations back. --status only prints the current version
and the pending migrations.`,
	Args: cobra.ExactArgs(1),
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().IntVar(&migrateTarget, "target", -1, "Target schema version (-1 for latest)")
	migrateCmd.Flags().BoolVar(&migrateStatus, "status", false, "Show the schema version and pending migrations")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	db, err := sql.Open("sqlite", args[0])
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	migrator := sqlite.NewMigrator(db, log.GetSugaredLogger())
	out := cmd.OutOrStdout()

	if !migrateStatus {
		if err := migrator.MigrateTo(migrateTarget); err != nil {
			return err
		}
	}

	version, err := migrator.CurrentVersion()
	if err != nil {
		return err
	}
	pending, err := migrator.Pending()
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Current version: %d\n", version)
	fmt.Fprintf(out, "Pending migrations: %d\n", len(pending))
	for _, m := range pending {
		fmt.Fprintf(out, "  %d: %s\n", m.Version, m.Name)
	}
	return nil
}
