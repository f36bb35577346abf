package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/anstrom/portward/internal/db"
)

// migrateCmd manages the database schema.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
	Long: `Apply or inspect the embedded database migrations. 'portward serve'
applies pending migrations on startup; these commands do it explicitly.`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withMigrator(cmd, func(m *db.Migrator) error {
			applied, err := m.Up(cmd.Context())
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Println("Database schema is up to date.")
				return nil
			}
			for _, name := range applied {
				fmt.Printf("Applied %s\n", name)
			}
			return nil
		})
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which migrations have been applied",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withMigrator(cmd, func(m *db.Migrator) error {
			status, err := m.Status(cmd.Context())
			if err != nil {
				return err
			}
			renderMigrationStatus(os.Stdout, status)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd, migrateStatusCmd)
}

func withMigrator(cmd *cobra.Command, fn func(*db.Migrator) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	database, err := openDatabase(cmd.Context(), cfg, false)
	if err != nil {
		return err
	}
	defer func() { _ = database.Close() }()

	return fn(db.NewMigrator(database.DB))
}

func renderMigrationStatus(w io.Writer, status []db.MigrationStatus) {
	table := tablewriter.NewWriter(w)
	table.Header("MIGRATION", "STATE", "APPLIED AT")
	for _, s := range status {
		state, appliedAt := "pending", ""
		if s.Applied {
			state = "applied"
			appliedAt = s.AppliedAt.Local().Format(time.DateTime)
		}
		if s.Modified {
			state += " (modified)"
		}
		_ = table.Append([]string{s.Name, state, appliedAt})
	}
	_ = table.Render()
}
