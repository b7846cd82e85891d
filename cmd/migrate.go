package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/photo-report/internal/config"
	"github.com/kozaktomas/photo-report/internal/database/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply PostgreSQL schema migrations",
	Long: `Apply pending PostgreSQL schema migrations and print what ran.
With --dry-run, only list the pending migrations.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().Bool("dry-run", false, "List pending migrations without applying them")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	ctx := cmd.Context()
	pool, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to PostgreSQL: %w", err)
	}
	defer pool.Close()

	if mustGetBool(cmd, "dry-run") {
		pending, err := pool.Pending(ctx)
		if err != nil {
			return fmt.Errorf("checking migrations: %w", err)
		}
		if len(pending) == 0 {
			fmt.Println("Schema is up to date")
			return nil
		}
		fmt.Printf("%d pending migrations:\n", len(pending))
		for _, f := range pending {
			fmt.Printf("  %s\n", f)
		}
		return nil
	}

	applied, err := pool.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	if len(applied) == 0 {
		fmt.Println("Schema is up to date")
		return nil
	}
	for _, f := range applied {
		fmt.Printf("Applied %s\n", f)
	}
	return nil
}
