package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"relayfeed/internal/infra/db"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Create the watch list and ledger tables (idempotent)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.ensureConfig()
			dialect, err := db.ParseDialect(cfg.DatabaseDriver)
			if err != nil {
				return err
			}
			database, err := db.Open(cmd.Context(), dialect, cfg.DSN())
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()
			if err := db.MigrateUp(database, dialect); err != nil {
				return fmt.Errorf("migrate up: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date")
			return nil
		},
	})

	var yes bool
	down := &cobra.Command{
		Use:   "down",
		Short: "Drop every relayfeed table",
		Long: "Down drops the watch list and the dispatch ledger. Entries still in the feed\n" +
			"will be dispatched again once the ledger is gone.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to drop the ledger without --yes")
			}
			cfg := ctx.ensureConfig()
			dialect, err := db.ParseDialect(cfg.DatabaseDriver)
			if err != nil {
				return err
			}
			database, err := db.Open(cmd.Context(), dialect, cfg.DSN())
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()
			if err := db.MigrateDown(database); err != nil {
				return fmt.Errorf("migrate down: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "All tables dropped")
			return nil
		},
	}
	down.Flags().BoolVar(&yes, "yes", false, "Confirm dropping the ledger")
	migrateCmd.AddCommand(down)

	return migrateCmd
}
