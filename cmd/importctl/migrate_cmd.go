package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/config"
	"github.com/EthanVT97/rangoon-version1.0.0.1/internal/database"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the PostgreSQL tables used by the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if !cfg.UsesDatabase() {
				return errors.New("DATABASE_URL is not set")
			}
			pool, err := database.Connect(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := database.Migrate(cmd.Context(), pool); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}
