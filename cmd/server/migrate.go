package main

import (
	"github.com/spf13/cobra"

	"github.com/iliyamo/farm-marketplace/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the identity tables and seed the id sequences",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, dialect, err := database.Open(ctx, cfg.DB)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := database.Migrate(ctx, db, dialect); err != nil {
			return err
		}
		logger.Info("schema applied", "dialect", string(dialect))
		return nil
	},
}
