package main

import (
	"github.com/jimdaga/friend-frenzy/internal/database"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	var down int

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp("")
			if err != nil {
				return err
			}
			defer a.Close()

			if down > 0 {
				return database.RollbackMigrations(a.db, down)
			}
			return database.RunMigrations(a.db)
		},
	}

	cmd.Flags().IntVar(&down, "down", 0, "Roll back this many migrations instead of applying")
	return cmd
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load development data (idempotent)",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp("")
			if err != nil {
				return err
			}
			defer a.Close()

			if err := database.RunMigrations(a.db); err != nil {
				return err
			}
			return database.SeedDevData(a.db)
		},
	}
}
