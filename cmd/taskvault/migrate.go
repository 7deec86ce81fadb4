package main

import (
	"github.com/spf13/cobra"

	"github.com/Skotchmaster/taskvault/pkg/db"
)

func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE:  runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, l, err := loadConfig()
	if err != nil {
		return exitError(cmd, nil, err)
	}

	gdb, _, err := openRepo(cmd.Context(), cfg, l)
	if err != nil {
		return exitError(cmd, l, err)
	}
	defer db.Close(gdb)

	l.Info("migrations completed")
	return nil
}
