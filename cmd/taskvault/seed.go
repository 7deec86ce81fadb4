package main

import (
	"context"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/Skotchmaster/taskvault/internal/seed"
	"github.com/Skotchmaster/taskvault/pkg/db"
	"github.com/Skotchmaster/taskvault/pkg/hash"
)

const defaultSeedTimeout = 30 * time.Second

func NewSeedCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load demo accounts and tasks",
		Long: `Creates the demo admin and user accounts with sample tasks.
Accounts that already exist are left untouched.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeed(cmd, timeout)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", defaultSeedTimeout, "timeout for database operations")
	return cmd
}

func runSeed(cmd *cobra.Command, timeout time.Duration) error {
	cfg, l, err := loadConfig()
	if err != nil {
		return exitError(cmd, nil, err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	gdb, r, err := openRepo(ctx, cfg, l)
	if err != nil {
		return exitError(cmd, l, err)
	}
	defer db.Close(gdb)

	res, err := seed.Run(ctx, r, hash.NewBcrypt(cfg.BcryptCost), l)
	if err != nil {
		return exitError(cmd, l, oops.Code("SEED_FAILED").Wrap(err))
	}

	l.Info("seed completed", "users_created", res.UsersCreated, "users_skipped", res.UsersSkipped, "tasks_created", res.TasksCreated)
	return nil
}
