package main

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/Skotchmaster/taskvault/internal/config"
	"github.com/Skotchmaster/taskvault/internal/repo"
	"github.com/Skotchmaster/taskvault/pkg/db"
	"github.com/Skotchmaster/taskvault/pkg/logging"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "taskvault",
		Short:         "TaskVault task management API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSeedCmd())

	return cmd
}

func loadConfig() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	l := logging.New(cfg.LogLevel, cfg.LogFormat).With("service", "taskvault")
	slog.SetDefault(l)
	return cfg, l, nil
}

// openRepo connects with retries and migrates the schema.
func openRepo(ctx context.Context, cfg config.Config, l *slog.Logger) (*gorm.DB, *repo.GormRepo, error) {
	if cfg.DatabaseURL == "" {
		return nil, nil, oops.Code("CONFIG_INVALID").Errorf("DATABASE_URL environment variable is required")
	}
	gdb, err := db.OpenWithRetry(ctx, db.Config{
		Driver:  cfg.DBDriver,
		DSN:     cfg.DatabaseURL,
		Retries: cfg.DBConnectRetries,
	}, l)
	if err != nil {
		return nil, nil, oops.Code("DB_CONNECT_FAILED").With("driver", cfg.DBDriver).Wrap(err)
	}

	r := repo.New(gdb)
	if err := r.Migrate(ctx); err != nil {
		_ = db.Close(gdb)
		return nil, nil, oops.Code("MIGRATION_FAILED").Wrap(err)
	}
	return gdb, r, nil
}

func exitError(cmd *cobra.Command, l *slog.Logger, err error) error {
	if l != nil {
		logging.Error(l, "command_failed", err, "command", cmd.Name())
	} else {
		cmd.PrintErrln("error:", err)
	}
	return err
}
