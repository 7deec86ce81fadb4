package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/Skotchmaster/taskvault/internal/config"
	"github.com/Skotchmaster/taskvault/internal/events"
	"github.com/Skotchmaster/taskvault/internal/httpserver"
	"github.com/Skotchmaster/taskvault/internal/metrics"
	"github.com/Skotchmaster/taskvault/internal/middleware"
	"github.com/Skotchmaster/taskvault/internal/search"
	"github.com/Skotchmaster/taskvault/internal/service"
	"github.com/Skotchmaster/taskvault/pkg/db"
	"github.com/Skotchmaster/taskvault/pkg/hash"
	"github.com/Skotchmaster/taskvault/pkg/tokens"
)

const shutdownTimeout = 10 * time.Second

func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, l, err := loadConfig()
	if err != nil {
		return exitError(cmd, nil, err)
	}
	if err := cfg.Validate(); err != nil {
		return exitError(cmd, l, oops.Code("CONFIG_INVALID").Wrap(err))
	}
	ctx := cmd.Context()

	gdb, r, err := openRepo(ctx, cfg, l)
	if err != nil {
		return exitError(cmd, l, err)
	}
	defer func() {
		if err := db.Close(gdb); err != nil {
			l.Error("db close error", "error", err)
		}
	}()

	issuer, err := tokens.NewIssuer(tokens.Config{
		AccessSecret:  []byte(cfg.AccessSecret),
		RefreshSecret: []byte(cfg.RefreshSecret),
		AccessTTL:     cfg.AccessTTL,
		RefreshTTL:    cfg.RefreshTTL,
	})
	if err != nil {
		return exitError(cmd, l, oops.Code("CONFIG_INVALID").Wrap(err))
	}

	publisher := newPublisher(cfg, l)
	defer func() {
		if err := publisher.Close(); err != nil {
			l.Error("kafka close error", "error", err)
		}
	}()
	indexer := newIndexer(ctx, cfg, l)

	e := httpserver.New(&httpserver.Deps{
		AuthHandler: &httpserver.AuthHTTP{
			Svc: service.NewAuthService(r, hash.NewBcrypt(cfg.BcryptCost), issuer,
				service.WithEvents(publisher),
				service.WithObserver(metrics.Auth{}),
			),
			Cookies: httpserver.CookieConfig{Secure: cfg.CookieSecure || cfg.IsProduction()},
		},
		TaskHandler:      &httpserver.TaskHTTP{Svc: service.NewTaskService(r, publisher, indexer)},
		UserHandler:      &httpserver.UserHTTP{Svc: service.NewUserService(r, publisher, indexer)},
		HealthHandler:    &httpserver.HealthHTTP{DB: r, Environment: cfg.AppEnv, Started: time.Now()},
		Authenticator:    middleware.NewAuthenticator(issuer, r),
		Logger:           l,
		CORSOrigins:      cfg.CORSOrigins,
		RateLimitRPS:     cfg.RateLimitRPS,
		AuthRateLimitRPS: cfg.AuthRateLimitRPS,
	})

	errCh := make(chan error, 1)
	go func() {
		l.Info("http server listening", "addr", cfg.HTTPAddr, "env", cfg.AppEnv)
		if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		l.Info("shutting down...")
	case err, ok := <-errCh:
		if ok {
			return exitError(cmd, l, oops.Code("HTTP_SERVER_FAILED").Wrap(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		l.Error("server shutdown error", "error", err)
	}

	l.Info("shutdown complete")
	return nil
}

func newPublisher(cfg config.Config, l *slog.Logger) events.Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		l.Info("kafka disabled, events are dropped")
		return events.Nop{}
	}
	l.Info("kafka publisher enabled", "brokers", cfg.KafkaBrokers)
	return events.NewKafkaPublisher(cfg.KafkaBrokers)
}

// newIndexer returns nil when Elasticsearch is not configured so search stays on the database.
func newIndexer(ctx context.Context, cfg config.Config, l *slog.Logger) search.Indexer {
	if cfg.ESURL == "" {
		return nil
	}
	es, err := search.NewElastic(search.Config{
		URL:      cfg.ESURL,
		Username: cfg.ESUsername,
		Password: cfg.ESPassword,
		Index:    cfg.ESIndex,
	})
	if err != nil {
		l.Warn("elasticsearch disabled", "error", err)
		return nil
	}
	if err := es.EnsureIndex(ctx); err != nil {
		l.Warn("elasticsearch index not ready", "index", cfg.ESIndex, "error", err)
	}
	return es
}
