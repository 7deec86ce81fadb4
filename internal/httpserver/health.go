package httpserver

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/taskvault/internal/transport"
	"github.com/Skotchmaster/taskvault/pkg/logging"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHTTP struct {
	DB          Pinger
	Environment string
	Started     time.Time
}

func (h *HealthHTTP) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	dbStatus := "connected"
	if err := h.DB.Ping(ctx); err != nil {
		logging.FromContext(ctx).Warn("health_db_ping_failed", "error", err)
		dbStatus = "disconnected"
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return respond(c, http.StatusOK, transport.HealthResponse{
		Status:      "ok",
		Timestamp:   time.Now().UTC(),
		Uptime:      time.Since(h.Started).Seconds(),
		Environment: h.Environment,
		Database:    dbStatus,
		Memory: transport.HealthMemory{
			Used:  mem.HeapAlloc / 1024 / 1024,
			Total: mem.HeapSys / 1024 / 1024,
		},
	}, "API is healthy")
}

func Welcome(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Welcome to TaskVault API",
		"version": "1.0.0",
		"endpoints": echo.Map{
			"health":  "/api/v1/health",
			"metrics": "/metrics",
			"auth":    "/api/v1/auth",
			"tasks":   "/api/v1/tasks",
			"users":   "/api/v1/users",
		},
	})
}
