package httpserver

import (
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	ecM "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/Skotchmaster/taskvault/internal/metrics"
	"github.com/Skotchmaster/taskvault/internal/middleware"
	"github.com/Skotchmaster/taskvault/internal/models"
	loggingmw "github.com/Skotchmaster/taskvault/pkg/middleware/logging"
)

type Deps struct {
	AuthHandler   *AuthHTTP
	TaskHandler   *TaskHTTP
	UserHandler   *UserHTTP
	HealthHandler *HealthHTTP
	Authenticator *middleware.Authenticator

	Logger           *slog.Logger
	CORSOrigins      []string
	RateLimitRPS     float64
	AuthRateLimitRPS float64
}

// New builds the echo instance with timeouts, the error handler, the validator and every route.
func New(d *Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second
	e.Server.IdleTimeout = 60 * time.Second
	e.HTTPErrorHandler = ErrorHandler
	e.Validator = NewValidator()

	Register(e, d)
	return e
}

func Common(d *Deps) []echo.MiddlewareFunc {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	origins := d.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return []echo.MiddlewareFunc{
		ecM.RequestID(),
		loggingmw.RequestLogger(logger),
		ecM.Recover(),
		metrics.Middleware(),
		ecM.Secure(),
		ecM.BodyLimit("1M"),
		ecM.CORSWithConfig(ecM.CORSConfig{
			AllowOrigins:     origins,
			AllowCredentials: true,
			AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		}),
	}
}

func rateLimit(rps float64) echo.MiddlewareFunc {
	if rps <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return ecM.RateLimiterWithConfig(ecM.RateLimiterConfig{
		Store: ecM.NewRateLimiterMemoryStoreWithConfig(ecM.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(rps),
			Burst:     int(math.Max(1, math.Ceil(rps*5))),
			ExpiresIn: 3 * time.Minute,
		}),
		DenyHandler: func(c echo.Context, _ string, _ error) error {
			return echo.NewHTTPError(http.StatusTooManyRequests, "Too many requests, please try again later")
		},
	})
}

func Register(e *echo.Echo, d *Deps) {
	for _, m := range Common(d) {
		e.Use(m)
	}

	e.GET("/", Welcome)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1", rateLimit(d.RateLimitRPS))
	api.GET("/health", d.HealthHandler.Health)

	auth := api.Group("/auth")
	limited := rateLimit(d.AuthRateLimitRPS)
	auth.POST("/register", d.AuthHandler.Register, limited)
	auth.POST("/login", d.AuthHandler.Login, limited)
	auth.POST("/refresh-token", d.AuthHandler.Refresh, limited)
	auth.GET("/me", d.AuthHandler.Me, d.Authenticator.RequireAuth)
	auth.POST("/logout", d.AuthHandler.LogOut, d.Authenticator.RequireAuth)

	tasks := api.Group("/tasks", d.Authenticator.RequireAuth)
	tasks.GET("/stats", d.TaskHandler.Stats)
	tasks.GET("/search", d.TaskHandler.Search)
	tasks.POST("", d.TaskHandler.Create)
	tasks.GET("", d.TaskHandler.List)
	tasks.GET("/:id", d.TaskHandler.Get)
	tasks.PATCH("/:id", d.TaskHandler.Update)
	tasks.DELETE("/:id", d.TaskHandler.Delete)

	users := api.Group("/users", d.Authenticator.RequireAuth, middleware.RequireRole(models.RoleAdmin))
	users.GET("/stats", d.UserHandler.Stats)
	users.GET("", d.UserHandler.List)
	users.GET("/:id", d.UserHandler.Get)
	users.DELETE("/:id", d.UserHandler.Delete)
}
