package bootstrap

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/eidolon-live/eidolon/internal/health"
	"github.com/eidolon-live/eidolon/internal/inference"
	"github.com/eidolon-live/eidolon/internal/session"
)

const version = "1.0.0"

var defaultCORSConfig = middleware.CORSConfig{
	AllowOrigins: []string{"*"},
	AllowMethods: []string{
		http.MethodGet,
		http.MethodHead,
		http.MethodPost,
		http.MethodDelete,
		http.MethodOptions,
	},
	AllowHeaders: []string{
		"Accept",
		"Authorization",
		"Content-Type",
		"X-Requested-With",
	},
	AllowCredentials: true,
	MaxAge:           86400,
}

func NewEchoServer() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(defaultCORSConfig))
	return e
}

func ProvideHealthHandler(
	db *gorm.DB,
	redisClient *redis.Client,
	analyzer inference.Analyzer,
	manager *session.Manager,
) *health.Handler {
	return health.NewHandler(db, redisClient, analyzer, manager, version)
}

func RegisterRoutes(e *echo.Echo, sessionHandler *session.Handler, healthHandler *health.Handler) {
	api := e.Group("/v1")
	sessionHandler.RegisterRoutes(api)
	healthHandler.RegisterRoutes(e)
}

func StartServer(lc fx.Lifecycle, e *echo.Echo, cfg *Config, manager *session.Manager) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := e.Start(cfg.ServerAddr); err != nil && err != http.ErrServerClosed {
					e.Logger.Fatal(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			manager.Close()
			return e.Shutdown(ctx)
		},
	})
}

var ServerModule = fx.Options(
	fx.Provide(
		NewEchoServer,
		ProvideHealthHandler,
	),
	fx.Invoke(
		RegisterRoutes,
		StartServer,
	),
)

func Run() {
	fx.New(
		fx.Provide(LoadConfig),
		InfrastructureModule,
		PipelineModule,
		ServerModule,
	).Run()
}
