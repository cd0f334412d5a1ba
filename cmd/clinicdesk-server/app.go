package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinicdesk/internal/config"
	"github.com/clinicdesk/clinicdesk/internal/domain/analytics"
	"github.com/clinicdesk/clinicdesk/internal/domain/counseling"
	"github.com/clinicdesk/clinicdesk/internal/domain/export"
	"github.com/clinicdesk/clinicdesk/internal/domain/registry"
	"github.com/clinicdesk/clinicdesk/internal/platform/auth"
	"github.com/clinicdesk/clinicdesk/internal/platform/db"
	"github.com/clinicdesk/clinicdesk/internal/platform/genai"
	"github.com/clinicdesk/clinicdesk/internal/platform/lock"
	"github.com/clinicdesk/clinicdesk/internal/platform/middleware"
	"github.com/clinicdesk/clinicdesk/internal/platform/store"
)

// app is the process-wide wiring shared by every command.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	pool     *pgxpool.Pool
	redis    *redis.Client
	registry *registry.Service
	genai    *genai.Client
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	st, err := a.openStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	var locks lock.Locker = lock.NewLocalLocker()
	if cfg.RedisURL != "" {
		a.redis, err = lock.NewRedisClient(cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		locks = lock.NewRedisLocker(a.redis, cfg.LockTTL)
		logger.Info().Msg("using redis record locks")
	}

	a.registry = registry.NewService(registry.NewStoreRepo(store.WithTimeout(st, cfg.StoreTimeout)), locks, logger)
	a.genai = genai.NewClient(genai.Config{
		URL:    cfg.GenAIURL,
		APIKey: cfg.GenAIAPIKey,
		Model:  cfg.GenAIModel,
	}, logger)
	return a, nil
}

func (a *app) openStore(ctx context.Context) (store.Store, error) {
	switch a.cfg.StoreBackend {
	case "postgres":
		pool, err := db.NewPool(ctx, a.cfg.DatabaseURL, a.cfg.DBMaxConns, a.cfg.DBMinConns)
		if err != nil {
			return nil, err
		}
		a.pool = pool
		a.logger.Info().Msg("connected to database")
		return store.NewPGStore(pool), nil
	case "rest":
		a.logger.Info().Str("url", a.cfg.StoreURL).Msg("using remote table API")
		return store.NewRESTStore(a.cfg.StoreURL, a.cfg.StoreKey, a.cfg.StoreTimeout), nil
	case "memory":
		a.logger.Warn().Msg("using in-memory store; data is lost on exit")
		return store.NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", a.cfg.StoreBackend)
}

func (a *app) Close() {
	if a.redis != nil {
		a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

func (a *app) router() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(a.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(a.logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  a.cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders:  []string{echo.HeaderAuthorization, echo.HeaderContentType, middleware.RequestIDHeader, auth.DevRolesHeader},
		ExposeHeaders: []string{echo.HeaderContentDisposition, middleware.RequestIDHeader},
	}))

	e.GET("/health", a.health)
	if a.pool != nil {
		pool := a.pool
		e.GET("/health/db", db.HealthHandler(pool, func() db.PoolStats { return db.GetPoolStats(pool) }))
	}

	apiV1 := e.Group("/api/v1", middleware.BodyLimit("1M"), a.authMiddleware())

	registry.NewHandler(a.registry).RegisterRoutes(apiV1)
	analytics.NewHandler(a.registry).RegisterRoutes(apiV1)
	export.NewHandler(a.registry).RegisterRoutes(apiV1)
	counseling.NewHandler(counseling.NewService(a.genai, a.registry, a.logger)).RegisterRoutes(apiV1)

	return e
}

func (a *app) authMiddleware() echo.MiddlewareFunc {
	if a.cfg.IsDev() && a.cfg.AuthSigningKey == "" && a.cfg.AuthIssuer == "" {
		return auth.DevAuthMiddleware()
	}
	return auth.JWTMiddleware(auth.JWTConfig{
		Issuer:     a.cfg.AuthIssuer,
		Audience:   a.cfg.AuthAudience,
		JWKSURL:    a.cfg.AuthJWKSURL,
		SigningKey: []byte(a.cfg.AuthSigningKey),
	})
}

// health reports the synchronizer's save status. It is 200 even when the
// last sync failed; the status body says so.
func (a *app) health(c echo.Context) error {
	snap := a.registry.Snapshot()
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"store":        a.cfg.StoreBackend,
		"sync":         a.registry.Status(),
		"patients":     len(snap.Patients),
		"appointments": len(snap.Appointments),
		"staff":        len(snap.Staff),
	})
}
