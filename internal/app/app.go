// Package app assembles the service from configuration and owns the lifetime
// of its connections.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"maclink/internal/caching"
	"maclink/internal/config"
	"maclink/internal/handlers"
	"maclink/internal/jobs/background"
	"maclink/internal/middleware"
	"maclink/internal/repositories"
	"maclink/internal/services"
	"maclink/pkg/database"
)

const (
	Version         = "1.0.0"
	shutdownTimeout = 15 * time.Second
)

type App struct {
	cfg    *config.Config
	logger *zap.Logger
	echo   *echo.Echo
	mongo  *mongo.Client
	cache  caching.CacheService
	jwt    *middleware.JWTAuth
	jobs   *background.JobScheduler
}

// New connects to every backing service and builds the HTTP server. On
// failure whatever was already opened is closed again.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *App, err error) {
	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			if closeErr := a.Close(context.Background()); closeErr != nil {
				logger.Warn("cleanup after failed start", zap.Error(closeErr))
			}
		}
	}()

	a.mongo, err = database.Connect(ctx, cfg.Mongo, logger)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	db := a.mongo.Database(cfg.Mongo.Database)
	if err := repositories.EnsureIndexes(ctx, db); err != nil {
		return nil, err
	}

	redisClient, err := caching.NewClient(cfg.Redis.URL, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}
	a.cache = caching.NewRedisCacheService(redisClient, logger)

	store, err := services.NewMinioService(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}
	if err := store.EnsureBucketExists(ctx); err != nil {
		logger.Warn("object storage bucket check failed", zap.Error(err))
	}

	entities := services.NewEntities(services.Repositories{
		Accounts:             repositories.NewAccountRepository(db),
		Businesses:           repositories.NewBusinessRepository(db),
		Routers:              repositories.NewRouterRepository(db),
		SubscriptionPlans:    repositories.NewSubscriptionPlanRepository(db),
		Users:                repositories.NewUserRepository(db),
		UserSubscriptions:    repositories.NewUserSubscriptionRepository(db),
		VoucherSubscriptions: repositories.NewVoucherSubscriptionRepository(db),
	}, a.cache, cfg.Cache.TTL, logger)

	limiter := services.NewLoginLimiter(a.cache, cfg.Security, logger)
	auth := services.NewAuthService(entities.Accounts, limiter, a.cache, cfg.Auth, logger)
	subscriptions := services.NewSubscriptionService(entities, logger)
	logs := services.NewLogService(repositories.NewLogRepository(db), cfg.Server.Env, logger)

	a.jwt, err = middleware.NewJWTAuth(auth, cfg.Auth, logger)
	if err != nil {
		return nil, err
	}

	if cfg.Jobs.Enabled {
		a.jobs, err = background.NewJobScheduler(subscriptions, cfg.Jobs, logger)
		if err != nil {
			return nil, fmt.Errorf("init scheduler: %w", err)
		}
	}

	a.echo = NewServer(ServerDeps{
		Config:        cfg,
		Logger:        logger,
		Entities:      entities,
		Auth:          auth,
		Subscriptions: subscriptions,
		Branding:      services.NewBrandingService(store, entities.Businesses, logger),
		Logs:          logs,
		JWT:           a.jwt,
		Health: handlers.NewHealthHandlers(
			handlers.PingFunc(func(ctx context.Context) error { return database.Ping(ctx, a.mongo) }),
			a.cache,
			store,
			Version,
		),
	})
	return a, nil
}

// Run serves HTTP until ctx is cancelled, then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	if a.jobs != nil {
		a.jobs.Start()
	}

	addr := fmt.Sprintf(":%d", a.cfg.Server.Port)
	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("server starting", zap.String("addr", addr), zap.String("version", Version))
		if err := a.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-serveErr:
		runErr = err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.Close(shutdownCtx); err != nil {
		runErr = multierror.Append(runErr, err)
	}
	return runErr
}

// Close stops the server and releases every connection, collecting all
// failures.
func (a *App) Close(ctx context.Context) error {
	var result *multierror.Error
	if a.echo != nil {
		if err := a.echo.Shutdown(ctx); err != nil {
			result = multierror.Append(result, fmt.Errorf("http shutdown: %w", err))
		}
	}
	if a.jobs != nil {
		if err := a.jobs.Stop(); err != nil {
			result = multierror.Append(result, fmt.Errorf("scheduler stop: %w", err))
		}
	}
	if a.jwt != nil {
		a.jwt.Close()
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("redis close: %w", err))
		}
	}
	if err := database.Disconnect(a.mongo, a.logger); err != nil {
		result = multierror.Append(result, fmt.Errorf("mongo disconnect: %w", err))
	}
	return result.ErrorOrNil()
}
