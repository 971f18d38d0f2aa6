package app

import (
	"context"
	"errors"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"gorm.io/gorm"

	"github.com/sandeepkv93/auth-token-lifecycle/internal/config"
	"github.com/sandeepkv93/auth-token-lifecycle/internal/health"
	"github.com/sandeepkv93/auth-token-lifecycle/internal/observability"
	"github.com/sandeepkv93/auth-token-lifecycle/internal/repository"
	"github.com/sandeepkv93/auth-token-lifecycle/internal/service"
	"github.com/sandeepkv93/auth-token-lifecycle/internal/tokenstore"
)

type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Auth          service.AuthServiceInterface
	Store         tokenstore.Store
	ErrorLogs     repository.ErrorLogRepository
	Notifier      *service.AsyncNotifier
	Readiness     *health.ProbeRunner
	Observability *observability.Runtime
	DB            *gorm.DB
	Redis         redis.UniversalClient
	Mongo         *mongo.Client
}

type Deps struct {
	Config        *config.Config
	Logger        *slog.Logger
	Auth          service.AuthServiceInterface
	Store         tokenstore.Store
	ErrorLogs     repository.ErrorLogRepository
	Notifier      *service.AsyncNotifier
	Readiness     *health.ProbeRunner
	Observability *observability.Runtime
	DB            *gorm.DB
	Redis         redis.UniversalClient
	Mongo         *mongo.Client
}

func New(d Deps) *App {
	return &App{
		Config:        d.Config,
		Logger:        d.Logger,
		Auth:          d.Auth,
		Store:         d.Store,
		ErrorLogs:     d.ErrorLogs,
		Notifier:      d.Notifier,
		Readiness:     d.Readiness,
		Observability: d.Observability,
		DB:            d.DB,
		Redis:         d.Redis,
		Mongo:         d.Mongo,
	}
}

// Close drains pending notifications, flushes telemetry and closes every
// client. It keeps going after individual failures and reports them joined.
func (a *App) Close(ctx context.Context) error {
	if a == nil {
		return nil
	}
	var errs []error
	if a.Notifier != nil {
		if err := a.Notifier.Wait(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Observability != nil {
		obsCtx := ctx
		if a.Config != nil && a.Config.ShutdownObservabilityTimeout > 0 {
			var cancel context.CancelFunc
			obsCtx, cancel = context.WithTimeout(ctx, a.Config.ShutdownObservabilityTimeout)
			defer cancel()
		}
		if err := a.Observability.Shutdown(obsCtx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Mongo != nil {
		if err := a.Mongo.Disconnect(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
