// Package app wires configuration, storage and services into a single
// container shared by the API gateway and the operator CLI.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/procedure-staffing-api/internal/repository"
	"github.com/noah-isme/procedure-staffing-api/internal/service"
	"github.com/noah-isme/procedure-staffing-api/pkg/cache"
	"github.com/noah-isme/procedure-staffing-api/pkg/config"
	"github.com/noah-isme/procedure-staffing-api/pkg/database"
)

const cacheNamespace = "staffing"

// App holds the wired services.
type App struct {
	Config *config.Config
	Logger *zap.Logger
	DB     *sqlx.DB

	Metrics    *service.MetricsService
	Cache      *service.CacheService
	Auth       *service.AuthService
	Postings   *service.PostingService
	Candidates *service.CandidateService
	Exports    *service.ExportService
	Sweeper    *service.OfferSweeper

	closers []func() error
}

// New connects to PostgreSQL and, when enabled, Redis, then builds every
// service on top of them.
func New(cfg *config.Config, logr *zap.Logger) (*App, error) {
	if logr == nil {
		logr = zap.NewNop()
	}

	db, err := database.NewPostgres(cfg.Database, logr)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	a := &App{Config: cfg, Logger: logr, DB: db}
	a.closers = append(a.closers, db.Close)

	cacheRepo, closeCache := newCacheRepository(cfg, logr)
	if closeCache != nil {
		a.closers = append(a.closers, closeCache)
	}

	a.build(cacheRepo, repository.NewPostingRepository(db), repository.NewUserRepository(db))
	return a, nil
}

func newCacheRepository(cfg *config.Config, logr *zap.Logger) (service.CacheRepository, func() error) {
	if !cfg.Redis.Enabled {
		return repository.NewMemoryCacheRepository(), nil
	}
	client, err := cache.NewRedis(context.Background(), cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, using in-process cache", zap.Error(err))
		return repository.NewMemoryCacheRepository(), nil
	}
	repo := repository.NewCacheRepository(client, cacheNamespace, logr)
	return repo, repo.Close
}

func (a *App) build(cacheRepo service.CacheRepository, postings *repository.PostingRepository, users *repository.UserRepository) {
	cfg := a.Config
	validate := validator.New()

	a.Metrics = service.NewMetricsService()
	a.Cache = service.NewCacheService(cacheRepo, a.Metrics, cfg.Postings.CacheTTL, a.Logger, true)
	a.Auth = service.NewAuthService(users, validate, a.Logger, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	}, service.WithDirectoryCache(a.Cache))
	a.Postings = service.NewPostingService(postings, a.Cache, a.Metrics, validate, a.Logger, service.PostingServiceConfig{
		CacheTTL:       cfg.Postings.CacheTTL,
		StorageRetries: cfg.Postings.StorageRetries,
		RetryDelay:     cfg.Postings.RetryDelay,
	})
	a.Candidates = service.NewCandidateService(users, a.Cache, cfg.Postings.CacheTTL, a.Logger)
	a.Exports = service.NewExportService(a.Postings, a.Logger, nil, nil)
	a.Sweeper = service.NewOfferSweeper(postings, a.Cache, a.Metrics, a.Logger, service.OfferSweeperConfig{
		Interval:  cfg.OfferSweep.Interval,
		BatchSize: cfg.OfferSweep.BatchSize,
	})
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
