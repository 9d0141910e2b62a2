package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	_ "github.com/noah-isme/procedure-staffing-api/api/swagger"
	"github.com/noah-isme/procedure-staffing-api/internal/app"
	"github.com/noah-isme/procedure-staffing-api/pkg/config"
	"github.com/noah-isme/procedure-staffing-api/pkg/jobs"
	"github.com/noah-isme/procedure-staffing-api/pkg/logger"
)

// @title Procedure Staffing API
// @version 1.0.0
// @description Clinics post procedures; anaesthetists accept them under all, specific, sequential or timed visibility.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(cfg, logr)
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck

	router, err := a.Router()
	if err != nil {
		return err
	}

	if cfg.OfferSweep.Enabled {
		queue := jobs.NewQueue("offer-sweep", a.Sweeper.Handle, jobs.QueueConfig{
			Workers: cfg.OfferSweep.Workers,
			Logger:  logr,
		})
		queue.Start(ctx)
		defer queue.Stop()
		a.Sweeper.Start(ctx, queue)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
