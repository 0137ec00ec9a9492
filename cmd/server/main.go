package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/supplierhub/supplierhub/internal/app"
	"github.com/supplierhub/supplierhub/internal/observability"
	"github.com/supplierhub/supplierhub/internal/submission"
	"github.com/supplierhub/supplierhub/internal/suppliers"
	"github.com/supplierhub/supplierhub/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	backend, err := app.OpenBackend(ctx, cfg, logger)
	if err != nil {
		logger.Error("open backend", slog.String("backend", cfg.StoreBackend), slog.Any("error", err))
		os.Exit(1)
	}
	defer backend.Close()

	store, err := suppliers.OpenStore(ctx, backend.Persistence)
	if err != nil {
		logger.Error("open supplier store", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("release supplier store", slog.Any("error", err))
		}
	}()
	logger.Info("supplier store ready", slog.String("backend", backend.Kind), slog.Int("records", store.Len()))

	metrics := observability.NewMetrics()
	serviceCfg := suppliers.ServiceConfig{
		Logger:     logger,
		Pending:    backend.Pending,
		Recorder:   metrics,
		InviteCode: cfg.InviteCode,
	}

	if cfg.SubmissionURL != "" {
		gateway := submission.NewClient(cfg.SubmissionURL, cfg.SubmissionTimeout)
		if err := gateway.Ping(ctx); err != nil {
			logger.Warn("submission gateway ping", slog.Any("error", err))
		}
		serviceCfg.Submitter = gateway
	}

	var inspector *asynq.Inspector
	if cfg.UsesRedis() {
		inspector = asynq.NewInspector(cfg.AsynqRedisOpt())
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
	}

	if cfg.NotificationsEnabled {
		queue, err := jobs.NewClient(cfg.AsynqRedisOpt())
		if err != nil {
			logger.Error("init job client", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := queue.Close(); err != nil {
				logger.Warn("job client close", slog.Any("error", err))
			}
		}()
		serviceCfg.Notifier = queue
	}

	service := suppliers.NewService(store, serviceCfg)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		SupplierHandler: suppliers.NewHandler(logger, service),
		JobHandler:      jobs.NewHandler(inspector, logger),
		Metrics:         metrics,
	})

	server := app.NewHTTPServer(cfg, router)

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
