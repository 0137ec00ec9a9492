package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/supplierhub/supplierhub/internal/app"
	jobmetrics "github.com/supplierhub/supplierhub/internal/jobs"
	"github.com/supplierhub/supplierhub/jobs"
)

const digestWindowHours = 24

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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
	metrics := jobmetrics.NewMetrics(nil)

	var mailer jobs.Mailer
	if m := jobs.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom); m != nil {
		mailer = m
	} else {
		logger.Warn("SMTP_HOST not set, emails are logged instead of sent")
	}

	emailJob := &jobs.EmailJob{Mailer: mailer, Logger: logger, Metrics: metrics}
	registeredJob := &jobs.SupplierRegisteredJob{Mailer: mailer, Logger: logger, Metrics: metrics}

	handlers := []jobs.TaskHandler{
		{Type: jobs.TaskTypeSendEmail, Handler: emailJob.Handle},
		{Type: jobs.TaskSupplierRegistered, Handler: registeredJob.Handle},
	}
	var cron []jobs.CronRegistration

	if cfg.UsesRedis() && cfg.DigestRecipient != "" {
		backend, err := app.OpenBackend(ctx, cfg, logger)
		if err != nil {
			logger.Error("open backend", slog.String("backend", cfg.StoreBackend), slog.Any("error", err))
			os.Exit(1)
		}
		defer backend.Close()

		digestJob := jobs.NewSupplierDigestJob(backend.Persistence, mailer, logger, metrics)
		digestTask, err := jobs.NewSupplierDigestTask(cfg.DigestRecipient, digestWindowHours)
		if err != nil {
			logger.Error("build digest task", slog.Any("error", err))
			os.Exit(1)
		}
		handlers = append(handlers, jobs.TaskHandler{Type: jobs.TaskSupplierDigest, Handler: digestJob.Handle})
		cron = append(cron, jobs.CronRegistration{Spec: cfg.DigestCron, Task: digestTask, Options: []asynq.Option{asynq.MaxRetry(3)}})
	} else {
		logger.Info("supplier digest disabled", slog.String("backend", cfg.StoreBackend))
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   cfg.AsynqRedisOpt(),
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers:    handlers,
		Cron:        cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
