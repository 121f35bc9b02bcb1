package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/solarlink-crm/solarlink/internal/app"
	"github.com/solarlink-crm/solarlink/internal/deadline"
	"github.com/solarlink-crm/solarlink/internal/notify"
	"github.com/solarlink-crm/solarlink/internal/observability"
	"github.com/solarlink-crm/solarlink/internal/platform/db"
	"github.com/solarlink-crm/solarlink/internal/projects"
	"github.com/solarlink-crm/solarlink/jobs"
)

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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	metrics := observability.NewMetrics()

	projectsRepo := projects.NewRepository(pool)
	engine := projects.NewEngine(logger, projectsRepo, notify.NewBus(), cfg.DraftWindow)
	monitor := deadline.NewMonitor(logger, engine)
	sweepJob := jobs.NewDeadlineSweepJob(monitor, logger, metrics)

	queueClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init queue client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Warn("queue client close", slog.Any("error", err))
		}
	}()
	notifyJob := jobs.NewLifecycleNotifyJob(queueClient, cfg.NotifyInbox, logger)

	sweepSpec := fmt.Sprintf("@every %s", cfg.SweepInterval)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeDeadlineSweep, Handler: sweepJob.Handle},
			{Type: jobs.TaskTypeLifecycleNotify, Handler: notifyJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: sweepSpec, Task: jobs.NewDeadlineSweepTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
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
