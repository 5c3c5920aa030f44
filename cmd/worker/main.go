package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/pulsecheck-io/pulsecheck/internal/app"
	"github.com/pulsecheck-io/pulsecheck/internal/events"
	"github.com/pulsecheck-io/pulsecheck/internal/platform/db"
	"github.com/pulsecheck-io/pulsecheck/internal/shared"
	"github.com/pulsecheck-io/pulsecheck/internal/surveys"
	"github.com/pulsecheck-io/pulsecheck/jobs"
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

	auditLogger := shared.NewAuditLogger(pool)
	eventsRepo := events.NewRepository(pool)
	surveysRepo := surveys.NewRepository(pool)
	surveysService := surveys.NewService(surveysRepo, eventsRepo, nil, nil, auditLogger, logger)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskSurveyReminder, Handler: jobs.NewSurveyReminderHandler(surveysService, logger)},
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
