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
	"github.com/redis/go-redis/v9"

	"github.com/pulsecheck-io/pulsecheck/internal/app"
	"github.com/pulsecheck-io/pulsecheck/internal/auth"
	"github.com/pulsecheck-io/pulsecheck/internal/catalog"
	"github.com/pulsecheck-io/pulsecheck/internal/events"
	"github.com/pulsecheck-io/pulsecheck/internal/observability"
	"github.com/pulsecheck-io/pulsecheck/internal/platform/db"
	"github.com/pulsecheck-io/pulsecheck/internal/shared"
	"github.com/pulsecheck-io/pulsecheck/internal/signature"
	"github.com/pulsecheck-io/pulsecheck/internal/surveys"
	"github.com/pulsecheck-io/pulsecheck/internal/tenancy"
	"github.com/pulsecheck-io/pulsecheck/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionSecret, cfg.SessionTTL)
	auditLogger := shared.NewAuditLogger(dbpool)
	metrics := observability.NewMetrics()

	tenantRepo := tenancy.NewRepository(dbpool)

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo, tenantRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager)
	authMiddleware := auth.Middleware{Sessions: sessionManager, Logger: logger}

	agentsService := auth.NewAgentsService(authRepo, auditLogger, logger)
	agentsHandler := auth.NewAgentsHandler(logger, agentsService)

	catalogRepo := catalog.NewRepository(dbpool)
	catalogService := catalog.NewService(catalogRepo, auditLogger, logger)
	catalogHandler := catalog.NewHandler(logger, catalogService)

	eventsRepo := events.NewRepository(dbpool)
	eventsService := events.NewService(eventsRepo, auditLogger, logger)
	eventsHandler := events.NewHandler(logger, eventsService)

	reminderClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr}, cfg.ReminderDelay)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := reminderClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	flowClient := surveys.NewGatewayClient(cfg.GatewayBaseURL, cfg.GatewayTimeout)
	surveysRepo := surveys.NewRepository(dbpool)
	surveysService := surveys.NewService(surveysRepo, eventsRepo, flowClient, reminderClient, auditLogger, logger)
	surveysHandler := surveys.NewHandler(logger, surveysService)
	internalHandler := surveys.NewInternalHandler(logger, surveysService)

	verifier := signature.NewVerifier(cfg.InternalHMACSecret, logger).
		WithRejectHook(metrics.SignatureReject)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		AuthMiddleware:  authMiddleware,
		AuthHandler:     authHandler,
		AgentsHandler:   agentsHandler,
		CatalogHandler:  catalogHandler,
		EventsHandler:   eventsHandler,
		SurveysHandler:  surveysHandler,
		InternalHandler: internalHandler,
		Verifier:        verifier,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

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
