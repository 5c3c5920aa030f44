package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pulsecheck-io/pulsecheck/internal/app"
	"github.com/pulsecheck-io/pulsecheck/internal/gateway"
	"github.com/pulsecheck-io/pulsecheck/internal/observability"
	"github.com/pulsecheck-io/pulsecheck/internal/signature"
)

func newLogger(cfg *gateway.Config) *slog.Logger {
	if cfg != nil && cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{AddSource: true}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{AddSource: true}))
}

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping gateway startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := gateway.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := newLogger(cfg)
	metrics := observability.NewMetrics()

	verifier := signature.NewVerifier(cfg.InternalHMACSecret, logger).
		WithRejectHook(metrics.SignatureReject)
	forwarder := gateway.NewForwarder(cfg.CoreAPIBaseURL, cfg.ForwardTimeout, logger)

	var flows *gateway.FlowClient
	if cfg.WhatsAppAccessToken != "" && cfg.WhatsAppWABAID != "" {
		flows = gateway.NewFlowClient(cfg, logger)
	} else {
		logger.Warn("whatsapp credentials not configured, flow endpoints disabled")
	}

	router := gateway.NewRouter(gateway.RouterParams{
		Logger:    logger,
		Config:    cfg,
		Forwarder: forwarder,
		Flows:     flows,
		Webhooks:  gateway.NewWebhookRelay(cfg, logger),
		Verifier:  verifier,
		Metrics:   metrics,
	})

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Info("starting gateway", slog.String("addr", cfg.Addr))
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
