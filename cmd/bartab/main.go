package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"bartab/internal/backend"
	"bartab/internal/cli"
	apphttp "bartab/internal/http"
	"bartab/internal/log"
	"bartab/internal/metrics"
	"bartab/internal/services"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentApp)
	logger.Info("Starting bartab server", "port", cfg.Port, "backend", cfg.DataBackend)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	be, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Logger).
		CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to create backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	if _, err := cli.ApplySeedFile(context.Background(), cfg.SeedFile, be.Store, be.Catalog); err != nil {
		logger.Error("Failed to apply seed file", log.FieldError, err, "path", cfg.SeedFile)
		_ = be.Cleanup()
		os.Exit(1)
	}

	m := metrics.New()
	opts := []services.LedgerOption{services.WithMetrics(m)}
	if be.Publisher != nil {
		opts = append(opts, services.WithPublisher(be.Publisher))
	} else {
		logger.Info("Ledger events disabled - no AMQP_URL provided")
	}
	ledger := services.NewLedger(be.Catalog, be.Store, opts...)
	split := services.NewSplitBilling(ledger, cfg.SplitConcurrency)

	srv, err := apphttp.NewServer(":"+cfg.Port, ledger, split, be.Store, apphttp.Options{
		RequestTimeout:     cfg.RequestTimeout,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
		Logger:             logger,
		Metrics:            m,
	})
	if err != nil {
		logger.Error("Failed to configure HTTP server", log.FieldError, err)
		_ = be.Cleanup()
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
			os.Exit(1)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
