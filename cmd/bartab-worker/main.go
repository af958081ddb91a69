package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"bartab/internal/backend"
	"bartab/internal/cli"
	"bartab/internal/config"
	"bartab/internal/log"
	"bartab/internal/metrics"
	"bartab/internal/ports"
	gsheet "bartab/internal/sheets/google"
	memsheet "bartab/internal/sheets/memory"
	"bartab/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentWorker)
	logger.Info("Starting bartab-worker", "backend", cfg.DataBackend)

	if cfg.DataBackend == config.BackendMemory {
		logger.Warn("Memory backend is process-local, the worker sees none of the server's transactions")
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	// The worker reads the ledger; catalog caching buys it nothing.
	backendCfg.CatalogCacheTTL = 0
	be, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Logger).
		CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to create backend", log.FieldError, err)
		os.Exit(1)
	}

	exporter, err := newExporter(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize exporter", log.FieldError, err)
		_ = be.Cleanup()
		os.Exit(1)
	}

	m := metrics.New()
	exportWorker := worker.NewExportWorker(be.Store, exporter, m, cfg.ExportBatchSize)

	var metricsSrv *http.Server
	if cfg.WorkerMetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		metricsSrv = &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server error", log.FieldError, err, "addr", cfg.WorkerMetricsAddr)
			}
		}()
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if metricsSrv != nil {
			_ = metricsSrv.Shutdown(ctx)
		}
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	// Catch up on anything missed while the worker was down.
	logger.Info("Performing startup resync")
	if err := exportWorker.Resync(ctx); err != nil {
		logger.Error("Startup resync failed", log.FieldError, err)
	}

	if be.AMQP != nil {
		go func() {
			if err := be.AMQP.Consume(ctx, exportWorker.Handle); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", log.FieldError, err)
			}
		}()
	} else {
		logger.Info("Skipping AMQP message consumption - no AMQP_URL provided")
	}

	if cfg.ExportResyncInterval > 0 {
		go func() {
			ticker := time.NewTicker(cfg.ExportResyncInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := exportWorker.Resync(ctx); err != nil {
						logger.Error("Periodic resync failed", log.FieldError, err)
					}
				}
			}
		}()
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}

func newExporter(cfg *config.Config, logger *log.Logger) (ports.TransactionExporter, error) {
	if !cfg.SheetsEnabled() {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, exporting in memory only")
		return memsheet.New(), nil
	}
	client, err := gsheet.New(context.Background(), gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("Google Sheets exporter initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)
	return client, nil
}
