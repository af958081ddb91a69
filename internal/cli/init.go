// Package cli provides the process bootstrap shared by cmd/bartab,
// cmd/bartab-worker and cmd/bartab-migrate.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"bartab/internal/cache"
	"bartab/internal/config"
	"bartab/internal/log"
	"bartab/internal/ports"
	"bartab/internal/seed"
)

// SetupLogger builds the logger described by cfg and installs it as the
// slog default. An unknown level falls back to info with a warning.
func SetupLogger(cfg *config.Config, component string) *log.Logger {
	level, levelErr := log.ParseLevel(cfg.LogLevel)
	logger := log.New(log.Config{
		Level:     level,
		Format:    cfg.LogFormat,
		Component: component,
		Output:    os.Stdout,
	})
	log.SetDefault(logger)
	if levelErr != nil {
		logger.Warn("Falling back to info level", log.FieldError, levelErr)
	}
	return logger
}

// LoadEnvFile loads .env for local development. A missing file is fine.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration from the environment.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Bootstrap runs LoadEnvFile, LoadAndValidateConfig and SetupLogger, exiting
// the process when the configuration is invalid.
func Bootstrap(component string) (*config.Config, *log.Logger) {
	LoadEnvFile()
	cfg, err := LoadAndValidateConfig()
	if err != nil {
		// No configured logger yet.
		slog.Error("Startup failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg, SetupLogger(cfg, component)
}

// ApplySeedFile loads the YAML seed at path into store. An empty path is a
// no-op. A cached catalog view is dropped once the seed is in.
func ApplySeedFile(ctx context.Context, path string, store ports.Store, catalog ports.CatalogReader) (seed.Report, error) {
	if path == "" {
		return seed.Report{}, nil
	}
	f, err := seed.Load(path)
	if err != nil {
		return seed.Report{}, err
	}
	rep, err := seed.Apply(ctx, f, store, store, time.Now().UTC())
	if c, ok := catalog.(*cache.Catalog); ok {
		c.Invalidate()
	}
	return rep, err
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. After
// the signal, cleanup runs with a context bounded by timeout; done closes
// when cleanup returns.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
		case <-ctx.Done():
		}
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
			return
		}
		logger.Info("Shutdown complete")
	}()

	return ctx, done
}

// WaitForShutdown blocks until the shutdown sequence has finished.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
