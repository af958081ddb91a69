// Command bartab-migrate brings the database schema up to date and applies
// the seed file, then exits.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"bartab/internal/backend"
	"bartab/internal/cli"
	"bartab/internal/config"
	"bartab/internal/log"
)

func main() {
	seedPath := flag.String("seed", "", "YAML seed file (overrides SEED_FILE)")
	flag.Parse()

	cfg, logger := cli.Bootstrap(log.ComponentApp)
	if *seedPath != "" {
		cfg.SeedFile = *seedPath
	}
	if cfg.DataBackend == config.BackendMemory {
		logger.Error("Nothing to migrate for the memory backend")
		os.Exit(1)
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	// Schema and seed only; no event bus, no cache.
	backendCfg.AMQPURL = ""
	backendCfg.CatalogCacheTTL = 0

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	start := time.Now()
	// Opening the store runs pending migrations.
	be, err := backend.NewFactory(logger.WithComponent(log.ComponentStorage).Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Migration failed", log.FieldError, err)
		os.Exit(1)
	}
	defer be.Cleanup()

	rep, err := cli.ApplySeedFile(ctx, cfg.SeedFile, be.Store, be.Catalog)
	if err != nil {
		logger.Error("Seeding failed", log.FieldError, err, "path", cfg.SeedFile)
		_ = be.Cleanup()
		os.Exit(1)
	}

	logger.Info("Database ready",
		"backend", cfg.DataBackend,
		"items", rep.Items,
		"tiers", rep.Tiers,
		"persons_created", rep.PersonsCreated,
		log.FieldDuration, time.Since(start).Milliseconds())
}
