package cli

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"bartab/internal/cache"
	"bartab/internal/config"
	"bartab/internal/seed"
	"bartab/internal/storage/memory"
)

func TestLoadAndValidateConfig(t *testing.T) {
	t.Setenv("DATA_BACKEND", "memory")
	t.Setenv("PORT", "9090")
	cfg, err := LoadAndValidateConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "9090" || cfg.DataBackend != config.BackendMemory {
		t.Fatalf("unexpected config %+v", cfg)
	}

	t.Setenv("DATA_BACKEND", "cassandra")
	if _, err := LoadAndValidateConfig(); err == nil || !strings.Contains(err.Error(), "invalid data backend") {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSetupLoggerInstallsDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	logger := SetupLogger(&config.Config{LogLevel: "debug", LogFormat: "json"}, "worker")
	if logger.Component() != "worker" {
		t.Fatalf("unexpected component %q", logger.Component())
	}
	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected debug level on the default logger")
	}

	SetupLogger(&config.Config{LogLevel: "loud"}, "app")
	if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("unknown level should fall back to info")
	}
}

func TestApplySeedFile(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	if rep, err := ApplySeedFile(ctx, "", store, store); err != nil || rep != (seed.Report{}) {
		t.Fatalf("empty path should be a no-op, got %+v %v", rep, err)
	}

	path := filepath.Join(t.TempDir(), "seed.yaml")
	data := "items:\n  - {id: 1, name: Beer, mode: per_unit, unit_price: \"2.50\"}\npersons:\n  - {name: Anna}\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	rep, err := ApplySeedFile(ctx, path, store, store)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if rep.Items != 1 || rep.PersonsCreated != 1 {
		t.Fatalf("unexpected report %+v", rep)
	}
	if _, err := ApplySeedFile(ctx, filepath.Join(t.TempDir(), "missing.yaml"), store, store); err == nil {
		t.Fatal("expected error for a missing seed file")
	}
}

func TestApplySeedFileRefreshesCachedCatalog(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	catalog := cache.NewCatalog(store, time.Hour)

	write := func(price string) string {
		path := filepath.Join(t.TempDir(), "seed.yaml")
		data := "items:\n  - {id: 1, name: Beer, mode: per_unit, unit_price: \"" + price + "\"}\n"
		if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
			t.Fatal(err)
		}
		return path
	}

	if _, err := ApplySeedFile(ctx, write("2.50"), store, catalog); err != nil {
		t.Fatalf("first seed: %v", err)
	}
	if it, err := catalog.Item(ctx, 1); err != nil || it.UnitPrice.String() != "2.5" {
		t.Fatalf("unexpected item %+v err=%v", it, err)
	}

	if _, err := ApplySeedFile(ctx, write("3.00"), store, catalog); err != nil {
		t.Fatalf("second seed: %v", err)
	}
	it, err := catalog.Item(ctx, 1)
	if err != nil || it.UnitPrice.String() != "3" {
		t.Fatalf("expected the reseeded price, got %+v err=%v", it, err)
	}
}
