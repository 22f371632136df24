package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/ragtrial/internal/control"
	"github.com/vietddude/ragtrial/internal/core/config"
	"github.com/vietddude/ragtrial/internal/core/worker"
)

const defaultRetention = 30 * 24 * time.Hour

func main() {
	settings := flag.String("settings", config.DefaultPath, "Path to driver settings file")
	olderThan := flag.Duration("older-than", 0, "Delete trials older than this (default: storage.retention, else 720h)")
	flag.Parse()

	_ = godotenv.Load()
	stylelog.InitDefault(&tint.Options{Level: slog.LevelInfo, TimeFormat: time.RFC3339})

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := run(ctx, *settings, *olderThan); err != nil {
		slog.Error("Purge failed", "error", err)
		cancel()
		os.Exit(1)
	}
}

// run prunes the configured ledger once. The ledger is closed before return.
func run(ctx context.Context, settings string, olderThan time.Duration) error {
	cfg, err := config.LoadSettings(settings)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	retention := olderThan
	if retention <= 0 {
		retention = cfg.Storage.Retention
	}
	if retention <= 0 {
		retention = defaultRetention
	}

	ledger, err := control.OpenLedger(ctx, control.LedgerConfig{
		Backend:  cfg.Storage.Backend,
		Redis:    cfg.Redis,
		Database: cfg.Database,
	})
	if err != nil {
		return fmt.Errorf("open trial ledger: %w", err)
	}
	defer func() {
		if err := ledger.Close(); err != nil {
			slog.Warn("Failed to close trial ledger", "error", err)
		}
	}()

	n, err := worker.NewPruner(retention, ledger).Prune(ctx)
	if err != nil {
		return fmt.Errorf("purge trials: %w", err)
	}

	slog.Info("Purged trials", "backend", ledger.Backend, "deleted", n, "older_than", retention)
	return nil
}
