package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRun_MissingDefaultSettingsUsesDefaults(t *testing.T) {
	wd, _ := os.Getwd()
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("Chdir failed: %v", err)
	}
	defer func() { _ = os.Chdir(wd) }()

	if err := run(context.Background(), "ragtrial.yaml", time.Hour); err != nil {
		t.Fatalf("Expected memory ledger purge to succeed, got %v", err)
	}
}

func TestRun_MissingExplicitSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.yaml")
	if err := run(context.Background(), path, time.Hour); err == nil {
		t.Error("Expected error for missing settings file")
	}
}

func TestRun_UnknownBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ragtrial.yaml")
	if err := os.WriteFile(path, []byte("storage:\n  backend: sqlite\n"), 0o644); err != nil {
		t.Fatalf("Failed to write settings: %v", err)
	}
	if err := run(context.Background(), path, 0); err == nil {
		t.Error("Expected error for unknown ledger backend")
	}
}
