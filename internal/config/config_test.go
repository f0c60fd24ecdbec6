package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("expected listen addr derived from port, got %q", cfg.ListenAddr)
	}
	if cfg.LookaheadDays != 30 || cfg.Notify.Days != 7 || cfg.Notify.Cron != "0 8 * * *" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasknest.yaml")
	content := []byte(`
port: "9090"
database_path: data/app.db
timezone: Asia/Shanghai
lookahead_days: 14
notify:
  cron: "30 7 * * 1-5"
  days: 3
  webhook_url: " https://hooks.example.test/digest "
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("DATABASE_PATH", "/tmp/override.db")
	t.Setenv("MATERIALIZE_DUE_TODAY", "true")
	t.Setenv("GIN_MODE", "bogus")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.ListenAddr != ":9090" {
		t.Fatalf("expected :9090, got %q", cfg.ListenAddr)
	}
	if cfg.DatabasePath != "/tmp/override.db" {
		t.Fatalf("env should override file, got %q", cfg.DatabasePath)
	}
	if cfg.LookaheadDays != 14 || cfg.Notify.Days != 3 || cfg.Notify.Cron != "30 7 * * 1-5" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Notify.WebhookURL != "https://hooks.example.test/digest" {
		t.Fatalf("webhook url not trimmed: %q", cfg.Notify.WebhookURL)
	}
	if !cfg.Notify.MaterializeDueToday {
		t.Fatal("expected MATERIALIZE_DUE_TODAY to enable materialization")
	}
	if cfg.GinMode != "release" {
		t.Fatalf("unknown gin mode should fall back to release, got %q", cfg.GinMode)
	}
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err != nil {
		t.Fatalf("expected missing file to be skipped, got %v", err)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("LOOKAHEAD_DAYS", "a month")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for non-numeric LOOKAHEAD_DAYS")
	}

	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("notify: [unclosed"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("LOOKAHEAD_DAYS", "")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed yaml")
	}
}

func TestLocation(t *testing.T) {
	cfg := AppConfig{}
	if loc, err := cfg.Location(); err != nil || loc != time.Local {
		t.Fatalf("expected local zone, got %v %v", loc, err)
	}

	cfg.Timezone = "UTC"
	if loc, err := cfg.Location(); err != nil || loc.String() != "UTC" {
		t.Fatalf("expected UTC, got %v %v", loc, err)
	}

	cfg.Timezone = "Mars/Olympus"
	if loc, err := cfg.Location(); err == nil || loc != time.Local {
		t.Fatalf("expected fallback with error, got %v %v", loc, err)
	}
}
