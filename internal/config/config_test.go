package config_test

import (
	"testing"
	"time"

	"github.com/notifyhub/realtime-delivery/internal/config"
)

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, err := config.Load(); err == nil {
		t.Fatal("expected error when DATABASE_URL is unset")
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/notifications")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.HTTPPort != "8080" {
		t.Fatalf("expected default port 8080, got %s", cfg.HTTPPort)
	}
	if cfg.Workers != 5 || cfg.BatchSize != 10 || cfg.MaxRetries != 3 {
		t.Fatalf("unexpected processor defaults: %+v", cfg)
	}
	if cfg.PongWait != 60*time.Second {
		t.Fatalf("expected 60s pong wait, got %s", cfg.PongWait)
	}
	if cfg.IdleTimeout != 10*time.Minute || cfg.SweepInterval != 5*time.Minute {
		t.Fatalf("unexpected sweep defaults: idle=%s sweep=%s", cfg.IdleTimeout, cfg.SweepInterval)
	}
	if cfg.WebhookURL != "" {
		t.Fatal("webhook channel should be disabled by default")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/notifications")
	t.Setenv("QUEUE_WORKERS", "12")
	t.Setenv("QUEUE_POLL_INTERVAL", "250ms")
	t.Setenv("WS_PONG_WAIT", "30s")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Workers != 12 {
		t.Fatalf("expected 12 workers, got %d", cfg.Workers)
	}
	if cfg.PollInterval != 250*time.Millisecond {
		t.Fatalf("expected 250ms poll interval, got %s", cfg.PollInterval)
	}
	if cfg.PongWait != 30*time.Second {
		t.Fatalf("expected 30s pong wait, got %s", cfg.PongWait)
	}
}

func TestLoad_MalformedValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/notifications")
	t.Setenv("QUEUE_WORKERS", "many")
	t.Setenv("QUEUE_POLL_INTERVAL", "soon")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Workers != 5 {
		t.Fatalf("expected default workers on parse failure, got %d", cfg.Workers)
	}
	if cfg.PollInterval != 5*time.Second {
		t.Fatalf("expected default poll interval on parse failure, got %s", cfg.PollInterval)
	}
}
