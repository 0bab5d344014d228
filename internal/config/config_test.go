package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseExpandsEnvironment(t *testing.T) {
	t.Setenv("TEST_TWILIO_SID", "AC123")
	cfg, err := Parse([]byte(`
database:
  driver: postgres
  dsn: postgres://localhost/quiz
notifier:
  provider: twilio
  twilio:
    account_sid: "${TEST_TWILIO_SID}"
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Notifier.Twilio.AccountSID != "AC123" {
		t.Fatalf("expected expanded sid, got %q", cfg.Notifier.Twilio.AccountSID)
	}
	if cfg.Database.Driver != "postgres" {
		t.Fatalf("unexpected driver %q", cfg.Database.Driver)
	}
}

func TestParseRejectsUnknownNames(t *testing.T) {
	if _, err := Parse([]byte("notifier:\n  provider: pigeon\n")); err == nil {
		t.Fatalf("expected unknown provider to fail")
	}
	if _, err := Parse([]byte("database:\n  driver: mysql\n")); err == nil {
		t.Fatalf("expected unknown driver to fail")
	}
	if _, err := Parse([]byte("database:\n  driver: sqlite\n  pgx_catalog: true\n")); err == nil {
		t.Fatalf("expected pgx catalog on sqlite to fail")
	}
}

func TestLoadShippedConfig(t *testing.T) {
	path := filepath.Join("..", "..", "config", "config.yaml")
	if _, err := os.Stat(path); err != nil {
		t.Skipf("config file not found: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if TTLDuration(cfg.Quiz.StartDelay, 0) != 30*time.Second {
		t.Fatalf("expected 30s start delay, got %q", cfg.Quiz.StartDelay)
	}
}

func TestTTLDurationFallback(t *testing.T) {
	if got := TTLDuration("", time.Minute); got != time.Minute {
		t.Fatalf("empty: %v", got)
	}
	if got := TTLDuration("nonsense", time.Minute); got != time.Minute {
		t.Fatalf("invalid: %v", got)
	}
	if got := TTLDuration("2s", time.Minute); got != 2*time.Second {
		t.Fatalf("valid: %v", got)
	}
}
