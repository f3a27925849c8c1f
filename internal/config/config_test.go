package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

const validYAML = `
telegram:
  token: "123456:abcdef"
  poll_timeout: "10s"
poller:
  schedule: "*/5 * * * *"
  workers: 4
  lookup_rate_per_sec: 5
availability:
  base_url: "https://ws.alibaba.ir/api/v2/bus/available"
  timeout: "15s"
notifier:
  workers: 2
  queue_size: 256
  rate_per_sec: 3
  retry_max: 3
  retry_base: "500ms"
  retry_max_delay: "10s"
http:
  addr: "127.0.0.1:8090"
logging:
  level: "info"
  console: true
journal:
  driver: "none"
`

func writeConfig(t *testing.T, body string) *Manager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return NewManager(path, zerolog.Nop())
}

func TestLoadValid(t *testing.T) {
	t.Parallel()
	m := writeConfig(t, validYAML)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "123456:abcdef" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
	if cfg.Poller.Workers != 4 || cfg.Poller.Schedule != "*/5 * * * *" {
		t.Fatalf("poller section = %+v", cfg.Poller)
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get should return the committed config")
	}
}

func TestLoadRejectsUnknownKey(t *testing.T) {
	t.Parallel()
	m := writeConfig(t, validYAML+"\nsheduler:\n  enabled: true\n")
	if _, err := m.Load(); err == nil {
		t.Fatal("expected error for unknown top-level key")
	}
}

func TestLoadRejectsMissingToken(t *testing.T) {
	t.Parallel()
	m := writeConfig(t, "telegram:\n  poll_timeout: \"10s\"\n")
	if _, err := m.Load(); err == nil {
		t.Fatal("expected validation error for empty token")
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Parallel()
	m := writeConfig(t, "telegram:\n  token: \"x\"\n  poll_timeout: \"ten seconds\"\n")
	if _, err := m.Load(); err == nil {
		t.Fatal("expected error for unparseable duration")
	}
}

func TestLoadRejectsUnknownJournalDriver(t *testing.T) {
	t.Parallel()
	m := writeConfig(t, "telegram:\n  token: \"x\"\njournal:\n  driver: \"postgres\"\n")
	if _, err := m.Load(); err == nil {
		t.Fatal("expected error for unsupported journal driver")
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	t.Parallel()
	m := writeConfig(t, validYAML)
	ch := m.Subscribe(1)
	m.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after Unsubscribe")
	}
	// Unsubscribing twice (or a foreign channel) is a no-op.
	m.Unsubscribe(ch)
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()
	d, err := ParseDurationOrDefault("x", "", 5)
	if err != nil || d != 5 {
		t.Fatalf("got %v, %v", d, err)
	}
	if _, err := ParseDurationField("x", "-1s"); err == nil {
		t.Fatal("negative duration must be rejected")
	}
}
