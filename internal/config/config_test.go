package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.HTTP.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.HTTP.Port)
	}
	if cfg.Tick.Rate != 30 {
		t.Errorf("Expected default tick rate 30, got %d", cfg.Tick.Rate)
	}
	if cfg.Tick.SnapshotInterval != 5*time.Second {
		t.Errorf("Expected default snapshot interval 5s, got %v", cfg.Tick.SnapshotInterval)
	}
	if cfg.Tick.MessageLogCap != 100 {
		t.Errorf("Expected default message log cap 100, got %d", cfg.Tick.MessageLogCap)
	}
	if cfg.Tick.SweepInterval != 10*time.Minute {
		t.Errorf("Expected default sweep interval 10m, got %v", cfg.Tick.SweepInterval)
	}
	if cfg.WebSocket.MaxMissedHeartbeats != 3 {
		t.Errorf("Expected default max missed heartbeats 3, got %d", cfg.WebSocket.MaxMissedHeartbeats)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected defaults to validate, got %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.HTTP.Port = 0 }},
		{"port too large", func(c *Config) { c.HTTP.Port = 70000 }},
		{"empty host", func(c *Config) { c.HTTP.Host = "" }},
		{"zero tick rate", func(c *Config) { c.Tick.Rate = 0 }},
		{"negative snapshot interval", func(c *Config) { c.Tick.SnapshotInterval = -time.Second }},
		{"zero message log cap", func(c *Config) { c.Tick.MessageLogCap = 0 }},
		{"zero ping interval", func(c *Config) { c.WebSocket.PingInterval = 0 }},
		{"zero missed heartbeats", func(c *Config) { c.WebSocket.MaxMissedHeartbeats = 0 }},
		{"journal path without timeout", func(c *Config) { c.Journal.Timeout = 0 }},
	}
	for _, tc := range cases {
		cfg := DefaultConfig()
		tc.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestConfig_ValidateJournalDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Journal.Path = ""
	cfg.Journal.Timeout = 0

	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected disabled journal to validate, got %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TACMAP_HTTP_PORT", "9090")
	t.Setenv("TACMAP_TICK_RATE", "60")
	t.Setenv("TACMAP_SNAPSHOT_INTERVAL", "2s")
	t.Setenv("TACMAP_WS_MAX_MISSED_HEARTBEATS", "5")
	t.Setenv("TACMAP_JOURNAL_PATH", "")

	cfg := LoadFromEnv()

	if cfg.HTTP.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.HTTP.Port)
	}
	if cfg.Tick.Rate != 60 {
		t.Errorf("Expected tick rate 60, got %d", cfg.Tick.Rate)
	}
	if cfg.Tick.SnapshotInterval != 2*time.Second {
		t.Errorf("Expected snapshot interval 2s, got %v", cfg.Tick.SnapshotInterval)
	}
	if cfg.WebSocket.MaxMissedHeartbeats != 5 {
		t.Errorf("Expected 5 missed heartbeats, got %d", cfg.WebSocket.MaxMissedHeartbeats)
	}
	// Explicitly empty path disables journaling.
	if cfg.Journal.Path != "" {
		t.Errorf("Expected journal disabled, got %q", cfg.Journal.Path)
	}
}

func TestLoadFromEnv_InvalidValuesIgnored(t *testing.T) {
	t.Setenv("TACMAP_HTTP_PORT", "not-a-number")
	t.Setenv("TACMAP_SNAPSHOT_INTERVAL", "soon")

	cfg := LoadFromEnv()

	if cfg.HTTP.Port != 8080 {
		t.Errorf("Expected default port kept, got %d", cfg.HTTP.Port)
	}
	if cfg.Tick.SnapshotInterval != 5*time.Second {
		t.Errorf("Expected default snapshot interval kept, got %v", cfg.Tick.SnapshotInterval)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"http": {"port": 9999, "read_timeout": "45s"},
		"tick": {"rate": 20, "snapshot_interval": "3s"},
		"journal": {"path": "/tmp/test.db", "timeout": "10s"}
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Expected temp file write to succeed, got %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if cfg.HTTP.Port != 9999 {
		t.Errorf("Expected port 9999, got %d", cfg.HTTP.Port)
	}
	if cfg.HTTP.ReadTimeout != 45*time.Second {
		t.Errorf("Expected read timeout 45s, got %v", cfg.HTTP.ReadTimeout)
	}
	if cfg.Tick.Rate != 20 {
		t.Errorf("Expected tick rate 20, got %d", cfg.Tick.Rate)
	}
	if cfg.Tick.SnapshotInterval != 3*time.Second {
		t.Errorf("Expected snapshot interval 3s, got %v", cfg.Tick.SnapshotInterval)
	}
	// Sections absent from the file keep their defaults.
	if cfg.WebSocket.PingInterval != 30*time.Second {
		t.Errorf("Expected default ping interval kept, got %v", cfg.WebSocket.PingInterval)
	}
	if cfg.Journal.Path != "/tmp/test.db" {
		t.Errorf("Expected journal path from file, got %q", cfg.Journal.Path)
	}
}

func TestLoadFromFile_Missing(t *testing.T) {
	if _, err := LoadFromFile("/nonexistent/config.json"); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestLoadFromFile_MalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"http":`), 0o644); err != nil {
		t.Fatalf("Expected temp file write to succeed, got %v", err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Error("Expected error for malformed JSON")
	}
}

func TestLoadConfigWithPrecedence(t *testing.T) {
	t.Setenv("TACMAP_HTTP_PORT", "9090")

	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"http": {"port": 7070}}`), 0o644); err != nil {
		t.Fatalf("Expected temp file write to succeed, got %v", err)
	}

	// File wins over environment.
	cfg := LoadConfigWithPrecedence(path)
	if cfg.HTTP.Port != 7070 {
		t.Errorf("Expected file port 7070, got %d", cfg.HTTP.Port)
	}

	// Unreadable file falls back to environment.
	cfg = LoadConfigWithPrecedence("/nonexistent/config.json")
	if cfg.HTTP.Port != 9090 {
		t.Errorf("Expected env port 9090, got %d", cfg.HTTP.Port)
	}

	// No file, no env handled elsewhere: empty path means env over defaults.
	cfg = LoadConfigWithPrecedence("")
	if cfg.HTTP.Port != 9090 {
		t.Errorf("Expected env port 9090, got %d", cfg.HTTP.Port)
	}
}
