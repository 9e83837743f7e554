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
		t.Fatalf("load defaults: %v", err)
	}
	if cfg.Server.Address != ":8080" {
		t.Fatalf("unexpected default address %s", cfg.Server.Address)
	}
	if cfg.Maestro.IntentWeight != 0.4 || cfg.Maestro.CauseWeight != 0.6 {
		t.Fatalf("unexpected default confidence weights %+v", cfg.Maestro)
	}
	if cfg.Alerts.P0Sigma < cfg.Alerts.P1Sigma || cfg.Alerts.P1Sigma < cfg.Alerts.P2Sigma {
		t.Fatalf("default sigma bands out of order %+v", cfg.Alerts)
	}
	if cfg.Cache.Bucket != time.Hour {
		t.Fatalf("unexpected default cache bucket %s", cfg.Cache.Bucket)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "maestro.yaml")
	content := []byte(`
server:
  address: ":9999"
maestro:
  agentTimeout: 5s
alerts:
  p0Sigma: 4.0
  p1Sigma: 3.0
  p2Sigma: 2.0
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Address != ":9999" {
		t.Fatalf("file value not applied, got %s", cfg.Server.Address)
	}
	if cfg.Maestro.AgentTimeout != 5*time.Second {
		t.Fatalf("nested duration not applied, got %s", cfg.Maestro.AgentTimeout)
	}
	// Untouched sections keep their defaults.
	if cfg.Server.MetricsAddress != ":2112" {
		t.Fatalf("defaults lost for unset fields, got %s", cfg.Server.MetricsAddress)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("explicit missing config path must fail")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MAESTRO_SERVER_ADDRESS", ":7070")
	t.Setenv("MAESTRO_MODEL_ENABLED", "false")
	t.Setenv("MAESTRO_RATE_LIMIT_RPS", "9")
	t.Setenv("MAESTRO_CACHE_BUCKET", "30m")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Address != ":7070" {
		t.Fatalf("env address not applied, got %s", cfg.Server.Address)
	}
	if cfg.Model.Enabled {
		t.Fatalf("env model toggle not applied")
	}
	if cfg.RateLimit.RatePerSecond != 9 {
		t.Fatalf("env rate limit not applied, got %f", cfg.RateLimit.RatePerSecond)
	}
	if cfg.Cache.Bucket != 30*time.Minute {
		t.Fatalf("env cache bucket not applied, got %s", cfg.Cache.Bucket)
	}
}

func TestValidateRejectsBadThresholds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "maestro.yaml")
	content := []byte(`
alerts:
  p0Sigma: 1.0
  p1Sigma: 2.0
  p2Sigma: 3.0
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("inverted sigma bands must be rejected")
	}
}
