package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadServiceConfigDefaultsAndOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
edge_id = "edge-42"
capacity = 250.0
tick_interval = "2s"
cors_origins = ["https://example.com", " "]
inference_url = "http://localhost:9000"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := loadServiceConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.EdgeID != "edge-42" {
		t.Fatalf("unexpected edge id: %q", cfg.EdgeID)
	}
	if cfg.Capacity != 250.0 {
		t.Fatalf("unexpected capacity: %v", cfg.Capacity)
	}
	if cfg.TickInterval != 2*time.Second {
		t.Fatalf("unexpected tick interval: %v", cfg.TickInterval)
	}
	if len(cfg.CorsOrigins) != 1 || cfg.CorsOrigins[0] != "https://example.com" {
		t.Fatalf("unexpected cors origins: %+v", cfg.CorsOrigins)
	}
	if cfg.InferenceURL != "http://localhost:9000" {
		t.Fatalf("unexpected inference url: %q", cfg.InferenceURL)
	}
	// Keys absent from the file keep their defaults.
	if cfg.Addr != ":8080" {
		t.Fatalf("unexpected addr: %q", cfg.Addr)
	}
	if cfg.QueueBatchSize != 10 {
		t.Fatalf("unexpected batch size: %d", cfg.QueueBatchSize)
	}
	if cfg.ResultTTL != time.Hour {
		t.Fatalf("unexpected result ttl: %v", cfg.ResultTTL)
	}
}

func TestLoadServiceConfigBadDuration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(`tick_interval = "abc"`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := loadServiceConfig(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoadServiceConfigRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(`capacity = -5.0`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := loadServiceConfig(path); err == nil {
		t.Fatalf("expected validation error")
	}
}
