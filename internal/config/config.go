package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// FileConfig is the on-disk TOML shape. Durations are strings so the
// file stays readable; Convert parses them into ServiceConfig.
type FileConfig struct {
	EdgeID            string   `toml:"edge_id"`
	Addr              string   `toml:"addr"`
	CorsOrigins       []string `toml:"cors_origins"`
	Capacity          float64  `toml:"capacity"`
	TickInterval      string   `toml:"tick_interval"`
	KVPath            string   `toml:"kv_path"`
	AnalyticsPath     string   `toml:"analytics_path"`
	BlobDir           string   `toml:"blob_dir"`
	InferenceURL      string   `toml:"inference_url"`
	QueueBatchSize    int      `toml:"queue_batch_size"`
	QueuePollInterval string   `toml:"queue_poll_interval"`
	ResultTTL         string   `toml:"result_ttl"`
}

// ServiceConfig is the parsed runtime configuration.
type ServiceConfig struct {
	EdgeID            string
	Addr              string
	CorsOrigins       []string
	Capacity          float64
	TickInterval      time.Duration
	KVPath            string
	AnalyticsPath     string
	BlobDir           string
	InferenceURL      string
	QueueBatchSize    int
	QueuePollInterval time.Duration
	ResultTTL         time.Duration
}

// DefaultServiceConfig returns the runtime defaults for a local edge.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		EdgeID:            "edge-local",
		Addr:              ":8080",
		CorsOrigins:       []string{"*"},
		Capacity:          100,
		TickInterval:      5 * time.Second,
		KVPath:            "data/field.db",
		AnalyticsPath:     "data/analytics.db",
		BlobDir:           "data/artifacts",
		InferenceURL:      "",
		QueueBatchSize:    10,
		QueuePollInterval: time.Second,
		ResultTTL:         time.Hour,
	}
}

// LoadServiceConfig reads, converts, and validates a TOML file.
func LoadServiceConfig(path string) (ServiceConfig, error) {
	var raw FileConfig
	if err := loadToml(path, &raw); err != nil {
		return ServiceConfig{}, err
	}
	cfg, err := Convert(raw)
	if err != nil {
		return ServiceConfig{}, err
	}
	if err := ValidateServiceConfig(cfg); err != nil {
		return ServiceConfig{}, err
	}
	return cfg, nil
}

// ValidateServiceConfig enforces the invariants a runnable config needs.
func ValidateServiceConfig(cfg ServiceConfig) error {
	if strings.TrimSpace(cfg.EdgeID) == "" {
		return fmt.Errorf("config: edge_id is required")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return fmt.Errorf("config: addr is required")
	}
	if cfg.Capacity <= 0 {
		return fmt.Errorf("config: capacity must be positive")
	}
	if cfg.TickInterval <= 0 {
		return fmt.Errorf("config: tick_interval must be positive")
	}
	if cfg.QueueBatchSize <= 0 {
		return fmt.Errorf("config: queue_batch_size must be positive")
	}
	if cfg.QueuePollInterval <= 0 {
		return fmt.Errorf("config: queue_poll_interval must be positive")
	}
	return nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}
