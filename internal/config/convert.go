package config

import (
	"fmt"
	"strings"
	"time"
)

// Convert maps the file shape onto runtime defaults, parsing duration
// strings. Fields left empty in the file keep their defaults.
func Convert(raw FileConfig) (ServiceConfig, error) {
	cfg := DefaultServiceConfig()

	if v := strings.TrimSpace(raw.EdgeID); v != "" {
		cfg.EdgeID = v
	}
	if v := strings.TrimSpace(raw.Addr); v != "" {
		cfg.Addr = v
	}
	if len(raw.CorsOrigins) > 0 {
		cfg.CorsOrigins = raw.CorsOrigins
	}
	if raw.Capacity > 0 {
		cfg.Capacity = raw.Capacity
	}
	if v := strings.TrimSpace(raw.KVPath); v != "" {
		cfg.KVPath = v
	}
	if v := strings.TrimSpace(raw.AnalyticsPath); v != "" {
		cfg.AnalyticsPath = v
	}
	if v := strings.TrimSpace(raw.BlobDir); v != "" {
		cfg.BlobDir = v
	}
	if v := strings.TrimSpace(raw.InferenceURL); v != "" {
		cfg.InferenceURL = v
	}
	if raw.QueueBatchSize > 0 {
		cfg.QueueBatchSize = raw.QueueBatchSize
	}

	var err error
	if cfg.TickInterval, err = duration(raw.TickInterval, cfg.TickInterval); err != nil {
		return ServiceConfig{}, fmt.Errorf("config: tick_interval: %w", err)
	}
	if cfg.QueuePollInterval, err = duration(raw.QueuePollInterval, cfg.QueuePollInterval); err != nil {
		return ServiceConfig{}, fmt.Errorf("config: queue_poll_interval: %w", err)
	}
	if cfg.ResultTTL, err = duration(raw.ResultTTL, cfg.ResultTTL); err != nil {
		return ServiceConfig{}, fmt.Errorf("config: result_ttl: %w", err)
	}
	return cfg, nil
}

func duration(raw string, fallback time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	return time.ParseDuration(raw)
}
