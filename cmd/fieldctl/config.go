package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/swcstudio/fieldctl/internal/config"
)

type fileConfig struct {
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

// loadServiceConfig applies file overrides onto the runtime defaults.
// Only keys present in the file override; absent keys keep defaults.
func loadServiceConfig(path string) (config.ServiceConfig, error) {
	cfg := config.DefaultServiceConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return config.ServiceConfig{}, fmt.Errorf("load edge config: %w", err)
	}

	if meta.IsDefined("edge_id") {
		if id := strings.TrimSpace(raw.EdgeID); id != "" {
			cfg.EdgeID = id
		}
	}
	if meta.IsDefined("addr") {
		if addr := strings.TrimSpace(raw.Addr); addr != "" {
			cfg.Addr = addr
		}
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = normalizeOrigins(raw.CorsOrigins)
	}
	if meta.IsDefined("capacity") {
		cfg.Capacity = raw.Capacity
	}
	if meta.IsDefined("tick_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.TickInterval))
		if err != nil {
			return config.ServiceConfig{}, fmt.Errorf("parse tick_interval: %w", err)
		}
		cfg.TickInterval = d
	}
	if meta.IsDefined("kv_path") {
		cfg.KVPath = strings.TrimSpace(raw.KVPath)
	}
	if meta.IsDefined("analytics_path") {
		cfg.AnalyticsPath = strings.TrimSpace(raw.AnalyticsPath)
	}
	if meta.IsDefined("blob_dir") {
		cfg.BlobDir = strings.TrimSpace(raw.BlobDir)
	}
	if meta.IsDefined("inference_url") {
		cfg.InferenceURL = strings.TrimSpace(raw.InferenceURL)
	}
	if meta.IsDefined("queue_batch_size") {
		cfg.QueueBatchSize = raw.QueueBatchSize
	}
	if meta.IsDefined("queue_poll_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.QueuePollInterval))
		if err != nil {
			return config.ServiceConfig{}, fmt.Errorf("parse queue_poll_interval: %w", err)
		}
		cfg.QueuePollInterval = d
	}
	if meta.IsDefined("result_ttl") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.ResultTTL))
		if err != nil {
			return config.ServiceConfig{}, fmt.Errorf("parse result_ttl: %w", err)
		}
		cfg.ResultTTL = d
	}

	if err := config.ValidateServiceConfig(cfg); err != nil {
		return config.ServiceConfig{}, err
	}
	return cfg, nil
}

func normalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, origin := range in {
		if v := strings.TrimSpace(origin); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
