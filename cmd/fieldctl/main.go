package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/swcstudio/fieldctl/internal/actor"
	"github.com/swcstudio/fieldctl/internal/analytics"
	"github.com/swcstudio/fieldctl/internal/blob"
	"github.com/swcstudio/fieldctl/internal/config"
	"github.com/swcstudio/fieldctl/internal/dispatch"
	"github.com/swcstudio/fieldctl/internal/inference"
	"github.com/swcstudio/fieldctl/internal/observability"
	"github.com/swcstudio/fieldctl/internal/persist"
	"github.com/swcstudio/fieldctl/internal/queue"
	"github.com/swcstudio/fieldctl/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to edge config TOML (defaults apply when empty)")
	addr := flag.String("addr", "", "listen address override")
	flag.Parse()

	logger := observability.InitLogger("fieldctl")

	cfg := config.DefaultServiceConfig()
	if *configPath != "" {
		loaded, err := loadServiceConfig(*configPath)
		if err != nil {
			logger.Fatal().Err(err).Str("path", *configPath).Msg("config_load_failed")
		}
		cfg = loaded
	}
	if *addr != "" {
		cfg.Addr = *addr
	}

	for _, dir := range []string{filepath.Dir(cfg.KVPath), filepath.Dir(cfg.AnalyticsPath), cfg.BlobDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Fatal().Err(err).Str("dir", dir).Msg("data_dir_failed")
		}
	}

	kv, err := persist.OpenSQLite(cfg.KVPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.KVPath).Msg("kv_open_failed")
	}
	defer kv.Close()

	anl, err := analytics.Open(cfg.AnalyticsPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.AnalyticsPath).Msg("analytics_open_failed")
	}
	defer anl.Close()

	blobs, err := blob.NewFSStore(cfg.BlobDir)
	if err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.BlobDir).Msg("blob_open_failed")
	}

	registry := actor.NewRegistry(persist.NewAdapter(kv), actor.Config{TickInterval: cfg.TickInterval})
	defer registry.Close()

	backlog := queue.NewMemory()
	dispatcher := dispatch.New(dispatch.Config{
		EdgeID:    cfg.EdgeID,
		Capacity:  cfg.Capacity,
		ResultTTL: cfg.ResultTTL,
	}, registry, inference.NewHTTPClient(cfg.InferenceURL), blobs, anl, backlog, kv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumer := queue.NewConsumer(backlog, dispatch.QueueNames(), dispatch.Replay(dispatcher),
		cfg.QueueBatchSize, cfg.QueuePollInterval)
	go consumer.Run(ctx)

	srv := server.New(cfg, dispatcher, registry, backlog, anl)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr).Str("edge", cfg.EdgeID).Msg("server_listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown_signal")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server_failed")
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown_failed")
	}
	logger.Info().Msg("server_stopped")
}
