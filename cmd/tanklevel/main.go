package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/tank-level-service/internal/adapter/geometrycache"
	httpadapter "github.com/couchcryptid/tank-level-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/tank-level-service/internal/adapter/kafka"
	"github.com/couchcryptid/tank-level-service/internal/adapter/postgres"
	redisadapter "github.com/couchcryptid/tank-level-service/internal/adapter/redis"
	"github.com/couchcryptid/tank-level-service/internal/config"
	"github.com/couchcryptid/tank-level-service/internal/observability"
	"github.com/couchcryptid/tank-level-service/internal/pipeline"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := postgres.NewStore(ctx, cfg)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		logger.Error("failed to apply schema", "error", err)
		os.Exit(1)
	}

	geometry := geometrycache.New(store, cfg.GeometryCacheSize, cfg.GeometryCacheTTL, clock, metrics)

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)

	// Snapshots are optional; nil interfaces keep them out of the loader,
	// readiness checks and the HTTP routes.
	var (
		snapshotLoader pipeline.BatchLoader
		snapshotReader httpadapter.SnapshotReader
		snapshotReady  httpadapter.ReadinessChecker
	)
	if cfg.SnapshotsEnabled() {
		client, err := redisadapter.NewClient(ctx, cfg)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer client.Close()

		snapshots := redisadapter.NewSnapshotStore(client, cfg.SnapshotTTL, logger, metrics)
		snapshotLoader, snapshotReader, snapshotReady = snapshots, snapshots, snapshots
		logger.Info("metrics snapshots enabled", "addr", cfg.RedisAddr, "ttl", cfg.SnapshotTTL)
	} else {
		logger.Info("metrics snapshots disabled")
	}

	transformer := pipeline.NewTransformer(geometry, clock, logger, metrics)
	loader := pipeline.NewFanoutLoader(writer, logger, snapshotLoader)
	p := pipeline.New(reader, transformer, loader, logger, metrics, cfg.BatchSize)

	fleet := pipeline.NewFleetEvaluator(store, geometry, store, logger, metrics, pipeline.FleetOptions{
		Clock:   clock,
		Timeout: cfg.FleetQueryTimeout,
		Workers: cfg.FleetWorkers,
	})

	ready := httpadapter.AllReady(p, store, snapshotReady)
	srv := httpadapter.NewServer(cfg.HTTPAddr, ready, fleet, snapshotReader, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}
