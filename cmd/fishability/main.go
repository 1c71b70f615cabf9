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

	httpadapter "github.com/couchcryptid/fishability-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/fishability-service/internal/adapter/kafka"
	"github.com/couchcryptid/fishability-service/internal/adapter/openmeteo"
	"github.com/couchcryptid/fishability-service/internal/config"
	"github.com/couchcryptid/fishability-service/internal/domain"
	"github.com/couchcryptid/fishability-service/internal/observability"
	"github.com/couchcryptid/fishability-service/internal/pipeline"
	"github.com/couchcryptid/fishability-service/internal/scoring"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	scoringCfg, err := config.LoadScoringConfig(cfg.ScoringConfigPath)
	if err != nil {
		logger.Error("failed to load scoring config", "error", err)
		os.Exit(1)
	}
	if cfg.ScoringConfigPath != "" {
		logger.Info("scoring config loaded", "path", cfg.ScoringConfigPath)
	}

	client := openmeteo.NewClient(cfg.OpenMeteoBaseURL, cfg.OpenMeteoTimeout, metrics, logger)
	source := openmeteo.NewCachedSource(client, cfg.OpenMeteoCacheSize, cfg.OpenMeteoCacheTTL, cfg.OpenMeteoTimeout, metrics)
	logger.Info("open-meteo source configured",
		"base_url", cfg.OpenMeteoBaseURL,
		"cache_size", cfg.OpenMeteoCacheSize,
		"cache_ttl", cfg.OpenMeteoCacheTTL,
		"timeout", cfg.OpenMeteoTimeout,
	)

	svc := scoring.NewService(
		domain.NewEngine(scoringCfg),
		source,
		cfg.ScoreMaxBatch,
		cfg.ScoreFetchConcurrency,
		metrics,
		logger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize the Kafka pipeline (feature-flagged via KAFKA_ENABLED).
	var (
		reader *kafkaadapter.Reader
		writer *kafkaadapter.Writer
		p      *pipeline.Pipeline
	)
	if cfg.KafkaEnabled {
		reader = kafkaadapter.NewReader(cfg, logger)
		writer = kafkaadapter.NewWriter(cfg, logger)
		transformer := pipeline.NewTransformer(svc, clockwork.NewRealClock(), logger)
		p = pipeline.New(reader, transformer, writer, logger, metrics, cfg.BatchSize)
		metrics.KafkaEnabled.Set(1)
		logger.Info("kafka pipeline enabled", "source", cfg.KafkaSourceTopic, "sink", cfg.KafkaSinkTopic)
	} else {
		logger.Info("kafka pipeline disabled")
	}

	ready := httpadapter.AllReady(svc)
	if p != nil {
		ready = httpadapter.AllReady(svc, p)
	}
	srv := httpadapter.NewServer(cfg.HTTPAddr, svc, ready, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start scoring pipeline.
	if p != nil {
		go func() {
			if err := p.Run(ctx); err != nil {
				logger.Error("pipeline error", "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if reader != nil {
		if err := reader.Close(); err != nil {
			logger.Error("kafka reader close error", "error", err)
		}
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
