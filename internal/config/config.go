package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaEnabled     bool
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration

	// Open-Meteo weather source configuration.
	OpenMeteoBaseURL   string
	OpenMeteoTimeout   time.Duration
	OpenMeteoCacheSize int
	OpenMeteoCacheTTL  time.Duration

	// Batch scoring limits.
	ScoreMaxBatch         int
	ScoreFetchConcurrency int

	// ScoringConfigPath optionally points at a YAML file overriding the
	// built-in scoring tables.
	ScoringConfigPath string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	openMeteoTimeout, err := parseDuration("OPENMETEO_TIMEOUT", "15s")
	if err != nil {
		return nil, err
	}
	openMeteoCacheTTL, err := parseDuration("OPENMETEO_CACHE_TTL", "1h")
	if err != nil {
		return nil, err
	}
	maxBatch, err := parsePositiveInt("SCORE_MAX_BATCH", 200)
	if err != nil {
		return nil, err
	}
	concurrency, err := parsePositiveInt("SCORE_FETCH_CONCURRENCY", 8)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		KafkaEnabled:       os.Getenv("KAFKA_ENABLED") != "false",
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "fishability-requests"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "fishability-scores"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "fishability-service"),
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		OpenMeteoBaseURL:   sharedcfg.EnvOrDefault("OPENMETEO_BASE_URL", "https://api.open-meteo.com/v1/forecast"),
		OpenMeteoTimeout:   openMeteoTimeout,
		OpenMeteoCacheSize: parseCacheSize(),
		OpenMeteoCacheTTL:  openMeteoCacheTTL,

		ScoreMaxBatch:         maxBatch,
		ScoreFetchConcurrency: concurrency,
		ScoringConfigPath:     os.Getenv("SCORING_CONFIG_PATH"),
	}

	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required")
		}
		if cfg.KafkaSourceTopic == "" {
			return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
		}
		if cfg.KafkaSinkTopic == "" {
			return nil, errors.New("KAFKA_SINK_TOPIC is required")
		}
	}
	if cfg.OpenMeteoBaseURL == "" {
		return nil, errors.New("OPENMETEO_BASE_URL is required")
	}

	return cfg, nil
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

// parseCacheSize falls back to the default on bad input; a cache that is a
// little too large is not worth refusing to start over.
func parseCacheSize() int {
	if s := os.Getenv("OPENMETEO_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
