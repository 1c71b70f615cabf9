package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/fishability-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const defaultBroker = "localhost:9092"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{defaultBroker}, cfg.KafkaBrokers)
	assert.Equal(t, "fishability-requests", cfg.KafkaSourceTopic)
	assert.Equal(t, "fishability-scores", cfg.KafkaSinkTopic)
	assert.Equal(t, "fishability-service", cfg.KafkaGroupID)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.BatchFlushInterval)
	assert.Equal(t, "https://api.open-meteo.com/v1/forecast", cfg.OpenMeteoBaseURL)
	assert.Equal(t, 15*time.Second, cfg.OpenMeteoTimeout)
	assert.Equal(t, 1000, cfg.OpenMeteoCacheSize)
	assert.Equal(t, time.Hour, cfg.OpenMeteoCacheTTL)
	assert.Equal(t, 200, cfg.ScoreMaxBatch)
	assert.Equal(t, 8, cfg.ScoreFetchConcurrency)
	assert.Empty(t, cfg.ScoringConfigPath)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_SOURCE_TOPIC", "custom-source")
	t.Setenv("KAFKA_SINK_TOPIC", "custom-sink")
	t.Setenv("KAFKA_GROUP_ID", "custom-group")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("BATCH_SIZE", "100")
	t.Setenv("BATCH_FLUSH_INTERVAL", "1s")
	t.Setenv("OPENMETEO_BASE_URL", "http://meteo.internal/v1/forecast")
	t.Setenv("OPENMETEO_TIMEOUT", "5s")
	t.Setenv("OPENMETEO_CACHE_SIZE", "500")
	t.Setenv("OPENMETEO_CACHE_TTL", "15m")
	t.Setenv("SCORE_MAX_BATCH", "50")
	t.Setenv("SCORE_FETCH_CONCURRENCY", "2")
	t.Setenv("SCORING_CONFIG_PATH", "/etc/fishability/scoring.yaml")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-source", cfg.KafkaSourceTopic)
	assert.Equal(t, "custom-sink", cfg.KafkaSinkTopic)
	assert.Equal(t, "custom-group", cfg.KafkaGroupID)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 1*time.Second, cfg.BatchFlushInterval)
	assert.Equal(t, "http://meteo.internal/v1/forecast", cfg.OpenMeteoBaseURL)
	assert.Equal(t, 5*time.Second, cfg.OpenMeteoTimeout)
	assert.Equal(t, 500, cfg.OpenMeteoCacheSize)
	assert.Equal(t, 15*time.Minute, cfg.OpenMeteoCacheTTL)
	assert.Equal(t, 50, cfg.ScoreMaxBatch)
	assert.Equal(t, 2, cfg.ScoreFetchConcurrency)
	assert.Equal(t, "/etc/fishability/scoring.yaml", cfg.ScoringConfigPath)
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidBatchSize(t *testing.T) {
	t.Setenv("BATCH_SIZE", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BATCH_SIZE")
}

func TestLoad_InvalidBatchFlushInterval(t *testing.T) {
	t.Setenv("BATCH_FLUSH_INTERVAL", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BATCH_FLUSH_INTERVAL")
}

func TestLoad_InvalidOpenMeteoTimeout(t *testing.T) {
	t.Setenv("OPENMETEO_TIMEOUT", "bad")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENMETEO_TIMEOUT")
}

func TestLoad_NegativeCacheTTL(t *testing.T) {
	t.Setenv("OPENMETEO_CACHE_TTL", "-1m")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENMETEO_CACHE_TTL")
}

func TestLoad_InvalidMaxBatch(t *testing.T) {
	t.Setenv("SCORE_MAX_BATCH", "zero")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SCORE_MAX_BATCH")
}

func TestLoad_InvalidFetchConcurrency(t *testing.T) {
	t.Setenv("SCORE_FETCH_CONCURRENCY", "-3")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SCORE_FETCH_CONCURRENCY")
}

func TestLoad_BadCacheSizeFallsBack(t *testing.T) {
	t.Setenv("OPENMETEO_CACHE_SIZE", "lots")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.OpenMeteoCacheSize)
}

func TestLoad_KafkaDisabledSkipsTopicChecks(t *testing.T) {
	t.Setenv("KAFKA_ENABLED", "false")
	t.Setenv("KAFKA_SOURCE_TOPIC", "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.KafkaEnabled)
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scoring.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadScoringConfig_NoPath(t *testing.T) {
	cfg, err := LoadScoringConfig("")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultScoringConfig(), cfg)
}

func TestLoadScoringConfig_Overrides(t *testing.T) {
	path := writeFile(t, `
species:
  trout:
    optimum: 10
    tol_low: 5
    tol_high: 5
weather_weights:
  sea:
    press: 0.3
    wind: 0.3
    align: 0.2
    cloud: 0.1
    rain: 0.1
crepuscular:
  peak_hours: [5, 20]
defaults:
  habitat: 0.8
`)

	cfg, err := LoadScoringConfig(path)
	require.NoError(t, err)

	defaults := domain.DefaultScoringConfig()
	assert.Equal(t, domain.TempProfile{Optimum: 10, TolLow: 5, TolHigh: 5}, cfg.Species[domain.SpeciesTrout])
	assert.Equal(t, defaults.Species[domain.SpeciesPike], cfg.Species[domain.SpeciesPike])
	assert.NotContains(t, cfg.WeatherWeights[domain.ContextSea], domain.DimTide)
	assert.Equal(t, defaults.WeatherWeights[domain.ContextLake], cfg.WeatherWeights[domain.ContextLake])
	assert.Equal(t, []float64{5, 20}, cfg.Crepuscular.PeakHours)
	assert.InDelta(t, 1.0/3.0, cfg.Crepuscular.Slope, 1e-12)
	assert.Equal(t, 0.8, cfg.Defaults.Habitat)
	assert.Equal(t, 0.6, cfg.Defaults.Turbidity)
}

func TestLoadScoringConfig_EmptyFile(t *testing.T) {
	cfg, err := LoadScoringConfig(writeFile(t, ""))
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultScoringConfig(), cfg)
}

func TestLoadScoringConfig_UnknownField(t *testing.T) {
	_, err := LoadScoringConfig(writeFile(t, "exponent:\n  time: 1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse scoring config")
}

func TestLoadScoringConfig_Invalid(t *testing.T) {
	_, err := LoadScoringConfig(writeFile(t, "pressure:\n  scale: 0\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pressure.scale must be positive")
}

func TestLoadScoringConfig_MissingFile(t *testing.T) {
	_, err := LoadScoringConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read scoring config")
}
