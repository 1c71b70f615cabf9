package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fishability"

// Metrics holds the Prometheus counters, histograms, and gauges for the
// scoring service and its Kafka pipeline.
type Metrics struct {
	// Kafka pipeline metrics.
	MessagesConsumed prometheus.Counter
	MessagesProduced prometheus.Counter
	TransformErrors  *prometheus.CounterVec // labels: outcome={skipped,retried}
	PipelineRunning  prometheus.Gauge

	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Scoring metrics.
	ScoreBatches *prometheus.CounterVec // labels: outcome={success,empty,too_large,invalid,upstream,error}
	ItemsScored  *prometheus.CounterVec // labels: species, context
	ScoreValue   prometheus.Histogram

	// Weather source metrics.
	UpstreamRequests *prometheus.CounterVec // labels: outcome={success,error,breaker_open}
	UpstreamDuration prometheus.Histogram
	FeatureCache     *prometheus.CounterVec // labels: result={hit,miss}
	KafkaEnabled     prometheus.Gauge
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.MessagesConsumed,
		m.MessagesProduced,
		m.TransformErrors,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.ScoreBatches,
		m.ItemsScored,
		m.ScoreValue,
		m.UpstreamRequests,
		m.UpstreamDuration,
		m.FeatureCache,
		m.KafkaEnabled,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		MessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_consumed_total",
			Help:      "Total scoring requests read from the source topic.",
		}),
		MessagesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_produced_total",
			Help:      "Total score results written to the sink topic.",
		}),
		TransformErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transform_errors_total",
			Help:      "Requests that failed to parse or score, by whether they were skipped or held for retry.",
		}, []string{"outcome"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of messages per batch extracted from Kafka.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete batch extract-score-load cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		ScoreBatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "score_batches_total",
			Help:      "Batch scoring calls by outcome.",
		}, []string{"outcome"}),
		ItemsScored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_scored_total",
			Help:      "Scored items by species and water context.",
		}, []string{"species", "context"}),
		ScoreValue: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "score",
			Help:      "Distribution of final fishability scores.",
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
		}),
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Open-Meteo requests by outcome.",
		}, []string{"outcome"}),
		UpstreamDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_duration_seconds",
			Help:      "Open-Meteo request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}),
		FeatureCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feature_cache_total",
			Help:      "Feature cache lookups by result.",
		}, []string{"result"}),
		KafkaEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "kafka_enabled",
			Help:      "1 when the Kafka scoring pipeline is enabled, 0 otherwise.",
		}),
	}
}
