package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/fishability-service/internal/domain"
	"github.com/couchcryptid/fishability-service/internal/observability"
	"github.com/couchcryptid/fishability-service/internal/pipeline"
	"github.com/couchcryptid/fishability-service/internal/scoring"
)

// --- mocks ---

// mockExtractor hands out the queued batches, then reports an idle source
// until the context is cancelled.
type mockExtractor struct {
	mu      sync.Mutex
	batches [][]domain.RawEvent
	err     error
}

func (m *mockExtractor) ExtractBatch(ctx context.Context, _ int) ([]domain.RawEvent, error) {
	m.mu.Lock()
	if len(m.batches) > 0 {
		b := m.batches[0]
		m.batches = m.batches[1:]
		m.mu.Unlock()
		return b, nil
	}
	m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(10 * time.Millisecond):
		return nil, nil
	}
}

type mockTransformer struct {
	err error
}

func (m *mockTransformer) Transform(_ context.Context, raw domain.RawEvent) (domain.OutputEvent, error) {
	if m.err != nil {
		return domain.OutputEvent{}, m.err
	}
	return domain.OutputEvent{Key: raw.Key, Value: raw.Value}, nil
}

// keyedTransformer fails every message whose key is listed, and the first
// failFirst calls overall, with err.
type keyedTransformer struct {
	err       error
	failKeys  map[string]bool
	failFirst int32
	calls     atomic.Int32
}

func (m *keyedTransformer) Transform(_ context.Context, raw domain.RawEvent) (domain.OutputEvent, error) {
	n := m.calls.Add(1)
	if n <= m.failFirst || m.failKeys[string(raw.Key)] {
		return domain.OutputEvent{}, m.err
	}
	return domain.OutputEvent{Key: raw.Key, Value: raw.Value}, nil
}

type mockLoader struct {
	mu     sync.Mutex
	loaded []domain.OutputEvent
	err    error
}

func (m *mockLoader) LoadBatch(_ context.Context, events []domain.OutputEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.loaded = append(m.loaded, events...)
	return nil
}

func (m *mockLoader) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.loaded)
}

// featureStub serves the same ideal bundle for every location.
type featureStub struct{}

func (featureStub) Features(context.Context, float64, float64) (domain.FeatureBundle, error) {
	return domain.FeatureBundle{
		WaterTemp:     domain.Known(14),
		PressureTrend: domain.Known(0),
		WindSpeed:     domain.Known(4),
		WindDirection: domain.Known(0),
		CloudCover:    domain.Known(30),
		Rain6h:        domain.Known(0),
		IsDay:         domain.KnownFlag(true),
	}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMetrics() *observability.Metrics {
	return observability.NewMetricsForTesting()
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func newScoreTransformer(clock clockwork.Clock) *pipeline.ScoreTransformer {
	svc := scoring.NewService(
		domain.NewEngine(domain.DefaultScoringConfig()),
		featureStub{},
		200, 1,
		newTestMetrics(),
		discardLogger(),
	)
	return pipeline.NewTransformer(svc, clock, discardLogger())
}

// --- pipeline tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	raws := []domain.RawEvent{makeRawRequest(t, "req-1", 45.9), makeRawRequest(t, "req-2", 46.1)}

	ext := &mockExtractor{batches: [][]domain.RawEvent{raws}}
	ldr := &mockLoader{}
	metrics := newTestMetrics()

	p := pipeline.New(ext, &mockTransformer{}, ldr, discardLogger(), metrics, 10)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.Equal(t, 2, ldr.count())
	assert.Equal(t, raws[0].Value, ldr.loaded[0].Value)
	assert.Equal(t, 2.0, counterValue(t, metrics.MessagesConsumed))
	assert.Equal(t, 2.0, counterValue(t, metrics.MessagesProduced))
	assert.NoError(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	ldr := &mockLoader{}
	p := pipeline.New(&mockExtractor{}, &mockTransformer{}, ldr, discardLogger(), newTestMetrics(), 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, p.Run(ctx))
	assert.Empty(t, ldr.loaded)
}

func TestPipeline_Run_TransformErrorSkipsAndCommits(t *testing.T) {
	var commits atomic.Int32
	raw := makeRawRequest(t, "req-3", 45.9)
	raw.Commit = func(context.Context) error {
		commits.Add(1)
		return nil
	}

	ext := &mockExtractor{batches: [][]domain.RawEvent{{raw}}}
	ldr := &mockLoader{}
	metrics := newTestMetrics()

	p := pipeline.New(ext, &mockTransformer{err: errors.New("bad data")}, ldr, discardLogger(), metrics, 10)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.Empty(t, ldr.loaded)
	assert.Equal(t, int32(1), commits.Load())
	assert.Equal(t, 1.0, counterValue(t, metrics.TransformErrors.WithLabelValues("skipped")))
	assert.Zero(t, counterValue(t, metrics.TransformErrors.WithLabelValues("retried")))
}

func TestPipeline_Run_InvalidRequestIsDropped(t *testing.T) {
	var commits atomic.Int32
	raw := countCommits(domain.RawEvent{Key: []byte("bad"), Value: []byte(`{"lat":120,"lon":0}`)}, &commits)

	ext := &mockExtractor{batches: [][]domain.RawEvent{{raw}}}
	ldr := &mockLoader{}
	metrics := newTestMetrics()
	tfm := newScoreTransformer(clockwork.NewFakeClock())

	p := pipeline.New(ext, tfm, ldr, discardLogger(), metrics, 10)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.Empty(t, ldr.loaded)
	assert.Equal(t, int32(1), commits.Load())
	assert.Equal(t, 1.0, counterValue(t, metrics.TransformErrors.WithLabelValues("skipped")))
}

func TestPipeline_Run_UpstreamErrorHoldsBatch(t *testing.T) {
	var commits atomic.Int32
	raws := []domain.RawEvent{
		countCommits(makeRawRequest(t, "req-a", 45.9), &commits),
		countCommits(makeRawRequest(t, "req-b", 46.0), &commits),
		countCommits(makeRawRequest(t, "req-c", 46.1), &commits),
	}

	ext := &mockExtractor{batches: [][]domain.RawEvent{raws}}
	ldr := &mockLoader{}
	metrics := newTestMetrics()
	tfm := &keyedTransformer{err: fmt.Errorf("%w: open-meteo returned 503", domain.ErrUpstream), failFirst: 1 << 30}

	p := pipeline.New(ext, tfm, ldr, discardLogger(), metrics, 10)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.Zero(t, ldr.count())
	assert.Zero(t, commits.Load(), "held messages must not be committed")
	assert.GreaterOrEqual(t, counterValue(t, metrics.TransformErrors.WithLabelValues("retried")), 1.0)
	assert.Zero(t, counterValue(t, metrics.TransformErrors.WithLabelValues("skipped")))
	assert.Equal(t, 3.0, counterValue(t, metrics.MessagesConsumed), "held batch is retried, not re-read")
}

func TestPipeline_Run_UpstreamRecoveryScoresHeldMessages(t *testing.T) {
	var commits atomic.Int32
	raws := []domain.RawEvent{
		countCommits(makeRawRequest(t, "req-a", 45.9), &commits),
		countCommits(makeRawRequest(t, "req-b", 46.0), &commits),
		countCommits(makeRawRequest(t, "req-c", 46.1), &commits),
	}

	ext := &mockExtractor{batches: [][]domain.RawEvent{raws}}
	ldr := &mockLoader{}
	metrics := newTestMetrics()
	tfm := &keyedTransformer{err: fmt.Errorf("%w: timeout", domain.ErrUpstream), failFirst: 1}

	p := pipeline.New(ext, tfm, ldr, discardLogger(), metrics, 10)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	require.Equal(t, 3, ldr.count())
	for i, ev := range ldr.loaded {
		assert.Equal(t, raws[i].Key, ev.Key)
	}
	assert.Equal(t, int32(3), commits.Load())
	assert.Equal(t, 1.0, counterValue(t, metrics.TransformErrors.WithLabelValues("retried")))
	assert.Equal(t, 3.0, counterValue(t, metrics.MessagesProduced))
}

func TestPipeline_Run_UpstreamErrorMidBatchCommitsOnlyPrefix(t *testing.T) {
	var first, rest atomic.Int32
	raws := []domain.RawEvent{
		countCommits(makeRawRequest(t, "req-a", 45.9), &first),
		countCommits(makeRawRequest(t, "req-b", 46.0), &rest),
		countCommits(makeRawRequest(t, "req-c", 46.1), &rest),
	}

	ext := &mockExtractor{batches: [][]domain.RawEvent{raws}}
	ldr := &mockLoader{}
	tfm := &keyedTransformer{
		err:      fmt.Errorf("%w: connection refused", domain.ErrUpstream),
		failKeys: map[string]bool{"req-b": true},
	}

	p := pipeline.New(ext, tfm, ldr, discardLogger(), newTestMetrics(), 10)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	require.Equal(t, 1, ldr.count())
	assert.Equal(t, []byte("req-a"), ldr.loaded[0].Key)
	assert.Equal(t, int32(1), first.Load())
	assert.Zero(t, rest.Load())
}

func TestPipeline_Run_CommitsAfterLoad(t *testing.T) {
	var commits atomic.Int32
	raw := makeRawRequest(t, "req-5", 45.9)
	raw.Topic = "fishability-requests"
	raw.Commit = func(context.Context) error {
		commits.Add(1)
		return nil
	}

	ext := &mockExtractor{batches: [][]domain.RawEvent{{raw}}}
	p := pipeline.New(ext, &mockTransformer{}, &mockLoader{}, discardLogger(), newTestMetrics(), 10)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.Equal(t, int32(1), commits.Load())
}

func TestPipeline_Run_LoadErrorDoesNotCommit(t *testing.T) {
	var commits atomic.Int32
	raw := makeRawRequest(t, "req-6", 45.9)
	raw.Commit = func(context.Context) error {
		commits.Add(1)
		return nil
	}

	ext := &mockExtractor{batches: [][]domain.RawEvent{{raw}}}
	ldr := &mockLoader{err: errors.New("broker unavailable")}
	p := pipeline.New(ext, &mockTransformer{}, ldr, discardLogger(), newTestMetrics(), 10)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.Zero(t, commits.Load())
}

func TestPipeline_CheckReadiness_ExtractFailure(t *testing.T) {
	ext := &mockExtractor{err: errors.New("no brokers")}
	p := pipeline.New(ext, &mockTransformer{}, &mockLoader{}, discardLogger(), newTestMetrics(), 10)

	require.Error(t, p.CheckReadiness(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.EqualError(t, p.CheckReadiness(context.Background()), "pipeline source is not reachable")
}

func TestPipeline_CheckReadiness_IdleSourceIsReady(t *testing.T) {
	p := pipeline.New(&mockExtractor{}, &mockTransformer{}, &mockLoader{}, discardLogger(), newTestMetrics(), 10)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.NoError(t, p.CheckReadiness(context.Background()))
}

// --- transformer tests ---

func TestScoreTransformer_Transform(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 6, 0, 5, 0, time.UTC))
	tfm := newScoreTransformer(clock)

	raw := domain.RawEvent{Value: []byte(`{"lat":45.9,"lon":6.1,"dt_iso":"2024-05-01T06:00:00Z","species":"trout","habitat":0.9}`)}

	out, err := tfm.Transform(context.Background(), raw)
	require.NoError(t, err)

	var result domain.ScoreResult
	require.NoError(t, json.Unmarshal(out.Value, &result))
	assert.Equal(t, domain.SpeciesTrout, result.Species)
	assert.Equal(t, "2024-05-01T06:00:00Z", result.Time)
	assert.Greater(t, result.Score, 50)

	assert.Equal(t, []byte(domain.ResultID(result)), out.Key)
	assert.Equal(t, "trout", out.Headers["species"])
	assert.Equal(t, "lake", out.Headers["context"])
	assert.Equal(t, "2024-05-01T06:00:05Z", out.Headers["scored_at"])
}

func TestScoreTransformer_UsesMessageTimestamp(t *testing.T) {
	tfm := newScoreTransformer(clockwork.NewFakeClock())

	raw := domain.RawEvent{
		Value:     []byte(`{"lat":45.9,"lon":6.1,"species":"pike"}`),
		Timestamp: time.Date(2024, 5, 1, 19, 0, 0, 0, time.UTC),
	}

	out, err := tfm.Transform(context.Background(), raw)
	require.NoError(t, err)

	var result domain.ScoreResult
	require.NoError(t, json.Unmarshal(out.Value, &result))
	assert.Equal(t, "2024-05-01T19:00:00Z", result.Time)
}

func TestScoreTransformer_InvalidJSON(t *testing.T) {
	tfm := newScoreTransformer(clockwork.NewFakeClock())

	_, err := tfm.Transform(context.Background(), domain.RawEvent{Value: []byte("not json")})
	assert.ErrorContains(t, err, "parse score request")
	assert.ErrorIs(t, err, domain.ErrInvalidItem)
}

func TestScoreTransformer_InvalidItem(t *testing.T) {
	tfm := newScoreTransformer(clockwork.NewFakeClock())

	_, err := tfm.Transform(context.Background(), domain.RawEvent{Value: []byte(`{"lat":120,"lon":0}`)})

	var verr *scoring.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Problems, "lat must be <= 90")
}

// --- helpers ---

func countCommits(raw domain.RawEvent, n *atomic.Int32) domain.RawEvent {
	raw.Commit = func(context.Context) error {
		n.Add(1)
		return nil
	}
	return raw
}

func makeRawRequest(t *testing.T, key string, lat float64) domain.RawEvent {
	t.Helper()
	data, err := json.Marshal(domain.ScoreItem{
		Lat:     domain.Float64(lat),
		Lon:     domain.Float64(6.1),
		Time:    "2024-05-01T06:00:00Z",
		Species: "trout",
	})
	require.NoError(t, err)
	return domain.RawEvent{
		Key:   []byte(key),
		Value: data,
	}
}
