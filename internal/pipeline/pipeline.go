package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/fishability-service/internal/domain"
	"github.com/couchcryptid/fishability-service/internal/observability"
	"github.com/couchcryptid/fishability-service/internal/scoring"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// BatchExtractor reads up to batchSize raw events from the source. An empty
// batch with a nil error means the source was idle.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error)
}

// Transformer scores a raw request into an output event.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawEvent) (domain.OutputEvent, error)
}

// BatchLoader writes multiple output events to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, events []domain.OutputEvent) error
}

// Pipeline consumes scoring requests, scores them and publishes the results.
//
// A request that can never be scored (malformed JSON, failed validation) is
// committed and dropped. A request that failed because the weather source
// was unavailable is held, together with everything after it in the batch,
// and retried after a backoff before any new messages are read.
type Pipeline struct {
	extractor   BatchExtractor
	transformer Transformer
	loader      BatchLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool
	batchSize   int

	held  []domain.RawEvent
	delay retryDelay
}

// New creates a Pipeline with the given stages and observability.
func New(e BatchExtractor, t Transformer, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	return &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
		batchSize:   batchSize,
		delay:       retryDelay{next: initialBackoff},
	}
}

// CheckReadiness returns nil once the last extract from the source succeeded,
// or an error while the source is unreachable.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline source is not reachable")
	}
	return nil
}

// Run executes the scoring loop until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	for ctx.Err() == nil {
		if !p.cycle(ctx) {
			break
		}
	}
	p.logger.Info("pipeline stopping", "reason", ctx.Err())
	return nil
}

// cycle scores one batch: the held messages when a retry is pending,
// otherwise a fresh extract. It returns false when the pipeline should stop.
func (p *Pipeline) cycle(ctx context.Context) bool {
	start := time.Now()

	batch := p.held
	p.held = nil
	if len(batch) == 0 {
		var err error
		batch, err = p.extractor.ExtractBatch(ctx, p.batchSize)
		if err != nil {
			if ctx.Err() != nil {
				return false
			}
			p.ready.Store(false)
			p.logger.Error("extract batch failed", "error", err)
			return p.wait(ctx)
		}
		p.ready.Store(true)
		if len(batch) == 0 {
			return true
		}
		p.metrics.MessagesConsumed.Add(float64(len(batch)))
		p.metrics.BatchSize.Observe(float64(len(batch)))
	}

	scored := p.score(ctx, batch)
	if ctx.Err() != nil {
		return false
	}

	if len(scored.events) > 0 {
		if err := p.loader.LoadBatch(ctx, scored.events); err != nil {
			p.logger.Error("load batch failed", "error", err, "batch_size", len(scored.events))
			p.held = batch
			return p.wait(ctx)
		}
		p.metrics.MessagesProduced.Add(float64(len(scored.events)))
		p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
	}

	// Offsets are committed in read order only once everything before them
	// is either published or dropped.
	for _, raw := range scored.done {
		p.commit(ctx, raw)
	}

	if len(scored.pending) > 0 {
		p.held = scored.pending
		return p.wait(ctx)
	}
	p.delay.reset()
	return true
}

// scoredBatch splits a batch by how far scoring got.
type scoredBatch struct {
	events  []domain.OutputEvent
	done    []domain.RawEvent // published or dropped; safe to commit
	pending []domain.RawEvent // first retryable failure and everything after it
}

func (p *Pipeline) score(ctx context.Context, batch []domain.RawEvent) scoredBatch {
	out := scoredBatch{
		events: make([]domain.OutputEvent, 0, len(batch)),
		done:   make([]domain.RawEvent, 0, len(batch)),
	}

	for i, raw := range batch {
		event, err := p.transformer.Transform(ctx, raw)
		if err == nil {
			out.events = append(out.events, event)
			out.done = append(out.done, raw)
			continue
		}
		if ctx.Err() != nil {
			out.pending = batch[i:]
			return out
		}

		attrs := []any{"error", err, "topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset}
		if retryable(err) {
			p.logger.Warn("weather source unavailable, holding messages for retry",
				append(attrs, "held", len(batch)-i)...)
			p.metrics.TransformErrors.WithLabelValues("retried").Inc()
			out.pending = batch[i:]
			return out
		}
		p.logger.Warn("request cannot be scored, dropping message", attrs...)
		p.metrics.TransformErrors.WithLabelValues("skipped").Inc()
		out.done = append(out.done, raw)
	}
	return out
}

// retryable reports whether a transform failure may succeed on a later
// attempt. Malformed and invalid requests never do.
func retryable(err error) bool {
	var verr *scoring.ValidationError
	switch {
	case errors.As(err, &verr), errors.Is(err, domain.ErrInvalidItem):
		return false
	default:
		return errors.Is(err, domain.ErrUpstream)
	}
}

func (p *Pipeline) commit(ctx context.Context, raw domain.RawEvent) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

// wait sleeps for the current retry delay and lengthens it. It returns false
// if the context ends first.
func (p *Pipeline) wait(ctx context.Context) bool {
	timer := time.NewTimer(p.delay.advance())
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// retryDelay doubles from initialBackoff up to maxBackoff.
type retryDelay struct {
	next time.Duration
}

func (d *retryDelay) advance() time.Duration {
	cur := d.next
	d.next = min(cur*2, maxBackoff)
	return cur
}

func (d *retryDelay) reset() { d.next = initialBackoff }
