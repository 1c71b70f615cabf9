package pipeline

import (
	"context"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/fishability-service/internal/domain"
)

// ItemScorer validates and scores a single request.
type ItemScorer interface {
	ScoreOne(ctx context.Context, item domain.ScoreItem) (domain.ScoreResult, error)
}

// ScoreTransformer implements Transformer by parsing a request message,
// scoring it and serializing the result.
type ScoreTransformer struct {
	scorer ItemScorer
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewTransformer creates a ScoreTransformer. The clock stamps each result's
// scored_at header.
func NewTransformer(scorer ItemScorer, clock clockwork.Clock, logger *slog.Logger) *ScoreTransformer {
	return &ScoreTransformer{
		scorer: scorer,
		clock:  clock,
		logger: logger,
	}
}

func (t *ScoreTransformer) Transform(ctx context.Context, raw domain.RawEvent) (domain.OutputEvent, error) {
	item, err := domain.ParseScoreRequest(raw)
	if err != nil {
		return domain.OutputEvent{}, err
	}

	result, err := t.scorer.ScoreOne(ctx, item)
	if err != nil {
		return domain.OutputEvent{}, err
	}

	t.logger.Debug("scored request",
		"offset", raw.Offset,
		"species", result.Species,
		"context", result.Context,
		"score", result.Score,
	)
	return domain.SerializeScoreResult(result, t.clock.Now())
}
