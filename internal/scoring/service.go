// Package scoring runs the fishability engine over batches of requests,
// fetching weather features for each point concurrently.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/fishability-service/internal/domain"
	"github.com/couchcryptid/fishability-service/internal/observability"
)

// Service validates scoring requests, fetches their features and evaluates
// them with the engine.
type Service struct {
	engine      *domain.Engine
	source      domain.FeatureSource
	validate    *validator.Validate
	maxBatch    int
	concurrency int
	metrics     *observability.Metrics
	logger      *slog.Logger
}

// NewService creates a batch scoring service. maxBatch bounds the number of
// items per call; concurrency bounds simultaneous feature fetches.
func NewService(engine *domain.Engine, source domain.FeatureSource, maxBatch, concurrency int, metrics *observability.Metrics, logger *slog.Logger) *Service {
	return &Service{
		engine:      engine,
		source:      source,
		validate:    validator.New(),
		maxBatch:    maxBatch,
		concurrency: concurrency,
		metrics:     metrics,
		logger:      logger,
	}
}

// MaxBatch returns the largest accepted batch size.
func (s *Service) MaxBatch() int { return s.maxBatch }

// ScoreBatch scores every item and returns results in input order.
//
// The whole batch is validated before any feature is fetched. Fetches run
// concurrently, and the first failure cancels the rest and is returned as an
// *ItemError naming the point; no partial results are returned.
func (s *Service) ScoreBatch(ctx context.Context, items []domain.ScoreItem) ([]domain.ScoreResult, error) {
	if len(items) == 0 {
		s.metrics.ScoreBatches.WithLabelValues("empty").Inc()
		return nil, ErrEmptyBatch
	}
	if len(items) > s.maxBatch {
		s.metrics.ScoreBatches.WithLabelValues("too_large").Inc()
		return nil, fmt.Errorf("%w: %d items, max %d", ErrBatchTooLarge, len(items), s.maxBatch)
	}

	times := make([]time.Time, len(items))
	for i := range items {
		at, err := s.validateItem(i, items[i])
		if err != nil {
			s.metrics.ScoreBatches.WithLabelValues("invalid").Inc()
			return nil, err
		}
		times[i] = at
	}

	results := make([]domain.ScoreResult, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range items {
		g.Go(func() error {
			result, err := s.score(gctx, items[i], times[i])
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		outcome := "error"
		if errors.Is(err, domain.ErrUpstream) {
			outcome = "upstream"
		}
		s.metrics.ScoreBatches.WithLabelValues(outcome).Inc()
		s.logger.Warn("batch scoring failed", "error", err, "items", len(items))
		return nil, err
	}

	s.metrics.ScoreBatches.WithLabelValues("success").Inc()
	s.logger.Debug("batch scored", "items", len(items))
	return results, nil
}

// ScoreOne validates and scores a single request.
func (s *Service) ScoreOne(ctx context.Context, item domain.ScoreItem) (domain.ScoreResult, error) {
	at, err := s.validateItem(0, item)
	if err != nil {
		return domain.ScoreResult{}, err
	}
	return s.score(ctx, item, at)
}

// CheckReadiness reports whether the feature source can serve requests.
func (s *Service) CheckReadiness(ctx context.Context) error {
	if rc, ok := s.source.(interface{ CheckReadiness(context.Context) error }); ok {
		return rc.CheckReadiness(ctx)
	}
	return nil
}

func (s *Service) score(ctx context.Context, item domain.ScoreItem, at time.Time) (domain.ScoreResult, error) {
	lat, lon := item.Coords()
	features, err := s.source.Features(ctx, lat, lon)
	if err != nil {
		return domain.ScoreResult{}, &ItemError{Lat: lat, Lon: lon, Err: err}
	}
	result, err := s.engine.Score(item, at, features)
	if err != nil {
		return domain.ScoreResult{}, &ItemError{Lat: lat, Lon: lon, Err: err}
	}

	s.metrics.ItemsScored.WithLabelValues(string(result.Species), string(result.Context)).Inc()
	s.metrics.ScoreValue.Observe(float64(result.Score))
	return result, nil
}

// validateItem checks field ranges, the water context and the timestamp,
// returning the resolved scoring time.
func (s *Service) validateItem(index int, item domain.ScoreItem) (time.Time, error) {
	var problems []string

	if err := s.validate.Struct(item); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return time.Time{}, fmt.Errorf("validate item %d: %w", index, err)
		}
		for _, fe := range verrs {
			problems = append(problems, fieldProblem(fe))
		}
	}
	if _, err := domain.ParseContext(item.Context); err != nil {
		problems = append(problems, fmt.Sprintf("context %q must be one of lake, river, sea", item.Context))
	}
	at, err := domain.ResolveTime(item.Time)
	if err != nil {
		problems = append(problems, fmt.Sprintf("dt_iso %q must be an ISO 8601 timestamp", item.Time))
	}

	if len(problems) > 0 {
		return time.Time{}, &ValidationError{Index: index, Problems: problems}
	}
	return at, nil
}

// jsonNames maps ScoreItem fields to their wire names for error messages.
var jsonNames = map[string]string{
	"Lat":          "lat",
	"Lon":          "lon",
	"Turbidity":    "turbidity_score",
	"ShoreAzimuth": "shore_az",
	"Habitat":      "habitat",
}

func fieldProblem(fe validator.FieldError) string {
	name, ok := jsonNames[fe.Field()]
	if !ok {
		name = fe.Field()
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", name)
	case "gte":
		return fmt.Sprintf("%s must be >= %s", name, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be <= %s", name, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", name, fe.Tag())
	}
}
