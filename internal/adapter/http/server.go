package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/fishability-service/internal/domain"
	"github.com/couchcryptid/fishability-service/internal/scoring"
)

const (
	requestIDHeader = "X-Request-ID"
	maxBodyBytes    = 1 << 20
)

// BatchScorer scores a batch of requests in input order.
type BatchScorer interface {
	ScoreBatch(ctx context.Context, items []domain.ScoreItem) ([]domain.ScoreResult, error)
	MaxBatch() int
}

// Server exposes the scoring API alongside health, readiness, and metrics
// endpoints.
type Server struct {
	httpServer *http.Server
	scorer     BatchScorer
	logger     *slog.Logger
}

type scoreRequest struct {
	Items []domain.ScoreItem `json:"items"`
}

type scoreResponse struct {
	Results []domain.ScoreResult `json:"results"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// NewServer creates an HTTP server with POST /score, /healthz, /readyz, and
// /metrics routes.
func NewServer(addr string, scorer BatchScorer, ready sharedobs.ReadinessChecker, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      withRequestID(mux),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		scorer: scorer,
		logger: logger,
	}

	mux.HandleFunc("POST /score", s.handleScore)
	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	logger := s.logger.With("request_id", w.Header().Get(requestIDHeader))

	var req scoreRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		logger.Warn("malformed score request", "error", err)
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "Malformed request body: " + err.Error()})
		return
	}

	start := time.Now()
	results, err := s.scorer.ScoreBatch(r.Context(), req.Items)
	if err != nil {
		s.writeError(w, logger, err)
		return
	}

	logger.Info("scored batch", "items", len(results), "duration", time.Since(start))
	writeJSON(w, http.StatusOK, scoreResponse{Results: results})
}

// writeError maps scoring errors to status codes.
func (s *Server) writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var (
		verr    *scoring.ValidationError
		itemErr *scoring.ItemError
	)

	switch {
	case errors.Is(err, scoring.ErrEmptyBatch):
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "No items provided."})
	case errors.Is(err, scoring.ErrBatchTooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{
			Detail: fmt.Sprintf("Too many items; max %d per request.", s.scorer.MaxBatch()),
		})
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Detail: verr.Error()})
	case errors.Is(err, domain.ErrUpstream):
		logger.Error("weather source failed", "error", err)
		detail := err.Error()
		if errors.As(err, &itemErr) {
			detail = itemErr.Err.Error()
		}
		writeJSON(w, http.StatusBadGateway, errorResponse{Detail: detail})
	case errors.As(err, &itemErr):
		logger.Error("scoring failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Detail: fmt.Sprintf("Scoring failed for point (%g,%g): %v", itemErr.Lat, itemErr.Lon, itemErr.Err),
		})
	default:
		logger.Error("scoring failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: "Scoring failed: " + err.Error()})
	}
}

// withRequestID tags every response with a request ID, reusing the caller's
// when one is supplied.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// AllReady combines readiness checks; the first failure wins.
func AllReady(checkers ...sharedobs.ReadinessChecker) sharedobs.ReadinessChecker {
	return readyChain(checkers)
}

type readyChain []sharedobs.ReadinessChecker

func (c readyChain) CheckReadiness(ctx context.Context) error {
	for _, rc := range c {
		if rc == nil {
			continue
		}
		if err := rc.CheckReadiness(ctx); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
