// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/mjrating/internal/adapters/mq/queue"
	"github.com/okian/mjrating/internal/adapters/repository"
	service "github.com/okian/mjrating/internal/app"
	"github.com/okian/mjrating/internal/domain/rating"
	"github.com/okian/mjrating/internal/domain/ratingconfig"
	"github.com/okian/mjrating/internal/domain/scoring"
	"github.com/okian/mjrating/pkg/logger"
)

const (
	defaultMaxLimit     = 100
	defaultLimit        = 10
	maxConfigBodyBytes  = 64 << 10
	defaultShortHashLen = ratingconfig.DefaultShortHashLength
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	RegisterConfiguration(ctx context.Context, cfg ratingconfig.Configuration) (string, error)
	Configurations(ctx context.Context) ([]string, error)
	ResolveConfiguration(ctx context.Context, ref string) (string, ratingconfig.Configuration, error)
	Snapshot(ctx context.Context, ref string) (*repository.Snapshot, error)
	Leaderboard(ctx context.Context, ref string, limit int) ([]repository.Entry, error)
	Player(ctx context.Context, ref, playerID string) (service.PlayerView, error)
	Recompute(ctx context.Context, ref string, force bool) (*repository.Snapshot, error)
	RequestRecompute(ctx context.Context, ref string, force bool) (service.Job, error)
}

// Server wires HTTP routes for the rating API.
type Server struct {
	configs *ConfigHandler
	health  *HealthHandler
	stats   *StatsHandler
	logger  logger.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithMaxLimit caps the leaderboard limit parameter.
func WithMaxLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.configs.maxLimit = n
		}
	}
}

// WithShortHashLength sets the length of hashes echoed in responses.
func WithShortHashLength(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.configs.shortHashLen = n
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		configs: NewConfigHandler(deps),
		health:  NewHealthHandler(),
		stats:   NewStatsHandler(statsProvider),
		logger:  logger.Get().Named("api"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.health.HandleHealth, "healthz"))
	mux.Handle("GET /metrics", s.health.MetricsHandler())
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.stats.HandleStats, "stats"))

	mux.HandleFunc("GET /configs", MetricsMiddleware(s.configs.HandleList, "configs"))
	mux.HandleFunc("POST /configs", MetricsMiddleware(s.configs.HandleRegister, "configs"))
	mux.HandleFunc("GET /configs/{ref}", MetricsMiddleware(s.configs.HandleGet, "config"))
	mux.HandleFunc("GET /configs/{ref}/leaderboard", MetricsMiddleware(s.configs.HandleLeaderboard, "leaderboard"))
	mux.HandleFunc("GET /configs/{ref}/players/{id}", MetricsMiddleware(s.configs.HandlePlayer, "player"))
	mux.HandleFunc("POST /configs/{ref}/recompute", MetricsMiddleware(s.configs.HandleRecompute, "recompute"))

	s.logger.Debug(ctx, "api routes registered")
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError maps service and domain errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ratingconfig.ErrInvalidHashFormat):
		return http.StatusBadRequest, "invalid_hash"
	case errors.Is(err, ErrLimitExceeded):
		return http.StatusBadRequest, "limit_exceeded"
	case errors.Is(err, ErrBadRequest), errors.Is(err, repository.ErrInvalidLimit):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ratingconfig.ErrAmbiguousHash):
		return http.StatusConflict, "ambiguous_hash"
	case errors.Is(err, ratingconfig.ErrUnknownConfiguration):
		return http.StatusNotFound, "unknown_configuration"
	case errors.Is(err, service.ErrNotComputed):
		return http.StatusNotFound, "not_computed"
	case errors.Is(err, service.ErrUnknownPlayer), errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ratingconfig.ErrMalformedConfiguration):
		return http.StatusUnprocessableEntity, "malformed_configuration"
	case errors.Is(err, rating.ErrDegenerateGame),
		errors.Is(err, rating.ErrDuplicateGame),
		errors.Is(err, scoring.ErrInvalidPosition):
		return http.StatusUnprocessableEntity, "invalid_game_data"
	case errors.Is(err, queue.ErrFull), errors.Is(err, queue.ErrClosed), errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "backpressure"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
