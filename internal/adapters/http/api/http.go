// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/okian/duelkit/internal/adapters/http/live"
	"github.com/okian/duelkit/internal/adapters/http/swagger"
	service "github.com/okian/duelkit/internal/app"
	"github.com/okian/duelkit/internal/domain/bracket"
	"github.com/okian/duelkit/internal/domain/standings"
	"github.com/okian/duelkit/pkg/logger"
)

const maxBodyBytes = 64 << 10

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	CreateTournament(ctx context.Context, req service.CreateRequest) (*bracket.Tournament, error)
	Get(ctx context.Context, guildID uint64, name string) (*bracket.Tournament, error)
	AttachMessage(ctx context.Context, guildID uint64, name string, ref bracket.MessageRef) (*bracket.Tournament, error)
	Suggest(ctx context.Context, guildID uint64, name, text string, limit int) ([]bracket.MatchRef, error)
	Report(ctx context.Context, guildID uint64, name, text string) (service.Report, error)
	Resolve(ctx context.Context, guildID uint64, name, label, winner string) (service.Resolution, error)
	Cancel(ctx context.Context, guildID uint64, name, label string) (bracket.MatchRef, error)
	ExportXLSX(ctx context.Context, guildID uint64, name string) ([]byte, error)
	RequestExport(ctx context.Context, guildID uint64, name string) error
	Standings(ctx context.Context, guildID uint64, category string, categoryID uint64) (standings.Season, error)
	Live(ctx context.Context, guildID uint64, name string) (string, *live.Message, error)
}

// LiveServer streams bracket updates over a websocket.
type LiveServer interface {
	Serve(w http.ResponseWriter, r *http.Request, room string, initial *live.Message)
}

// Limiter rate limits expensive calls per user.
type Limiter interface {
	Allow(ctx context.Context, userID string) (bool, time.Duration)
}

// Server wires HTTP routes for the tournament API.
type Server struct {
	deps    Dependencies
	stats   StatsProvider
	live    LiveServer
	limiter Limiter
	origins []string
	logger  logger.Logger
}

// NewServer creates a new API server.
func NewServer(deps Dependencies, stats StatsProvider, opts ...Option) *Server {
	s := &Server{
		deps:    deps,
		stats:   stats,
		origins: []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("api")
	}
	return s
}

// Handler returns the router with every route attached.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", userHeader},
		MaxAge:         300,
	}))
	r.Use(MetricsMiddleware)

	r.Get("/healthz", NewHealthHandler().HandleHealth)
	r.Get("/stats", NewStatsHandler(s.stats).HandleStats)
	swagger.Register(r)

	r.Route("/v1/guilds/{guildID}", func(r chi.Router) {
		r.Route("/tournaments", func(r chi.Router) {
			r.With(s.cooldown).Post("/", s.handleCreate)
			r.Route("/{name}", func(r chi.Router) {
				r.Get("/", s.handleGet)
				r.Put("/message", s.handleAttachMessage)
				r.Get("/matches", s.handleSuggest)
				r.Post("/report", s.handleReport)
				r.Post("/results", s.handleResolve)
				r.Post("/cancel", s.handleCancel)
				r.Get("/export.xlsx", s.handleExport)
				r.Post("/export", s.handleRequestExport)
				r.Get("/live", s.handleLive)
			})
		})
		r.Route("/seasons/{category}/standings", func(r chi.Router) {
			r.Get("/", s.handleStandings)
			r.With(s.cooldown).Get("/{kind}.png", s.handleChart)
		})
	})

	return r
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

// fail maps err to a status and writes it. Server side failures are logged.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.String("request_id", chimiddleware.GetReqID(r.Context())),
			logger.Error(err),
		)
	}
	writeError(w, status, code, err)
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

func guildParam(r *http.Request) (uint64, error) {
	raw := chi.URLParam(r, "guildID")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("guild id must be a positive integer")
	}
	return id, nil
}
