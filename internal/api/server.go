package api

import (
	"log/slog"
	"net/http"

	"github.com/dgallion1/docrank/internal/config"
	"github.com/dgallion1/docrank/internal/embedding"
	"github.com/dgallion1/docrank/internal/pipeline"
	"github.com/dgallion1/docrank/internal/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP API server for docrank.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	stats        *embedding.Stats
	metrics      *telemetry.Provider
	provider     string
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. stats and metrics may be nil.
func NewServer(orch *pipeline.Orchestrator, stats *embedding.Stats, metrics *telemetry.Provider, provider string, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		stats:        stats,
		metrics:      metrics,
		provider:     provider,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/rank", s.handleRank)
		r.Get("/api/rank/{jobID}/status", s.handleRankStatus)
		r.Get("/api/rank/{jobID}/result", s.handleRankResult)
		r.Get("/api/stats/embedding", s.handleEmbeddingStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
