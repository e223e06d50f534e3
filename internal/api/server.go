// Package api is the HTTP surface over the document pipeline.
package api

import (
	"log/slog"
	"net/http"

	"github.com/dgallion1/freightdoc/internal/config"
	"github.com/dgallion1/freightdoc/internal/llm"
	"github.com/dgallion1/freightdoc/internal/pipeline"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// GeneratorStats is the view of an instrumented generator the stats
// endpoint needs.
type GeneratorStats interface {
	Model() string
	Stats() llm.StatsSnapshot
}

// Server is the HTTP API server for freightdoc.
type Server struct {
	router chi.Router
	svc    *pipeline.Service
	gen    GeneratorStats
	log    *slog.Logger
	cfg    config.Config
}

// NewServer creates and configures the HTTP server. gen may be nil when no
// generator is configured.
func NewServer(svc *pipeline.Service, gen GeneratorStats, log *slog.Logger, cfg config.Config) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 20 << 20
	}
	s := &Server{
		svc: svc,
		gen: gen,
		log: log,
		cfg: cfg,
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
		r.Use(BearerAuth(s.cfg.APIKey, s.log))

		r.Post("/upload", s.handleUpload)
		r.Post("/ask", s.handleAsk)
		r.Post("/extract", s.handleExtract)

		r.Get("/api/documents", s.handleListDocuments)
		r.Delete("/api/documents/{docID}", s.handleDeleteDocument)
		r.Get("/api/stats/llm", s.handleLLMStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	genModel := "none"
	if s.gen != nil {
		genModel = s.gen.Model()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":               "ok",
		"embedding_model":      s.svc.EmbeddingModel(),
		"generation_model":     genModel,
		"chunk_size":           s.cfg.ChunkSize,
		"confidence_threshold": s.cfg.ConfidenceThreshold,
	})
}

func (s *Server) handleLLMStats(w http.ResponseWriter, r *http.Request) {
	if s.gen == nil {
		jsonError(w, "llm stats unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"model": s.gen.Model(),
		"stats": s.gen.Stats(),
	})
}
