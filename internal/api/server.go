// Package api exposes the HTTP control plane for the crawl service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/brisketlabs/crawld/internal/config"
	"github.com/brisketlabs/crawld/internal/crawl"
	"github.com/brisketlabs/crawld/internal/eventlog"
	"github.com/brisketlabs/crawld/internal/fetch"
	"github.com/brisketlabs/crawld/internal/jobs"
	"github.com/brisketlabs/crawld/internal/metrics"
)

// Dispatcher hands accepted jobs to the worker pool.
type Dispatcher interface {
	Enqueue(ctx context.Context, jobID string) error
}

// Gate mirrors the safety checks used by the preview endpoints.
type Gate interface {
	CheckURL(ctx context.Context, rawURL string) error
	Allowed(ctx context.Context, rawURL, agent string) bool
}

// Fetcher is the retrying fetch dependency for previews.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) fetch.Result
}

// JobStore is the job persistence surface the handlers need.
type JobStore interface {
	Create(ctx context.Context, job crawl.Job) error
	Get(ctx context.Context, jobID string) (crawl.Job, error)
	SetStatus(ctx context.Context, jobID string, status crawl.JobStatus, finishedAt *time.Time) (crawl.Job, error)
}

// Server wires HTTP handlers to the dispatcher and stores.
type Server struct {
	router     chi.Router
	jobs       JobStore
	events     *eventlog.Log
	dispatcher Dispatcher
	gate       Gate
	fetcher    Fetcher
	idGen      crawl.IDGenerator
	clock      crawl.Clock
	cfg        config.Config
	logger     *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	jobs JobStore,
	events *eventlog.Log,
	dispatcher Dispatcher,
	gate Gate,
	fetcher Fetcher,
	idGen crawl.IDGenerator,
	clock crawl.Clock,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	s := &Server{
		jobs:       jobs,
		events:     events,
		dispatcher: dispatcher,
		gate:       gate,
		fetcher:    fetcher,
		idGen:      idGen,
		clock:      clock,
		cfg:        cfg,
		logger:     logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(middleware.Timeout(60 * time.Second))
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/fetch", s.fetchPreview)
		r.Post("/schema", s.inferSchema)
		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", s.submitJob)
			r.Route("/{job_id}", func(r chi.Router) {
				r.Get("/", s.getJob)
				r.Post("/pause", s.pauseJob)
				r.Post("/resume", s.resumeJob)
				r.Post("/stop", s.stopJob)
				r.Get("/events", s.jobEvents)
				r.Get("/items", s.jobItems)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	// A readable job store is the only hard dependency.
	if _, err := s.jobs.Get(r.Context(), "readiness-probe"); err != nil && !errors.Is(err, jobs.ErrNotFound) {
		writeError(w, http.StatusServiceUnavailable, "job store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
