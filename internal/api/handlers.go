package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/brisketlabs/crawld/internal/crawl"
	"github.com/brisketlabs/crawld/internal/eventlog"
	"github.com/brisketlabs/crawld/internal/extract"
	"github.com/brisketlabs/crawld/internal/jobs"
)

const previewBodyLimit = 512 * 1024

func (s *Server) submitJob(w http.ResponseWriter, r *http.Request) {
	var cfg crawl.JobConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	// Validation failures must reject before any Job exists.
	if err := cfg.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	origin, err := jobOrigin(cfg)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	jobID, err := s.idGen.NewID()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "generate job id")
		return
	}
	job := crawl.Job{
		ID:     jobID,
		Origin: origin,
		Status: crawl.JobStatusQueued,
		Config: cfg,
	}
	if err := s.jobs.Create(r.Context(), job); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("create job: %v", err))
		return
	}
	s.events.Logf(r.Context(), jobID, eventlog.LevelInfo, "job queued")

	queueCtx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := s.dispatcher.Enqueue(queueCtx, jobID); err != nil {
		s.logger.Error("enqueue failed", zap.String("job_id", jobID), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "job queue unavailable")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

func jobOrigin(cfg crawl.JobConfig) (string, error) {
	switch cfg.Mode {
	case crawl.ModeSeed:
		return crawl.Origin(cfg.Seed.StartURL)
	case crawl.ModeList:
		return crawl.Origin(cfg.List.URLs[0])
	}
	return "", fmt.Errorf("unknown job mode %q", cfg.Mode)
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.jobs.Get(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load job")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

func (s *Server) pauseJob(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, crawl.JobStatusPaused, "pause requested via API")
}

func (s *Server) resumeJob(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, crawl.JobStatusRunning, "resume requested via API")
}

func (s *Server) stopJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.jobs.Get(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load job")
		return
	}
	if job.Status.Terminal() {
		writeError(w, http.StatusConflict, fmt.Sprintf("job already %s", job.Status))
		return
	}

	now := s.clock.Now()
	job, err = s.jobs.SetStatus(r.Context(), jobID, crawl.JobStatusStopped, &now)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to stop job")
		return
	}
	s.events.Logf(r.Context(), jobID, eventlog.LevelInfo, "stop requested via API")
	// Reflect the stop immediately; the orchestrator appends its own
	// done event when it notices.
	if err := s.events.Done(r.Context(), jobID, job.ItemsEmitted); err != nil {
		s.logger.Warn("done event append failed", zap.String("job_id", jobID), zap.Error(err))
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

func (s *Server) transition(w http.ResponseWriter, r *http.Request, target crawl.JobStatus, note string) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.jobs.Get(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load job")
		return
	}
	if job.Status.Terminal() {
		writeError(w, http.StatusConflict, fmt.Sprintf("job already %s", job.Status))
		return
	}

	job, err = s.jobs.SetStatus(r.Context(), jobID, target, nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update job")
		return
	}
	s.events.Logf(r.Context(), jobID, eventlog.LevelInfo, "%s", note)
	writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

func (s *Server) jobItems(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if _, err := s.jobs.Get(r.Context(), jobID); err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load job")
		return
	}
	items, err := s.events.ListItems(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list items")
		return
	}
	if items == nil {
		items = []crawl.Item{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// fetchPreview performs a one-off gated fetch so a user can inspect a
// page before configuring a crawl.
func (s *Server) fetchPreview(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		writeError(w, http.StatusBadRequest, "url query parameter required")
		return
	}
	if err := s.gate.CheckURL(r.Context(), rawURL); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !s.gate.Allowed(r.Context(), rawURL, s.cfg.Crawler.UserAgent) {
		writeError(w, http.StatusForbidden, "blocked by robots.txt")
		return
	}
	res := s.fetcher.Fetch(r.Context(), rawURL)
	html := string(res.Body)
	if len(html) > previewBodyLimit {
		html = html[:previewBodyLimit]
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":          res.OK,
		"status_code": res.StatusCode,
		"html":        html,
	})
}

type schemaRequest struct {
	URL            string `json:"url"`
	NextButtonText string `json:"next_button_text,omitempty"`
}

// inferSchema fetches the start page and guesses a link selector and
// next-button text for it.
func (s *Server) inferSchema(w http.ResponseWriter, r *http.Request) {
	var req schemaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeError(w, http.StatusBadRequest, "url required")
		return
	}
	if err := s.gate.CheckURL(r.Context(), req.URL); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !s.gate.Allowed(r.Context(), req.URL, s.cfg.Crawler.UserAgent) {
		writeError(w, http.StatusForbidden, "blocked by robots.txt")
		return
	}
	res := s.fetcher.Fetch(r.Context(), req.URL)
	if !res.OK {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("fetch failed with status %d", res.StatusCode))
		return
	}
	inf := extract.InferSelectors(string(res.Body), req.URL, req.NextButtonText)
	writeJSON(w, http.StatusOK, inf)
}
