package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/brisketlabs/crawld/internal/eventlog"
	"github.com/brisketlabs/crawld/internal/jobs"
)

// jobEvents serves the event log from a starting sequence. Clients that
// accept text/event-stream get a bounded-lifetime push stream; everyone
// else gets the poll form, {events, last}. Both are the same ReadAfter
// under the hood, so resumption semantics are identical.
func (s *Server) jobEvents(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if _, err := s.jobs.Get(r.Context(), jobID); err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load job")
		return
	}

	from := int64(0)
	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "from must be a non-negative integer")
			return
		}
		from = parsed
	}

	if strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		s.streamEvents(w, r, jobID, from)
		return
	}

	events, last, err := s.events.ReadAfter(r.Context(), jobID, from)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read events")
		return
	}
	if events == nil {
		events = []eventlog.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events, "last": last})
}

func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request, jobID string, from int64) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	poll := time.Duration(s.cfg.Events.PollMs) * time.Millisecond
	if poll <= 0 {
		poll = 500 * time.Millisecond
	}
	lifetime := time.Duration(s.cfg.Events.StreamLifetimeS) * time.Second
	if lifetime <= 0 {
		lifetime = 25 * time.Second
	}

	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	deadline := time.NewTimer(lifetime)
	defer deadline.Stop()

	cursor := from
	for {
		events, last, err := s.events.ReadAfter(r.Context(), jobID, cursor)
		if err != nil {
			s.logger.Warn("event stream read failed",
				zap.String("job_id", jobID), zap.Error(err))
			return
		}
		for _, ev := range events {
			if err := writeSSE(w, string(ev.Type), ev); err != nil {
				return
			}
		}
		if len(events) > 0 {
			flusher.Flush()
		}
		cursor = last

		select {
		case <-r.Context().Done():
			return
		case <-deadline.C:
			// Close proactively with an idle marker so the client
			// reconnects from its last cursor.
			if err := writeSSE(w, "ping", map[string]int64{"last": cursor}); err == nil {
				flusher.Flush()
			}
			return
		case <-ticker.C:
		}
	}
}

func writeSSE(w http.ResponseWriter, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
