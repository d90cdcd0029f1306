// Package orchestrator runs the crawl loop for one job at a time: it
// owns the frontier, the host breaker, and every state transition of
// the job it is executing.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/brisketlabs/crawld/internal/crawl"
	"github.com/brisketlabs/crawld/internal/eventlog"
	"github.com/brisketlabs/crawld/internal/extract"
	"github.com/brisketlabs/crawld/internal/fetch"
	"github.com/brisketlabs/crawld/internal/hash/sha256"
	"github.com/brisketlabs/crawld/internal/jobs"
	"github.com/brisketlabs/crawld/internal/metrics"
	"github.com/brisketlabs/crawld/internal/publisher"
	"github.com/brisketlabs/crawld/internal/store"
)

// Gate is the safety dependency: SSRF validation and robots compliance.
type Gate interface {
	CheckURL(ctx context.Context, rawURL string) error
	Allowed(ctx context.Context, rawURL, agent string) bool
}

// Fetcher is the retrying fetch dependency.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) fetch.Result
}

// Config tunes a Runner.
type Config struct {
	UserAgent        string
	PausePoll        time.Duration
	FrontierCapacity int
	VisitedLimit     int
	BreakerLimit     int
	CompletionTopic  string
	ArchiveHTML      bool
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		UserAgent:        "crawld/1.0",
		PausePoll:        time.Second,
		FrontierCapacity: 500,
		VisitedLimit:     1000,
		BreakerLimit:     3,
	}
}

// Runner executes crawl jobs. One Run call owns its job exclusively;
// control endpoints may flip the job's status concurrently, which the
// loop observes by re-reading the record around every URL.
type Runner struct {
	cfg    Config
	jobs   *jobs.Store
	events *eventlog.Log
	gate   Gate
	fetch  Fetcher
	kv     store.KV
	pauser crawl.Pauser
	clock  crawl.Clock
	pub    publisher.Publisher
	hasher *sha256.Hasher
	logger *zap.Logger
}

// New builds a Runner.
func New(cfg Config, js *jobs.Store, events *eventlog.Log, gate Gate, fetcher Fetcher, kv store.KV, pauser crawl.Pauser, clock crawl.Clock, pub publisher.Publisher, logger *zap.Logger) *Runner {
	if cfg.PausePoll <= 0 {
		cfg.PausePoll = time.Second
	}
	if pauser == nil {
		pauser = &crawl.TimerPauser{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Runner{
		cfg:    cfg,
		jobs:   js,
		events: events,
		gate:   gate,
		fetch:  fetcher,
		kv:     kv,
		pauser: pauser,
		clock:  clock,
		pub:    pub,
		hasher: sha256.New(),
		logger: logger,
	}
}

// Run drives the job to a terminal state. Panics escaping the loop are
// converted into the error state so a bad page never kills a worker.
func (r *Runner) Run(ctx context.Context, jobID string) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("crawl loop panicked",
				zap.String("job_id", jobID), zap.Any("panic", rec))
			r.fail(ctx, jobID, fmt.Sprintf("internal fault: %v", rec))
		}
	}()

	job, err := r.jobs.Get(ctx, jobID)
	if err != nil {
		r.logger.Error("job not loadable", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	if job.Status != crawl.JobStatusQueued {
		r.logger.Warn("job not in queued state, skipping",
			zap.String("job_id", jobID), zap.String("status", string(job.Status)))
		return
	}

	metrics.ObserveJobStarted()
	job.Status = crawl.JobStatusRunning
	job.StartedAt = r.clock.Now()
	if err := r.jobs.Put(ctx, job); err != nil {
		metrics.ObserveJobCompleted(string(crawl.JobStatusError))
		r.logger.Error("job record not writable", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	r.appendLog(ctx, jobID, eventlog.LevelInfo, "crawl started")

	if err := r.crawl(ctx, job); err != nil {
		r.fail(ctx, jobID, err.Error())
	}
}

func (r *Runner) crawl(ctx context.Context, job crawl.Job) error {
	frontier := crawl.NewFrontier(crawl.FrontierConfig{
		Capacity:     r.cfg.FrontierCapacity,
		VisitedLimit: r.cfg.VisitedLimit,
	})
	frontier.SeedVisited(job.Visited)
	breaker := crawl.NewHostBreaker(r.cfg.BreakerLimit)

	var pageCap int
	var seed *crawl.SeedConfig
	switch job.Config.Mode {
	case crawl.ModeSeed:
		seed = job.Config.Seed
		pageCap = seed.MaxPages
		if _, outcome := frontier.Add(seed.StartURL); outcome == crawl.AddInvalid {
			return fmt.Errorf("start url %q is not crawlable", seed.StartURL)
		}
	case crawl.ModeList:
		pageCap = len(job.Config.List.URLs)
		for _, raw := range job.Config.List.URLs {
			r.addToFrontier(ctx, job.ID, frontier, raw)
		}
	default:
		return fmt.Errorf("unknown job mode %q", job.Config.Mode)
	}

	baseDelay := job.Config.BaseDelay()
	pagesSeen := job.PagesSeen
	itemsEmitted := job.ItemsEmitted

	for {
		status, err := r.awaitRunnable(ctx, job.ID)
		if err != nil {
			return err
		}
		if status == crawl.JobStatusStopped {
			return r.finishStopped(ctx, job.ID, frontier, pagesSeen, itemsEmitted)
		}
		if pagesSeen >= pageCap {
			break
		}
		rawURL, ok := frontier.Next()
		if !ok {
			break
		}

		host := crawl.Host(rawURL)
		if breaker.Tripped(host) {
			metrics.ObserveBreakerSkip(host)
			r.appendLog(ctx, job.ID, eventlog.LevelWarn,
				"skipping %s: host %s suspended after %d consecutive failures", rawURL, host, breaker.Limit())
			continue
		}
		if err := r.gate.CheckURL(ctx, rawURL); err != nil {
			r.appendLog(ctx, job.ID, eventlog.LevelWarn, "blocked %s: %v", rawURL, err)
			continue
		}
		if !r.gate.Allowed(ctx, rawURL, r.cfg.UserAgent) {
			r.appendLog(ctx, job.ID, eventlog.LevelInfo, "robots.txt disallows %s", rawURL)
			continue
		}

		r.pauser.Pause(ctx, crawl.Politeness(baseDelay))
		if ctx.Err() != nil {
			return fmt.Errorf("run canceled: %w", ctx.Err())
		}

		res := r.fetch.Fetch(ctx, rawURL)
		metrics.ObservePage(res.StatusCode)
		if !res.OK {
			count := breaker.Failure(host)
			r.appendLog(ctx, job.ID, eventlog.LevelWarn,
				"fetch failed for %s (status %d, attempt streak %d)", rawURL, res.StatusCode, count)
			continue
		}
		breaker.Success(host)
		pagesSeen++

		html := string(res.Body)
		content := extract.ExtractContent(html)
		item := crawl.Item{
			JobID:       job.ID,
			URL:         rawURL,
			Title:       content.Title,
			Author:      content.Author,
			Description: content.Description,
			Text:        content.Text,
			PublishedAt: content.PublishedAt,
		}
		if _, err := r.events.Item(ctx, job.ID, item); err != nil {
			return fmt.Errorf("append item event: %w", err)
		}
		metrics.ObserveEvent(string(eventlog.TypeItem))
		itemsEmitted++

		if r.cfg.ArchiveHTML {
			r.archive(ctx, job.ID, rawURL, res.Body)
		}

		if seed != nil {
			r.discover(ctx, job.ID, frontier, seed, rawURL, html)
		}

		if err := r.checkpoint(ctx, job.ID, frontier, pagesSeen, itemsEmitted); err != nil {
			return err
		}
	}

	return r.finish(ctx, job.ID, frontier, pagesSeen, itemsEmitted)
}

// awaitRunnable re-reads job status, polling while paused. It returns
// the observed status once it is running or stopped.
func (r *Runner) awaitRunnable(ctx context.Context, jobID string) (crawl.JobStatus, error) {
	for {
		job, err := r.jobs.Get(ctx, jobID)
		if err != nil {
			return "", fmt.Errorf("re-read job status: %w", err)
		}
		switch job.Status {
		case crawl.JobStatusPaused:
			r.pauser.Pause(ctx, r.cfg.PausePoll)
			if ctx.Err() != nil {
				return "", fmt.Errorf("run canceled: %w", ctx.Err())
			}
		default:
			return job.Status, nil
		}
	}
}

func (r *Runner) discover(ctx context.Context, jobID string, frontier *crawl.Frontier, seed *crawl.SeedConfig, pageURL, html string) {
	links := extract.SelectLinks(html, pageURL, seed.LinkSelector)
	if next := extract.DetectNextURL(html, pageURL, seed.NextButtonText); next != "" {
		links = append(links, next)
	}
	for _, link := range links {
		if seed.SameOriginOnly && !crawl.SameOrigin(link, seed.StartURL) {
			continue
		}
		r.addToFrontier(ctx, jobID, frontier, link)
	}
}

func (r *Runner) addToFrontier(ctx context.Context, jobID string, frontier *crawl.Frontier, rawURL string) {
	normalized, outcome := frontier.Add(rawURL)
	switch outcome {
	case crawl.AddDropped:
		metrics.ObserveFrontierDrop()
		r.appendLog(ctx, jobID, eventlog.LevelWarn, "frontier full, dropping %s", normalized)
	case crawl.AddInvalid:
		r.appendLog(ctx, jobID, eventlog.LevelWarn, "discarding unparseable link %s", rawURL)
	}
}

// checkpoint persists counters and the visited snapshot without
// clobbering a status flipped by a control endpoint mid-iteration.
func (r *Runner) checkpoint(ctx context.Context, jobID string, frontier *crawl.Frontier, pagesSeen, itemsEmitted int) error {
	job, err := r.jobs.Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("reload job for checkpoint: %w", err)
	}
	job.PagesSeen = pagesSeen
	job.ItemsEmitted = itemsEmitted
	job.Visited = frontier.VisitedSnapshot()
	if err := r.jobs.Put(ctx, job); err != nil {
		return fmt.Errorf("checkpoint job: %w", err)
	}
	return nil
}

func (r *Runner) finish(ctx context.Context, jobID string, frontier *crawl.Frontier, pagesSeen, itemsEmitted int) error {
	if err := r.checkpoint(ctx, jobID, frontier, pagesSeen, itemsEmitted); err != nil {
		return err
	}
	now := r.clock.Now()
	if _, err := r.jobs.SetStatus(ctx, jobID, crawl.JobStatusFinished, &now); err != nil {
		return fmt.Errorf("mark finished: %w", err)
	}
	if err := r.events.Done(ctx, jobID, itemsEmitted); err != nil {
		return fmt.Errorf("append done event: %w", err)
	}
	metrics.ObserveEvent(string(eventlog.TypeDone))
	metrics.ObserveJobCompleted(string(crawl.JobStatusFinished))
	r.publish(ctx, jobID, crawl.JobStatusFinished, pagesSeen, itemsEmitted, "")
	return nil
}

func (r *Runner) finishStopped(ctx context.Context, jobID string, frontier *crawl.Frontier, pagesSeen, itemsEmitted int) error {
	if err := r.checkpoint(ctx, jobID, frontier, pagesSeen, itemsEmitted); err != nil {
		return err
	}
	r.appendLog(ctx, jobID, eventlog.LevelInfo, "stop observed, ending crawl")
	if err := r.events.Done(ctx, jobID, itemsEmitted); err != nil {
		return fmt.Errorf("append done event: %w", err)
	}
	metrics.ObserveEvent(string(eventlog.TypeDone))
	metrics.ObserveJobCompleted(string(crawl.JobStatusStopped))
	r.publish(ctx, jobID, crawl.JobStatusStopped, pagesSeen, itemsEmitted, "")
	return nil
}

func (r *Runner) fail(ctx context.Context, jobID, message string) {
	// Terminal bookkeeping is best-effort: the store may be the very
	// thing that failed.
	now := r.clock.Now()
	job, err := r.jobs.Get(ctx, jobID)
	if err == nil {
		job.Status = crawl.JobStatusError
		job.ErrorText = message
		job.FinishedAt = &now
		if err := r.jobs.Put(ctx, job); err != nil {
			r.logger.Error("error state not persisted", zap.String("job_id", jobID), zap.Error(err))
		}
	}
	if err := r.events.Error(ctx, jobID, message); err != nil {
		r.logger.Error("error event not appended", zap.String("job_id", jobID), zap.Error(err))
	} else {
		metrics.ObserveEvent(string(eventlog.TypeError))
	}
	r.appendLog(ctx, jobID, eventlog.LevelError, "crawl aborted: %s", message)
	metrics.ObserveJobCompleted(string(crawl.JobStatusError))
	r.publish(ctx, jobID, crawl.JobStatusError, job.PagesSeen, job.ItemsEmitted, message)
}

func (r *Runner) publish(ctx context.Context, jobID string, status crawl.JobStatus, pagesSeen, itemsEmitted int, errText string) {
	if r.pub == nil || r.cfg.CompletionTopic == "" {
		return
	}
	payload := publisher.Completion{
		JobID:        jobID,
		Status:       string(status),
		PagesSeen:    pagesSeen,
		ItemsEmitted: itemsEmitted,
		Error:        errText,
	}
	if _, err := r.pub.Publish(ctx, r.cfg.CompletionTopic, payload); err != nil {
		r.logger.Warn("completion publish failed", zap.String("job_id", jobID), zap.Error(err))
	}
}

func (r *Runner) appendLog(ctx context.Context, jobID, level, format string, args ...any) {
	r.events.Logf(ctx, jobID, level, format, args...)
	metrics.ObserveEvent(string(eventlog.TypeLog))
}

func (r *Runner) archive(ctx context.Context, jobID, rawURL string, body []byte) {
	digest, err := r.hasher.Hash([]byte(rawURL))
	if err != nil {
		r.logger.Warn("archive key hash failed",
			zap.String("job_id", jobID), zap.String("url", rawURL), zap.Error(err))
		return
	}
	// The sanitized URL keeps keys legible; the digest keeps distinct
	// URLs from colliding after truncation.
	key := fmt.Sprintf("jobs/%s/raw/%s-%s.html", jobID, sanitizeKey(rawURL), digest[:12])
	if err := r.kv.Put(ctx, key, body); err != nil {
		r.logger.Warn("raw page archive failed",
			zap.String("job_id", jobID), zap.String("url", rawURL), zap.Error(err))
	}
}

func sanitizeKey(rawURL string) string {
	var b strings.Builder
	for _, r := range rawURL {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-' || r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	s := b.String()
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
