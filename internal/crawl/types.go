// Package crawl defines core types shared across subsystems.
package crawl

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// JobStatus represents the lifecycle state of a crawl job.
type JobStatus string

// Job status values persisted in the job store.
const (
	JobStatusQueued   JobStatus = "queued"
	JobStatusRunning  JobStatus = "running"
	JobStatusPaused   JobStatus = "paused"
	JobStatusStopped  JobStatus = "stopped"
	JobStatusFinished JobStatus = "finished"
	JobStatusError    JobStatus = "error"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusStopped, JobStatusFinished, JobStatusError:
		return true
	}
	return false
}

// Mode selects which configuration payload a job carries.
type Mode string

// Supported job modes.
const (
	// ModeSeed crawls outward from a start URL, discovering links and
	// next-page pointers up to a page cap.
	ModeSeed Mode = "seed"
	// ModeList fetches a fixed URL list with no link discovery.
	ModeList Mode = "list"
)

// SeedConfig is the payload for ModeSeed jobs.
type SeedConfig struct {
	StartURL       string `json:"start_url"`
	LinkSelector   string `json:"link_selector,omitempty"`
	NextButtonText string `json:"next_button_text,omitempty"`
	SameOriginOnly bool   `json:"same_origin_only"`
	MaxPages       int    `json:"max_pages"`
	BaseDelayMs    int    `json:"base_delay_ms"`
}

// ListConfig is the payload for ModeList jobs.
type ListConfig struct {
	URLs        []string `json:"urls"`
	BaseDelayMs int      `json:"base_delay_ms"`
}

// JobConfig is a tagged union of the two job shapes. Exactly one payload
// matching Mode is set; consumers dispatch on Mode rather than probing
// fields.
type JobConfig struct {
	Mode Mode        `json:"mode"`
	Seed *SeedConfig `json:"seed,omitempty"`
	List *ListConfig `json:"list,omitempty"`
}

// Bounds enforced at submission time.
const (
	MaxPagesLimit  = 500
	MaxBaseDelayMs = 10000
)

// Validate rejects malformed configurations before a Job is created.
func (c JobConfig) Validate() error {
	switch c.Mode {
	case ModeSeed:
		if c.Seed == nil {
			return errors.New("seed payload is required")
		}
		if err := validateURL(c.Seed.StartURL); err != nil {
			return fmt.Errorf("start_url: %w", err)
		}
		if c.Seed.MaxPages < 1 || c.Seed.MaxPages > MaxPagesLimit {
			return fmt.Errorf("max_pages must be in [1, %d]", MaxPagesLimit)
		}
		return validateDelay(c.Seed.BaseDelayMs)
	case ModeList:
		if c.List == nil {
			return errors.New("list payload is required")
		}
		if len(c.List.URLs) == 0 {
			return errors.New("at least one URL required")
		}
		for _, raw := range c.List.URLs {
			if err := validateURL(raw); err != nil {
				return fmt.Errorf("urls: %w", err)
			}
		}
		return validateDelay(c.List.BaseDelayMs)
	default:
		return fmt.Errorf("unknown job mode %q", c.Mode)
	}
}

// BaseDelay returns the configured politeness delay for either mode.
func (c JobConfig) BaseDelay() time.Duration {
	switch c.Mode {
	case ModeSeed:
		if c.Seed != nil {
			return time.Duration(c.Seed.BaseDelayMs) * time.Millisecond
		}
	case ModeList:
		if c.List != nil {
			return time.Duration(c.List.BaseDelayMs) * time.Millisecond
		}
	}
	return 0
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

func validateDelay(ms int) error {
	if ms < 0 || ms > MaxBaseDelayMs {
		return fmt.Errorf("base_delay_ms must be in [0, %d]", MaxBaseDelayMs)
	}
	return nil
}

// Job represents the state persisted for each submitted crawl request.
// During execution it is owned by a single orchestrator worker; control
// endpoints mutate only Status (and FinishedAt for stop).
type Job struct {
	ID           string     `json:"id"`
	Origin       string     `json:"origin"`
	Status       JobStatus  `json:"status"`
	PagesSeen    int        `json:"pages_seen"`
	ItemsEmitted int        `json:"items_emitted"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	ErrorText    string     `json:"error_text,omitempty"`
	Visited      []string   `json:"visited,omitempty"`
	Config       JobConfig  `json:"config"`
}

// Item is one extracted page's result. Extractor output is carried as an
// opaque pass-through payload; missing fields stay empty.
type Item struct {
	JobID       string `json:"job_id"`
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Author      string `json:"author,omitempty"`
	Description string `json:"description,omitempty"`
	Text        string `json:"text"`
	PublishedAt string `json:"published_at,omitempty"`
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// IDGenerator mints opaque job identifiers.
type IDGenerator interface {
	NewID() (string, error)
}
