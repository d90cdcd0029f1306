// Package jobs persists crawl job records over the durable store.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/brisketlabs/crawld/internal/crawl"
	"github.com/brisketlabs/crawld/internal/store"
)

// ErrNotFound is returned when no job exists for an ID.
var ErrNotFound = errors.New("jobs: job not found")

// ErrExists is returned when creating a job whose ID is taken.
var ErrExists = errors.New("jobs: job already exists")

// Store reads and writes Job records as JSON blobs. Writes are
// last-writer-wins at the granularity of a full record; within one job
// the orchestrator is the only writer except for the narrow status
// mutations done by control endpoints.
type Store struct {
	kv store.KV
}

// NewStore wraps a KV backend.
func NewStore(kv store.KV) *Store {
	return &Store{kv: kv}
}

func stateKey(jobID string) string {
	return fmt.Sprintf("jobs/%s/state.json", jobID)
}

// Create persists a new job, rejecting duplicates.
func (s *Store) Create(ctx context.Context, job crawl.Job) error {
	key := stateKey(job.ID)
	if _, err := s.kv.Get(ctx, key); err == nil {
		return ErrExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("probe job record: %w", err)
	}
	return s.put(ctx, job)
}

// Get returns the current job snapshot.
func (s *Store) Get(ctx context.Context, jobID string) (crawl.Job, error) {
	data, err := s.kv.Get(ctx, stateKey(jobID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return crawl.Job{}, ErrNotFound
		}
		return crawl.Job{}, fmt.Errorf("read job record: %w", err)
	}
	var job crawl.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return crawl.Job{}, fmt.Errorf("decode job record: %w", err)
	}
	return job, nil
}

// Put overwrites the full job record.
func (s *Store) Put(ctx context.Context, job crawl.Job) error {
	return s.put(ctx, job)
}

// SetStatus mutates only the status field (and FinishedAt when
// provided), re-reading the record so counters written by the
// orchestrator are preserved. The updated job is returned.
func (s *Store) SetStatus(ctx context.Context, jobID string, status crawl.JobStatus, finishedAt *time.Time) (crawl.Job, error) {
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return crawl.Job{}, err
	}
	job.Status = status
	if finishedAt != nil {
		job.FinishedAt = finishedAt
	}
	if err := s.put(ctx, job); err != nil {
		return crawl.Job{}, err
	}
	return job, nil
}

func (s *Store) put(ctx context.Context, job crawl.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job record: %w", err)
	}
	if err := s.kv.Put(ctx, stateKey(job.ID), data); err != nil {
		return fmt.Errorf("write job record: %w", err)
	}
	return nil
}
