// Package dispatcher manages worker fan-out over the job queue.
package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/brisketlabs/crawld/internal/queue"
)

// Runner executes one job to completion.
type Runner interface {
	Run(ctx context.Context, jobID string)
}

// Dispatcher fans out queued jobs to a pool of runner goroutines.
type Dispatcher struct {
	queue   queue.Queue
	runner  Runner
	workers int
	logger  *zap.Logger
}

// New creates a Dispatcher with the given worker count.
func New(q queue.Queue, runner Runner, workers int, logger *zap.Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{queue: q, runner: runner, workers: workers, logger: logger}
}

// Run starts all workers and blocks until the context finishes and the
// workers drain.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			d.work(ctx, id)
		}(i)
	}
	<-ctx.Done()
	wg.Wait()
}

// Enqueue proxies to the underlying queue.
func (d *Dispatcher) Enqueue(ctx context.Context, jobID string) error {
	if err := d.queue.Enqueue(ctx, queue.Item{JobID: jobID}); err != nil {
		return fmt.Errorf("queue enqueue: %w", err)
	}
	return nil
}

func (d *Dispatcher) work(ctx context.Context, id int) {
	for {
		item, err := d.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			d.logger.Warn("dequeue failed", zap.Int("worker", id), zap.Error(err))
			return
		}
		d.logger.Debug("worker picked up job",
			zap.Int("worker", id), zap.String("job_id", item.JobID))
		d.runner.Run(ctx, item.JobID)
	}
}
