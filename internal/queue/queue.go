// Package queue defines the job queue between the control plane and
// the crawl workers.
package queue

import "context"

// Item is one unit of work: a job waiting for an orchestrator.
type Item struct {
	JobID string
}

// Queue hands submitted jobs to workers in order.
type Queue interface {
	Enqueue(ctx context.Context, item Item) error
	Dequeue(ctx context.Context) (Item, error)
	Close()
}
