// Package publisher defines the outbound notification interface used
// when a crawl job reaches a terminal state.
package publisher

import "context"

// Publisher sends a payload to a named topic and returns the broker's
// message ID.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Completion is the payload published when a job ends.
type Completion struct {
	JobID        string `json:"jobId"`
	Status       string `json:"status"`
	PagesSeen    int    `json:"pagesSeen"`
	ItemsEmitted int    `json:"itemsEmitted"`
	Error        string `json:"error,omitempty"`
}
