package fetch

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/brisketlabs/crawld/internal/crawl"
	"github.com/brisketlabs/crawld/internal/metrics"
)

const maxBackoff = 30 * time.Second

// Result is what the crawl loop sees from a fetch. It never carries an
// error: terminal failure is OK=false, with StatusCode 0 when the
// failure was at the network level rather than an HTTP status.
type Result struct {
	OK         bool
	StatusCode int
	Body       []byte
	FinalURL   string
	Attempts   int
}

// Getter is the single-attempt dependency of the Retrier.
type Getter interface {
	Get(ctx context.Context, rawURL string) (Response, error)
}

// Retrier retries transient failures (429, 5xx, network errors) with
// exponential jittered backoff. Other non-2xx statuses are permanent
// and returned after the first attempt.
type Retrier struct {
	client     Getter
	maxRetries int
	baseDelay  time.Duration
	pauser     crawl.Pauser
	logger     *zap.Logger

	// onRetry fires once per retry attempt. It defaults to the retry
	// counter; tests may override it.
	onRetry func()
}

// NewRetrier builds a Retrier over the given client.
func NewRetrier(client Getter, maxRetries int, baseDelay time.Duration, pauser crawl.Pauser, logger *zap.Logger) *Retrier {
	if pauser == nil {
		pauser = &crawl.TimerPauser{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Retrier{
		client:     client,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		pauser:     pauser,
		logger:     logger,
		onRetry:    metrics.ObserveFetchRetry,
	}
}

// OnRetry registers a callback invoked once per retry attempt.
func (r *Retrier) OnRetry(fn func()) { r.onRetry = fn }

// Fetch runs up to 1+maxRetries attempts for the URL.
func (r *Retrier) Fetch(ctx context.Context, rawURL string) Result {
	var last Result
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			if r.onRetry != nil {
				r.onRetry()
			}
			r.pauser.Pause(ctx, r.backoff(attempt-1))
			if ctx.Err() != nil {
				return last
			}
		}

		resp, err := r.client.Get(ctx, rawURL)
		if err != nil {
			last = Result{OK: false, StatusCode: 0, Attempts: attempt + 1}
			r.logger.Debug("fetch attempt failed",
				zap.String("url", rawURL), zap.Int("attempt", attempt+1), zap.Error(err))
			if ctx.Err() != nil {
				return last
			}
			continue
		}

		last = Result{
			OK:         resp.StatusCode >= 200 && resp.StatusCode < 300,
			StatusCode: resp.StatusCode,
			Body:       resp.Body,
			FinalURL:   resp.FinalURL,
			Attempts:   attempt + 1,
		}
		if last.OK || !retryableStatus(resp.StatusCode) {
			return last
		}
		r.logger.Debug("fetch got retryable status",
			zap.String("url", rawURL), zap.Int("status", resp.StatusCode), zap.Int("attempt", attempt+1))
	}
	last.OK = false
	return last
}

func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func (r *Retrier) backoff(attempt int) time.Duration {
	delay := r.baseDelay << uint(attempt)
	if delay > maxBackoff || delay < 0 {
		delay = maxBackoff
	}
	// The cap bounds the jittered total, not just the exponential term.
	delay += crawl.RandomJitter(r.baseDelay)
	if delay > maxBackoff {
		delay = maxBackoff
	}
	return delay
}
