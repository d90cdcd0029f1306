package crawl

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"
)

// Pauser abstracts how the orchestrator sleeps between requests.
type Pauser interface {
	Pause(ctx context.Context, delay time.Duration)
}

// TimerPauser sleeps on a timer, returning early if the context ends.
type TimerPauser struct{}

// Pause blocks for delay or until ctx is done.
func (p *TimerPauser) Pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Politeness returns base plus uniform jitter in [0, 0.3*base). The
// jitter avoids synchronized request bursts against a single host.
func Politeness(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	return base + RandomJitter(base*3/10)
}

// RandomJitter returns a uniformly random duration in [0, limit).
func RandomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	bound := big.NewInt(int64(limit))
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}
