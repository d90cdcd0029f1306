package crawl

import (
	"strings"
	"sync"
)

const defaultBreakLimit = 3

// HostBreaker tracks consecutive fetch failures per host and trips once
// the limit is reached. A tripped host stays tripped for the remainder
// of the run; there is no half-open probe state. Counters are scoped to
// a single orchestrator run and never persisted.
type HostBreaker struct {
	mu     sync.Mutex
	limit  int
	counts map[string]int
}

// NewHostBreaker builds a breaker with the given consecutive-failure limit.
func NewHostBreaker(limit int) *HostBreaker {
	if limit <= 0 {
		limit = defaultBreakLimit
	}
	return &HostBreaker{
		limit:  limit,
		counts: make(map[string]int),
	}
}

// Tripped reports whether the host has reached the failure limit.
func (b *HostBreaker) Tripped(host string) bool {
	key := strings.ToLower(host)
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts[key] >= b.limit
}

// Failure increments the host's consecutive-failure count and returns
// the new count.
func (b *HostBreaker) Failure(host string) int {
	key := strings.ToLower(host)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.counts[key]++
	return b.counts[key]
}

// Success resets the host's counter. Other hosts are unaffected.
func (b *HostBreaker) Success(host string) {
	key := strings.ToLower(host)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.counts[key] = 0
}

// Limit returns the configured trip threshold.
func (b *HostBreaker) Limit() int {
	return b.limit
}
