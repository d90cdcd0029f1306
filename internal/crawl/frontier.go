package crawl

// AddOutcome reports what the frontier did with a candidate URL.
type AddOutcome int

// Add outcomes.
const (
	// AddEnqueued means the URL was appended to the queue tail.
	AddEnqueued AddOutcome = iota
	// AddDuplicate means the URL was already queued or visited.
	AddDuplicate
	// AddDropped means the queue was at capacity and the URL was discarded.
	// Callers must record exactly one warning per drop.
	AddDropped
	// AddInvalid means the URL failed normalization.
	AddInvalid
)

// FrontierConfig bounds the crawl frontier.
type FrontierConfig struct {
	// Capacity is the hard queue limit; discoveries beyond it are dropped.
	Capacity int
	// VisitedLimit caps the persisted visited snapshot; only the
	// most-recently-visited entries are retained beyond it.
	VisitedLimit int
}

const (
	defaultFrontierCapacity = 500
	defaultVisitedLimit     = 1000
)

// Frontier is the crawl queue plus the visited set. Insertion order is
// discovery order (FIFO, breadth-first). It is owned by a single
// orchestrator worker and is not safe for concurrent use.
type Frontier struct {
	cfg     FrontierConfig
	queue   []string
	queued  map[string]struct{}
	visited map[string]struct{}
	// order tracks visit recency so the snapshot keeps the newest entries.
	order []string
}

// NewFrontier builds an empty frontier with the supplied bounds.
func NewFrontier(cfg FrontierConfig) *Frontier {
	if cfg.Capacity <= 0 {
		cfg.Capacity = defaultFrontierCapacity
	}
	if cfg.VisitedLimit <= 0 {
		cfg.VisitedLimit = defaultVisitedLimit
	}
	return &Frontier{
		cfg:     cfg,
		queued:  make(map[string]struct{}),
		visited: make(map[string]struct{}),
	}
}

// SeedVisited pre-marks URLs from a persisted snapshot so a resumed job
// approximates its prior dedup state.
func (f *Frontier) SeedVisited(urls []string) {
	for _, raw := range urls {
		normalized, err := NormalizeURL(raw)
		if err != nil {
			continue
		}
		if _, ok := f.visited[normalized]; ok {
			continue
		}
		f.visited[normalized] = struct{}{}
		f.order = append(f.order, normalized)
	}
	f.trimVisited()
}

// Add normalizes the candidate and enqueues it unless it is already
// queued or visited, or the queue is full.
func (f *Frontier) Add(rawURL string) (string, AddOutcome) {
	normalized, err := NormalizeURL(rawURL)
	if err != nil {
		return rawURL, AddInvalid
	}
	if _, ok := f.visited[normalized]; ok {
		return normalized, AddDuplicate
	}
	if _, ok := f.queued[normalized]; ok {
		return normalized, AddDuplicate
	}
	if len(f.queue) >= f.cfg.Capacity {
		return normalized, AddDropped
	}
	f.queue = append(f.queue, normalized)
	f.queued[normalized] = struct{}{}
	return normalized, AddEnqueued
}

// Next pops the queue head, unmarks it queued, and marks it visited.
func (f *Frontier) Next() (string, bool) {
	if len(f.queue) == 0 {
		return "", false
	}
	u := f.queue[0]
	f.queue = f.queue[1:]
	delete(f.queued, u)
	f.visited[u] = struct{}{}
	f.order = append(f.order, u)
	f.trimVisited()
	return u, true
}

// Len returns the number of queued URLs.
func (f *Frontier) Len() int {
	return len(f.queue)
}

// VisitedSnapshot returns the retained visited entries, oldest first,
// for checkpointing alongside the job record.
func (f *Frontier) VisitedSnapshot() []string {
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

// trimVisited discards the oldest entries once the limit is exceeded.
// Old URLs may be revisited after very long runs; bounded memory is
// preferred over perfect dedup.
func (f *Frontier) trimVisited() {
	excess := len(f.order) - f.cfg.VisitedLimit
	if excess <= 0 {
		return
	}
	for _, u := range f.order[:excess] {
		delete(f.visited, u)
	}
	f.order = append([]string(nil), f.order[excess:]...)
}
