package eventlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/brisketlabs/crawld/internal/crawl"
	"github.com/brisketlabs/crawld/internal/store"
)

// Log appends and reads per-job events over the durable store. Sequence
// assignment holds the job's stripe mutex across the read-tail /
// write-event / write-tail cycle so two events never share a sequence
// number.
type Log struct {
	kv     store.KV
	clock  crawl.Clock
	logger *zap.Logger

	// locks stripes sequence assignment by job ID hash so lock state
	// stays bounded no matter how many jobs the process has seen.
	locks [lockStripes]sync.Mutex
}

const lockStripes = 64

// New builds a Log over the given store.
func New(kv store.KV, clock crawl.Clock, logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{
		kv:     kv,
		clock:  clock,
		logger: logger,
	}
}

func tailKey(jobID string) string {
	return fmt.Sprintf("jobs/%s/events/_tail", jobID)
}

func eventKey(jobID string, seq int64) string {
	return fmt.Sprintf("jobs/%s/events/%012d", jobID, seq)
}

func itemKey(jobID string, seq int64) string {
	return fmt.Sprintf("jobs/%s/items/%012d", jobID, seq)
}

// Append assigns the next sequence number for the job and durably
// stores the event. The event's Seq and At are set here.
func (l *Log) Append(ctx context.Context, jobID string, ev Event) (int64, error) {
	lock := l.jobLock(jobID)
	lock.Lock()
	defer lock.Unlock()

	tail, err := l.readTail(ctx, jobID)
	if err != nil {
		return 0, err
	}
	seq := tail + 1
	ev.Seq = seq
	if ev.At.IsZero() {
		ev.At = l.clock.Now()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return 0, fmt.Errorf("encode event: %w", err)
	}
	if err := l.kv.Put(ctx, eventKey(jobID, seq), data); err != nil {
		return 0, fmt.Errorf("write event: %w", err)
	}
	if err := l.kv.Put(ctx, tailKey(jobID), []byte(strconv.FormatInt(seq, 10))); err != nil {
		return 0, fmt.Errorf("advance tail: %w", err)
	}
	return seq, nil
}

// ReadAfter returns all events with sequence > after in ascending order
// plus the highest sequence now known. With no newer events the result
// is empty and the cursor unchanged.
func (l *Log) ReadAfter(ctx context.Context, jobID string, after int64) ([]Event, int64, error) {
	tail, err := l.readTail(ctx, jobID)
	if err != nil {
		return nil, after, err
	}
	if tail <= after {
		return nil, after, nil
	}
	events := make([]Event, 0, tail-after)
	for seq := after + 1; seq <= tail; seq++ {
		data, err := l.kv.Get(ctx, eventKey(jobID, seq))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				// Tail advanced ahead of a visible event write. Stop at
				// the gap and hand back a cursor just before it so the
				// next poll resumes there rather than skipping the event.
				return events, seq - 1, nil
			}
			return nil, after, fmt.Errorf("read event %d: %w", seq, err)
		}
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, after, fmt.Errorf("decode event %d: %w", seq, err)
		}
		events = append(events, ev)
	}
	return events, tail, nil
}

// Logf appends a log event; failures are reported to the process logger
// rather than the caller since progress logging is best-effort.
func (l *Log) Logf(ctx context.Context, jobID, level, format string, args ...any) {
	_, err := l.Append(ctx, jobID, Event{
		Type:  TypeLog,
		Level: level,
		Msg:   fmt.Sprintf(format, args...),
	})
	if err != nil {
		l.logger.Warn("append log event failed", zap.String("job_id", jobID), zap.Error(err))
	}
}

// Item appends an item event and stores the item payload itself under
// the job's items prefix for later listing/export.
func (l *Log) Item(ctx context.Context, jobID string, item crawl.Item) (int64, error) {
	seq, err := l.Append(ctx, jobID, Event{Type: TypeItem, Item: &item})
	if err != nil {
		return 0, err
	}
	data, err := json.Marshal(item)
	if err != nil {
		return seq, fmt.Errorf("encode item: %w", err)
	}
	if err := l.kv.Put(ctx, itemKey(jobID, seq), data); err != nil {
		return seq, fmt.Errorf("write item: %w", err)
	}
	return seq, nil
}

// Done appends the terminal done event carrying the final item count.
func (l *Log) Done(ctx context.Context, jobID string, items int) error {
	if _, err := l.Append(ctx, jobID, Event{Type: TypeDone, Items: items}); err != nil {
		return err
	}
	return nil
}

// Error appends the terminal error event.
func (l *Log) Error(ctx context.Context, jobID, message string) error {
	if _, err := l.Append(ctx, jobID, Event{Type: TypeError, Message: message}); err != nil {
		return err
	}
	return nil
}

// ListItems returns every item emitted by the job in append order.
func (l *Log) ListItems(ctx context.Context, jobID string) ([]crawl.Item, error) {
	keys, err := l.kv.List(ctx, fmt.Sprintf("jobs/%s/items/", jobID))
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	items := make([]crawl.Item, 0, len(keys))
	for _, key := range keys {
		data, err := l.kv.Get(ctx, key)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("read item %s: %w", key, err)
		}
		var item crawl.Item
		if err := json.Unmarshal(data, &item); err != nil {
			return nil, fmt.Errorf("decode item %s: %w", key, err)
		}
		items = append(items, item)
	}
	return items, nil
}

func (l *Log) readTail(ctx context.Context, jobID string) (int64, error) {
	data, err := l.kv.Get(ctx, tailKey(jobID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("read tail: %w", err)
	}
	tail, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse tail: %w", err)
	}
	return tail, nil
}

func (l *Log) jobLock(jobID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(jobID))
	return &l.locks[h.Sum32()%lockStripes]
}
