package eventlog

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brisketlabs/crawld/internal/crawl"
	"github.com/brisketlabs/crawld/internal/store/memory"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func newTestLog() *Log {
	return New(memory.New(), fixedClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}, zap.NewNop())
}

func TestAppendAssignsGaplessSequence(t *testing.T) {
	t.Parallel()

	log := newTestLog()
	ctx := context.Background()

	for want := int64(1); want <= 5; want++ {
		seq, err := log.Append(ctx, "j1", Event{Type: TypeLog, Level: LevelInfo, Msg: "tick"})
		require.NoError(t, err)
		require.Equal(t, want, seq)
	}
}

func TestAppendConcurrentNoDuplicates(t *testing.T) {
	t.Parallel()

	log := newTestLog()
	ctx := context.Background()

	const n = 40
	var wg sync.WaitGroup
	seqs := make(chan int64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seq, err := log.Append(ctx, "j1", Event{Type: TypeLog, Level: LevelInfo, Msg: "concurrent"})
			if err == nil {
				seqs <- seq
			}
		}()
	}
	wg.Wait()
	close(seqs)

	seen := make(map[int64]bool)
	for seq := range seqs {
		require.False(t, seen[seq], "duplicate sequence %d", seq)
		seen[seq] = true
	}
	require.Len(t, seen, n)
	for want := int64(1); want <= n; want++ {
		require.True(t, seen[want], "missing sequence %d", want)
	}
}

func TestSequencesArePerJob(t *testing.T) {
	t.Parallel()

	log := newTestLog()
	ctx := context.Background()

	seq, err := log.Append(ctx, "a", Event{Type: TypeLog, Msg: "x"})
	require.NoError(t, err)
	require.Equal(t, int64(1), seq)
	seq, err = log.Append(ctx, "b", Event{Type: TypeLog, Msg: "y"})
	require.NoError(t, err)
	require.Equal(t, int64(1), seq)
}

func TestReadAfterResumableCursor(t *testing.T) {
	t.Parallel()

	log := newTestLog()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := log.Append(ctx, "j1", Event{Type: TypeLog, Level: LevelInfo, Msg: "early"})
		require.NoError(t, err)
	}

	events, last, err := log.ReadAfter(ctx, "j1", 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	require.Equal(t, int64(3), last)

	// No newer events: empty result, cursor unchanged.
	events, same, err := log.ReadAfter(ctx, "j1", last)
	require.NoError(t, err)
	require.Empty(t, events)
	require.Equal(t, last, same)

	_, err = log.Append(ctx, "j1", Event{Type: TypeLog, Msg: "late-1"})
	require.NoError(t, err)
	_, err = log.Append(ctx, "j1", Event{Type: TypeLog, Msg: "late-2"})
	require.NoError(t, err)

	events, last, err = log.ReadAfter(ctx, "j1", last)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, "late-1", events[0].Msg)
	require.Equal(t, "late-2", events[1].Msg)
	require.Equal(t, int64(5), last)
}

func TestItemAppendsEventAndPayload(t *testing.T) {
	t.Parallel()

	log := newTestLog()
	ctx := context.Background()

	item := crawl.Item{JobID: "j1", URL: "https://example.com/a", Title: "A", Text: "body"}
	seq, err := log.Item(ctx, "j1", item)
	require.NoError(t, err)
	require.Equal(t, int64(1), seq)

	events, _, err := log.ReadAfter(ctx, "j1", 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, TypeItem, events[0].Type)
	require.NotNil(t, events[0].Item)
	require.Equal(t, "https://example.com/a", events[0].Item.URL)

	items, err := log.ListItems(ctx, "j1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "A", items[0].Title)
}

func TestTerminalEvents(t *testing.T) {
	t.Parallel()

	log := newTestLog()
	ctx := context.Background()

	require.NoError(t, log.Done(ctx, "j1", 7))
	require.NoError(t, log.Error(ctx, "j2", "store unavailable"))

	events, _, err := log.ReadAfter(ctx, "j1", 0)
	require.NoError(t, err)
	require.Equal(t, TypeDone, events[0].Type)
	require.Equal(t, 7, events[0].Items)

	events, _, err = log.ReadAfter(ctx, "j2", 0)
	require.NoError(t, err)
	require.Equal(t, TypeError, events[0].Type)
	require.Equal(t, "store unavailable", events[0].Message)
}

func TestReadAfterStopsAtGap(t *testing.T) {
	t.Parallel()

	kv := memory.New()
	log := New(kv, fixedClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := log.Append(ctx, "j1", Event{Type: TypeLog, Level: LevelInfo, Msg: "tick"})
		require.NoError(t, err)
	}
	// Simulate a tail that ran ahead of its event writes.
	require.NoError(t, kv.Put(ctx, tailKey("j1"), []byte("5")))

	events, last, err := log.ReadAfter(ctx, "j1", 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	require.Equal(t, int64(3), last, "cursor must not skip past the missing event")

	// Once the missing events become visible, the same cursor reads them.
	for _, seq := range []int64{4, 5} {
		data := []byte(`{"type":"log","seq":` + strconv.FormatInt(seq, 10) + `,"level":"info","msg":"late"}`)
		require.NoError(t, kv.Put(ctx, eventKey("j1", seq), data))
	}
	events, last, err = log.ReadAfter(ctx, "j1", last)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, int64(5), last)
}

func TestSequencesIndependentAcrossManyJobs(t *testing.T) {
	t.Parallel()

	log := newTestLog()
	ctx := context.Background()

	// More jobs than lock stripes, so jobs sharing a stripe must still
	// sequence independently.
	for i := 0; i < 3*lockStripes; i++ {
		seq, err := log.Append(ctx, fmt.Sprintf("job-%d", i), Event{Type: TypeLog, Level: LevelInfo, Msg: "first"})
		require.NoError(t, err)
		require.Equal(t, int64(1), seq)
	}
}
