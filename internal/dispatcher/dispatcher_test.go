package dispatcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brisketlabs/crawld/internal/queue/memory"
)

type recordingRunner struct {
	mu   sync.Mutex
	seen []string
	done chan struct{}
	want int
}

func (r *recordingRunner) Run(_ context.Context, jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, jobID)
	if len(r.seen) == r.want {
		close(r.done)
	}
}

func TestDispatcherRunsQueuedJobs(t *testing.T) {
	t.Parallel()

	q := memory.NewQueue(4)
	runner := &recordingRunner{done: make(chan struct{}), want: 3}
	d := New(q, runner, 2, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(finished)
	}()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, d.Enqueue(ctx, id))
	}

	select {
	case <-runner.done:
	case <-time.After(2 * time.Second):
		t.Fatal("jobs were not dispatched")
	}

	cancel()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not drain on cancel")
	}

	runner.mu.Lock()
	defer runner.mu.Unlock()
	require.ElementsMatch(t, []string{"a", "b", "c"}, runner.seen)
}
