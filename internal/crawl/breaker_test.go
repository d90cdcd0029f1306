package crawl

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHostBreakerTrip(t *testing.T) {
	t.Parallel()

	b := NewHostBreaker(3)
	require.False(t, b.Tripped("slow.example.com"))
	b.Failure("slow.example.com")
	b.Failure("slow.example.com")
	require.False(t, b.Tripped("slow.example.com"))
	b.Failure("slow.example.com")
	require.True(t, b.Tripped("slow.example.com"))
	require.True(t, b.Tripped("SLOW.EXAMPLE.COM"), "host comparison should be case-insensitive")
}

func TestHostBreakerSuccessIsPerHost(t *testing.T) {
	t.Parallel()

	b := NewHostBreaker(3)
	for i := 0; i < 3; i++ {
		b.Failure("down.example.com")
	}
	require.True(t, b.Tripped("down.example.com"))

	// A success on a different host does not reset the tripped host.
	b.Success("up.example.com")
	require.True(t, b.Tripped("down.example.com"))
}

func TestHostBreakerResetOnSuccess(t *testing.T) {
	t.Parallel()

	b := NewHostBreaker(3)
	b.Failure("flaky.example.com")
	b.Failure("flaky.example.com")
	b.Success("flaky.example.com")
	b.Failure("flaky.example.com")
	require.False(t, b.Tripped("flaky.example.com"))
}
