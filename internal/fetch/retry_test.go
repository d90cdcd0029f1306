package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testRetrier(maxRetries int) *Retrier {
	client := NewClient(DefaultClientConfig(), zap.NewNop())
	return NewRetrier(client, maxRetries, 0, nil, zap.NewNop())
}

func TestFetchSuccess(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer server.Close()

	res := testRetrier(2).Fetch(context.Background(), server.URL)
	require.True(t, res.OK)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Contains(t, string(res.Body), "ok")
	require.Equal(t, 1, res.Attempts)
}

func TestFetchRetriesServerErrorsToCeiling(t *testing.T) {
	t.Parallel()

	var hits int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt64(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	res := testRetrier(2).Fetch(context.Background(), server.URL)
	require.False(t, res.OK)
	require.Equal(t, http.StatusInternalServerError, res.StatusCode)
	require.EqualValues(t, 3, atomic.LoadInt64(&hits))
	require.Equal(t, 3, res.Attempts)
}

func TestFetchRecoversAfterTransientFailure(t *testing.T) {
	t.Parallel()

	var hits int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt64(&hits, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("recovered"))
	}))
	defer server.Close()

	res := testRetrier(3).Fetch(context.Background(), server.URL)
	require.True(t, res.OK)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, 3, res.Attempts)
}

func TestFetchDoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()

	var hits int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt64(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	res := testRetrier(2).Fetch(context.Background(), server.URL)
	require.False(t, res.OK)
	require.Equal(t, http.StatusNotFound, res.StatusCode)
	require.EqualValues(t, 1, atomic.LoadInt64(&hits))
}

func TestFetchNetworkFailureReportsStatusZero(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	res := testRetrier(1).Fetch(context.Background(), url)
	require.False(t, res.OK)
	require.Equal(t, 0, res.StatusCode)
	require.Nil(t, res.Body)
	require.Equal(t, 2, res.Attempts)
}

func TestFetchCountsRetries(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	retrier := testRetrier(2)
	var retries int
	retrier.OnRetry(func() { retries++ })
	retrier.Fetch(context.Background(), server.URL)
	require.Equal(t, 2, retries)
}

// Not parallel: asserts on the process-wide metrics registry.
func TestFetchRetriesIncrementRetryCounter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	before := retryCounterValue(t)
	res := testRetrier(2).Fetch(context.Background(), server.URL)
	require.False(t, res.OK)
	require.Equal(t, 3, res.Attempts)
	require.Equal(t, before+2, retryCounterValue(t))
}

func retryCounterValue(t *testing.T) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == "crawl_fetch_retries_total" {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	return 0
}

func TestBackoffNeverExceedsCap(t *testing.T) {
	t.Parallel()

	r := NewRetrier(nil, 0, 20*time.Second, nil, zap.NewNop())
	for attempt := 0; attempt < 12; attempt++ {
		require.LessOrEqual(t, r.backoff(attempt), maxBackoff)
	}
}
