package metrics

import "testing"

func TestStatusClass(t *testing.T) {
	cases := []struct {
		status int
		want   string
	}{
		{0, "network_error"},
		{200, "2xx"},
		{204, "2xx"},
		{301, "3xx"},
		{404, "4xx"},
		{429, "4xx"},
		{500, "5xx"},
		{503, "5xx"},
	}
	for _, tc := range cases {
		if got := StatusClass(tc.status); got != tc.want {
			t.Errorf("StatusClass(%d) = %q, want %q", tc.status, got, tc.want)
		}
	}
}

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()
	ObserveJobStarted()
	ObserveJobCompleted("finished")
	ObservePage(200)
	ObserveFetchRetry()
	ObserveBreakerSkip("example.com")
	ObserveFrontierDrop()
	ObserveEvent("log")
}
