package crawl

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"strips fragment", "https://example.com/post#section", "https://example.com/post"},
		{"strips tracking params", "https://example.com/post?utm_source=x&fbclid=abc&page=2", "https://example.com/post?page=2"},
		{"strips default https port", "https://example.com:443/post", "https://example.com/post"},
		{"strips default http port", "http://example.com:80/post", "http://example.com/post"},
		{"keeps explicit port", "http://example.com:8080/post", "http://example.com:8080/post"},
		{"strips trailing slash", "https://example.com/post/", "https://example.com/post"},
		{"keeps root slash", "https://example.com/", "https://example.com/"},
		{"lowercases host", "https://EXAMPLE.com/Post", "https://example.com/Post"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeURL(tc.in)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestSameOrigin(t *testing.T) {
	t.Parallel()

	require.True(t, SameOrigin("https://example.com/a", "https://example.com/b?x=1"))
	require.False(t, SameOrigin("https://example.com/a", "https://other.com/a"))
	require.False(t, SameOrigin("http://example.com/a", "https://example.com/a"))
}

func TestOrigin(t *testing.T) {
	t.Parallel()

	origin, err := Origin("https://Example.com/some/path?q=1")
	require.NoError(t, err)
	require.Equal(t, "https://example.com", origin)

	_, err = Origin("not a url at all ://")
	require.Error(t, err)
}
