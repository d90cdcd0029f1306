package extract

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const articleHTML = `<!doctype html>
<html><head>
<title>Fallback Title</title>
<meta property="og:title" content="Brisket Prices Climb Again">
<meta name="author" content="Pat Writer">
<meta property="og:description" content="A look at beef markets.">
<meta property="article:published_time" content="2025-05-01T09:00:00Z">
</head><body>
<nav><a href="/home">Home</a></nav>
<article>
  <h1>Brisket Prices Climb Again</h1>
  <p>Wholesale   beef prices rose for the third

  straight month.</p>
  <script>trackPageView()</script>
</article>
<footer>copyright</footer>
</body></html>`

func TestExtractContent(t *testing.T) {
	t.Parallel()

	c := ExtractContent(articleHTML)
	require.Equal(t, "Brisket Prices Climb Again", c.Title)
	require.Equal(t, "Pat Writer", c.Author)
	require.Equal(t, "A look at beef markets.", c.Description)
	require.Equal(t, "2025-05-01T09:00:00Z", c.PublishedAt)
	require.Contains(t, c.Text, "Wholesale beef prices rose for the third straight month.")
	require.NotContains(t, c.Text, "trackPageView")
	require.NotContains(t, c.Text, "Home")
}

func TestExtractContentFallbacks(t *testing.T) {
	t.Parallel()

	c := ExtractContent(`<html><head><title>Plain Page</title></head><body><p>hello there</p></body></html>`)
	require.Equal(t, "Plain Page", c.Title)
	require.Empty(t, c.Author)
	require.Contains(t, c.Text, "hello there")
}

func TestExtractContentToleratesGarbage(t *testing.T) {
	t.Parallel()

	c := ExtractContent(`<<<<not html at all >>>`)
	require.Empty(t, c.Title)
}

func TestSelectLinks(t *testing.T) {
	t.Parallel()

	html := `<body>
	  <a href="/posts/1">one</a>
	  <a href="/posts/2">two</a>
	  <a href="/posts/1">dup</a>
	  <a href="https://other.example.com/x">offsite</a>
	  <a href="mailto:hi@example.com">mail</a>
	  <a href="#frag">frag</a>
	</body>`

	links := SelectLinks(html, "https://example.com/index", "")
	require.Equal(t, []string{
		"https://example.com/posts/1",
		"https://example.com/posts/2",
		"https://other.example.com/x",
	}, links)

	scoped := SelectLinks(html, "https://example.com/index", `a[href^="/posts"]`)
	require.Len(t, scoped, 2)
}

func TestSelectLinksFailuresAreEmpty(t *testing.T) {
	t.Parallel()

	require.Empty(t, SelectLinks(`<a href="/x">x</a>`, "://bad-base", ""))
	require.Empty(t, SelectLinks(`<p>no links</p>`, "https://example.com/", ""))
}

func TestDetectNextURLRelNext(t *testing.T) {
	t.Parallel()

	html := `<a rel="next" href="/page/2">anything</a>`
	require.Equal(t, "https://example.com/page/2", DetectNextURL(html, "https://example.com/page/1", ""))
}

func TestDetectNextURLByText(t *testing.T) {
	t.Parallel()

	html := `<a href="/about">About</a><a href="/archive?p=2">Older posts</a>`
	require.Equal(t, "https://example.com/archive?p=2", DetectNextURL(html, "https://example.com/", ""))

	hinted := `<a href="/weiter">Weiter</a>`
	require.Equal(t, "https://example.com/weiter", DetectNextURL(hinted, "https://example.com/", "weiter"))
}

func TestDetectNextURLClassFallback(t *testing.T) {
	t.Parallel()

	html := `<div class="pagination"><a href="/p/2">2</a></div>`
	require.Equal(t, "https://example.com/p/2", DetectNextURL(html, "https://example.com/", ""))
}

func TestDetectNextURLNone(t *testing.T) {
	t.Parallel()

	require.Empty(t, DetectNextURL(`<a href="/about">About</a>`, "https://example.com/", ""))
}

func TestInferSelectors(t *testing.T) {
	t.Parallel()

	html := `<body>
	  <a href="/posts/2025/a">a</a>
	  <a href="/posts/2025/b">b</a>
	  <a href="/posts/2025/c">c</a>
	  <a href="/about">about</a>
	</body>`

	inf := InferSelectors(html, "https://example.com/", "")
	require.Equal(t, `a[href^="/posts/2025"]`, inf.LinkSelector)
	require.Equal(t, "next", inf.NextButtonText)
}

func TestInferSelectorsFallsBackToAnchor(t *testing.T) {
	t.Parallel()

	inf := InferSelectors(`<p>nothing here</p>`, "https://example.com/", "more")
	require.Equal(t, "a", inf.LinkSelector)
	require.Equal(t, "more", inf.NextButtonText)
}

func TestCountMatches(t *testing.T) {
	t.Parallel()

	require.Equal(t, 2, CountMatches(`<a class="x" href="/1"></a><a class="x" href="/2"></a>`, "a.x"))
	require.Zero(t, CountMatches(`<p></p>`, "a"))
}
