package safety

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
)

const maxRobotsBody = 1 << 20

type robotsEntry struct {
	data *robotstxt.RobotsData
}

type robotsFetcher interface {
	FetchRobots(ctx context.Context, robotsURL, agent string) (int, []byte, error)
}

type httpRobotsFetcher struct {
	client *http.Client
}

func newRobotsClient(timeout time.Duration) robotsFetcher {
	return &httpRobotsFetcher{client: &http.Client{Timeout: timeout}}
}

func (f *httpRobotsFetcher) FetchRobots(ctx context.Context, robotsURL, agent string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("new robots request: %w", err)
	}
	req.Header.Set("User-Agent", agent)
	resp, err := f.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("fetch robots: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBody))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read robots body: %w", err)
	}
	return resp.StatusCode, body, nil
}

// Allowed reports whether robots.txt for the URL's origin permits the
// given agent to fetch its path. Anything short of a parseable 200
// response means no restrictions: an unreachable or broken robots file
// never blocks a crawl.
func (g *Gate) Allowed(ctx context.Context, rawURL, agent string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	origin := strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host)
	entry, ok := g.robots.get(origin)
	if !ok {
		entry = g.loadRobots(ctx, parsed, agent)
		g.robots.put(origin, entry)
	}
	if entry.data == nil {
		return true
	}
	group := entry.data.FindGroup(agent)
	if group == nil {
		return true
	}
	reqPath := parsed.EscapedPath()
	if reqPath == "" {
		reqPath = "/"
	}
	return group.Test(reqPath)
}

func (g *Gate) loadRobots(ctx context.Context, parsed *url.URL, agent string) robotsEntry {
	robotsURL := *parsed
	robotsURL.Path = path.Join("/", "robots.txt")
	robotsURL.RawQuery = ""
	robotsURL.Fragment = ""
	robotsURL.User = nil

	var status int
	var body []byte
	var err error
	for attempt := 0; attempt <= g.cfg.FetchRetries; attempt++ {
		status, body, err = g.fetch.FetchRobots(ctx, robotsURL.String(), agent)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}
	if err != nil {
		g.logger.Warn("robots fetch failed; allowing access",
			zap.String("host", parsed.Host), zap.Error(err))
		return robotsEntry{}
	}
	if status != http.StatusOK {
		return robotsEntry{}
	}
	data, perr := robotstxt.FromBytes(body)
	if perr != nil {
		g.logger.Warn("robots parse failed; allowing access",
			zap.String("host", parsed.Host), zap.Error(perr))
		return robotsEntry{}
	}
	return robotsEntry{data: data}
}
