// Package fetch performs the single-page HTTP GETs for the crawl loop
// and wraps them in a bounded retry budget.
package fetch

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// Response is one completed HTTP exchange.
type Response struct {
	URL        string
	FinalURL   string
	StatusCode int
	Body       []byte
}

// ClientConfig tunes the underlying collector.
type ClientConfig struct {
	UserAgent      string
	RequestTimeout time.Duration
	MaxBodyBytes   int
}

// DefaultClientConfig returns production defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		UserAgent:      "crawld/1.0",
		RequestTimeout: 15 * time.Second,
		MaxBodyBytes:   10 << 20,
	}
}

// Client issues one GET per call through a Colly collector. Redirects
// are followed; any HTTP status is surfaced as a Response, and only
// transport-level failures return an error.
type Client struct {
	baseCollector *colly.Collector
	logger        *zap.Logger
}

// NewClient constructs a configured Client.
func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	base := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.MaxBodySize(cfg.MaxBodyBytes),
	)
	// Revisits are the retrier's call, not the collector's, and error
	// statuses must reach OnResponse so the retrier can classify them.
	base.AllowURLRevisit = true
	base.ParseHTTPErrorResponse = true
	base.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          128,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.RequestTimeout,
		ForceAttemptHTTP2:     true,
	})
	base.SetRequestTimeout(cfg.RequestTimeout)
	return &Client{baseCollector: base, logger: logger}
}

// Get fetches a single URL.
func (c *Client) Get(ctx context.Context, rawURL string) (Response, error) {
	collector := c.baseCollector.Clone()
	resultCh := make(chan getResult, 1)
	var once sync.Once
	send := func(res getResult) {
		once.Do(func() { resultCh <- res })
	}

	collector.OnResponse(func(r *colly.Response) {
		send(getResult{resp: Response{
			URL:        rawURL,
			FinalURL:   r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte{}, r.Body...),
		}})
	})
	collector.OnError(func(_ *colly.Response, err error) {
		if err == nil {
			err = errors.New("unknown collector error")
		}
		send(getResult{err: err})
	})

	if err := collector.Visit(rawURL); err != nil {
		return Response{}, err
	}
	collector.Wait()

	select {
	case res := <-resultCh:
		if err := ctx.Err(); err != nil {
			return Response{}, err
		}
		return res.resp, res.err
	default:
		return Response{}, errors.New("fetch produced no result")
	}
}

type getResult struct {
	resp Response
	err  error
}
