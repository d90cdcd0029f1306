package safety

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/brisketlabs/crawld/internal/crawl"
)

// ErrBlocked marks URLs the gate refuses to fetch. Callers match with
// errors.Is; the wrapped text carries the reason.
var ErrBlocked = errors.New("url blocked")

// Resolver is the DNS dependency of the gate.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// Config bounds the gate's caches and network behavior.
type Config struct {
	DNSTTL        time.Duration
	DNSCacheSize  int
	RobotsTTL     time.Duration
	RobotsCache   int
	LookupTimeout time.Duration
	LookupRetries int
	FetchTimeout  time.Duration
	FetchRetries  int
}

// DefaultConfig returns the bounds used in production.
func DefaultConfig() Config {
	return Config{
		DNSTTL:        5 * time.Minute,
		DNSCacheSize:  512,
		RobotsTTL:     15 * time.Minute,
		RobotsCache:   256,
		LookupTimeout: 5 * time.Second,
		LookupRetries: 2,
		FetchTimeout:  10 * time.Second,
		FetchRetries:  2,
	}
}

// Gate performs the SSRF and robots checks. DNS results are cached by
// hostname and robots decisions per origin, both TTL and size bounded.
type Gate struct {
	cfg      Config
	resolver Resolver
	fetch    robotsFetcher
	logger   *zap.Logger

	dns    *ttlCache[[]net.IPAddr]
	robots *ttlCache[robotsEntry]
}

// NewGate builds a Gate with the net.DefaultResolver and a plain HTTP
// client for robots fetches.
func NewGate(cfg Config, clock crawl.Clock, logger *zap.Logger) *Gate {
	return newGate(cfg, clock, net.DefaultResolver, newRobotsClient(cfg.FetchTimeout), logger)
}

func newGate(cfg Config, clock crawl.Clock, resolver Resolver, fetch robotsFetcher, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		cfg:      cfg,
		resolver: resolver,
		fetch:    fetch,
		logger:   logger,
		dns:      newTTLCache[[]net.IPAddr](clock, cfg.DNSTTL, cfg.DNSCacheSize),
		robots:   newTTLCache[robotsEntry](clock, cfg.RobotsTTL, cfg.RobotsCache),
	}
}

// CheckURL rejects URLs that could reach internal infrastructure.
// Resolution failure is a rejection: when we cannot tell where a
// hostname points, we do not fetch it.
func (g *Gate) CheckURL(ctx context.Context, rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: unparseable url", ErrBlocked)
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("%w: scheme %q", ErrBlocked, parsed.Scheme)
	}
	if parsed.User != nil {
		return fmt.Errorf("%w: embedded credentials", ErrBlocked)
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return fmt.Errorf("%w: empty host", ErrBlocked)
	}
	if host == "localhost" || strings.HasSuffix(host, ".local") {
		return fmt.Errorf("%w: host %q", ErrBlocked, host)
	}

	if ip := net.ParseIP(strings.Trim(host, "[]")); ip != nil {
		if blockedIP(ip) {
			return fmt.Errorf("%w: address %s is private", ErrBlocked, ip)
		}
		return nil
	}

	addrs, err := g.resolve(ctx, host)
	if err != nil {
		return fmt.Errorf("%w: resolve %q: %v", ErrBlocked, host, err)
	}
	for _, addr := range addrs {
		if blockedIP(addr.IP) {
			return fmt.Errorf("%w: %q resolves to private address %s", ErrBlocked, host, addr.IP)
		}
	}
	return nil
}

func (g *Gate) resolve(ctx context.Context, host string) ([]net.IPAddr, error) {
	if addrs, ok := g.dns.get(host); ok {
		return addrs, nil
	}
	var lastErr error
	for attempt := 0; attempt <= g.cfg.LookupRetries; attempt++ {
		lookupCtx, cancel := context.WithTimeout(ctx, g.cfg.LookupTimeout)
		addrs, err := g.resolver.LookupIPAddr(lookupCtx, host)
		cancel()
		if err == nil && len(addrs) > 0 {
			g.dns.put(host, addrs)
			return addrs, nil
		}
		if err == nil {
			err = errors.New("no addresses")
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

func blockedIP(ip net.IP) bool {
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsUnspecified()
}
