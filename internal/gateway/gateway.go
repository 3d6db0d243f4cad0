// Package gateway is the single egress point for enrichment calls. Every
// outbound URL is validated against the host allowlist and private-address
// rules before a bounded, timeout-guarded fetch is attempted.
package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"claimgate/internal/gateway/metrics"
)

// Failure modes callers branch on. Rejections are never retried; timeouts
// degrade the calling transform to its local fallback.
var (
	ErrRejected         = errors.New("destination rejected")
	ErrTimeout          = errors.New("request timed out")
	ErrResponseTooLarge = errors.New("response exceeds maximum size")
)

const (
	// DefaultTimeout bounds every outbound enrichment call.
	DefaultTimeout = 500 * time.Millisecond
	// DefaultMaxResponseSize caps enrichment response bodies.
	DefaultMaxResponseSize = 1 << 20
)

// Config controls gateway behavior per environment.
type Config struct {
	// Environment is "development" or "production". Development relaxes the
	// HTTPS requirement and permits loopback destinations that are
	// explicitly allowlisted.
	Environment     string
	Timeout         time.Duration
	MaxResponseSize int64
	Allowlist       []string
}

type hostSet map[string]struct{}

// Gateway validates and executes outbound enrichment calls. The allowlist is
// swapped atomically as a whole; concurrent readers see either the full old
// list or the full new list.
type Gateway struct {
	env       string
	timeout   time.Duration
	maxSize   int64
	client    *http.Client
	allowlist atomic.Pointer[hostSet]
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

// New builds a gateway from config. A nil client uses a transport without
// redirect following, so a trusted host cannot bounce us to an untrusted one.
func New(cfg Config, logger *slog.Logger, m *metrics.Metrics) *Gateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxSize := cfg.MaxResponseSize
	if maxSize <= 0 {
		maxSize = DefaultMaxResponseSize
	}

	g := &Gateway{
		env:     cfg.Environment,
		timeout: timeout,
		maxSize: maxSize,
		client: &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return fmt.Errorf("redirects not followed: %w", ErrRejected)
			},
		},
		logger:  logger,
		metrics: m,
		tracer:  otel.Tracer("claimgate/gateway"),
	}
	g.SetAllowlist(cfg.Allowlist)
	return g
}

func (g *Gateway) development() bool {
	return g.env == "development" || g.env == "test"
}

// SetAllowlist replaces the whole host allowlist atomically.
func (g *Gateway) SetAllowlist(hosts []string) {
	set := make(hostSet, len(hosts))
	for _, host := range hosts {
		host = strings.ToLower(strings.TrimSpace(host))
		if host != "" {
			set[host] = struct{}{}
		}
	}
	g.allowlist.Store(&set)
}

// Allowlist returns a copy of the current allowlist.
func (g *Gateway) Allowlist() []string {
	set := *g.allowlist.Load()
	hosts := make([]string, 0, len(set))
	for host := range set {
		hosts = append(hosts, host)
	}
	return hosts
}

func (g *Gateway) allowed(host string) bool {
	set := *g.allowlist.Load()
	_, ok := set[strings.ToLower(host)]
	return ok
}

// ValidateURL rejects destinations the gateway must never reach: non-HTTPS
// schemes outside development, hosts missing from the allowlist, and
// private, loopback, link-local or unique-local IP literals. Loopback is
// tolerated in development when explicitly allowlisted.
func (g *Gateway) ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("unparsable url: %w", ErrRejected)
	}

	switch u.Scheme {
	case "https":
	case "http":
		if !g.development() {
			return fmt.Errorf("scheme %q requires development environment: %w", u.Scheme, ErrRejected)
		}
	default:
		return fmt.Errorf("scheme %q not permitted: %w", u.Scheme, ErrRejected)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return fmt.Errorf("missing host: %w", ErrRejected)
	}

	if !g.allowed(host) {
		return fmt.Errorf("host %q not on allowlist: %w", host, ErrRejected)
	}

	if host == "localhost" {
		if !g.development() {
			return fmt.Errorf("loopback host %q outside development: %w", host, ErrRejected)
		}
		return nil
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		if addr.IsLoopback() {
			if !g.development() {
				return fmt.Errorf("loopback address %q outside development: %w", host, ErrRejected)
			}
			return nil
		}
		if addr.IsPrivate() || addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast() || isUniqueLocal(addr) {
			return fmt.Errorf("private address %q not permitted: %w", host, ErrRejected)
		}
	}
	return nil
}

// isUniqueLocal reports RFC 4193 fc00::/7 addresses.
func isUniqueLocal(addr netip.Addr) bool {
	return addr.Is6() && (addr.AsSlice()[0]&0xfe) == 0xfc
}

// SafeFetch executes an outbound call after re-validating the destination.
// The request is bounded by the gateway timeout and the response by the
// size cap, checked both against the declared content length and while the
// body is read.
func (g *Gateway) SafeFetch(ctx context.Context, method, rawURL string, body []byte) ([]byte, error) {
	if err := g.ValidateURL(rawURL); err != nil {
		g.metrics.IncFetch("rejected")
		return nil, err
	}

	ctx, span := g.tracer.Start(ctx, "gateway.fetch")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			g.metrics.IncFetch("timeout")
			return nil, fmt.Errorf("fetch %s: %w", rawURL, ErrTimeout)
		}
		g.metrics.IncFetch("error")
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.ContentLength > g.maxSize {
		g.metrics.IncFetch("oversize")
		return nil, fmt.Errorf("declared length %d: %w", resp.ContentLength, ErrResponseTooLarge)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, g.maxSize+1))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			g.metrics.IncFetch("timeout")
			return nil, fmt.Errorf("read %s: %w", rawURL, ErrTimeout)
		}
		g.metrics.IncFetch("error")
		return nil, fmt.Errorf("read %s: %w", rawURL, err)
	}
	if int64(len(data)) > g.maxSize {
		g.metrics.IncFetch("oversize")
		return nil, fmt.Errorf("body: %w", ErrResponseTooLarge)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		g.metrics.IncFetch("upstream_error")
		return nil, fmt.Errorf("fetch %s: upstream status %d", rawURL, resp.StatusCode)
	}

	g.metrics.IncFetch("ok")
	return data, nil
}
