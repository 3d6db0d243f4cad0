package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claimgate/internal/gateway/metrics"
)

var testMetrics = metrics.New()

func newGateway(t *testing.T, cfg Config) *Gateway {
	t.Helper()
	return New(cfg, slog.Default(), testMetrics)
}

func TestValidateURL(t *testing.T) {
	prod := newGateway(t, Config{
		Environment: "production",
		Allowlist:   []string{"api.example.com", "10.0.0.5", "192.168.1.9", "fd00::1", "169.254.10.10"},
	})
	dev := newGateway(t, Config{
		Environment: "development",
		Allowlist:   []string{"api.example.com", "localhost", "127.0.0.1"},
	})

	t.Run("accepts allowlisted https host", func(t *testing.T) {
		assert.NoError(t, prod.ValidateURL("https://api.example.com/check"))
	})

	t.Run("rejects http outside development", func(t *testing.T) {
		err := prod.ValidateURL("http://api.example.com/check")
		assert.ErrorIs(t, err, ErrRejected)
	})

	t.Run("accepts http in development", func(t *testing.T) {
		assert.NoError(t, dev.ValidateURL("http://api.example.com/check"))
	})

	t.Run("rejects non-http schemes everywhere", func(t *testing.T) {
		assert.ErrorIs(t, dev.ValidateURL("file:///etc/passwd"), ErrRejected)
		assert.ErrorIs(t, dev.ValidateURL("gopher://api.example.com"), ErrRejected)
	})

	t.Run("rejects hosts missing from allowlist", func(t *testing.T) {
		err := prod.ValidateURL("https://evil.example.net/")
		require.ErrorIs(t, err, ErrRejected)
		assert.Contains(t, err.Error(), "allowlist")
	})

	t.Run("rejects private and link-local literals even when allowlisted", func(t *testing.T) {
		for _, raw := range []string{
			"https://10.0.0.5/",
			"https://192.168.1.9/",
			"https://[fd00::1]/",
			"https://169.254.10.10/",
		} {
			assert.ErrorIs(t, prod.ValidateURL(raw), ErrRejected, raw)
		}
	})

	t.Run("rejects loopback in production", func(t *testing.T) {
		loopbackProd := newGateway(t, Config{
			Environment: "production",
			Allowlist:   []string{"localhost", "127.0.0.1"},
		})
		assert.ErrorIs(t, loopbackProd.ValidateURL("https://localhost/x"), ErrRejected)
		assert.ErrorIs(t, loopbackProd.ValidateURL("https://127.0.0.1/x"), ErrRejected)
	})

	t.Run("accepts allowlisted loopback in development", func(t *testing.T) {
		assert.NoError(t, dev.ValidateURL("http://localhost:9000/health"))
		assert.NoError(t, dev.ValidateURL("http://127.0.0.1:9000/health"))
	})

	t.Run("loopback still requires allowlist entry in development", func(t *testing.T) {
		bare := newGateway(t, Config{Environment: "development", Allowlist: []string{"api.example.com"}})
		assert.ErrorIs(t, bare.ValidateURL("http://127.0.0.1:9000/health"), ErrRejected)
	})
}

func TestSetAllowlist_AtomicSwap(t *testing.T) {
	g := newGateway(t, Config{Environment: "production", Allowlist: []string{"a.example.com"}})
	require.NoError(t, g.ValidateURL("https://a.example.com/"))

	g.SetAllowlist([]string{"b.example.com"})
	assert.ErrorIs(t, g.ValidateURL("https://a.example.com/"), ErrRejected)
	assert.NoError(t, g.ValidateURL("https://b.example.com/"))
	assert.ElementsMatch(t, []string{"b.example.com"}, g.Allowlist())
}

// devGatewayFor builds a development gateway whose allowlist covers the
// httptest server's loopback host.
func devGatewayFor(t *testing.T, server *httptest.Server, cfg Config) *Gateway {
	t.Helper()
	u, err := url.Parse(server.URL)
	require.NoError(t, err)
	cfg.Environment = "development"
	cfg.Allowlist = []string{u.Hostname()}
	return newGateway(t, cfg)
}

func TestSafeFetch(t *testing.T) {
	t.Run("returns body for healthy upstream", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"recalled": false}`))
		}))
		defer server.Close()

		g := devGatewayFor(t, server, Config{})
		body, err := g.SafeFetch(context.Background(), http.MethodPost, server.URL+"/check", []byte(`{}`))
		require.NoError(t, err)
		assert.JSONEq(t, `{"recalled": false}`, string(body))
	})

	t.Run("times out slow upstreams with a named error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer server.Close()

		g := devGatewayFor(t, server, Config{Timeout: 20 * time.Millisecond})
		_, err := g.SafeFetch(context.Background(), http.MethodGet, server.URL, nil)
		assert.ErrorIs(t, err, ErrTimeout)
	})

	t.Run("rejects oversized declared content length", func(t *testing.T) {
		big := strings.Repeat("x", 2048)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(big))
		}))
		defer server.Close()

		g := devGatewayFor(t, server, Config{MaxResponseSize: 1024})
		_, err := g.SafeFetch(context.Background(), http.MethodGet, server.URL, nil)
		assert.ErrorIs(t, err, ErrResponseTooLarge)
	})

	t.Run("rejects oversized streamed body without declared length", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			flusher := w.(http.Flusher)
			chunk := strings.Repeat("y", 512)
			for i := 0; i < 8; i++ {
				w.Write([]byte(chunk))
				flusher.Flush()
			}
		}))
		defer server.Close()

		g := devGatewayFor(t, server, Config{MaxResponseSize: 1024})
		_, err := g.SafeFetch(context.Background(), http.MethodGet, server.URL, nil)
		assert.ErrorIs(t, err, ErrResponseTooLarge)
	})

	t.Run("surfaces upstream error status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		g := devGatewayFor(t, server, Config{})
		_, err := g.SafeFetch(context.Background(), http.MethodGet, server.URL, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "502")
	})

	t.Run("never dials rejected destinations", func(t *testing.T) {
		g := newGateway(t, Config{Environment: "production", Allowlist: nil})
		_, err := g.SafeFetch(context.Background(), http.MethodGet, "https://untrusted.example.org/", nil)
		assert.ErrorIs(t, err, ErrRejected)
	})
}
