// Package admin exposes the maintenance surface: the enrichment host
// allowlist and policy reloads. Every mutation is a whole-value swap so
// concurrent evaluations never observe a partial update.
package admin

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"claimgate/internal/gateway/store"
	dErrors "claimgate/pkg/domain-errors"
	"claimgate/pkg/platform/httputil"
	"claimgate/pkg/requestcontext"
)

// AllowlistTarget is the gateway-side view the handler swaps.
type AllowlistTarget interface {
	SetAllowlist(hosts []string)
	Allowlist() []string
}

// PolicyReloader re-reads the policy document and swaps it atomically.
type PolicyReloader interface {
	Reload() error
}

type Handler struct {
	gateway  AllowlistTarget
	store    store.AllowlistStore
	policies PolicyReloader
	logger   *slog.Logger
}

func New(gateway AllowlistTarget, allowlist store.AllowlistStore, policies PolicyReloader, logger *slog.Logger) *Handler {
	return &Handler{gateway: gateway, store: allowlist, policies: policies, logger: logger}
}

// Register mounts the admin endpoints. The caller wraps the router with
// admin token auth.
func (h *Handler) Register(r chi.Router) {
	r.Get("/admin/allowlist", h.HandleGetAllowlist)
	r.Put("/admin/allowlist", h.HandlePutAllowlist)
	r.Post("/admin/policy/reload", h.HandlePolicyReload)
}

// AllowlistResponse is the wire shape of the allowlist endpoints.
type AllowlistResponse struct {
	Hosts []string `json:"hosts"`
}

// HandleGetAllowlist handles GET /admin/allowlist.
func (h *Handler) HandleGetAllowlist(w http.ResponseWriter, r *http.Request) {
	hosts := h.gateway.Allowlist()
	if hosts == nil {
		hosts = []string{}
	}
	httputil.WriteJSON(w, http.StatusOK, AllowlistResponse{Hosts: hosts})
}

// HandlePutAllowlist handles PUT /admin/allowlist: persist the new list,
// then swap it into the gateway.
func (h *Handler) HandlePutAllowlist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.Decode[AllowlistResponse](w, r)
	if !ok {
		return
	}
	hosts, err := normalizeHosts(req.Hosts)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.store.Replace(ctx, hosts); err != nil {
		h.logger.ErrorContext(ctx, "allowlist persist failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	h.gateway.SetAllowlist(hosts)

	h.logger.InfoContext(ctx, "allowlist replaced",
		"request_id", requestcontext.RequestID(ctx),
		"hosts", len(hosts),
	)
	httputil.WriteJSON(w, http.StatusOK, AllowlistResponse{Hosts: hosts})
}

// HandlePolicyReload handles POST /admin/policy/reload.
func (h *Handler) HandlePolicyReload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.policies.Reload(); err != nil {
		h.logger.ErrorContext(ctx, "policy reload rejected",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "policy reloaded",
		"request_id", requestcontext.RequestID(ctx),
	)
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}

// normalizeHosts lower-cases and deduplicates, rejecting entries that are
// empty or carry a scheme or path.
func normalizeHosts(hosts []string) ([]string, error) {
	seen := make(map[string]bool, len(hosts))
	normalized := make([]string, 0, len(hosts))
	for i, host := range hosts {
		host = strings.ToLower(strings.TrimSpace(host))
		if host == "" {
			return nil, dErrors.NewField(dErrors.CodeValidation,
				fmt.Sprintf("hosts[%d]", i), "host must not be empty")
		}
		if strings.Contains(host, "/") {
			return nil, dErrors.NewField(dErrors.CodeValidation,
				fmt.Sprintf("hosts[%d]", i), "host must be a bare hostname, not a URL")
		}
		if seen[host] {
			continue
		}
		seen[host] = true
		normalized = append(normalized, host)
	}
	return normalized, nil
}
