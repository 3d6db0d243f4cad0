// Package http assembles the API surface: evaluation, audit reads, the
// admin maintenance endpoints, health, and metrics.
package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"claimgate/internal/admin"
	audithandler "claimgate/internal/audit/handler"
	evaluatehandler "claimgate/internal/evaluate/handler"
	"claimgate/internal/platform/metrics"
	"claimgate/internal/platform/middleware"
	"claimgate/pkg/platform/httputil"
)

// Deps carries everything the router mounts.
type Deps struct {
	Evaluate       *evaluatehandler.Handler
	Audit          *audithandler.Handler
	Admin          *admin.Handler
	AdminTokenHash string
	Health         func() error
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
}

// NewRouter builds the full middleware chain and mounts every handler under
// /v1. Admin routes additionally require the admin token.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.MaxBytes)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
	}

	r.Route("/v1", func(r chi.Router) {
		deps.Evaluate.Register(r)
		deps.Audit.Register(r)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdminToken(deps.AdminTokenHash, deps.Logger))
			deps.Admin.Register(r)
		})
	})

	r.Get("/healthz", handleHealth(deps.Health))
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func handleHealth(check func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(); err != nil {
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "degraded",
					"reason": err.Error(),
				})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
