// Package handler exposes the read-only audit API.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"claimgate/internal/audit"
	dErrors "claimgate/pkg/domain-errors"
	"claimgate/pkg/platform/httputil"
	"claimgate/pkg/platform/sentinel"
	"claimgate/pkg/requestcontext"
)

// Store is the slice of the audit store the handler reads from.
type Store interface {
	Get(ctx context.Context, auditID string) (audit.Record, error)
	Query(ctx context.Context, filters audit.Filters) (audit.Page, error)
	Count(ctx context.Context, filters audit.Filters) (int64, error)
}

type Handler struct {
	store  Store
	logger *slog.Logger
}

func New(store Store, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// Register mounts the audit endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/audit/records", h.HandleQuery)
	r.Get("/audit/records/{auditID}", h.HandleGet)
	r.Get("/audit/count", h.HandleCount)
}

// HandleQuery handles GET /audit/records with filter, cursor and limit
// query parameters.
func (h *Handler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filters, err := parseFilters(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	page, err := h.store.Query(ctx, filters)
	if err != nil {
		h.logger.ErrorContext(ctx, "audit query failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	if page.Records == nil {
		page.Records = []audit.Record{}
	}
	httputil.WriteJSON(w, http.StatusOK, page)
}

// HandleGet handles GET /audit/records/{auditID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	auditID := chi.URLParam(r, "auditID")

	record, err := h.store.Get(ctx, auditID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "audit record not found"))
			return
		}
		h.logger.ErrorContext(ctx, "audit lookup failed",
			"request_id", requestcontext.RequestID(ctx),
			"audit_id", auditID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, record)
}

// HandleCount handles GET /audit/count with the same filters as the query
// endpoint, minus cursor and limit.
func (h *Handler) HandleCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filters, err := parseFilters(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	filters.Cursor = ""
	filters.Limit = 0

	count, err := h.store.Count(ctx, filters)
	if err != nil {
		h.logger.ErrorContext(ctx, "audit count failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int64{"count": count})
}

func parseFilters(r *http.Request) (audit.Filters, error) {
	q := r.URL.Query()
	filters := audit.Filters{
		Tenant:        q.Get("tenant"),
		ItemID:        q.Get("itemId"),
		CorrelationID: q.Get("correlationId"),
		Cursor:        q.Get("cursor"),
	}

	if raw := q.Get("startDate"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return audit.Filters{}, dErrors.NewField(dErrors.CodeValidation, "startDate", "expected RFC 3339 timestamp")
		}
		filters.StartDate = &t
	}
	if raw := q.Get("endDate"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return audit.Filters{}, dErrors.NewField(dErrors.CodeValidation, "endDate", "expected RFC 3339 timestamp")
		}
		filters.EndDate = &t
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return audit.Filters{}, dErrors.NewField(dErrors.CodeValidation, "limit", "expected a positive integer")
		}
		filters.Limit = limit
	}
	return filters, nil
}
