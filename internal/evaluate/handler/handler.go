// Package handler exposes the evaluation endpoint.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"claimgate/internal/evaluate"
	"claimgate/internal/sanitize"
	dErrors "claimgate/pkg/domain-errors"
	"claimgate/pkg/platform/httputil"
	"claimgate/pkg/requestcontext"
)

// Service defines the evaluation operation the handler fronts.
type Service interface {
	Evaluate(ctx context.Context, req evaluate.Request) (*evaluate.Result, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the evaluation endpoint on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/evaluate", h.HandleEvaluate)
}

// EvaluateRequest is the wire shape of POST /evaluate.
type EvaluateRequest struct {
	Tenant  string          `json:"tenant"`
	Profile string          `json:"profile"`
	Route   string          `json:"route"`
	Payload json.RawMessage `json:"payload"`
}

func (r EvaluateRequest) validate() error {
	if r.Tenant == "" {
		return dErrors.NewField(dErrors.CodeValidation, "tenant", "tenant is required")
	}
	if r.Profile == "" {
		return dErrors.NewField(dErrors.CodeValidation, "profile", "profile is required")
	}
	if r.Route == "" {
		return dErrors.NewField(dErrors.CodeValidation, "route", "route is required")
	}
	return nil
}

// HandleEvaluate handles POST /evaluate requests.
func (h *Handler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.Decode[EvaluateRequest](w, r)
	if !ok {
		return
	}
	if err := req.validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	payload, err := evaluate.ResolvePayload(req.Payload)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := sanitize.ValidateLength(payloadForValidation(payload), 0); err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.Evaluate(ctx, evaluate.Request{
		Tenant:        req.Tenant,
		Profile:       req.Profile,
		Route:         req.Route,
		CorrelationID: requestID,
		Payload:       payload,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "evaluation failed",
			"request_id", requestID,
			"tenant", req.Tenant,
			"profile", req.Profile,
			"route", req.Route,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "evaluation complete",
		"request_id", requestID,
		"tenant", req.Tenant,
		"route", req.Route,
		"items", len(result.Items),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, result)
}

// payloadForValidation rebuilds the nested shape so length violations report
// the caller's field paths, items[i].text and friends.
func payloadForValidation(p evaluate.Payload) any {
	items := make([]any, 0, len(p.Items))
	for _, item := range p.Items {
		items = append(items, map[string]any{
			"id":   item.ID,
			"name": item.Name,
			"text": item.Text,
		})
	}
	return map[string]any{"items": items}
}
