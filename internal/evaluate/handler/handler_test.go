package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claimgate/internal/evaluate"
	"claimgate/internal/pipeline"
)

type fakeService struct {
	lastRequest evaluate.Request
	result      *evaluate.Result
	err         error
}

func (s *fakeService) Evaluate(_ context.Context, req evaluate.Request) (*evaluate.Result, error) {
	s.lastRequest = req
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func newRouter(service Service) http.Handler {
	r := chi.NewRouter()
	h := New(service, slog.New(slog.NewTextHandler(io.Discard, nil)))
	h.Register(r)
	return r
}

func postEvaluate(router http.Handler, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/evaluate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestHandleEvaluate(t *testing.T) {
	service := &fakeService{
		result: &evaluate.Result{
			Kind: evaluate.KindSingleItem,
			Items: []evaluate.ItemVerdict{{
				ItemID:  "item-1",
				AuditID: uuid.New(),
				Verdict: pipeline.Verdict{Score: 85, Flags: []pipeline.Flag{}},
			}},
		},
	}
	router := newRouter(service)

	w := postEvaluate(router, `{
		"tenant": "acme",
		"profile": "us-default",
		"route": "menu-item",
		"payload": {"id": "item-1", "name": "Granola", "text": "all natural granola"}
	}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "acme", service.lastRequest.Tenant)
	assert.Equal(t, evaluate.KindSingleItem, service.lastRequest.Payload.Kind)

	var result evaluate.Result
	require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
	require.Len(t, result.Items, 1)
	assert.Equal(t, 85, result.Items[0].Verdict.Score)
}

func TestHandleEvaluateValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{`},
		{name: "missing tenant", body: `{"profile":"p","route":"r","payload":{"text":"x"}}`},
		{name: "missing profile", body: `{"tenant":"t","route":"r","payload":{"text":"x"}}`},
		{name: "missing route", body: `{"tenant":"t","profile":"p","payload":{"text":"x"}}`},
		{name: "missing payload", body: `{"tenant":"t","profile":"p","route":"r"}`},
		{name: "empty items", body: `{"tenant":"t","profile":"p","route":"r","payload":{"items":[]}}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			service := &fakeService{}
			w := postEvaluate(newRouter(service), tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestHandleEvaluateOversizeField(t *testing.T) {
	service := &fakeService{}
	long := strings.Repeat("a", 20001)
	w := postEvaluate(newRouter(service), `{
		"tenant": "acme",
		"profile": "us-default",
		"route": "menu-item",
		"payload": {"items": [{"id": "a", "name": "ok"}, {"id": "b", "name": "ok", "text": "`+long+`"}]}
	}`)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Contains(t, body["field"], "items[1]")
}

func TestHandleEvaluateServiceError(t *testing.T) {
	service := &fakeService{err: assert.AnError}
	w := postEvaluate(newRouter(service), `{
		"tenant": "acme",
		"profile": "us-default",
		"route": "menu-item",
		"payload": {"text": "granola"}
	}`)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "internal_error", body["error"])
	assert.NotContains(t, w.Body.String(), "error_description")
}
