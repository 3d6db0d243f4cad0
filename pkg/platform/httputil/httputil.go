// Package httputil centralizes JSON response envelopes so handlers stay thin
// and error translation is consistent across the API surface.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "claimgate/pkg/domain-errors"
)

// Decode parses the JSON request body into T and writes the error envelope
// itself on failure. An oversize body surfaces as payload_too_large rather
// than a generic decode error.
func Decode[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			WriteError(w, dErrors.New(dErrors.CodePayloadTooLarge, "request body exceeds limit"))
			return req, false
		}
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed JSON body"))
		return req, false
	}
	return req, true
}

// WriteJSON encodes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error into the JSON error envelope.
// Internal errors omit the description so implementation detail never leaks
// to callers; everything else includes it for actionable feedback.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeInternal
	message := ""
	field := ""

	var de *dErrors.Error
	if errors.As(err, &de) {
		code = de.Code
		message = de.Message
		field = de.Field
	}

	body := map[string]string{"error": string(code)}
	if code != dErrors.CodeInternal && message != "" {
		body["error_description"] = message
	}
	if field != "" {
		body["field"] = field
	}

	WriteJSON(w, dErrors.ToHTTPStatus(code), body)
}
