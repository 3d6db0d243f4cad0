// Package middleware holds the HTTP middleware chain shared by every route:
// request identity, request-scoped time, and the ingress payload cap.
package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"claimgate/pkg/requestcontext"
)

// MaxRequestBytes caps request bodies at the ingress boundary.
const MaxRequestBytes = 1 << 20

// RequestIDHeader carries a caller-supplied correlation ID; one is generated
// when absent.
const RequestIDHeader = "X-Request-ID"

// RequestID assigns each request a correlation ID and echoes it back.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestTime captures one timestamp per request so every operation within
// it shares the same "now".
func RequestTime(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// MaxBytes rejects oversized request bodies before any handler parses them.
// Handlers decoding past the limit observe http.MaxBytesError and translate
// it to payload_too_large.
func MaxBytes(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBytes)
		next.ServeHTTP(w, r)
	})
}
