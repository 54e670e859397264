// Package middleware provides the HTTP middleware chain for the
// governance API: request-id, panic recovery, request logging, and API
// key authentication, applied in that order.
package middleware

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"mercator-hq/aegis/pkg/telemetry/logging"
)

// RequestIDHeader is the HTTP header for request IDs.
const RequestIDHeader = "X-Request-ID"

// RequestID assigns every request an id, honoring a client-provided
// X-Request-ID header. The id lands in the context and the response
// header so callers and logs can correlate.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = generateRequestID()
		}
		ctx := logging.WithRequestID(r.Context(), requestID)
		w.Header().Set(RequestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func generateRequestID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "fallback-request-id"
	}
	return hex.EncodeToString(b)
}
