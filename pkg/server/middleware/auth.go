package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// APIKeyHeader is the non-standard header accepted alongside a bearer
// token.
const APIKeyHeader = "X-API-Key"

// APIKeyAuth authenticates requests against the configured key set using
// constant-time comparison. Keys arrive as "Authorization: Bearer <key>"
// or in the X-API-Key header. An empty key set disables authentication,
// which is only acceptable for local development.
func APIKeyAuth(keys []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(keys) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := extractKey(r)
			if presented == "" || !keyAccepted(keys, presented) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error": "invalid or missing API key",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractKey(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.Header.Get(APIKeyHeader)
}

func keyAccepted(keys []string, presented string) bool {
	accepted := false
	// Compare against every key so timing does not reveal which matched.
	for _, key := range keys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(presented)) == 1 {
			accepted = true
		}
	}
	return accepted
}
