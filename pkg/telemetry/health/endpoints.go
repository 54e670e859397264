package health

import (
	"encoding/json"
	"net/http"
)

// LivenessHandler serves GET /healthz.
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, c.Liveness(r.Context()), http.StatusOK)
	}
}

// ReadinessHandler serves GET /readyz. Unhealthy components produce 503
// so orchestrators stop routing traffic here.
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := c.Readiness(r.Context())
		code := http.StatusOK
		if status.Overall != "ready" {
			code = http.StatusServiceUnavailable
		}
		writeStatus(w, status, code)
	}
}

// VersionHandler serves build information.
func VersionHandler(version, commit, buildTime string) http.HandlerFunc {
	payload := map[string]string{
		"version":    version,
		"commit":     commit,
		"build_time": buildTime,
	}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(payload)
	}
}

func writeStatus(w http.ResponseWriter, status Status, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(status)
}
