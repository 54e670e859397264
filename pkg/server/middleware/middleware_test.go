package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mercator-hq/aegis/pkg/telemetry/logging"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequestID_Generated(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logging.GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if seen == "" {
		t.Error("no request id in context")
	}
	if got := rec.Header().Get(RequestIDHeader); got != seen {
		t.Errorf("header id %q != context id %q", got, seen)
	}
}

func TestRequestID_ClientProvided(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logging.GetRequestID(r.Context())
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(RequestIDHeader, "client-id-7")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if seen != "client-id-7" {
		t.Errorf("request id = %q, want client-id-7", seen)
	}
}

func TestRecovery(t *testing.T) {
	handler := Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, "internal error") {
		t.Errorf("body = %q", body)
	}
}

func TestAPIKeyAuth(t *testing.T) {
	handler := APIKeyAuth([]string{"secret-1", "secret-2"})(okHandler())

	tests := []struct {
		name   string
		setup  func(*http.Request)
		status int
	}{
		{
			name:   "missing key",
			setup:  func(r *http.Request) {},
			status: http.StatusUnauthorized,
		},
		{
			name:   "wrong key",
			setup:  func(r *http.Request) { r.Header.Set(APIKeyHeader, "nope") },
			status: http.StatusUnauthorized,
		},
		{
			name:   "bearer token",
			setup:  func(r *http.Request) { r.Header.Set("Authorization", "Bearer secret-1") },
			status: http.StatusOK,
		},
		{
			name:   "api key header",
			setup:  func(r *http.Request) { r.Header.Set(APIKeyHeader, "secret-2") },
			status: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/v1/evaluate", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
		})
	}
}

func TestAPIKeyAuth_Disabled(t *testing.T) {
	handler := APIKeyAuth(nil)(okHandler())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 with auth disabled", rec.Code)
	}
}
