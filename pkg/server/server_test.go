package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mercator-hq/aegis/pkg/audit/ledger"
	"mercator-hq/aegis/pkg/audit/storage"
	"mercator-hq/aegis/pkg/config"
	"mercator-hq/aegis/pkg/governance"
	"mercator-hq/aegis/pkg/governance/engine"
	"mercator-hq/aegis/pkg/governance/hashguard"
	"mercator-hq/aegis/pkg/governance/maci"
	"mercator-hq/aegis/pkg/governance/scoring"
	"mercator-hq/aegis/pkg/governance/thresholds"
)

type constantStrategy struct {
	score float64
}

func (s constantStrategy) Score(msg *governance.AgentMessage, sctx scoring.Context) (float64, scoring.Features) {
	return s.score, scoring.Features{}
}

func newTestServer(t *testing.T, score float64, apiKeys []string) *Server {
	t.Helper()

	store := storage.NewMemoryStore()
	led, err := ledger.New(store, nil)
	if err != nil {
		t.Fatalf("ledger.New() failed: %v", err)
	}
	t.Cleanup(func() { led.Close() })

	validator, err := maci.NewValidator(&maci.Config{
		Actors: map[string]string{"alice": "judicial", "bob": "auditor"},
	})
	if err != nil {
		t.Fatalf("maci.NewValidator() failed: %v", err)
	}

	eng, err := engine.NewEngine(nil, engine.Components{
		Guard:      hashguard.New(),
		Scorer:     scoring.NewScorer(constantStrategy{score: score}),
		Directory:  scoring.NewDirectory(&scoring.DirectoryConfig{TrustTiers: map[string]int{"agent-a": 2}}),
		Thresholds: thresholds.NewManager(nil),
		Validator:  validator,
		Ledger:     led,
	})
	if err != nil {
		t.Fatalf("engine.NewEngine() failed: %v", err)
	}

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Server.APIKeys = apiKeys

	srv, err := NewServer(&cfg.Server, eng, led, nil, nil, BuildInfo{Version: "test"})
	if err != nil {
		t.Fatalf("NewServer() failed: %v", err)
	}
	return srv
}

func evaluateBody(hash string) []byte {
	body := map[string]any{
		"message": map[string]any{
			"id":         "msg-1",
			"sender":     "agent-a",
			"recipients": []string{"agent-b"},
			"intent":     "task.assign",
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		},
		"actor_id":            "alice",
		"actor_role":          "judicial",
		"constitutional_hash": hash,
	}
	raw, _ := json.Marshal(body)
	return raw
}

func postJSON(t *testing.T, handler http.Handler, path string, body []byte, key string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestServer_Evaluate_Allow(t *testing.T) {
	srv := newTestServer(t, 0.1, nil)
	handler := srv.Handler()

	rec := postJSON(t, handler, "/v1/evaluate", evaluateBody(hashguard.ExpectedHash), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var decision governance.Decision
	if err := json.Unmarshal(rec.Body.Bytes(), &decision); err != nil {
		t.Fatalf("decoding decision failed: %v", err)
	}
	if decision.Action != governance.ActionAllow {
		t.Errorf("Action = %s, want ALLOW", decision.Action)
	}
	if decision.ConstitutionalHash != hashguard.ExpectedHash {
		t.Errorf("ConstitutionalHash = %q", decision.ConstitutionalHash)
	}
}

func TestServer_Evaluate_DenyIsStill200(t *testing.T) {
	srv := newTestServer(t, 0.95, nil)
	rec := postJSON(t, srv.Handler(), "/v1/evaluate", evaluateBody(hashguard.ExpectedHash), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (denial is data)", rec.Code)
	}
	var decision governance.Decision
	if err := json.Unmarshal(rec.Body.Bytes(), &decision); err != nil {
		t.Fatalf("decoding decision failed: %v", err)
	}
	if decision.Action != governance.ActionDeny {
		t.Errorf("Action = %s, want DENY", decision.Action)
	}
}

func TestServer_Evaluate_SchemaRejects(t *testing.T) {
	srv := newTestServer(t, 0.1, nil)
	handler := srv.Handler()

	tests := []struct {
		name string
		body string
	}{
		{"missing sender", `{"message":{"id":"m","recipients":["r"],"intent":"i"},"actor_id":"alice","actor_role":"judicial","constitutional_hash":"x"}`},
		{"empty recipients", `{"message":{"id":"m","sender":"s","recipients":[],"intent":"i"},"actor_id":"alice","actor_role":"judicial","constitutional_hash":"x"}`},
		{"unknown field", `{"message":{"id":"m","sender":"s","recipients":["r"],"intent":"i","priority":9},"actor_id":"alice","actor_role":"judicial","constitutional_hash":"x"}`},
		{"no message", `{"actor_id":"alice","actor_role":"judicial","constitutional_hash":"x"}`},
		{"not json", `{{{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, handler, "/v1/evaluate", []byte(tt.body), "")
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body %s)", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestServer_Evaluate_HashMismatchStillReturnsDecision(t *testing.T) {
	srv := newTestServer(t, 0.1, nil)

	rec := postJSON(t, srv.Handler(), "/v1/evaluate",
		evaluateBody("0000000000000000000000000000000000000000000000000000000000000000"), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 with recorded denial", rec.Code)
	}
	var decision governance.Decision
	if err := json.Unmarshal(rec.Body.Bytes(), &decision); err != nil {
		t.Fatalf("decoding decision failed: %v", err)
	}
	if decision.Action != governance.ActionDeny {
		t.Errorf("Action = %s, want DENY", decision.Action)
	}
	if decision.Reason == "" {
		t.Error("expected a recorded denial reason")
	}
}

func TestServer_Auth(t *testing.T) {
	srv := newTestServer(t, 0.1, []string{"sekrit"})
	handler := srv.Handler()

	if rec := postJSON(t, handler, "/v1/evaluate", evaluateBody(hashguard.ExpectedHash), ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want 401", rec.Code)
	}
	if rec := postJSON(t, handler, "/v1/evaluate", evaluateBody(hashguard.ExpectedHash), "sekrit"); rec.Code != http.StatusOK {
		t.Errorf("authenticated status = %d, want 200", rec.Code)
	}

	// Probes stay open.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", rec.Code)
	}
}

func TestServer_Feedback(t *testing.T) {
	srv := newTestServer(t, 0.1, nil)
	handler := srv.Handler()

	rec := postJSON(t, handler, "/v1/evaluate", evaluateBody(hashguard.ExpectedHash), "")
	var decision governance.Decision
	if err := json.Unmarshal(rec.Body.Bytes(), &decision); err != nil {
		t.Fatalf("decoding decision failed: %v", err)
	}

	body := fmt.Sprintf(`{"decision_id":%q,"outcome":"false_positive"}`, decision.ID)
	if rec := postJSON(t, handler, "/v1/feedback", []byte(body), ""); rec.Code != http.StatusNoContent {
		t.Errorf("feedback status = %d, want 204 (body %s)", rec.Code, rec.Body.String())
	}

	if rec := postJSON(t, handler, "/v1/feedback", []byte(`{"decision_id":"nope","outcome":"correct"}`), ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown decision status = %d, want 404", rec.Code)
	}
	if rec := postJSON(t, handler, "/v1/feedback", []byte(`{"decision_id":"x","outcome":"meh"}`), ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad outcome status = %d, want 400", rec.Code)
	}
}

func TestServer_ModeRelax(t *testing.T) {
	srv := newTestServer(t, 0.1, nil)
	handler := srv.Handler()

	// STANDARD relaxes to PERMISSIVE once, then hits the floor.
	rec := postJSON(t, handler, "/v1/mode/relax", []byte(`{"operator":"op-1","reason":"calm"}`), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("relax status = %d (body %s)", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding relax response failed: %v", err)
	}
	if resp["to"] != "PERMISSIVE" {
		t.Errorf("to = %q, want PERMISSIVE", resp["to"])
	}

	if rec := postJSON(t, handler, "/v1/mode/relax", []byte(`{"operator":"op-1","reason":"again"}`), ""); rec.Code != http.StatusConflict {
		t.Errorf("floor relax status = %d, want 409", rec.Code)
	}
	if rec := postJSON(t, handler, "/v1/mode/relax", []byte(`{"operator":"","reason":""}`), ""); rec.Code != http.StatusBadRequest {
		t.Errorf("empty relax status = %d, want 400", rec.Code)
	}
}

func TestServer_AuditVerify(t *testing.T) {
	srv := newTestServer(t, 0.1, nil)
	handler := srv.Handler()

	for i := 0; i < 3; i++ {
		if rec := postJSON(t, handler, "/v1/evaluate", evaluateBody(hashguard.ExpectedHash), ""); rec.Code != http.StatusOK {
			t.Fatalf("evaluate #%d status = %d", i, rec.Code)
		}
	}
	// Let the forwarder drain before verifying against the store.
	deadline := time.Now().Add(2 * time.Second)
	for srv.ledger.Backlog() > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/audit/verify", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("verify status = %d (body %s)", rec.Code, rec.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding verify response failed: %v", err)
	}
	if resp["ok"] != true {
		t.Errorf("ok = %v, want true", resp["ok"])
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/audit/verify?from=abc", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad query status = %d, want 400", rec.Code)
	}
}
