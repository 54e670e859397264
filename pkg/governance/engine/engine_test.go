package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"mercator-hq/aegis/pkg/audit"
	"mercator-hq/aegis/pkg/audit/ledger"
	"mercator-hq/aegis/pkg/audit/storage"
	"mercator-hq/aegis/pkg/governance"
	"mercator-hq/aegis/pkg/governance/hashguard"
	"mercator-hq/aegis/pkg/governance/maci"
	"mercator-hq/aegis/pkg/governance/scoring"
	"mercator-hq/aegis/pkg/governance/thresholds"
	"mercator-hq/aegis/pkg/policy"
)

// fixedStrategy makes the score controllable per test.
type fixedStrategy struct {
	score float64
}

func (s fixedStrategy) Score(msg *governance.AgentMessage, sctx scoring.Context) (float64, scoring.Features) {
	return s.score, scoring.Features{PayloadSize: len(msg.Payload)}
}

type stubPolicy struct {
	result *policy.Result
	err    error
	calls  int
}

func (p *stubPolicy) Check(ctx context.Context, input *policy.Input) (*policy.Result, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return p.result, nil
}

type harness struct {
	engine *Engine
	store  *storage.MemoryStore
	ledger *ledger.Ledger
	policy *stubPolicy
}

func newHarness(t *testing.T, score float64, mutate func(*Config)) *harness {
	t.Helper()

	store := storage.NewMemoryStore()
	led, err := ledger.New(store, nil)
	if err != nil {
		t.Fatalf("ledger.New() failed: %v", err)
	}
	t.Cleanup(func() { led.Close() })

	validator, err := maci.NewValidator(&maci.Config{
		Actors: map[string]string{
			"alice":   "judicial",
			"bob":     "auditor",
			"carol":   "monitor",
			"eve":     "executive",
			"agent-a": "implementer",
		},
	})
	if err != nil {
		t.Fatalf("maci.NewValidator() failed: %v", err)
	}

	directory := scoring.NewDirectory(&scoring.DirectoryConfig{
		TrustTiers:       map[string]int{"agent-a": 2},
		CriticalityTiers: map[string]int{"agent-b": 2},
	})

	stub := &stubPolicy{result: &policy.Result{Allow: true}}
	config := DefaultConfig()
	if mutate != nil {
		mutate(config)
	}

	eng, err := NewEngine(config, Components{
		Guard:      hashguard.New(),
		Scorer:     scoring.NewScorer(fixedStrategy{score: score}),
		Directory:  directory,
		Thresholds: thresholds.NewManager(nil),
		Validator:  validator,
		Ledger:     led,
		Policy:     stub,
	})
	if err != nil {
		t.Fatalf("NewEngine() failed: %v", err)
	}
	return &harness{engine: eng, store: store, ledger: led, policy: stub}
}

func (h *harness) request() *EvaluateRequest {
	return &EvaluateRequest{
		Message: &governance.AgentMessage{
			ID:         "msg-1",
			Sender:     "agent-a",
			Recipients: []string{"agent-b"},
			Intent:     "task.assign",
			Payload:    []byte(`{"op":"assign"}`),
			Timestamp:  time.Now().UTC(),
		},
		ActorID:            "alice",
		ActorRole:          maci.RoleJudicial,
		ConstitutionalHash: hashguard.ExpectedHash,
	}
}

// waitRecords blocks until the store holds want records or the deadline
// passes. Delivery is asynchronous, so tests must drain.
func (h *harness) waitRecords(t *testing.T, want uint64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		n, err := h.store.Count(context.Background())
		if err != nil {
			t.Fatalf("Count() failed: %v", err)
		}
		if n >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	n, _ := h.store.Count(context.Background())
	t.Fatalf("store has %d records, want %d", n, want)
}

func TestEngine_Evaluate_CriticalSingleRoleDenied(t *testing.T) {
	// Score 0.95 under STANDARD (CRITICAL cut 0.90) maps to CRITICAL;
	// a single validating role cannot meet quorum.
	h := newHarness(t, 0.95, nil)

	decision, err := h.engine.Evaluate(context.Background(), h.request())
	if err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}
	if decision.Level != governance.LevelCritical {
		t.Errorf("Level = %s, want CRITICAL", decision.Level)
	}
	if decision.Action != governance.ActionDeny {
		t.Errorf("Action = %s, want DENY", decision.Action)
	}
	if !strings.Contains(decision.Reason, "quorum") {
		t.Errorf("Reason = %q, want quorum denial", decision.Reason)
	}
	if len(decision.ValidatingRoles) != 0 {
		t.Errorf("ValidatingRoles = %v, want none on denial", decision.ValidatingRoles)
	}

	h.waitRecords(t, 1)
	n, _ := h.store.Count(context.Background())
	if n != 1 {
		t.Errorf("record count = %d, want exactly 1", n)
	}
}

func TestEngine_Evaluate_CriticalQuorumAllowsValidation(t *testing.T) {
	h := newHarness(t, 0.95, nil)

	req := h.request()
	req.CoSigners = map[string]maci.Role{"bob": maci.RoleAuditor}

	decision, err := h.engine.Evaluate(context.Background(), req)
	if err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}
	// Quorum met, so the action comes from the level/mode table:
	// CRITICAL under STANDARD still denies, but the decision is validated.
	if decision.Action != governance.ActionDeny {
		t.Errorf("Action = %s, want DENY", decision.Action)
	}
	want := []string{"auditor", "judicial"}
	if len(decision.ValidatingRoles) != len(want) {
		t.Fatalf("ValidatingRoles = %v, want %v", decision.ValidatingRoles, want)
	}
	for i, r := range want {
		if decision.ValidatingRoles[i] != r {
			t.Errorf("ValidatingRoles[%d] = %s, want %s", i, decision.ValidatingRoles[i], r)
		}
	}
}

func TestEngine_Evaluate_MinimalAllowedUnderPermissive(t *testing.T) {
	h := newHarness(t, 0.1, nil)

	// Relax STANDARD to PERMISSIVE first; the relax itself is audited.
	if _, ok := h.engine.OperatorRelax("op-1", "low traffic"); !ok {
		t.Fatal("OperatorRelax() refused")
	}

	decision, err := h.engine.Evaluate(context.Background(), h.request())
	if err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}
	if decision.Level != governance.LevelMinimal {
		t.Errorf("Level = %s, want MINIMAL", decision.Level)
	}
	if decision.Action != governance.ActionAllow {
		t.Errorf("Action = %s, want ALLOW", decision.Action)
	}
	if decision.Mode != governance.ModePermissive {
		t.Errorf("Mode = %s, want PERMISSIVE", decision.Mode)
	}
	if decision.ConstitutionalHash != hashguard.ExpectedHash {
		t.Errorf("ConstitutionalHash = %q, want compiled-in constant", decision.ConstitutionalHash)
	}

	// One operator record plus one decision record, chain intact.
	h.waitRecords(t, 2)
	ok, badSeq, err := h.ledger.VerifyChain(context.Background(), 0, 2)
	if err != nil {
		t.Fatalf("VerifyChain() failed: %v", err)
	}
	if !ok {
		t.Errorf("chain verification failed at seq %d", badSeq)
	}
}

func TestEngine_Evaluate_PolicyUnavailableEscalates(t *testing.T) {
	// Score 0.6 under STANDARD maps to MODERATE: above the policy floor,
	// base action ESCALATE. Policy outage must not surface as an error.
	h := newHarness(t, 0.6, nil)
	h.policy.err = &policy.UnavailableError{Endpoint: "opa", Cause: errors.New("timeout")}

	decision, err := h.engine.Evaluate(context.Background(), h.request())
	if err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}
	if decision.Action != governance.ActionEscalate {
		t.Errorf("Action = %s, want ESCALATE", decision.Action)
	}
	if decision.Reason != "policy service unavailable" {
		t.Errorf("Reason = %q, want policy unavailability reason", decision.Reason)
	}
	h.waitRecords(t, 1)
}

func TestEngine_Evaluate_PolicyExplicitDeny(t *testing.T) {
	h := newHarness(t, 0.6, nil)
	h.policy.result = &policy.Result{Allow: false, Reason: "deploys frozen"}

	decision, err := h.engine.Evaluate(context.Background(), h.request())
	if err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}
	if decision.Action != governance.ActionDeny {
		t.Errorf("Action = %s, want DENY", decision.Action)
	}
	if decision.Reason != "deploys frozen" {
		t.Errorf("Reason = %q, want policy reason", decision.Reason)
	}
}

func TestEngine_Evaluate_PolicySkippedBelowFloor(t *testing.T) {
	h := newHarness(t, 0.1, nil)

	if _, err := h.engine.Evaluate(context.Background(), h.request()); err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}
	if h.policy.calls != 0 {
		t.Errorf("policy calls = %d, want 0 below the floor", h.policy.calls)
	}
}

func TestEngine_Evaluate_Deterministic(t *testing.T) {
	h := newHarness(t, 0.1, nil)
	req := h.request()

	first, err := h.engine.Evaluate(context.Background(), req)
	if err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}
	second, err := h.engine.Evaluate(context.Background(), req)
	if err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}
	if first.Score != second.Score || first.Level != second.Level ||
		first.Mode != second.Mode || first.Action != second.Action {
		t.Errorf("repeated evaluation diverged: %+v vs %+v", first, second)
	}
	if first.ID == second.ID {
		t.Error("decisions share an id")
	}
}

func TestEngine_Evaluate_AutoEscalationAuditedAndRelaxed(t *testing.T) {
	h := newHarness(t, 0.8, func(c *Config) {
		c.Escalation = &thresholds.EscalationConfig{
			Window:     time.Minute,
			Bucket:     time.Second,
			HighRate:   0.5,
			MinSamples: 10,
		}
	})

	// Score 0.8 under STANDARD (HIGH cut 0.75) is HIGH; a sustained run
	// trips the controller at the sample floor.
	for i := 0; i < 10; i++ {
		if _, err := h.engine.Evaluate(context.Background(), h.request()); err != nil {
			t.Fatalf("Evaluate() #%d failed: %v", i, err)
		}
	}
	if got := h.engine.Mode(); got != governance.ModeStrict {
		t.Fatalf("Mode = %s, want STRICT after sustained HIGH traffic", got)
	}
	if !h.engine.IncidentOpen() {
		t.Error("IncidentOpen() = false, want true after auto escalation")
	}

	transition, ok := h.engine.OperatorRelax("op-7", "incident resolved")
	if !ok {
		t.Fatal("OperatorRelax() refused")
	}
	if transition.To != governance.ModeStandard {
		t.Errorf("relaxed to %s, want STANDARD", transition.To)
	}
	if h.engine.IncidentOpen() {
		t.Error("IncidentOpen() = true after relax to STANDARD")
	}

	// 10 decision records + auto-escalation record + operator relax record.
	h.waitRecords(t, 12)
	records, err := h.store.Range(context.Background(), 0, 12)
	if err != nil {
		t.Fatalf("Range() failed: %v", err)
	}
	var system, operator int
	for _, r := range records {
		if r.Kind != audit.KindOperator {
			continue
		}
		switch r.Operator {
		case "system":
			system++
		case "op-7":
			operator++
		default:
			t.Errorf("unexpected operator %q on record %d", r.Operator, r.Seq)
		}
	}
	if system != 1 {
		t.Errorf("system transition records = %d, want 1", system)
	}
	if operator != 1 {
		t.Errorf("operator relax records = %d, want 1", operator)
	}
}

func TestEngine_Evaluate_HashMismatchRecordedAndFatal(t *testing.T) {
	var fatal error
	h := newHarness(t, 0.1, func(c *Config) {
		c.OnFatal = func(err error) { fatal = err }
	})

	req := h.request()
	req.ConstitutionalHash = "0000000000000000000000000000000000000000000000000000000000000000"

	decision, err := h.engine.Evaluate(context.Background(), req)
	if !errors.Is(err, governance.ErrHashMismatch) {
		t.Fatalf("Evaluate() error = %v, want ErrHashMismatch", err)
	}
	if decision == nil || decision.Action != governance.ActionDeny {
		t.Fatalf("decision = %+v, want recorded DENY", decision)
	}
	if decision.Reason != "constitutional hash mismatch" {
		t.Errorf("Reason = %q", decision.Reason)
	}
	if !errors.Is(fatal, governance.ErrHashMismatch) {
		t.Errorf("fatal hook got %v, want ErrHashMismatch", fatal)
	}
	h.waitRecords(t, 1)
}

func TestEngine_Evaluate_UnknownActorDenied(t *testing.T) {
	h := newHarness(t, 0.1, nil)
	req := h.request()
	req.ActorID = "mallory"

	decision, err := h.engine.Evaluate(context.Background(), h.request())
	if err != nil {
		t.Fatalf("Evaluate() baseline failed: %v", err)
	}
	if decision.Action != governance.ActionAllow {
		t.Fatalf("baseline Action = %s, want ALLOW", decision.Action)
	}

	decision, err = h.engine.Evaluate(context.Background(), req)
	if err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}
	if decision.Action != governance.ActionDeny {
		t.Errorf("Action = %s, want DENY for unknown actor", decision.Action)
	}
	if !strings.Contains(decision.Reason, "unknown_actor") {
		t.Errorf("Reason = %q, want unknown_actor denial", decision.Reason)
	}
}

func TestEngine_Evaluate_SelfValidationDenied(t *testing.T) {
	h := newHarness(t, 0.1, nil)
	req := h.request()
	req.ActorID = "agent-a"
	req.ActorRole = maci.RoleImplementer

	decision, err := h.engine.Evaluate(context.Background(), req)
	if err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}
	if decision.Action != governance.ActionDeny {
		t.Errorf("Action = %s, want DENY", decision.Action)
	}
	// Implementer lacks the validate permission, and the actor is also the
	// message sender; either way the denial must not leak an ALLOW.
	if decision.Reason == "" {
		t.Error("Reason empty on denial")
	}
}

func TestEngine_ProvideFeedback(t *testing.T) {
	h := newHarness(t, 0.1, nil)

	decision, err := h.engine.Evaluate(context.Background(), h.request())
	if err != nil {
		t.Fatalf("Evaluate() failed: %v", err)
	}

	if err := h.engine.ProvideFeedback(decision.ID, governance.OutcomeFalsePositive); err != nil {
		t.Fatalf("ProvideFeedback() failed: %v", err)
	}
	if err := h.engine.ProvideFeedback("no-such-id", governance.OutcomeCorrect); !errors.Is(err, governance.ErrUnknownDecision) {
		t.Errorf("unknown id error = %v, want ErrUnknownDecision", err)
	}
	if err := h.engine.ProvideFeedback(decision.ID, governance.Outcome("maybe")); err == nil {
		t.Error("invalid outcome accepted")
	}
}

func TestEngine_Evaluate_Cancelled(t *testing.T) {
	h := newHarness(t, 0.1, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := h.engine.Evaluate(ctx, h.request()); !errors.Is(err, context.Canceled) {
		t.Errorf("Evaluate() error = %v, want context.Canceled", err)
	}
}

// blockedStore parks every Append until released, simulating a stalled
// external store.
type blockedStore struct {
	*storage.MemoryStore
	entered chan struct{}
	release chan struct{}
}

func (s *blockedStore) Append(ctx context.Context, record *audit.Record) error {
	select {
	case s.entered <- struct{}{}:
	default:
	}
	<-s.release
	return s.MemoryStore.Append(context.Background(), record)
}

func TestEngine_Evaluate_BacklogRejectsUnlogged(t *testing.T) {
	store := &blockedStore{
		MemoryStore: storage.NewMemoryStore(),
		entered:     make(chan struct{}, 1),
		release:     make(chan struct{}),
	}
	led, err := ledger.New(store, &ledger.Config{BacklogLimit: 1})
	if err != nil {
		t.Fatalf("ledger.New() failed: %v", err)
	}

	validator, err := maci.NewValidator(&maci.Config{Actors: map[string]string{"alice": "judicial"}})
	if err != nil {
		t.Fatalf("maci.NewValidator() failed: %v", err)
	}
	eng, err := NewEngine(nil, Components{
		Guard:      hashguard.New(),
		Scorer:     scoring.NewScorer(fixedStrategy{score: 0.1}),
		Directory:  scoring.NewDirectory(&scoring.DirectoryConfig{TrustTiers: map[string]int{"agent-a": 2}}),
		Thresholds: thresholds.NewManager(nil),
		Validator:  validator,
		Ledger:     led,
	})
	if err != nil {
		t.Fatalf("NewEngine() failed: %v", err)
	}

	req := &EvaluateRequest{
		Message: &governance.AgentMessage{
			ID: "msg-1", Sender: "agent-a", Recipients: []string{"agent-b"},
			Intent: "ping", Timestamp: time.Now().UTC(),
		},
		ActorID:            "alice",
		ActorRole:          maci.RoleJudicial,
		ConstitutionalHash: hashguard.ExpectedHash,
	}

	// First decision's record is picked up by the forwarder and parks in
	// the store; the second fills the backlog; the third must be refused.
	if _, err := eng.Evaluate(context.Background(), req); err != nil {
		t.Fatalf("Evaluate() #1 failed: %v", err)
	}
	<-store.entered
	if _, err := eng.Evaluate(context.Background(), req); err != nil {
		t.Fatalf("Evaluate() #2 failed: %v", err)
	}
	if _, err := eng.Evaluate(context.Background(), req); !errors.Is(err, governance.ErrUnavailable) {
		t.Errorf("Evaluate() #3 error = %v, want ErrUnavailable", err)
	}

	close(store.release)
	led.Close()
	n, _ := store.Count(context.Background())
	if n != 2 {
		t.Errorf("store has %d records after drain, want 2", n)
	}
}

// TestEngine_Evaluate_HashMismatchFatalUnderBackpressure tests that the
// shutdown escalation fires even when the mismatch denial cannot be
// recorded because the backlog is exhausted.
func TestEngine_Evaluate_HashMismatchFatalUnderBackpressure(t *testing.T) {
	store := &blockedStore{
		MemoryStore: storage.NewMemoryStore(),
		entered:     make(chan struct{}, 1),
		release:     make(chan struct{}),
	}
	led, err := ledger.New(store, &ledger.Config{BacklogLimit: 1})
	if err != nil {
		t.Fatalf("ledger.New() failed: %v", err)
	}

	validator, err := maci.NewValidator(&maci.Config{Actors: map[string]string{"alice": "judicial"}})
	if err != nil {
		t.Fatalf("maci.NewValidator() failed: %v", err)
	}

	var fatal error
	config := DefaultConfig()
	config.OnFatal = func(err error) { fatal = err }
	eng, err := NewEngine(config, Components{
		Guard:      hashguard.New(),
		Scorer:     scoring.NewScorer(fixedStrategy{score: 0.1}),
		Directory:  scoring.NewDirectory(&scoring.DirectoryConfig{TrustTiers: map[string]int{"agent-a": 2}}),
		Thresholds: thresholds.NewManager(nil),
		Validator:  validator,
		Ledger:     led,
	})
	if err != nil {
		t.Fatalf("NewEngine() failed: %v", err)
	}

	req := &EvaluateRequest{
		Message: &governance.AgentMessage{
			ID: "msg-1", Sender: "agent-a", Recipients: []string{"agent-b"},
			Intent: "ping", Timestamp: time.Now().UTC(),
		},
		ActorID:            "alice",
		ActorRole:          maci.RoleJudicial,
		ConstitutionalHash: hashguard.ExpectedHash,
	}

	// Fill the pipeline: one record parked in the store, one in the
	// backlog. The mismatching request then finds the ledger full.
	if _, err := eng.Evaluate(context.Background(), req); err != nil {
		t.Fatalf("Evaluate() #1 failed: %v", err)
	}
	<-store.entered
	if _, err := eng.Evaluate(context.Background(), req); err != nil {
		t.Fatalf("Evaluate() #2 failed: %v", err)
	}

	req.ConstitutionalHash = "0000000000000000000000000000000000000000000000000000000000000000"
	decision, err := eng.Evaluate(context.Background(), req)
	if !errors.Is(err, governance.ErrUnavailable) {
		t.Fatalf("Evaluate() error = %v, want ErrUnavailable", err)
	}
	if decision != nil {
		t.Errorf("decision = %+v, want nil for an unlogged denial", decision)
	}
	if !errors.Is(fatal, governance.ErrHashMismatch) {
		t.Errorf("fatal hook got %v, want ErrHashMismatch", fatal)
	}

	close(store.release)
	led.Close()
}
