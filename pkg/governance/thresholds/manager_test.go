package thresholds

import (
	"math/rand"
	"sync"
	"testing"

	"mercator-hq/aegis/pkg/governance"
)

// TestSnapshot_LevelFor tests score-to-level mapping including ties.
func TestSnapshot_LevelFor(t *testing.T) {
	snap := &Snapshot{Mode: governance.ModeStandard, Cuts: DefaultCuts(governance.ModeStandard)}

	tests := []struct {
		name  string
		score float64
		want  governance.ImpactLevel
	}{
		{"zero score", 0.0, governance.LevelMinimal},
		{"below low cut", 0.24, governance.LevelMinimal},
		{"exactly low cut resolves strict", 0.25, governance.LevelLow},
		{"moderate", 0.6, governance.LevelModerate},
		{"high", 0.8, governance.LevelHigh},
		{"exactly critical cut resolves strict", 0.9, governance.LevelCritical},
		{"max score", 1.0, governance.LevelCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := snap.LevelFor(tt.score); got != tt.want {
				t.Errorf("LevelFor(%v) = %s, want %s", tt.score, got, tt.want)
			}
		})
	}
}

// TestManager_FeedbackDirection tests that false positives raise the cut and
// false negatives lower it.
func TestManager_FeedbackDirection(t *testing.T) {
	m := NewManager(nil)
	before := m.Snapshot(governance.ModeStandard).Cut(governance.LevelHigh)

	decision := &governance.Decision{
		Mode:  governance.ModeStandard,
		Level: governance.LevelHigh,
	}

	snap := m.ApplyFeedback(decision, governance.OutcomeFalsePositive)
	if snap.Cut(governance.LevelHigh) <= before {
		t.Errorf("false positive should raise the cut: before=%v after=%v",
			before, snap.Cut(governance.LevelHigh))
	}

	raised := snap.Cut(governance.LevelHigh)
	snap = m.ApplyFeedback(decision, governance.OutcomeFalseNegative)
	if snap.Cut(governance.LevelHigh) >= raised {
		t.Errorf("false negative should lower the cut: before=%v after=%v",
			raised, snap.Cut(governance.LevelHigh))
	}
}

// TestManager_CorrectOutcomeIsNoop tests that confirming feedback leaves
// thresholds untouched.
func TestManager_CorrectOutcomeIsNoop(t *testing.T) {
	m := NewManager(nil)
	before := *m.Snapshot(governance.ModeStandard)

	decision := &governance.Decision{Mode: governance.ModeStandard, Level: governance.LevelModerate}
	after := m.ApplyFeedback(decision, governance.OutcomeCorrect)

	if after.Cuts != before.Cuts {
		t.Errorf("correct outcome mutated cuts: before=%v after=%v", before.Cuts, after.Cuts)
	}
}

// TestManager_MinimalFeedbackTunesLowCut tests that feedback on MINIMAL
// decisions adjusts the nearest boundary.
func TestManager_MinimalFeedbackTunesLowCut(t *testing.T) {
	m := NewManager(nil)
	before := m.Snapshot(governance.ModeStandard).Cut(governance.LevelLow)

	decision := &governance.Decision{Mode: governance.ModeStandard, Level: governance.LevelMinimal}
	snap := m.ApplyFeedback(decision, governance.OutcomeFalseNegative)

	if snap.Cut(governance.LevelLow) >= before {
		t.Errorf("MINIMAL false negative should lower the LOW cut: before=%v after=%v",
			before, snap.Cut(governance.LevelLow))
	}
}

// TestManager_BoundsInvariant tests that thresholds stay inside [min, max]
// under arbitrary feedback sequences.
func TestManager_BoundsInvariant(t *testing.T) {
	bounds := map[governance.ImpactLevel]Bounds{}
	for _, lvl := range governance.Levels() {
		bounds[lvl] = Bounds{Min: 0.1, Max: 0.95}
	}
	cfg := DefaultConfig()
	cfg.Bounds = bounds
	cfg.FeedbackStep = 0.05
	m := NewManager(cfg)

	rng := rand.New(rand.NewSource(42))
	outcomes := []governance.Outcome{
		governance.OutcomeCorrect,
		governance.OutcomeFalsePositive,
		governance.OutcomeFalseNegative,
	}

	for i := 0; i < 2000; i++ {
		mode := governance.Modes()[rng.Intn(4)]
		level := governance.Levels()[rng.Intn(5)]
		decision := &governance.Decision{Mode: mode, Level: level}

		snap := m.ApplyFeedback(decision, outcomes[rng.Intn(3)])
		for lvl := governance.LevelLow; lvl <= governance.LevelCritical; lvl++ {
			cut := snap.Cut(lvl)
			if cut < 0.1 || cut > 0.95 {
				t.Fatalf("step %d: cut for %s/%s escaped bounds: %v", i, mode, lvl, cut)
			}
		}
	}
}

// TestManager_ClampObserver tests that clamps are reported, not errored.
func TestManager_ClampObserver(t *testing.T) {
	var clamps int
	cfg := DefaultConfig()
	cfg.FeedbackStep = 0.5 // large step guarantees clamping
	cfg.Bounds = map[governance.ImpactLevel]Bounds{
		governance.LevelCritical: {Min: 0.85, Max: 0.92},
	}
	cfg.OnClamp = func(governance.Mode, governance.ImpactLevel) { clamps++ }
	m := NewManager(cfg)
	clamps = 0 // ignore clamps applied while seeding defaults

	decision := &governance.Decision{Mode: governance.ModeStandard, Level: governance.LevelCritical}
	m.ApplyFeedback(decision, governance.OutcomeFalsePositive)

	if clamps == 0 {
		t.Error("expected OnClamp to fire for an out-of-bounds adjustment")
	}
}

// TestManager_SnapshotIsolation tests that a held snapshot does not change
// when feedback lands concurrently.
func TestManager_SnapshotIsolation(t *testing.T) {
	m := NewManager(nil)
	held := m.Snapshot(governance.ModeStrict)
	heldCuts := held.Cuts

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			decision := &governance.Decision{Mode: governance.ModeStrict, Level: governance.LevelHigh}
			for j := 0; j < 100; j++ {
				m.ApplyFeedback(decision, governance.OutcomeFalsePositive)
			}
		}()
	}
	wg.Wait()

	if held.Cuts != heldCuts {
		t.Error("published snapshot was mutated in place")
	}
	if m.Snapshot(governance.ModeStrict).Version == held.Version {
		t.Error("feedback did not publish a new snapshot version")
	}
}

// TestManager_SetBoundsReclamps tests hot reload of bounds.
func TestManager_SetBoundsReclamps(t *testing.T) {
	m := NewManager(nil)

	// Tighten the max below the default CRITICAL cut (0.9 under STANDARD).
	newBounds := map[governance.ImpactLevel]Bounds{
		governance.LevelCritical: {Min: 0.05, Max: 0.85},
	}
	m.SetBounds(newBounds)

	got := m.Snapshot(governance.ModeStandard).Cut(governance.LevelCritical)
	if got != 0.85 {
		t.Errorf("expected CRITICAL cut re-clamped to 0.85, got %v", got)
	}
}

// TestManager_SetBoundsConcurrentWithFeedback tests that a bounds reload
// racing feedback for another mode is safe. Run with -race.
func TestManager_SetBoundsConcurrentWithFeedback(t *testing.T) {
	m := NewManager(nil)
	decision := &governance.Decision{Mode: governance.ModeStrict, Level: governance.LevelHigh}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			m.ApplyFeedback(decision, governance.OutcomeFalsePositive)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			m.SetBounds(map[governance.ImpactLevel]Bounds{
				governance.LevelHigh: {Min: 0.1, Max: 0.9},
			})
		}
	}()
	wg.Wait()

	got := m.Snapshot(governance.ModeStrict).Cut(governance.LevelHigh)
	if got < 0.1 || got > 0.9 {
		t.Errorf("HIGH cut %v escaped the reloaded bounds", got)
	}
}
