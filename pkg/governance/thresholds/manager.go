package thresholds

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"mercator-hq/aegis/pkg/governance"
)

// Config contains configuration for the threshold manager.
type Config struct {
	// Bounds is the safe range for cut-points, per level. Levels without an
	// entry use DefaultBounds.
	Bounds map[governance.ImpactLevel]Bounds

	// FeedbackStep is the base adjustment applied per feedback event.
	// Default: 0.01
	FeedbackStep float64

	// FalseNegativeFactor scales the step for false negatives, which are
	// more severe than false positives. Default: 2.0
	FalseNegativeFactor float64

	// OnClamp, if set, is invoked whenever an adjustment had to be clamped
	// into bounds. Used for metrics; clamping is never an error.
	OnClamp func(mode governance.Mode, level governance.ImpactLevel)
}

// DefaultConfig returns the default threshold manager configuration.
func DefaultConfig() *Config {
	return &Config{
		Bounds:              map[governance.ImpactLevel]Bounds{},
		FeedbackStep:        0.01,
		FalseNegativeFactor: 2.0,
	}
}

// Manager maintains the adaptive score cut-points for every governance mode.
//
// Reads take a published immutable Snapshot and never block. Writes
// (feedback adjustments, bound reloads) are serialized per mode; two
// concurrent adjustments for the same mode cannot interleave.
type Manager struct {
	config *Config
	logger *slog.Logger

	// bounds is replaced wholesale on reload; readers load the current map
	// and never see a partially written one.
	bounds atomic.Pointer[map[governance.ImpactLevel]Bounds]

	// one slot and one write lock per mode, indexed by governance.Mode
	snaps [4]atomic.Pointer[Snapshot]
	mus   [4]sync.Mutex
}

// NewManager creates a threshold manager seeded with the per-mode defaults.
func NewManager(config *Config) *Manager {
	if config == nil {
		config = DefaultConfig()
	}
	if config.FeedbackStep <= 0 {
		config.FeedbackStep = 0.01
	}
	if config.FalseNegativeFactor <= 0 {
		config.FalseNegativeFactor = 2.0
	}

	m := &Manager{
		config: config,
		logger: slog.Default().With("component", "governance.thresholds"),
	}
	m.storeBounds(config.Bounds)
	for _, mode := range governance.Modes() {
		snap := &Snapshot{Mode: mode, Cuts: DefaultCuts(mode)}
		m.clampSnapshot(snap)
		m.snaps[mode].Store(snap)
	}
	return m
}

// Snapshot returns the current immutable cut-points for the mode. The
// returned value is safe to hold for the duration of an evaluation.
func (m *Manager) Snapshot(mode governance.Mode) *Snapshot {
	return m.snaps[mode].Load()
}

// ApplyFeedback adjusts the cut-point affected by a decision according to
// the reported outcome, then clamps it into the configured bounds and
// publishes a new snapshot. It returns the snapshot that resulted.
//
// The evaluation path never calls this; feedback is the only writer.
func (m *Manager) ApplyFeedback(decision *governance.Decision, outcome governance.Outcome) *Snapshot {
	mode := decision.Mode
	m.mus[mode].Lock()
	defer m.mus[mode].Unlock()

	cur := m.snaps[mode].Load()

	// The affected cut is the decision's own level; MINIMAL has no cut, so
	// feedback there tunes the nearest boundary (LOW).
	level := decision.Level
	if level == governance.LevelMinimal {
		level = governance.LevelLow
	}

	var delta float64
	switch outcome {
	case governance.OutcomeFalsePositive:
		// Too strict: raise the cut so this level is reached later.
		delta = m.config.FeedbackStep
	case governance.OutcomeFalseNegative:
		// Too lenient: lower the cut so this level is reached sooner.
		delta = -m.config.FeedbackStep * m.config.FalseNegativeFactor
	case governance.OutcomeCorrect:
		return cur
	default:
		return cur
	}

	next := *cur
	next.Version++
	adjusted := next.Cuts[level] + delta

	clamped, wasClamped := m.boundsFor(level).Clamp(adjusted)
	next.Cuts[level] = clamped
	if wasClamped && m.config.OnClamp != nil {
		m.config.OnClamp(mode, level)
	}

	// Keep the cuts ordered: an adjustment never reorders levels.
	m.restoreOrder(&next, level)

	m.snaps[mode].Store(&next)
	m.logger.Debug("threshold adjusted",
		"mode", mode.String(),
		"level", level.String(),
		"outcome", string(outcome),
		"cut", next.Cuts[level],
		"clamped", wasClamped,
		"version", next.Version,
	)
	return &next
}

// SetBounds replaces the configured bounds (hot reload) and re-clamps every
// published cut-point into the new range.
func (m *Manager) SetBounds(bounds map[governance.ImpactLevel]Bounds) {
	m.storeBounds(bounds)
	for _, mode := range governance.Modes() {
		m.mus[mode].Lock()
		next := *m.snaps[mode].Load()
		next.Version++
		snap := &next
		m.clampSnapshot(snap)
		m.snaps[mode].Store(snap)
		m.mus[mode].Unlock()
	}
	m.logger.Info("threshold bounds reloaded")
}

// storeBounds publishes a private copy of the bounds map so later mutation
// by the caller cannot race concurrent readers.
func (m *Manager) storeBounds(bounds map[governance.ImpactLevel]Bounds) {
	copied := make(map[governance.ImpactLevel]Bounds, len(bounds))
	for lvl, b := range bounds {
		copied[lvl] = b
	}
	m.bounds.Store(&copied)
}

// boundsFor returns the configured bounds for a level, or the defaults.
func (m *Manager) boundsFor(level governance.ImpactLevel) Bounds {
	if b, ok := (*m.bounds.Load())[level]; ok {
		return b
	}
	return DefaultBounds()
}

// clampSnapshot forces every cut in the snapshot into its bounds.
func (m *Manager) clampSnapshot(s *Snapshot) {
	for lvl := governance.LevelLow; lvl <= governance.LevelCritical; lvl++ {
		clamped, wasClamped := m.boundsFor(lvl).Clamp(s.Cuts[lvl])
		s.Cuts[lvl] = clamped
		if wasClamped && m.config.OnClamp != nil {
			m.config.OnClamp(s.Mode, lvl)
		}
	}
}

// restoreOrder nudges neighboring cuts so they stay strictly increasing
// after the cut for level moved. Nudges respect bounds.
func (m *Manager) restoreOrder(s *Snapshot, level governance.ImpactLevel) {
	const gap = 1e-6
	for lvl := level + 1; lvl <= governance.LevelCritical; lvl++ {
		if s.Cuts[lvl] <= s.Cuts[lvl-1] {
			s.Cuts[lvl], _ = m.boundsFor(lvl).Clamp(s.Cuts[lvl-1] + gap)
		}
	}
	for lvl := level - 1; lvl >= governance.LevelLow; lvl-- {
		if s.Cuts[lvl] >= s.Cuts[lvl+1] {
			s.Cuts[lvl], _ = m.boundsFor(lvl).Clamp(s.Cuts[lvl+1] - gap)
		}
	}
}
