package thresholds

import (
	"fmt"

	"mercator-hq/aegis/pkg/governance"
)

// Bounds is the configured safe range for one cut-point. Any computed
// adjustment outside the range is clamped, never rejected.
type Bounds struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Clamp returns v forced into [Min, Max] and whether clamping occurred.
func (b Bounds) Clamp(v float64) (float64, bool) {
	if v < b.Min {
		return b.Min, true
	}
	if v > b.Max {
		return b.Max, true
	}
	return v, false
}

// Snapshot is an immutable view of the score cut-points for one mode.
// A score at or above a cut maps to at least that level; ties resolve toward
// the stricter level. MINIMAL is the floor and has no cut.
//
// Snapshots are never mutated after publication, so readers may hold one
// across an evaluation without observing a partially applied adjustment.
type Snapshot struct {
	Mode governance.Mode

	// Cuts holds the cut-point for LOW, MODERATE, HIGH and CRITICAL,
	// indexed by level. Values are strictly increasing.
	Cuts [5]float64

	// Version increments on every applied adjustment, for reproducibility
	// in audit records and tests.
	Version uint64
}

// LevelFor maps a score in [0,1] to an impact level under this snapshot.
func (s *Snapshot) LevelFor(score float64) governance.ImpactLevel {
	for lvl := governance.LevelCritical; lvl > governance.LevelMinimal; lvl-- {
		if score >= s.Cuts[lvl] {
			return lvl
		}
	}
	return governance.LevelMinimal
}

// Cut returns the cut-point for the given level. MINIMAL has no cut and
// reports 0.
func (s *Snapshot) Cut(level governance.ImpactLevel) float64 {
	if level <= governance.LevelMinimal || level > governance.LevelCritical {
		return 0
	}
	return s.Cuts[level]
}

// validate checks that the cuts are strictly increasing and inside [0,1].
func (s *Snapshot) validate() error {
	prev := 0.0
	for lvl := governance.LevelLow; lvl <= governance.LevelCritical; lvl++ {
		c := s.Cuts[lvl]
		if c <= 0 || c > 1 {
			return fmt.Errorf("cut for %s out of (0,1]: %v", lvl, c)
		}
		if c <= prev {
			return fmt.Errorf("cut for %s (%v) not above previous cut (%v)", lvl, c, prev)
		}
		prev = c
	}
	return nil
}

// DefaultCuts returns the initial cut-points for each mode. Stricter modes
// reach each level at a lower score.
func DefaultCuts(mode governance.Mode) [5]float64 {
	switch mode {
	case governance.ModePermissive:
		return [5]float64{0, 0.40, 0.60, 0.80, 0.95}
	case governance.ModeStandard:
		return [5]float64{0, 0.25, 0.50, 0.75, 0.90}
	case governance.ModeStrict:
		return [5]float64{0, 0.20, 0.40, 0.60, 0.80}
	default: // LOCKDOWN
		return [5]float64{0, 0.10, 0.30, 0.50, 0.70}
	}
}

// DefaultBounds returns the default safe range applied to every cut-point.
func DefaultBounds() Bounds {
	return Bounds{Min: 0.05, Max: 0.99}
}
