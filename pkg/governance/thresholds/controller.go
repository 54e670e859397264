package thresholds

import (
	"log/slog"
	"sync"
	"time"

	"mercator-hq/aegis/pkg/governance"
	"mercator-hq/aegis/pkg/limits/ratewindow"
)

// EscalationConfig controls automatic mode tightening.
type EscalationConfig struct {
	// Window is the sliding window over which high-impact decisions are
	// counted. Default: 5 minutes.
	Window time.Duration `yaml:"window"`

	// Bucket is the window's counting granularity. Default: 1 second.
	Bucket time.Duration `yaml:"bucket"`

	// HighRate is the fraction of decisions inside the window that must be
	// HIGH or CRITICAL to trigger escalation. Default: 0.5.
	HighRate float64 `yaml:"high_rate"`

	// MinSamples is the minimum number of decisions inside the window
	// before the rate is meaningful. Default: 100.
	MinSamples int64 `yaml:"min_samples"`
}

// DefaultEscalationConfig returns the default escalation configuration.
func DefaultEscalationConfig() *EscalationConfig {
	return &EscalationConfig{
		Window:     5 * time.Minute,
		Bucket:     time.Second,
		HighRate:   0.5,
		MinSamples: 100,
	}
}

// Transition describes one governance mode change.
type Transition struct {
	From     governance.Mode
	To       governance.Mode
	Trigger  string // "auto_escalation" or "operator"
	Operator string // set for operator transitions
	Reason   string
	At       time.Time
}

// ModeController owns the system-wide governance mode.
//
// The mode starts at STANDARD. A sustained high rate of HIGH/CRITICAL
// decisions inside the sliding window tightens the mode one step at a time
// (STANDARD to STRICT to LOCKDOWN); escalation never skips a step. While an
// incident is open the mode only tightens; relaxing requires an explicit
// operator action, which is reported through the transition hook so the
// engine can audit it.
type ModeController struct {
	config *EscalationConfig
	logger *slog.Logger

	mu           sync.Mutex
	mode         governance.Mode
	incidentOpen bool

	all  *ratewindow.Window // every decision in the window
	high *ratewindow.Window // HIGH/CRITICAL decisions in the window

	// onTransition is invoked (outside the lock) after every mode change.
	onTransition func(Transition)
}

// NewModeController creates a controller starting in STANDARD mode.
// The hook may be nil.
func NewModeController(config *EscalationConfig, onTransition func(Transition)) *ModeController {
	if config == nil {
		config = DefaultEscalationConfig()
	}
	if config.Bucket <= 0 {
		config.Bucket = time.Second
	}
	if config.Window <= 0 {
		config.Window = 5 * time.Minute
	}
	return &ModeController{
		config:       config,
		logger:       slog.Default().With("component", "governance.mode"),
		mode:         governance.ModeStandard,
		all:          ratewindow.New(config.Window, config.Bucket),
		high:         ratewindow.New(config.Window, config.Bucket),
		onTransition: onTransition,
	}
}

// Current returns the active governance mode.
func (c *ModeController) Current() governance.Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// RecordDecision feeds a decision's level into the escalation window and
// tightens the mode if the high-impact rate is sustained. It returns the
// mode in effect after recording.
func (c *ModeController) RecordDecision(level governance.ImpactLevel) governance.Mode {
	c.all.Observe(1)
	if level >= governance.LevelHigh {
		c.high.Observe(1)
	}

	c.mu.Lock()

	total := c.all.Total()
	if total < c.config.MinSamples || c.mode >= governance.ModeLockdown {
		mode := c.mode
		c.mu.Unlock()
		return mode
	}

	rate := float64(c.high.Total()) / float64(total)
	if rate < c.config.HighRate {
		mode := c.mode
		c.mu.Unlock()
		return mode
	}

	tr := Transition{
		From:    c.mode,
		To:      c.mode + 1, // one step, never skipping
		Trigger: "auto_escalation",
		Reason:  "sustained high-impact decision rate",
		At:      time.Now(),
	}
	c.mode = tr.To
	c.incidentOpen = true
	// Restart the window so the next escalation needs fresh evidence.
	c.all.Reset()
	c.high.Reset()
	c.mu.Unlock()

	c.logger.Warn("governance mode escalated",
		"from", tr.From.String(),
		"to", tr.To.String(),
		"rate", rate,
	)
	if c.onTransition != nil {
		c.onTransition(tr)
	}
	return tr.To
}

// OperatorRelax loosens the mode by exactly one step on behalf of a named
// operator. It is the only way the mode relaxes; the transition is reported
// through the hook so it lands in the audit chain. Relaxing STANDARD below
// STANDARD yields PERMISSIVE; relaxing PERMISSIVE is a no-op.
func (c *ModeController) OperatorRelax(operator, reason string) (Transition, bool) {
	c.mu.Lock()
	if c.mode <= governance.ModePermissive {
		c.mu.Unlock()
		return Transition{}, false
	}
	tr := Transition{
		From:     c.mode,
		To:       c.mode - 1,
		Trigger:  "operator",
		Operator: operator,
		Reason:   reason,
		At:       time.Now(),
	}
	c.mode = tr.To
	if c.mode <= governance.ModeStandard {
		c.incidentOpen = false
	}
	c.all.Reset()
	c.high.Reset()
	c.mu.Unlock()

	c.logger.Info("governance mode relaxed by operator",
		"from", tr.From.String(),
		"to", tr.To.String(),
		"operator", operator,
		"reason", reason,
	)
	if c.onTransition != nil {
		c.onTransition(tr)
	}
	return tr, true
}

// IncidentOpen reports whether an auto-escalation incident is still open.
func (c *ModeController) IncidentOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.incidentOpen
}
