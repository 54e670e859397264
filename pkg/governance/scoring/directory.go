package scoring

import (
	"sync"
	"time"

	"mercator-hq/aegis/pkg/limits/ratewindow"
)

// DirectoryConfig configures the agent directory.
type DirectoryConfig struct {
	// ViolationWindow is the rolling window over which per-sender
	// violation rates are computed. Default: 15 minutes.
	ViolationWindow time.Duration `yaml:"violation_window"`

	// ViolationBucket is the window granularity. Default: 10 seconds.
	ViolationBucket time.Duration `yaml:"violation_bucket"`

	// TrustTiers maps agent id to trust tier (0..MaxTier).
	TrustTiers map[string]int `yaml:"trust_tiers"`

	// CriticalityTiers maps agent id to destination criticality tier
	// (0..MaxTier). Agents without an entry default to tier 1.
	CriticalityTiers map[string]int `yaml:"criticality_tiers"`
}

// DefaultDirectoryConfig returns the default directory configuration.
func DefaultDirectoryConfig() *DirectoryConfig {
	return &DirectoryConfig{
		ViolationWindow:  15 * time.Minute,
		ViolationBucket:  10 * time.Second,
		TrustTiers:       map[string]int{},
		CriticalityTiers: map[string]int{},
	}
}

// Directory resolves the historical and environmental context for scoring:
// sender trust tiers, recipient criticality tiers, and per-sender rolling
// violation rates. Safe for concurrent use.
type Directory struct {
	config *DirectoryConfig

	mu      sync.RWMutex
	history map[string]*senderHistory
}

// senderHistory tracks one sender's recent evaluations and violations.
type senderHistory struct {
	evaluations *ratewindow.Window
	violations  *ratewindow.Window
}

// NewDirectory creates an agent directory.
func NewDirectory(config *DirectoryConfig) *Directory {
	if config == nil {
		config = DefaultDirectoryConfig()
	}
	if config.ViolationWindow <= 0 {
		config.ViolationWindow = 15 * time.Minute
	}
	if config.ViolationBucket <= 0 {
		config.ViolationBucket = 10 * time.Second
	}
	return &Directory{
		config:  config,
		history: make(map[string]*senderHistory),
	}
}

// ContextFor assembles the scoring context for a message from the given
// sender to the given recipients. An unregistered sender yields
// TrustKnown=false, which the scorer treats as fail-closed.
func (d *Directory) ContextFor(sender string, recipients []string) Context {
	tier, known := d.config.TrustTiers[sender]

	crit := 0
	for _, r := range recipients {
		rt, ok := d.config.CriticalityTiers[r]
		if !ok {
			rt = 1
		}
		if rt > crit {
			crit = rt
		}
	}

	return Context{
		TrustKnown:           known,
		TrustTier:            tier,
		ViolationRate:        d.violationRate(sender),
		RecipientCriticality: crit,
	}
}

// RecordEvaluation feeds one evaluation outcome into the sender's rolling
// history. restrictive is true when the decision denied or quarantined.
func (d *Directory) RecordEvaluation(sender string, restrictive bool) {
	h := d.historyFor(sender)
	h.evaluations.Observe(1)
	if restrictive {
		h.violations.Observe(1)
	}
}

// violationRate returns the fraction of the sender's recent evaluations
// that ended restrictively, in [0,1]. Senders with no history score 0.
func (d *Directory) violationRate(sender string) float64 {
	d.mu.RLock()
	h, ok := d.history[sender]
	d.mu.RUnlock()
	if !ok {
		return 0
	}

	total := h.evaluations.Total()
	if total == 0 {
		return 0
	}
	rate := float64(h.violations.Total()) / float64(total)
	if rate > 1 {
		rate = 1
	}
	return rate
}

func (d *Directory) historyFor(sender string) *senderHistory {
	d.mu.RLock()
	h, ok := d.history[sender]
	d.mu.RUnlock()
	if ok {
		return h
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if h, ok = d.history[sender]; ok {
		return h
	}
	h = &senderHistory{
		evaluations: ratewindow.New(d.config.ViolationWindow, d.config.ViolationBucket),
		violations:  ratewindow.New(d.config.ViolationWindow, d.config.ViolationBucket),
	}
	d.history[sender] = h
	return h
}
