package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/aegis/pkg/governance"
	"mercator-hq/aegis/pkg/governance/thresholds"
)

// Config contains configuration for the metrics collector.
type Config struct {
	// Namespace prefixes every metric name. Default: "aegis"
	Namespace string

	// EvaluationBuckets are the histogram buckets for evaluation latency
	// in seconds. Defaults cover the sub-millisecond to one-second range
	// typical for in-process evaluation plus one policy round-trip.
	EvaluationBuckets []float64
}

// Collector owns all Prometheus metrics for the governance engine.
//
// It implements the engine's Observer, the ledger's Observer, and the
// threshold manager's clamp callback, so a single instance is passed to
// each component at wiring time.
type Collector struct {
	registry *prometheus.Registry

	decisionsTotal     *prometheus.CounterVec
	evaluationDuration prometheus.Histogram
	feedbackTotal      *prometheus.CounterVec
	thresholdClamps    *prometheus.CounterVec
	modeTransitions    *prometheus.CounterVec
	currentMode        prometheus.Gauge

	ledgerAppends  *prometheus.CounterVec
	appendDuration prometheus.Histogram
	ledgerBacklog  prometheus.Gauge

	policyDegraded prometheus.Counter
}

// NewCollector creates a collector and registers all metrics. If registry
// is nil a private registry is created.
func NewCollector(cfg *Config, registry *prometheus.Registry) *Collector {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "aegis"
	}
	if len(cfg.EvaluationBuckets) == 0 {
		cfg.EvaluationBuckets = []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0}
	}
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: registry,

		decisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "governance_decisions_total",
				Help:      "Total governance decisions by action, impact level, and mode",
			},
			[]string{"action", "level", "mode"},
		),
		evaluationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "governance_evaluation_duration_seconds",
				Help:      "Duration of one governance evaluation in seconds",
				Buckets:   cfg.EvaluationBuckets,
			},
		),
		feedbackTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "governance_feedback_total",
				Help:      "Total feedback calls by outcome",
			},
			[]string{"outcome"},
		),
		thresholdClamps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "governance_threshold_clamps_total",
				Help:      "Threshold adjustments clamped to the configured bounds",
			},
			[]string{"mode", "level"},
		),
		modeTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "governance_mode_transitions_total",
				Help:      "Governance mode transitions by direction and trigger",
			},
			[]string{"from", "to", "trigger"},
		),
		currentMode: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "governance_mode",
				Help:      "Current governance mode (0=PERMISSIVE, 1=STANDARD, 2=STRICT, 3=LOCKDOWN)",
			},
		),

		ledgerAppends: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "audit_ledger_appends_total",
				Help:      "Audit store delivery attempts by status",
			},
			[]string{"status"},
		),
		appendDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "audit_ledger_append_duration_seconds",
				Help:      "Duration of one audit store delivery attempt in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
		ledgerBacklog: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "audit_ledger_backlog",
				Help:      "Sealed audit records awaiting delivery to the store",
			},
		),

		policyDegraded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "policy_degraded_total",
				Help:      "Policy checks that fell back to the fail-closed mapping",
			},
		),
	}

	registry.MustRegister(
		c.decisionsTotal,
		c.evaluationDuration,
		c.feedbackTotal,
		c.thresholdClamps,
		c.modeTransitions,
		c.currentMode,
		c.ledgerAppends,
		c.appendDuration,
		c.ledgerBacklog,
		c.policyDegraded,
	)

	c.currentMode.Set(float64(governance.ModeStandard))
	return c
}

// Registry returns the underlying Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// DecisionObserved records one issued decision.
func (c *Collector) DecisionObserved(d *governance.Decision, duration time.Duration) {
	c.decisionsTotal.WithLabelValues(string(d.Action), d.Level.String(), d.Mode.String()).Inc()
	c.evaluationDuration.Observe(duration.Seconds())
}

// FeedbackObserved records one accepted feedback call.
func (c *Collector) FeedbackObserved(outcome governance.Outcome) {
	c.feedbackTotal.WithLabelValues(string(outcome)).Inc()
}

// PolicyDegraded records a policy check that could not obtain a verdict.
func (c *Collector) PolicyDegraded() {
	c.policyDegraded.Inc()
}

// ClampObserved records a threshold adjustment that hit its bounds.
func (c *Collector) ClampObserved(mode governance.Mode, level governance.ImpactLevel) {
	c.thresholdClamps.WithLabelValues(mode.String(), level.String()).Inc()
}

// TransitionObserved records a governance mode transition.
func (c *Collector) TransitionObserved(t thresholds.Transition) {
	c.modeTransitions.WithLabelValues(t.From.String(), t.To.String(), t.Trigger).Inc()
	c.currentMode.Set(float64(t.To))
}

// AppendObserved records one audit store delivery attempt.
func (c *Collector) AppendObserved(status string, duration time.Duration) {
	c.ledgerAppends.WithLabelValues(status).Inc()
	c.appendDuration.Observe(duration.Seconds())
}

// BacklogObserved records the current audit backlog depth.
func (c *Collector) BacklogObserved(depth int) {
	c.ledgerBacklog.Set(float64(depth))
}
