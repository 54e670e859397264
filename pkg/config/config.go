package config

import "time"

// Config is the root configuration structure for the governance engine.
// It contains all configuration sections for the HTTP server, scoring,
// thresholds, role validation, the policy adapter, audit storage, and
// telemetry.
type Config struct {
	// Server contains HTTP server configuration including listen address,
	// timeouts, and API keys.
	Server ServerConfig `yaml:"server"`

	// Governance contains engine-level settings: the policy check floor
	// and runtime hash mismatch handling.
	Governance GovernanceConfig `yaml:"governance"`

	// Scoring contains impact scorer weights and the agent directory
	// (trust tiers, criticality tiers, violation tracking).
	Scoring ScoringConfig `yaml:"scoring"`

	// Thresholds contains per-level clamp bounds and feedback tuning.
	Thresholds ThresholdsConfig `yaml:"thresholds"`

	// Escalation contains the automatic mode controller settings.
	Escalation EscalationConfig `yaml:"escalation"`

	// MACI contains actor role bindings and the CRITICAL quorum set.
	MACI MACIConfig `yaml:"maci"`

	// Policy contains the external policy-decision service settings.
	Policy PolicyConfig `yaml:"policy"`

	// Audit contains audit chain storage, backlog, and retention settings.
	Audit AuditConfig `yaml:"audit"`

	// Telemetry contains logging and metrics configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum time to wait for the next request on a
	// kept-alive connection. Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the grace period for in-flight requests during
	// shutdown. Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits the size of request headers. Default: 1MB
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// APIKeys are the accepted bearer keys for the evaluate/feedback API.
	// An empty list disables authentication (development only).
	APIKeys []string `yaml:"api_keys"`
}

// GovernanceConfig contains engine-level governance settings.
type GovernanceConfig struct {
	// PolicyFloor is the lowest impact level that requires an external
	// policy check. One of MINIMAL, LOW, MODERATE, HIGH, CRITICAL.
	// Default: "MODERATE"
	PolicyFloor string `yaml:"policy_floor"`

	// FatalOnRuntimeMismatch shuts the process down when an evaluate call
	// presents a wrong constitutional hash, after the denial is recorded.
	// Default: true
	FatalOnRuntimeMismatch *bool `yaml:"fatal_on_runtime_mismatch"`

	// MaxTrackedDecisions bounds the feedback registry. Default: 10000
	MaxTrackedDecisions int `yaml:"max_tracked_decisions"`
}

// ScoringConfig contains impact scorer configuration.
type ScoringConfig struct {
	// Weights are the relative weights of the scoring signals; they are
	// normalized to sum to 1.
	Weights WeightsConfig `yaml:"weights"`

	// TrustTiers maps agent id to trust tier 0..3. Senders without an
	// entry are scored fail-closed (CRITICAL).
	TrustTiers map[string]int `yaml:"trust_tiers"`

	// CriticalityTiers maps agent id to destination criticality tier
	// 0..3. Recipients without an entry default to tier 1.
	CriticalityTiers map[string]int `yaml:"criticality_tiers"`

	// ViolationWindow is the rolling window for per-sender violation
	// rates. Default: 15m
	ViolationWindow time.Duration `yaml:"violation_window"`

	// ViolationBucket is the window granularity. Default: 10s
	ViolationBucket time.Duration `yaml:"violation_bucket"`
}

// WeightsConfig mirrors the scorer's signal weights.
type WeightsConfig struct {
	// Payload weights the payload-size signal. Default: 0.15
	Payload float64 `yaml:"payload"`

	// Criticality weights the recipient criticality signal. Default: 0.35
	Criticality float64 `yaml:"criticality"`

	// Distrust weights the inverted sender trust signal. Default: 0.25
	Distrust float64 `yaml:"distrust"`

	// Violations weights the rolling violation rate signal. Default: 0.25
	Violations float64 `yaml:"violations"`
}

// ThresholdsConfig contains adaptive threshold tuning.
type ThresholdsConfig struct {
	// Bounds are the per-level [min,max] clamp ranges for threshold
	// cut-points. Keys are level names (LOW, MODERATE, HIGH, CRITICAL).
	Bounds map[string]BoundsConfig `yaml:"bounds"`

	// FeedbackStep is the cut-point adjustment per feedback call.
	// Default: 0.01
	FeedbackStep float64 `yaml:"feedback_step"`

	// FalseNegativeFactor scales the step for false negatives, which are
	// more dangerous than false positives. Default: 2.0
	FalseNegativeFactor float64 `yaml:"false_negative_factor"`
}

// BoundsConfig is one [min,max] clamp range.
type BoundsConfig struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// EscalationConfig contains automatic mode escalation settings.
type EscalationConfig struct {
	// Window is the sliding window over which the HIGH/CRITICAL decision
	// rate is measured. Default: 5m
	Window time.Duration `yaml:"window"`

	// Bucket is the window granularity. Default: 1s
	Bucket time.Duration `yaml:"bucket"`

	// HighRate is the HIGH/CRITICAL fraction that triggers escalation.
	// Default: 0.5
	HighRate float64 `yaml:"high_rate"`

	// MinSamples is the minimum decision count inside the window before
	// the rate is acted on. Default: 100
	MinSamples int64 `yaml:"min_samples"`
}

// MACIConfig contains role validator configuration.
type MACIConfig struct {
	// Actors maps actor id to one of the seven role names.
	Actors map[string]string `yaml:"actors"`

	// QuorumRoles is the role pool for CRITICAL co-signing.
	// Default: judicial, auditor, monitor
	QuorumRoles []string `yaml:"quorum_roles"`

	// QuorumSize is the distinct-role count CRITICAL requires. Default: 2
	QuorumSize int `yaml:"quorum_size"`
}

// PolicyConfig contains the external policy service settings.
type PolicyConfig struct {
	// Endpoint is the decision URL. Empty disables the external check;
	// the engine then governs on levels and roles alone.
	Endpoint string `yaml:"endpoint"`

	// Timeout bounds one policy round-trip. Default: 500ms
	Timeout time.Duration `yaml:"timeout"`
}

// AuditConfig contains audit chain configuration.
type AuditConfig struct {
	// Backend selects the store: "sqlite" or "memory". Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite contains sqlite backend settings.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// BacklogLimit is the maximum number of sealed records awaiting
	// delivery before new evaluations are refused. Default: 1000
	BacklogLimit int `yaml:"backlog_limit"`

	// RetryInterval is the initial delivery retry delay. Default: 250ms
	RetryInterval time.Duration `yaml:"retry_interval"`

	// AppendTimeout bounds one store delivery attempt. Default: 5s
	AppendTimeout time.Duration `yaml:"append_timeout"`

	// Retention contains chain pruning settings.
	Retention RetentionConfig `yaml:"retention"`
}

// SQLiteConfig contains sqlite store settings.
type SQLiteConfig struct {
	// Path is the database file location. Default: "data/audit.db"
	Path string `yaml:"path"`

	// MaxOpenConns limits open connections. Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns limits idle connections. Default: 5
	MaxIdleConns int `yaml:"max_idle_conns"`

	// BusyTimeout is the sqlite busy handler timeout. Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RetentionConfig contains chain pruning settings.
type RetentionConfig struct {
	// Enabled turns scheduled pruning on. Default: false
	Enabled bool `yaml:"enabled"`

	// Days is the minimum age before a record may be pruned. Default: 90
	Days int `yaml:"days"`

	// Schedule is a standard cron expression. Default: "0 3 * * *"
	Schedule string `yaml:"schedule"`

	// MinKeep is the number of newest records always retained.
	// Default: 1000
	MinKeep uint64 `yaml:"min_keep"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains structured logging settings.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics settings.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains structured logging settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error. Default: "info"
	Level string `yaml:"level"`

	// Format is "json" or "text". Default: "json"
	Format string `yaml:"format"`
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	// Enabled exposes /metrics. Default: true
	Enabled *bool `yaml:"enabled"`

	// Namespace prefixes every metric name. Default: "aegis"
	Namespace string `yaml:"namespace"`
}
