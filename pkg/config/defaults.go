package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB

	// Governance defaults
	DefaultPolicyFloor         = "MODERATE"
	DefaultMaxTrackedDecisions = 10000

	// Scoring defaults
	DefaultViolationWindow = 15 * time.Minute
	DefaultViolationBucket = 10 * time.Second

	// Thresholds defaults
	DefaultFeedbackStep        = 0.01
	DefaultFalseNegativeFactor = 2.0
	DefaultBoundMin            = 0.05
	DefaultBoundMax            = 0.99

	// Escalation defaults
	DefaultEscalationWindow = 5 * time.Minute
	DefaultEscalationBucket = time.Second
	DefaultHighRate         = 0.5
	DefaultMinSamples       = 100

	// MACI defaults
	DefaultQuorumSize = 2

	// Policy defaults
	DefaultPolicyTimeout = 500 * time.Millisecond

	// Audit defaults
	DefaultAuditBackend      = "sqlite"
	DefaultSQLitePath        = "data/audit.db"
	DefaultSQLiteMaxOpen     = 10
	DefaultSQLiteMaxIdle     = 5
	DefaultSQLiteBusyTimeout = 5 * time.Second
	DefaultBacklogLimit      = 1000
	DefaultRetryInterval     = 250 * time.Millisecond
	DefaultAppendTimeout     = 5 * time.Second
	DefaultRetentionDays     = 90
	DefaultRetentionSchedule = "0 3 * * *"
	DefaultRetentionMinKeep  = 1000

	// Telemetry defaults
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "json"
	DefaultMetricsNamespace = "aegis"
)

// ApplyDefaults fills in default values for any unset configuration fields.
// It modifies the configuration in place.
func ApplyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applyGovernanceDefaults(&cfg.Governance)
	applyScoringDefaults(&cfg.Scoring)
	applyThresholdsDefaults(&cfg.Thresholds)
	applyEscalationDefaults(&cfg.Escalation)
	applyMACIDefaults(&cfg.MACI)
	applyPolicyDefaults(&cfg.Policy)
	applyAuditDefaults(&cfg.Audit)
	applyTelemetryDefaults(&cfg.Telemetry)
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.MaxHeaderBytes == 0 {
		cfg.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
}

func applyGovernanceDefaults(cfg *GovernanceConfig) {
	if cfg.PolicyFloor == "" {
		cfg.PolicyFloor = DefaultPolicyFloor
	}
	if cfg.FatalOnRuntimeMismatch == nil {
		v := true
		cfg.FatalOnRuntimeMismatch = &v
	}
	if cfg.MaxTrackedDecisions == 0 {
		cfg.MaxTrackedDecisions = DefaultMaxTrackedDecisions
	}
}

func applyScoringDefaults(cfg *ScoringConfig) {
	if cfg.Weights == (WeightsConfig{}) {
		cfg.Weights = WeightsConfig{
			Payload:     0.15,
			Criticality: 0.35,
			Distrust:    0.25,
			Violations:  0.25,
		}
	}
	if cfg.TrustTiers == nil {
		cfg.TrustTiers = map[string]int{}
	}
	if cfg.CriticalityTiers == nil {
		cfg.CriticalityTiers = map[string]int{}
	}
	if cfg.ViolationWindow == 0 {
		cfg.ViolationWindow = DefaultViolationWindow
	}
	if cfg.ViolationBucket == 0 {
		cfg.ViolationBucket = DefaultViolationBucket
	}
}

func applyThresholdsDefaults(cfg *ThresholdsConfig) {
	if cfg.Bounds == nil {
		cfg.Bounds = map[string]BoundsConfig{}
	}
	for _, level := range []string{"LOW", "MODERATE", "HIGH", "CRITICAL"} {
		if _, ok := cfg.Bounds[level]; !ok {
			cfg.Bounds[level] = BoundsConfig{Min: DefaultBoundMin, Max: DefaultBoundMax}
		}
	}
	if cfg.FeedbackStep == 0 {
		cfg.FeedbackStep = DefaultFeedbackStep
	}
	if cfg.FalseNegativeFactor == 0 {
		cfg.FalseNegativeFactor = DefaultFalseNegativeFactor
	}
}

func applyEscalationDefaults(cfg *EscalationConfig) {
	if cfg.Window == 0 {
		cfg.Window = DefaultEscalationWindow
	}
	if cfg.Bucket == 0 {
		cfg.Bucket = DefaultEscalationBucket
	}
	if cfg.HighRate == 0 {
		cfg.HighRate = DefaultHighRate
	}
	if cfg.MinSamples == 0 {
		cfg.MinSamples = DefaultMinSamples
	}
}

func applyMACIDefaults(cfg *MACIConfig) {
	if cfg.Actors == nil {
		cfg.Actors = map[string]string{}
	}
	if len(cfg.QuorumRoles) == 0 {
		cfg.QuorumRoles = []string{"judicial", "auditor", "monitor"}
	}
	if cfg.QuorumSize == 0 {
		cfg.QuorumSize = DefaultQuorumSize
	}
}

func applyPolicyDefaults(cfg *PolicyConfig) {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultPolicyTimeout
	}
}

func applyAuditDefaults(cfg *AuditConfig) {
	if cfg.Backend == "" {
		cfg.Backend = DefaultAuditBackend
	}
	if cfg.SQLite.Path == "" {
		cfg.SQLite.Path = DefaultSQLitePath
	}
	if cfg.SQLite.MaxOpenConns == 0 {
		cfg.SQLite.MaxOpenConns = DefaultSQLiteMaxOpen
	}
	if cfg.SQLite.MaxIdleConns == 0 {
		cfg.SQLite.MaxIdleConns = DefaultSQLiteMaxIdle
	}
	if cfg.SQLite.BusyTimeout == 0 {
		cfg.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}
	if cfg.BacklogLimit == 0 {
		cfg.BacklogLimit = DefaultBacklogLimit
	}
	if cfg.RetryInterval == 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}
	if cfg.AppendTimeout == 0 {
		cfg.AppendTimeout = DefaultAppendTimeout
	}
	if cfg.Retention.Days == 0 {
		cfg.Retention.Days = DefaultRetentionDays
	}
	if cfg.Retention.Schedule == "" {
		cfg.Retention.Schedule = DefaultRetentionSchedule
	}
	if cfg.Retention.MinKeep == 0 {
		cfg.Retention.MinKeep = DefaultRetentionMinKeep
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}
	if cfg.Metrics.Enabled == nil {
		v := true
		cfg.Metrics.Enabled = &v
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
}
