package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"

	"mercator-hq/aegis/pkg/governance/maci"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// impactLevels are the level names accepted wherever a level is configured.
var impactLevels = map[string]bool{
	"MINIMAL": true, "LOW": true, "MODERATE": true, "HIGH": true, "CRITICAL": true,
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All validation errors are collected and
// returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateGovernance(&cfg.Governance)...)
	errs = append(errs, validateScoring(&cfg.Scoring)...)
	errs = append(errs, validateThresholds(&cfg.Thresholds)...)
	errs = append(errs, validateEscalation(&cfg.Escalation)...)
	errs = append(errs, validateMACI(&cfg.MACI)...)
	errs = append(errs, validatePolicy(&cfg.Policy)...)
	errs = append(errs, validateAudit(&cfg.Audit)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError
	if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: fmt.Sprintf("invalid address %q: %v", cfg.ListenAddress, err),
		})
	}
	for i, key := range cfg.APIKeys {
		if strings.TrimSpace(key) == "" {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("server.api_keys[%d]", i),
				Message: "API key must not be empty",
			})
		}
	}
	return errs
}

func validateGovernance(cfg *GovernanceConfig) []FieldError {
	var errs []FieldError
	if !impactLevels[cfg.PolicyFloor] {
		errs = append(errs, FieldError{
			Field:   "governance.policy_floor",
			Message: fmt.Sprintf("unknown impact level %q", cfg.PolicyFloor),
		})
	}
	if cfg.MaxTrackedDecisions < 0 {
		errs = append(errs, FieldError{
			Field:   "governance.max_tracked_decisions",
			Message: "must not be negative",
		})
	}
	return errs
}

func validateScoring(cfg *ScoringConfig) []FieldError {
	var errs []FieldError
	w := cfg.Weights
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"payload", w.Payload},
		{"criticality", w.Criticality},
		{"distrust", w.Distrust},
		{"violations", w.Violations},
	} {
		if f.value < 0 {
			errs = append(errs, FieldError{
				Field:   "scoring.weights." + f.name,
				Message: "must not be negative",
			})
		}
	}
	if w.Payload+w.Criticality+w.Distrust+w.Violations <= 0 {
		errs = append(errs, FieldError{
			Field:   "scoring.weights",
			Message: "weights must not all be zero",
		})
	}
	for id, tier := range cfg.TrustTiers {
		if tier < 0 || tier > 3 {
			errs = append(errs, FieldError{
				Field:   "scoring.trust_tiers." + id,
				Message: fmt.Sprintf("tier %d outside 0..3", tier),
			})
		}
	}
	for id, tier := range cfg.CriticalityTiers {
		if tier < 0 || tier > 3 {
			errs = append(errs, FieldError{
				Field:   "scoring.criticality_tiers." + id,
				Message: fmt.Sprintf("tier %d outside 0..3", tier),
			})
		}
	}
	if cfg.ViolationWindow < cfg.ViolationBucket {
		errs = append(errs, FieldError{
			Field:   "scoring.violation_window",
			Message: "must be at least one bucket long",
		})
	}
	return errs
}

func validateThresholds(cfg *ThresholdsConfig) []FieldError {
	var errs []FieldError
	for level, bounds := range cfg.Bounds {
		if !impactLevels[level] || level == "MINIMAL" {
			errs = append(errs, FieldError{
				Field:   "thresholds.bounds." + level,
				Message: "bounds apply to LOW, MODERATE, HIGH and CRITICAL only",
			})
			continue
		}
		if bounds.Min < 0 || bounds.Max > 1 || bounds.Min >= bounds.Max {
			errs = append(errs, FieldError{
				Field:   "thresholds.bounds." + level,
				Message: fmt.Sprintf("invalid range [%g,%g]: need 0 <= min < max <= 1", bounds.Min, bounds.Max),
			})
		}
	}
	if cfg.FeedbackStep <= 0 || cfg.FeedbackStep >= 0.5 {
		errs = append(errs, FieldError{
			Field:   "thresholds.feedback_step",
			Message: "must be in (0, 0.5)",
		})
	}
	if cfg.FalseNegativeFactor < 1 {
		errs = append(errs, FieldError{
			Field:   "thresholds.false_negative_factor",
			Message: "must be at least 1",
		})
	}
	return errs
}

func validateEscalation(cfg *EscalationConfig) []FieldError {
	var errs []FieldError
	if cfg.Window < cfg.Bucket {
		errs = append(errs, FieldError{
			Field:   "escalation.window",
			Message: "must be at least one bucket long",
		})
	}
	if cfg.HighRate <= 0 || cfg.HighRate > 1 {
		errs = append(errs, FieldError{
			Field:   "escalation.high_rate",
			Message: "must be in (0, 1]",
		})
	}
	if cfg.MinSamples <= 0 {
		errs = append(errs, FieldError{
			Field:   "escalation.min_samples",
			Message: "must be positive",
		})
	}
	return errs
}

func validateMACI(cfg *MACIConfig) []FieldError {
	var errs []FieldError
	for id, role := range cfg.Actors {
		if _, ok := maci.ParseRole(role); !ok {
			errs = append(errs, FieldError{
				Field:   "maci.actors." + id,
				Message: fmt.Sprintf("unknown role %q", role),
			})
		}
	}
	distinct := map[string]bool{}
	for i, role := range cfg.QuorumRoles {
		if _, ok := maci.ParseRole(role); !ok {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("maci.quorum_roles[%d]", i),
				Message: fmt.Sprintf("unknown role %q", role),
			})
			continue
		}
		distinct[role] = true
	}
	if cfg.QuorumSize < 2 {
		errs = append(errs, FieldError{
			Field:   "maci.quorum_size",
			Message: "CRITICAL quorum requires at least 2 distinct roles",
		})
	} else if len(distinct) > 0 && len(distinct) < cfg.QuorumSize {
		errs = append(errs, FieldError{
			Field:   "maci.quorum_roles",
			Message: fmt.Sprintf("%d distinct roles cannot satisfy quorum size %d", len(distinct), cfg.QuorumSize),
		})
	}
	return errs
}

func validatePolicy(cfg *PolicyConfig) []FieldError {
	var errs []FieldError
	if cfg.Endpoint != "" {
		u, err := url.Parse(cfg.Endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, FieldError{
				Field:   "policy.endpoint",
				Message: fmt.Sprintf("invalid URL %q", cfg.Endpoint),
			})
		}
	}
	if cfg.Timeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "policy.timeout",
			Message: "must be positive",
		})
	}
	return errs
}

func validateAudit(cfg *AuditConfig) []FieldError {
	var errs []FieldError
	switch cfg.Backend {
	case "sqlite", "memory":
	default:
		errs = append(errs, FieldError{
			Field:   "audit.backend",
			Message: fmt.Sprintf("unknown backend %q (expected sqlite or memory)", cfg.Backend),
		})
	}
	if cfg.Backend == "sqlite" && cfg.SQLite.Path == "" {
		errs = append(errs, FieldError{
			Field:   "audit.sqlite.path",
			Message: "path is required for the sqlite backend",
		})
	}
	if cfg.BacklogLimit <= 0 {
		errs = append(errs, FieldError{
			Field:   "audit.backlog_limit",
			Message: "must be positive",
		})
	}
	if cfg.Retention.Enabled {
		if cfg.Retention.Days <= 0 {
			errs = append(errs, FieldError{
				Field:   "audit.retention.days",
				Message: "must be positive when retention is enabled",
			})
		}
		if _, err := cron.ParseStandard(cfg.Retention.Schedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "audit.retention.schedule",
				Message: fmt.Sprintf("invalid cron expression %q: %v", cfg.Retention.Schedule, err),
			})
		}
	}
	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("unknown level %q", cfg.Logging.Level),
		})
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("unknown format %q (expected json or text)", cfg.Logging.Format),
		})
	}
	if cfg.Metrics.Namespace == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.namespace",
			Message: "namespace must not be empty",
		})
	}
	return errs
}
