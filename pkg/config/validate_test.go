package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	return &cfg
}

func TestValidate_Defaults(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Fatalf("Validate() failed on defaulted config: %v", err)
	}
}

func TestValidate_FieldErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{
			name:   "bad listen address",
			mutate: func(c *Config) { c.Server.ListenAddress = "no-port" },
			field:  "server.listen_address",
		},
		{
			name:   "empty api key",
			mutate: func(c *Config) { c.Server.APIKeys = []string{"ok", " "} },
			field:  "server.api_keys[1]",
		},
		{
			name:   "unknown policy floor",
			mutate: func(c *Config) { c.Governance.PolicyFloor = "SEVERE" },
			field:  "governance.policy_floor",
		},
		{
			name:   "trust tier out of range",
			mutate: func(c *Config) { c.Scoring.TrustTiers = map[string]int{"a": 9} },
			field:  "scoring.trust_tiers.a",
		},
		{
			name:   "all weights zero",
			mutate: func(c *Config) { c.Scoring.Weights = WeightsConfig{} },
			field:  "scoring.weights",
		},
		{
			name:   "bounds on MINIMAL",
			mutate: func(c *Config) { c.Thresholds.Bounds["MINIMAL"] = BoundsConfig{Min: 0.1, Max: 0.9} },
			field:  "thresholds.bounds.MINIMAL",
		},
		{
			name:   "inverted bounds",
			mutate: func(c *Config) { c.Thresholds.Bounds["HIGH"] = BoundsConfig{Min: 0.9, Max: 0.1} },
			field:  "thresholds.bounds.HIGH",
		},
		{
			name:   "feedback step too large",
			mutate: func(c *Config) { c.Thresholds.FeedbackStep = 0.6 },
			field:  "thresholds.feedback_step",
		},
		{
			name:   "high rate above one",
			mutate: func(c *Config) { c.Escalation.HighRate = 1.5 },
			field:  "escalation.high_rate",
		},
		{
			name:   "unknown actor role",
			mutate: func(c *Config) { c.MACI.Actors = map[string]string{"alice": "emperor"} },
			field:  "maci.actors.alice",
		},
		{
			name:   "quorum size below two",
			mutate: func(c *Config) { c.MACI.QuorumSize = 1 },
			field:  "maci.quorum_size",
		},
		{
			name:   "quorum roles too few",
			mutate: func(c *Config) { c.MACI.QuorumRoles = []string{"judicial"} },
			field:  "maci.quorum_roles",
		},
		{
			name:   "bad policy endpoint",
			mutate: func(c *Config) { c.Policy.Endpoint = "not a url" },
			field:  "policy.endpoint",
		},
		{
			name:   "unknown audit backend",
			mutate: func(c *Config) { c.Audit.Backend = "postgres" },
			field:  "audit.backend",
		},
		{
			name: "bad retention schedule",
			mutate: func(c *Config) {
				c.Audit.Retention.Enabled = true
				c.Audit.Retention.Schedule = "every day at 3"
			},
			field: "audit.retention.schedule",
		},
		{
			name:   "unknown log level",
			mutate: func(c *Config) { c.Telemetry.Logging.Level = "verbose" },
			field:  "telemetry.logging.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("Validate() passed, want field error")
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q does not mention field %q", err.Error(), tt.field)
			}
		})
	}
}

func TestValidationError_MultipleErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Server.ListenAddress = "bad"
	cfg.Audit.Backend = "postgres"

	err := Validate(cfg)
	verr, ok := err.(ValidationError)
	if !ok {
		t.Fatalf("error type = %T, want ValidationError", err)
	}
	if len(verr.Errors) != 2 {
		t.Errorf("error count = %d, want 2", len(verr.Errors))
	}
	if !strings.Contains(verr.Error(), "2 errors") {
		t.Errorf("aggregate message %q should count errors", verr.Error())
	}
}
