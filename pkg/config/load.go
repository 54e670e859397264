package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any
// errors. Environment variables are not consulted; use
// LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and
// applies environment variable overrides. Variables follow the naming
// convention AEGIS_SECTION_FIELD (e.g., AEGIS_SERVER_LISTEN_ADDRESS) and
// always take precedence over file values.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}
	return cfg, nil
}

// DefaultLoadedConfig returns a fully defaulted configuration without a
// file, with environment overrides applied. Used when no config path is
// given.
func DefaultLoadedConfig() (*Config, error) {
	var cfg Config
	ApplyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Variables use the format AEGIS_SECTION_FIELD.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	if val := os.Getenv("AEGIS_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	if val := os.Getenv("AEGIS_SERVER_API_KEYS"); val != "" {
		keys := strings.Split(val, ",")
		for i := range keys {
			keys[i] = strings.TrimSpace(keys[i])
		}
		cfg.Server.APIKeys = keys
	}
	if val := os.Getenv("AEGIS_SERVER_SHUTDOWN_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ShutdownTimeout = d
		}
	}

	// Governance overrides
	if val := os.Getenv("AEGIS_GOVERNANCE_POLICY_FLOOR"); val != "" {
		cfg.Governance.PolicyFloor = strings.ToUpper(val)
	}
	if val := os.Getenv("AEGIS_GOVERNANCE_FATAL_ON_RUNTIME_MISMATCH"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Governance.FatalOnRuntimeMismatch = &b
		}
	}

	// Escalation overrides
	if val := os.Getenv("AEGIS_ESCALATION_WINDOW"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Escalation.Window = d
		}
	}
	if val := os.Getenv("AEGIS_ESCALATION_HIGH_RATE"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Escalation.HighRate = f
		}
	}
	if val := os.Getenv("AEGIS_ESCALATION_MIN_SAMPLES"); val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			cfg.Escalation.MinSamples = n
		}
	}

	// Policy overrides
	if val := os.Getenv("AEGIS_POLICY_ENDPOINT"); val != "" {
		cfg.Policy.Endpoint = val
	}
	if val := os.Getenv("AEGIS_POLICY_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Policy.Timeout = d
		}
	}

	// Audit overrides
	if val := os.Getenv("AEGIS_AUDIT_BACKEND"); val != "" {
		cfg.Audit.Backend = val
	}
	if val := os.Getenv("AEGIS_AUDIT_SQLITE_PATH"); val != "" {
		cfg.Audit.SQLite.Path = val
	}
	if val := os.Getenv("AEGIS_AUDIT_BACKLOG_LIMIT"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Audit.BacklogLimit = n
		}
	}

	// Telemetry overrides
	if val := os.Getenv("AEGIS_TELEMETRY_LOG_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("AEGIS_TELEMETRY_LOG_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
}
