// Package policy adapts an external OPA-style policy-decision service for
// supplementary authorization. The adapter is a collaborator boundary: it
// never makes governance decisions itself, and on timeout or
// unavailability it fails closed by reporting a typed UnavailableError the
// engine maps to ESCALATE/DENY.
package policy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Input is a policy check request.
type Input struct {
	// Subject is the acting party (sender agent id).
	Subject string `json:"subject"`

	// Action is the governed operation (the message intent).
	Action string `json:"action"`

	// Resource identifies what is acted on (recipient set).
	Resource string `json:"resource"`

	// Context carries supplementary attributes (impact level, mode).
	Context map[string]string `json:"context,omitempty"`
}

// Result is an explicit policy verdict. An explicit deny is a governance
// outcome; it is distinct from the service being unreachable.
type Result struct {
	// Allow is the service's verdict.
	Allow bool `json:"allow"`

	// Reason explains a deny.
	Reason string `json:"reason,omitempty"`
}

// UnavailableError indicates the policy service could not produce a
// verdict: timeout, connection failure, or a malformed/5xx response. It is
// distinguishable from an explicit deny so the engine can apply its
// fail-closed ESCALATE/DENY mapping and log a degraded-mode event.
type UnavailableError struct {
	Endpoint string
	Cause    error
}

// Error implements the error interface.
func (e *UnavailableError) Error() string {
	return fmt.Sprintf("policy service unavailable [endpoint=%s]: %v", e.Endpoint, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *UnavailableError) Unwrap() error {
	return e.Cause
}

// IsUnavailable reports whether err is a policy-service availability
// failure rather than an explicit verdict.
func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}

// Config contains configuration for the policy client.
type Config struct {
	// Endpoint is the decision URL (e.g. http://opa:8181/v1/data/aegis/allow).
	Endpoint string `yaml:"endpoint"`

	// Timeout bounds one check round-trip. Default: 500ms; the engine's
	// latency budget depends on this staying small.
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultConfig returns the default policy client configuration.
func DefaultConfig() *Config {
	return &Config{
		Timeout: 500 * time.Millisecond,
	}
}

// Client calls the external policy-decision service.
type Client struct {
	config *Config
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a policy client. An empty endpoint produces a client
// whose Check always reports unavailability, which the engine treats as
// fail-closed.
func NewClient(config *Config) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Timeout <= 0 {
		config.Timeout = 500 * time.Millisecond
	}
	return &Client{
		config: config,
		http:   &http.Client{Timeout: config.Timeout},
		logger: slog.Default().With("component", "policy.client"),
	}
}

// Check asks the service for a verdict on the input. It returns:
//   - (*Result, nil) for an explicit allow or deny
//   - (nil, *UnavailableError) when no verdict could be obtained
func (c *Client) Check(ctx context.Context, input *Input) (*Result, error) {
	if c.config.Endpoint == "" {
		return nil, &UnavailableError{Endpoint: "", Cause: errors.New("no endpoint configured")}
	}

	body, err := json.Marshal(map[string]*Input{"input": input})
	if err != nil {
		return nil, &UnavailableError{Endpoint: c.config.Endpoint, Cause: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &UnavailableError{Endpoint: c.config.Endpoint, Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("policy service unreachable",
			"endpoint", c.config.Endpoint,
			"error", err,
		)
		return nil, &UnavailableError{Endpoint: c.config.Endpoint, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &UnavailableError{
			Endpoint: c.config.Endpoint,
			Cause:    fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	var envelope struct {
		Result *Result `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, &UnavailableError{Endpoint: c.config.Endpoint, Cause: err}
	}
	if envelope.Result == nil {
		return nil, &UnavailableError{
			Endpoint: c.config.Endpoint,
			Cause:    errors.New("response carried no result"),
		}
	}
	return envelope.Result, nil
}
