// Package hashguard enforces the constitutional hash invariant: every call
// into the governance engine carries a hash token that must equal the single
// compiled-in constant. A mismatch at startup prevents the process from
// coming up; a mismatch at runtime is a hard deny.
package hashguard

import (
	"crypto/subtle"
	"fmt"
	"log/slog"

	"mercator-hq/aegis/pkg/governance"
)

// ExpectedHash is the compiled-in constitutional hash constant. The
// environment-supplied value is validated against it exactly once at startup;
// nothing at runtime can override it.
const ExpectedHash = "cdc50a023c81a2a1a6c1de90c8f33df510cdeb95c4c5f1e8a741164dc9aaa521"

// Guard validates constitutional hash tokens. The zero value is not usable;
// construct with New.
type Guard struct {
	expected []byte
	logger   *slog.Logger
}

// New creates a Guard bound to the compiled-in constant.
func New() *Guard {
	return &Guard{
		expected: []byte(ExpectedHash),
		logger:   slog.Default().With("component", "governance.hashguard"),
	}
}

// VerifyStartup validates the environment-supplied hash against the
// compiled-in constant. It must be called once before the engine is
// constructed; a mismatch means the process must not come up.
func (g *Guard) VerifyStartup(token string) error {
	if err := g.Verify(token); err != nil {
		g.logger.Error("constitutional hash validation failed at startup")
		return fmt.Errorf("startup hash validation: %w", err)
	}
	g.logger.Info("constitutional hash validated")
	return nil
}

// Verify checks a per-call hash token. The comparison is constant-time so
// the token cannot be recovered through timing. A mismatch returns
// governance.ErrHashMismatch; the caller decides whether that is fatal.
func (g *Guard) Verify(token string) error {
	if subtle.ConstantTimeCompare([]byte(token), g.expected) != 1 {
		return governance.ErrHashMismatch
	}
	return nil
}
