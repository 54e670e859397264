package scoring

import (
	"mercator-hq/aegis/pkg/governance"
)

// Context carries the signals about sender and recipients that the scorer
// combines with the message's structural signals. It is assembled per
// evaluation, typically from the AgentDirectory, and not persisted.
type Context struct {
	// TrustKnown reports whether the sender's trust tier could be resolved.
	// When false the scorer fails closed and assigns the maximum score.
	TrustKnown bool

	// TrustTier is the sender's trust tier, 0 (untrusted) through
	// MaxTier (system). Only meaningful when TrustKnown is true.
	TrustTier int

	// ViolationRate is the sender's rolling violation rate in [0,1]:
	// the fraction of this sender's recent evaluations that ended in a
	// restrictive action.
	ViolationRate float64

	// RecipientCriticality is the highest criticality tier among the
	// message's recipients, 0 (low) through MaxTier (critical
	// infrastructure).
	RecipientCriticality int
}

// MaxTier is the top trust/criticality tier.
const MaxTier = 3

// Features is the derived signal vector behind one score. It exists so
// audits can reproduce why a score came out as it did; it is not persisted
// beyond the decision.
type Features struct {
	// PayloadSize is the raw payload length in bytes.
	PayloadSize int `json:"payload_size"`

	// PayloadWeight is the normalized payload-size signal in [0,1].
	PayloadWeight float64 `json:"payload_weight"`

	// CriticalityWeight is the normalized recipient-criticality signal.
	CriticalityWeight float64 `json:"criticality_weight"`

	// DistrustWeight is the normalized sender-distrust signal.
	DistrustWeight float64 `json:"distrust_weight"`

	// ViolationWeight is the sender's rolling violation rate.
	ViolationWeight float64 `json:"violation_weight"`
}

// Strategy computes a numeric impact score in [0,1] from a message and its
// context. Implementations must be deterministic: identical inputs always
// produce identical scores, so audits are reproducible. The exact weighting
// formula is an implementation detail; callers rely only on determinism,
// the [0,1] range, and monotonicity in each signal.
type Strategy interface {
	Score(msg *governance.AgentMessage, sctx Context) (float64, Features)
}
