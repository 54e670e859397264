package scoring

import (
	"math"

	"mercator-hq/aegis/pkg/governance"
)

// Weights configures the relative contribution of each signal to the
// weighted score. Weights are normalized at construction, so only their
// ratios matter.
type Weights struct {
	Payload     float64 `yaml:"payload"`
	Criticality float64 `yaml:"criticality"`
	Distrust    float64 `yaml:"distrust"`
	Violations  float64 `yaml:"violations"`
}

// DefaultWeights returns the default signal weights. Recipient criticality
// and sender history dominate; payload size is a weak signal.
func DefaultWeights() Weights {
	return Weights{
		Payload:     0.15,
		Criticality: 0.35,
		Distrust:    0.25,
		Violations:  0.25,
	}
}

// WeightedStrategy is the default scoring strategy: a normalized weighted
// sum of four bounded signals. It is deterministic and monotone in each
// signal: a higher recipient criticality, lower trust tier, higher violation
// rate, or larger payload never yields a lower score.
type WeightedStrategy struct {
	w Weights

	// payloadKnee is the payload size (bytes) at which the payload signal
	// reaches half scale.
	payloadKnee float64
}

// NewWeightedStrategy creates the default strategy. Zero or negative weights
// fall back to the defaults.
func NewWeightedStrategy(w Weights) *WeightedStrategy {
	sum := w.Payload + w.Criticality + w.Distrust + w.Violations
	if sum <= 0 {
		w = DefaultWeights()
		sum = w.Payload + w.Criticality + w.Distrust + w.Violations
	}
	// Normalize so the score stays in [0,1].
	w.Payload /= sum
	w.Criticality /= sum
	w.Distrust /= sum
	w.Violations /= sum

	return &WeightedStrategy{w: w, payloadKnee: 64 * 1024}
}

// Score implements Strategy.
func (s *WeightedStrategy) Score(msg *governance.AgentMessage, sctx Context) (float64, Features) {
	f := Features{
		PayloadSize:       len(msg.Payload),
		PayloadWeight:     s.payloadSignal(len(msg.Payload)),
		CriticalityWeight: tierSignal(sctx.RecipientCriticality),
		DistrustWeight:    1 - tierSignal(sctx.TrustTier),
		ViolationWeight:   clamp01(sctx.ViolationRate),
	}

	score := s.w.Payload*f.PayloadWeight +
		s.w.Criticality*f.CriticalityWeight +
		s.w.Distrust*f.DistrustWeight +
		s.w.Violations*f.ViolationWeight

	return clamp01(score), f
}

// payloadSignal maps a payload size to [0,1) with diminishing returns:
// size/(size+knee). Strictly increasing in size.
func (s *WeightedStrategy) payloadSignal(size int) float64 {
	if size <= 0 {
		return 0
	}
	return float64(size) / (float64(size) + s.payloadKnee)
}

// tierSignal maps a tier in [0, MaxTier] to [0,1].
func tierSignal(tier int) float64 {
	if tier < 0 {
		tier = 0
	}
	if tier > MaxTier {
		tier = MaxTier
	}
	return float64(tier) / float64(MaxTier)
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}
