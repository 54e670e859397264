package scoring

import (
	"log/slog"

	"mercator-hq/aegis/pkg/governance"
	"mercator-hq/aegis/pkg/governance/thresholds"
)

// Scorer evaluates a message's impact: numeric score, derived features, and
// the discrete level under a threshold snapshot. The scorer holds no mutable
// state of its own; evaluations are safe to run concurrently.
type Scorer struct {
	strategy Strategy
	logger   *slog.Logger
}

// NewScorer creates a scorer around the given strategy. A nil strategy
// selects the default weighted strategy.
func NewScorer(strategy Strategy) *Scorer {
	if strategy == nil {
		strategy = NewWeightedStrategy(DefaultWeights())
	}
	return &Scorer{
		strategy: strategy,
		logger:   slog.Default().With("component", "governance.scoring"),
	}
}

// Evaluate scores the message and maps the score to an impact level using
// the given threshold snapshot.
//
// If the sender's trust tier is unknown the score defaults to the maximum
// and the level to CRITICAL: missing context fails closed, never open.
func (s *Scorer) Evaluate(msg *governance.AgentMessage, sctx Context, snap *thresholds.Snapshot) (float64, Features, governance.ImpactLevel) {
	if !sctx.TrustKnown {
		s.logger.Warn("sender trust tier unavailable, failing closed",
			"message_id", msg.ID,
			"sender", msg.Sender,
		)
		return 1.0, Features{PayloadSize: len(msg.Payload)}, governance.LevelCritical
	}

	score, features := s.strategy.Score(msg, sctx)
	level := snap.LevelFor(score)

	s.logger.Debug("message scored",
		"message_id", msg.ID,
		"score", score,
		"level", level.String(),
		"mode", snap.Mode.String(),
	)
	return score, features, level
}
