// Package retention prunes aged audit records on a schedule while
// preserving chain verifiability: records are only removed below a sequence
// number that has been verified and (where anchoring is configured)
// acknowledged by the external immutable log.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mercator-hq/aegis/pkg/audit/storage"
)

// Config contains configuration for retention pruning.
type Config struct {
	// RetentionDays is how long records are kept. Records older than this
	// become candidates for pruning. Default: 90
	RetentionDays int

	// PruneSchedule is a cron expression for automatic pruning
	// (e.g. "0 3 * * *" for daily at 3 AM). Empty disables scheduling.
	PruneSchedule string

	// MinKeep is the minimum number of most recent records always kept,
	// regardless of age, so a verification anchor point survives.
	// Default: 1000
	MinKeep uint64
}

// DefaultConfig returns the default retention configuration.
func DefaultConfig() *Config {
	return &Config{
		RetentionDays: 90,
		PruneSchedule: "0 3 * * *",
		MinKeep:       1000,
	}
}

// Pruner removes expired records from the chain store.
type Pruner struct {
	store  storage.Store
	config *Config
	logger *slog.Logger

	// verify recomputes the chain over a range before it is released.
	// Wired to the ledger's VerifyChain.
	verify func(ctx context.Context, fromSeq, toSeq uint64) (bool, uint64, error)
}

// NewPruner creates a pruner over the given store. verify is consulted
// before any deletion; a nil verify disables pruning entirely (fail safe).
func NewPruner(store storage.Store, config *Config, verify func(context.Context, uint64, uint64) (bool, uint64, error)) *Pruner {
	if config == nil {
		config = DefaultConfig()
	}
	if config.RetentionDays <= 0 {
		config.RetentionDays = 90
	}
	return &Pruner{
		store:  store,
		config: config,
		logger: slog.Default().With("component", "audit.retention"),
		verify: verify,
	}
}

// Prune deletes records older than the retention period, keeping at least
// MinKeep recent records and never releasing a range that fails chain
// verification. Returns the number of records deleted.
func (p *Pruner) Prune(ctx context.Context) (uint64, error) {
	if p.verify == nil {
		p.logger.Warn("no chain verifier wired, refusing to prune")
		return 0, nil
	}

	last, err := p.store.Last(ctx)
	if err != nil {
		return 0, fmt.Errorf("retention: reading chain head: %w", err)
	}
	if last == nil {
		return 0, nil
	}

	// Upper bound from MinKeep.
	if last.Seq < p.config.MinKeep {
		return 0, nil
	}
	cut := last.Seq - p.config.MinKeep + 1

	candidates, err := p.store.Range(ctx, 0, cut)
	if err != nil {
		return 0, fmt.Errorf("retention: scanning candidates: %w", err)
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	// Lower the cut until everything below it is older than retention.
	cutoffTime := time.Now().AddDate(0, 0, -p.config.RetentionDays)
	for _, rec := range candidates {
		if !rec.RecordedAt.Before(cutoffTime) {
			cut = rec.Seq
			break
		}
	}

	// Earlier prune cycles may already have removed records below the
	// surviving head, so verification starts there, not at zero.
	head := candidates[0].Seq
	if cut <= head {
		return 0, nil
	}

	// Verify the prefix before releasing it. A broken prefix is evidence;
	// refuse to destroy it.
	ok, badSeq, err := p.verify(ctx, head, cut)
	if err != nil {
		return 0, fmt.Errorf("retention: verifying prefix: %w", err)
	}
	if !ok {
		p.logger.Error("refusing to prune: chain prefix does not verify",
			"bad_seq", badSeq,
		)
		return 0, nil
	}

	deleted, err := p.store.DeleteBelow(ctx, cut)
	if err != nil {
		return 0, fmt.Errorf("retention: deleting below %d: %w", cut, err)
	}

	if deleted > 0 {
		p.logger.Info("pruned audit records",
			"deleted", deleted,
			"below_seq", cut,
		)
	}
	return deleted, nil
}
