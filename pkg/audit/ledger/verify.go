package ledger

import (
	"context"
	"errors"
	"fmt"

	"mercator-hq/aegis/pkg/audit"
)

// VerifyChain recomputes the hash chain for records with
// fromSeq <= seq < toSeq against the store. It returns true when every
// record's hash recomputes from its canonical form and its predecessor.
//
// A chain whose oldest records were removed by retention still verifies:
// when the predecessor of the first surviving record is absent, that
// record's stored PrevHash becomes the anchor instead of the genesis hash.
// A missing record whose predecessor survives is still a gap.
//
// On the first mismatch it returns false together with the offending
// sequence number; err is reserved for store failures, not tampering.
func (l *Ledger) VerifyChain(ctx context.Context, fromSeq, toSeq uint64) (bool, uint64, error) {
	if toSeq <= fromSeq {
		return true, 0, nil
	}

	records, err := l.store.Range(ctx, fromSeq, toSeq)
	if err != nil {
		return false, 0, err
	}

	expect := fromSeq
	prevHash := audit.GenesisHash
	if len(records) > 0 {
		head := records[0]
		switch {
		case head.Seq > expect:
			// Everything below the surviving head is gone. If fromSeq has a
			// surviving predecessor the absence is a gap, not a prune.
			if fromSeq > 0 {
				if _, err := l.store.Get(ctx, fromSeq-1); err == nil {
					return false, expect, nil
				} else if !errors.Is(err, audit.ErrNotFound) {
					return false, 0, fmt.Errorf("loading predecessor of seq %d: %w", fromSeq, err)
				}
			}
			expect = head.Seq
			prevHash = head.PrevHash
		case fromSeq > 0:
			prev, err := l.store.Get(ctx, fromSeq-1)
			switch {
			case err == nil:
				prevHash = prev.Hash
			case errors.Is(err, audit.ErrNotFound):
				prevHash = head.PrevHash
			default:
				return false, 0, fmt.Errorf("loading predecessor of seq %d: %w", fromSeq, err)
			}
		}
	}

	for _, rec := range records {
		// A gap in sequence numbers is itself evidence of tampering: the
		// chain is append-only and strictly monotonic.
		if rec.Seq != expect {
			return false, expect, nil
		}
		if !rec.VerifyAgainst(prevHash) {
			return false, rec.Seq, nil
		}
		prevHash = rec.Hash
		expect++
	}

	// Records missing at the tail of the requested range.
	if expect < toSeq {
		// The requested range may simply extend past the chain head; only
		// flag a gap when later records exist.
		if _, err := l.store.Get(ctx, expect); err == nil {
			return false, expect, nil
		}
		last, err := l.store.Last(ctx)
		if err != nil {
			return false, 0, err
		}
		if last != nil && last.Seq >= expect {
			return false, expect, nil
		}
	}
	return true, 0, nil
}
