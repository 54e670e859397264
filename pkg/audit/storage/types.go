package storage

import (
	"context"

	"mercator-hq/aegis/pkg/audit"
)

// Store is the durable, append-only backend the ledger forwards sealed
// records to. Implementations must be safe for concurrent use.
//
// Append must be idempotent under redelivery: re-appending a sequence
// number that is already stored with the same hash succeeds without
// duplicating; a conflicting hash for an existing sequence number is an
// error (the chain never rewrites).
type Store interface {
	// Append persists a sealed record.
	Append(ctx context.Context, record *audit.Record) error

	// Get returns the record at seq, or audit.ErrNotFound.
	Get(ctx context.Context, seq uint64) (*audit.Record, error)

	// Range returns records with fromSeq <= seq < toSeq in sequence order.
	Range(ctx context.Context, fromSeq, toSeq uint64) ([]*audit.Record, error)

	// Last returns the highest-sequenced record, or nil if the chain is empty.
	Last(ctx context.Context) (*audit.Record, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (uint64, error)

	// DeleteBelow removes records with seq < belowSeq, returning how many
	// were removed. Used by retention pruning only.
	DeleteBelow(ctx context.Context, belowSeq uint64) (uint64, error)

	// Close releases resources held by the store.
	Close() error
}
