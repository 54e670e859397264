package storage

import (
	"context"
	"fmt"
	"sync"

	"mercator-hq/aegis/pkg/audit"
)

// MemoryStore implements Store with an in-process map. It is intended for
// tests and for running without durable anchoring.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[uint64]*audit.Record
	lastSeq uint64
	hasAny  bool
}

// NewMemoryStore creates an empty in-memory chain store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[uint64]*audit.Record),
	}
}

// Append persists a sealed record. Redelivery of an identical record is a
// no-op; a conflicting hash at an existing sequence is rejected.
func (s *MemoryStore) Append(ctx context.Context, record *audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.records[record.Seq]; ok {
		if existing.Hash == record.Hash {
			return nil
		}
		return audit.NewStoreError("memory", "append",
			fmt.Errorf("seq %d already stored with a different hash", record.Seq))
	}

	cp := *record
	s.records[record.Seq] = &cp
	if !s.hasAny || record.Seq > s.lastSeq {
		s.lastSeq = record.Seq
		s.hasAny = true
	}
	return nil
}

// Get returns the record at seq.
func (s *MemoryStore) Get(ctx context.Context, seq uint64) (*audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[seq]
	if !ok {
		return nil, audit.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

// Range returns records with fromSeq <= seq < toSeq in order. Gaps are
// skipped; callers detect them through verification.
func (s *MemoryStore) Range(ctx context.Context, fromSeq, toSeq uint64) ([]*audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*audit.Record
	for seq := fromSeq; seq < toSeq; seq++ {
		if rec, ok := s.records[seq]; ok {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Last returns the highest-sequenced record, or nil for an empty chain.
func (s *MemoryStore) Last(ctx context.Context) (*audit.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.hasAny {
		return nil, nil
	}
	cp := *s.records[s.lastSeq]
	return &cp, nil
}

// Count returns the number of stored records.
func (s *MemoryStore) Count(ctx context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.records)), nil
}

// DeleteBelow removes records with seq < belowSeq.
func (s *MemoryStore) DeleteBelow(ctx context.Context, belowSeq uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted uint64
	for seq := range s.records {
		if seq < belowSeq {
			delete(s.records, seq)
			deleted++
		}
	}
	return deleted, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}

// Tamper overwrites a stored record's payload in place, bypassing the
// append-only rule. Test hook for chain verification; never part of Store.
func (s *MemoryStore) Tamper(seq uint64, mutate func(*audit.Record)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[seq]
	if !ok {
		return false
	}
	mutate(rec)
	return true
}
