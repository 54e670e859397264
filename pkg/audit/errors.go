package audit

import (
	"errors"
	"fmt"
)

// ErrBacklogExceeded indicates the ledger's local redelivery queue is full:
// the external store has been unavailable for long enough that accepting
// further records would risk unlogged decisions. Callers must stop issuing
// decisions until the backlog drains.
var ErrBacklogExceeded = errors.New("audit backlog exceeded")

// ErrNotFound indicates a requested sequence number has no record.
var ErrNotFound = errors.New("audit record not found")

// StoreError represents a failure in the audit chain store.
type StoreError struct {
	Backend   string // store backend ("sqlite", "memory")
	Operation string // operation that failed ("append", "range", ...)
	Cause     error  // underlying error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return fmt.Sprintf("audit store error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StoreError) Unwrap() error {
	return e.Cause
}

// NewStoreError creates a new StoreError.
func NewStoreError(backend, operation string, cause error) *StoreError {
	return &StoreError{
		Backend:   backend,
		Operation: operation,
		Cause:     cause,
	}
}

// ChainError reports a broken chain discovered during verification.
type ChainError struct {
	Seq   uint64 // first sequence number whose hash does not recompute
	Cause error
}

// Error implements the error interface.
func (e *ChainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("audit chain broken at seq %d: %v", e.Seq, e.Cause)
	}
	return fmt.Sprintf("audit chain broken at seq %d", e.Seq)
}

// Unwrap returns the underlying cause error.
func (e *ChainError) Unwrap() error {
	return e.Cause
}
