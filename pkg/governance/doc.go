// Package governance defines the shared domain types for the Adaptive
// Governance Engine: agent messages, impact levels, governance modes,
// decisions, and the permission-denial error taxonomy.
//
// # Type Ordering
//
// ImpactLevel and Mode are integer-backed so that comparison operators
// express their total ordering directly:
//
//	if level >= governance.LevelHigh && mode >= governance.ModeStrict { ... }
//
// Parsing unknown level or mode names resolves to the strictest value
// (CRITICAL / LOCKDOWN) so that corrupted input can never weaken handling.
//
// # Error Propagation
//
// Everything below a fatal infrastructure failure is absorbed into a
// well-formed Decision (typically DENY) plus an audit record. Only
// ErrHashMismatch and ErrUnavailable propagate as hard errors to callers.
package governance
