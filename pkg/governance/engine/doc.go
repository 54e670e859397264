// Package engine orchestrates governance evaluation: constitutional hash
// verification, impact scoring, threshold lookup, role validation, the
// optional external policy check, action derivation, and the audit append.
//
// One Engine is constructed at process start and passed by handle to every
// caller. All errors below fatal are absorbed into a well-formed DENY or
// ESCALATE decision plus an audit entry; callers only see hard errors for
// infrastructure conditions (hash mismatch, audit backlog exhaustion).
package engine
