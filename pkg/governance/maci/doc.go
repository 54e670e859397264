// Package maci implements the seven-role separation-of-powers model
// (Executive, Legislative, Judicial, Monitor, Auditor, Controller,
// Implementer) used to validate governance decisions.
//
// The role set and each role's permission set are closed, compile-time
// data: there is no guest role, no fallback, and no runtime extension
// point. Lookup failures of any kind resolve to DENY.
//
// Two rules are enforced independently of the external policy engine:
//
//   - No self-validation: an actor never validates a decision whose
//     subject is itself, regardless of role.
//   - Quorum: CRITICAL decisions require sign-off from a configured number
//     of distinct roles drawn from the quorum set; a lone signer yields a
//     quorum_not_met denial, never a silent downgrade.
package maci
