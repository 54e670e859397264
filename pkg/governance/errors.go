package governance

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions callers branch on with errors.Is.
var (
	// ErrHashMismatch indicates a constitutional hash token did not match
	// the compiled-in constant. This is fatal: at startup the process must
	// not come up, at runtime the engine shuts down after auditing the call.
	ErrHashMismatch = errors.New("constitutional hash mismatch")

	// ErrUnavailable indicates governance cannot currently issue decisions
	// (audit backlog exhausted). Callers must treat the message as not
	// evaluated, never as allowed.
	ErrUnavailable = errors.New("governance unavailable")

	// ErrUnknownDecision indicates feedback referenced a decision id the
	// engine has no record of.
	ErrUnknownDecision = errors.New("unknown decision id")
)

// DenialKind classifies why a permission check failed.
type DenialKind string

const (
	// DenialUnknownActor means the actor has no registered role binding.
	DenialUnknownActor DenialKind = "unknown_actor"

	// DenialUnknownRole means the named role is not one of the seven fixed roles.
	DenialUnknownRole DenialKind = "unknown_role"

	// DenialSelfValidation means the actor attempted to validate a decision
	// about itself.
	DenialSelfValidation DenialKind = "self_validation"

	// DenialNotPermitted means the role's permission set does not include
	// the requested action.
	DenialNotPermitted DenialKind = "not_permitted"

	// DenialQuorumNotMet means a CRITICAL decision lacked the required
	// number of distinct quorum roles.
	DenialQuorumNotMet DenialKind = "quorum_not_met"
)

// DenialError describes a failed permission check. Denials are surfaced to
// callers as a DENY decision, never as a bare error that would skip audit
// logging.
type DenialError struct {
	Kind    DenialKind // classification of the denial
	ActorID string     // acting party
	Role    string     // role the actor claimed, if any
	Detail  string     // human-readable context
}

// Error implements the error interface.
func (e *DenialError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("permission denied [kind=%s, actor=%s]: %s", e.Kind, e.ActorID, e.Detail)
	}
	return fmt.Sprintf("permission denied [kind=%s, actor=%s]", e.Kind, e.ActorID)
}

// NewDenialError creates a new DenialError.
func NewDenialError(kind DenialKind, actorID, role, detail string) *DenialError {
	return &DenialError{
		Kind:    kind,
		ActorID: actorID,
		Role:    role,
		Detail:  detail,
	}
}
