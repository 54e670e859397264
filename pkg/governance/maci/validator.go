package maci

import (
	"fmt"
	"log/slog"
	"sync"

	"mercator-hq/aegis/pkg/governance"
)

// Config contains configuration for the role validator.
type Config struct {
	// Actors maps actor id to role name. An actor holds exactly one active
	// role; actors not listed here are denied everything.
	Actors map[string]string `yaml:"actors"`

	// QuorumRoles is the pool of role names whose members may co-sign a
	// CRITICAL decision. Default: judicial, auditor, monitor.
	QuorumRoles []string `yaml:"quorum_roles"`

	// QuorumSize is the number of distinct quorum roles a CRITICAL
	// decision requires. Default: 2.
	QuorumSize int `yaml:"quorum_size"`
}

// DefaultConfig returns the default validator configuration.
func DefaultConfig() *Config {
	return &Config{
		Actors:      map[string]string{},
		QuorumRoles: []string{"judicial", "auditor", "monitor"},
		QuorumSize:  2,
	}
}

// Validator enforces the fixed role-permission matrix, the
// no-self-validation rule, and cross-role quorum for CRITICAL decisions.
// All checks are read-only and safe to run concurrently; the actor registry
// is guarded for registration-time writes.
type Validator struct {
	config *Config
	logger *slog.Logger

	mu     sync.RWMutex
	actors map[string]Role

	quorum map[Role]struct{}
}

// NewValidator creates a validator from configuration. Actor bindings with
// unrecognized role names are rejected.
func NewValidator(config *Config) (*Validator, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.QuorumSize <= 0 {
		config.QuorumSize = 2
	}
	if len(config.QuorumRoles) == 0 {
		config.QuorumRoles = []string{"judicial", "auditor", "monitor"}
	}

	actors := make(map[string]Role, len(config.Actors))
	for id, name := range config.Actors {
		role, ok := ParseRole(name)
		if !ok {
			return nil, fmt.Errorf("actor %q bound to unknown role %q", id, name)
		}
		actors[id] = role
	}

	quorum := make(map[Role]struct{}, len(config.QuorumRoles))
	for _, name := range config.QuorumRoles {
		role, ok := ParseRole(name)
		if !ok {
			return nil, fmt.Errorf("quorum set contains unknown role %q", name)
		}
		quorum[role] = struct{}{}
	}
	if len(quorum) < config.QuorumSize {
		return nil, fmt.Errorf("quorum set has %d roles but quorum size is %d",
			len(quorum), config.QuorumSize)
	}

	return &Validator{
		config: config,
		logger: slog.Default().With("component", "governance.maci"),
		actors: actors,
		quorum: quorum,
	}, nil
}

// Register binds an actor to a role. Rebinding replaces the previous role;
// an actor holds exactly one role at a time.
func (v *Validator) Register(actorID string, role Role) error {
	if !role.valid() {
		return governance.NewDenialError(governance.DenialUnknownRole, actorID, role.String(), "cannot register unknown role")
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.actors[actorID] = role
	return nil
}

// RoleOf resolves an actor's registered role. Unknown actors are reported
// as a denial, never mapped to a default role.
func (v *Validator) RoleOf(actorID string) (Role, *governance.DenialError) {
	v.mu.RLock()
	role, ok := v.actors[actorID]
	v.mu.RUnlock()
	if !ok {
		return 0, governance.NewDenialError(governance.DenialUnknownActor, actorID, "", "no role binding")
	}
	return role, nil
}

// Authorize checks whether the actor, acting in the claimed role, may apply
// perm to the subject. It returns nil on ALLOW or a DenialError on DENY.
//
// The checks, in order:
//  1. the claimed role must be one of the seven fixed roles
//  2. the actor must be registered with exactly that role
//  3. no actor validates a decision about itself, regardless of role
//  4. the role's fixed permission set must include perm
func (v *Validator) Authorize(actorID string, role Role, perm Permission, subjectID string) *governance.DenialError {
	if !role.valid() {
		return governance.NewDenialError(governance.DenialUnknownRole, actorID, role.String(), "unknown role")
	}

	registered, denial := v.RoleOf(actorID)
	if denial != nil {
		return denial
	}
	if registered != role {
		return governance.NewDenialError(governance.DenialNotPermitted, actorID, role.String(),
			fmt.Sprintf("actor is registered as %s", registered))
	}

	if perm.Validating() && actorID == subjectID {
		v.logger.Warn("self-validation attempt blocked",
			"actor", actorID,
			"permission", string(perm),
		)
		return governance.NewDenialError(governance.DenialSelfValidation, actorID, role.String(),
			"actor cannot validate a decision about itself")
	}

	if !role.Has(perm) {
		return governance.NewDenialError(governance.DenialNotPermitted, actorID, role.String(),
			fmt.Sprintf("role %s lacks %s", role, perm))
	}
	return nil
}

// CheckQuorum verifies that a CRITICAL decision carries sign-off from at
// least QuorumSize distinct roles drawn from the quorum set. Signers is the
// set of (actorID, role) pairs that validated; roles outside the quorum set
// do not count, and two signers sharing a role count once.
func (v *Validator) CheckQuorum(signers map[string]Role) *governance.DenialError {
	distinct := make(map[Role]struct{})
	for _, role := range signers {
		if _, ok := v.quorum[role]; ok {
			distinct[role] = struct{}{}
		}
	}
	if len(distinct) < v.config.QuorumSize {
		return governance.NewDenialError(governance.DenialQuorumNotMet, "", "",
			fmt.Sprintf("critical decision has %d of %d required quorum roles",
				len(distinct), v.config.QuorumSize))
	}
	return nil
}

// QuorumSize returns the configured quorum size.
func (v *Validator) QuorumSize() int {
	return v.config.QuorumSize
}

func (r Role) valid() bool {
	return r >= 0 && r < numRoles
}
