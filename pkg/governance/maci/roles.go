package maci

// Role is one of the seven fixed separation-of-powers roles. The set is
// closed: there is no default or guest role, and an unrecognized role is
// always denied.
type Role int

const (
	// RoleExecutive initiates and executes governed operations.
	RoleExecutive Role = iota

	// RoleLegislative maintains the rule and configuration surface.
	RoleLegislative

	// RoleJudicial validates decisions and arbitrates disputes.
	RoleJudicial

	// RoleMonitor observes traffic and co-signs high-impact decisions.
	RoleMonitor

	// RoleAuditor verifies the audit chain and co-signs high-impact decisions.
	RoleAuditor

	// RoleController performs operator actions such as mode relaxation.
	RoleController

	// RoleImplementer carries out approved operations.
	RoleImplementer

	numRoles
)

// String returns the canonical role name.
func (r Role) String() string {
	switch r {
	case RoleExecutive:
		return "executive"
	case RoleLegislative:
		return "legislative"
	case RoleJudicial:
		return "judicial"
	case RoleMonitor:
		return "monitor"
	case RoleAuditor:
		return "auditor"
	case RoleController:
		return "controller"
	case RoleImplementer:
		return "implementer"
	default:
		return "unknown"
	}
}

// ParseRole resolves a canonical role name. The boolean is false for any
// name outside the fixed set.
func ParseRole(s string) (Role, bool) {
	switch s {
	case "executive":
		return RoleExecutive, true
	case "legislative":
		return RoleLegislative, true
	case "judicial":
		return RoleJudicial, true
	case "monitor":
		return RoleMonitor, true
	case "auditor":
		return RoleAuditor, true
	case "controller":
		return RoleController, true
	case "implementer":
		return RoleImplementer, true
	default:
		return 0, false
	}
}

// Roles returns all seven roles.
func Roles() []Role {
	return []Role{
		RoleExecutive, RoleLegislative, RoleJudicial, RoleMonitor,
		RoleAuditor, RoleController, RoleImplementer,
	}
}

// Permission is a governed capability.
type Permission string

const (
	// PermValidate signs off on governance decisions.
	PermValidate Permission = "validate"

	// PermAudit reads and verifies the audit chain.
	PermAudit Permission = "audit"

	// PermQuery reads decisions and metrics.
	PermQuery Permission = "query"

	// PermPropose submits rule or configuration proposals.
	PermPropose Permission = "propose"

	// PermExecute carries out governed operations.
	PermExecute Permission = "execute"

	// PermConfigure changes the governance configuration surface.
	PermConfigure Permission = "configure"

	// PermEmergencyCooldown triggers an emergency traffic cooldown.
	PermEmergencyCooldown Permission = "emergency_cooldown"

	// PermRelaxMode performs the explicit operator mode de-escalation.
	PermRelaxMode Permission = "relax_mode"
)

// Validating reports whether the permission signs off on a decision about a
// subject, which is where the no-self-validation rule applies.
func (p Permission) Validating() bool {
	return p == PermValidate || p == PermAudit
}

// permissions returns the fixed permission set for a role. The matrix is
// compile-time data; nothing can extend it at runtime.
func (r Role) permissions() map[Permission]struct{} {
	switch r {
	case RoleExecutive:
		return permSet(PermExecute, PermPropose, PermQuery)
	case RoleLegislative:
		return permSet(PermConfigure, PermPropose, PermQuery)
	case RoleJudicial:
		return permSet(PermValidate, PermAudit, PermQuery, PermEmergencyCooldown)
	case RoleMonitor:
		return permSet(PermValidate, PermQuery, PermAudit)
	case RoleAuditor:
		return permSet(PermValidate, PermAudit, PermQuery)
	case RoleController:
		return permSet(PermConfigure, PermRelaxMode, PermEmergencyCooldown, PermQuery)
	case RoleImplementer:
		return permSet(PermExecute, PermQuery)
	default:
		return nil
	}
}

// Has reports whether the role's fixed permission set includes perm.
func (r Role) Has(perm Permission) bool {
	_, ok := r.permissions()[perm]
	return ok
}

func permSet(perms ...Permission) map[Permission]struct{} {
	set := make(map[Permission]struct{}, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}
