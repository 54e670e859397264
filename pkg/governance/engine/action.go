package engine

import (
	"mercator-hq/aegis/pkg/governance"
)

// deriveAction maps an impact level and the active governance mode to a
// baseline action. Stricter modes push every level toward denial:
// PERMISSIVE allows up through MODERATE, while LOCKDOWN denies everything
// above MINIMAL and quarantines CRITICAL traffic. Role denials and policy
// verdicts are layered on top of this table, never below it.
func deriveAction(level governance.ImpactLevel, mode governance.Mode) governance.Action {
	switch mode {
	case governance.ModePermissive:
		switch {
		case level <= governance.LevelModerate:
			return governance.ActionAllow
		case level == governance.LevelHigh:
			return governance.ActionEscalate
		default:
			return governance.ActionDeny
		}
	case governance.ModeStandard:
		switch {
		case level <= governance.LevelLow:
			return governance.ActionAllow
		case level == governance.LevelModerate:
			return governance.ActionEscalate
		default:
			return governance.ActionDeny
		}
	case governance.ModeStrict:
		switch {
		case level == governance.LevelMinimal:
			return governance.ActionAllow
		case level == governance.LevelLow:
			return governance.ActionEscalate
		case level == governance.LevelCritical:
			return governance.ActionQuarantine
		default:
			return governance.ActionDeny
		}
	default: // LOCKDOWN, and any unrecognized mode fails closed
		switch {
		case level == governance.LevelMinimal:
			return governance.ActionAllow
		case level == governance.LevelCritical:
			return governance.ActionQuarantine
		default:
			return governance.ActionDeny
		}
	}
}

// restrictive reports whether the action blocks delivery on its own.
func restrictive(a governance.Action) bool {
	return a == governance.ActionDeny || a == governance.ActionQuarantine
}
