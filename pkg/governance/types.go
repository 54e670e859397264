package governance

import (
	"encoding/json"
	"time"
)

// ImpactLevel is the discretized risk tier assigned to a message.
// Levels are totally ordered: MINIMAL < LOW < MODERATE < HIGH < CRITICAL.
type ImpactLevel int

const (
	// LevelMinimal indicates negligible impact (routine traffic).
	LevelMinimal ImpactLevel = iota

	// LevelLow indicates low impact.
	LevelLow

	// LevelModerate indicates moderate impact requiring policy review.
	LevelModerate

	// LevelHigh indicates high impact.
	LevelHigh

	// LevelCritical indicates critical impact requiring multi-role quorum.
	LevelCritical
)

// String returns the canonical upper-case name of the level.
func (l ImpactLevel) String() string {
	switch l {
	case LevelMinimal:
		return "MINIMAL"
	case LevelLow:
		return "LOW"
	case LevelModerate:
		return "MODERATE"
	case LevelHigh:
		return "HIGH"
	case LevelCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ParseImpactLevel parses a canonical level name. Unknown names resolve to
// LevelCritical so that a corrupted level can never weaken handling.
func ParseImpactLevel(s string) ImpactLevel {
	switch s {
	case "MINIMAL":
		return LevelMinimal
	case "LOW":
		return LevelLow
	case "MODERATE":
		return LevelModerate
	case "HIGH":
		return LevelHigh
	case "CRITICAL":
		return LevelCritical
	default:
		return LevelCritical
	}
}

// MarshalJSON encodes the level as its canonical name.
func (l ImpactLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON decodes a canonical level name; unknown names resolve to
// CRITICAL.
func (l *ImpactLevel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*l = ParseImpactLevel(s)
	return nil
}

// Levels returns all impact levels in ascending strictness order.
func Levels() []ImpactLevel {
	return []ImpactLevel{LevelMinimal, LevelLow, LevelModerate, LevelHigh, LevelCritical}
}

// Mode is the system-wide governance posture.
// Modes are totally ordered by strictness: PERMISSIVE < STANDARD < STRICT < LOCKDOWN.
type Mode int

const (
	// ModePermissive favors throughput; only high-impact traffic is restricted.
	ModePermissive Mode = iota

	// ModeStandard is the initial operating posture.
	ModeStandard

	// ModeStrict tightens every action mapping by one notch.
	ModeStrict

	// ModeLockdown denies everything above minimal impact.
	ModeLockdown
)

// String returns the canonical upper-case name of the mode.
func (m Mode) String() string {
	switch m {
	case ModePermissive:
		return "PERMISSIVE"
	case ModeStandard:
		return "STANDARD"
	case ModeStrict:
		return "STRICT"
	case ModeLockdown:
		return "LOCKDOWN"
	default:
		return "UNKNOWN"
	}
}

// ParseMode parses a canonical mode name. Unknown names resolve to
// ModeLockdown, the strictest posture.
func ParseMode(s string) Mode {
	switch s {
	case "PERMISSIVE":
		return ModePermissive
	case "STANDARD":
		return ModeStandard
	case "STRICT":
		return ModeStrict
	case "LOCKDOWN":
		return ModeLockdown
	default:
		return ModeLockdown
	}
}

// MarshalJSON encodes the mode as its canonical name.
func (m Mode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON decodes a canonical mode name; unknown names resolve to
// LOCKDOWN.
func (m *Mode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*m = ParseMode(s)
	return nil
}

// Modes returns all governance modes in ascending strictness order.
func Modes() []Mode {
	return []Mode{ModePermissive, ModeStandard, ModeStrict, ModeLockdown}
}

// Action is the outcome of a governance evaluation.
type Action string

const (
	// ActionAllow permits delivery of the message.
	ActionAllow Action = "ALLOW"

	// ActionEscalate routes the message to human/secondary review.
	ActionEscalate Action = "ESCALATE"

	// ActionDeny rejects the message.
	ActionDeny Action = "DENY"

	// ActionQuarantine rejects the message and isolates the sender's traffic.
	ActionQuarantine Action = "QUARANTINE"
)

// Outcome is post-hoc feedback on a decision, used to tune thresholds.
type Outcome string

const (
	// OutcomeCorrect confirms the decision was right.
	OutcomeCorrect Outcome = "correct"

	// OutcomeFalsePositive means traffic was restricted that should have passed.
	OutcomeFalsePositive Outcome = "false_positive"

	// OutcomeFalseNegative means traffic passed that should have been restricted.
	OutcomeFalseNegative Outcome = "false_negative"
)

// Valid reports whether the outcome is one of the recognized values.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeCorrect, OutcomeFalsePositive, OutcomeFalseNegative:
		return true
	}
	return false
}

// AgentMessage is a single unit of inter-agent communication submitted for
// evaluation. Messages are immutable once submitted; the engine never
// modifies the payload.
type AgentMessage struct {
	// ID uniquely identifies the message (assigned by the sender).
	ID string `json:"id"`

	// Sender is the submitting agent's identifier.
	Sender string `json:"sender"`

	// Recipients are the destination agent identifiers.
	Recipients []string `json:"recipients"`

	// Intent is the declared message type/intent (e.g., "task.assign").
	Intent string `json:"intent"`

	// Payload is the opaque message body.
	Payload []byte `json:"payload"`

	// Timestamp is when the sender created the message.
	Timestamp time.Time `json:"timestamp"`
}

// Decision is the immutable outcome of one governance evaluation.
type Decision struct {
	// ID uniquely identifies this decision (UUID v4).
	ID string `json:"id"`

	// MessageID is the evaluated message's identifier.
	MessageID string `json:"message_id"`

	// Score is the numeric impact score in [0,1] that produced Level.
	Score float64 `json:"score"`

	// Level is the discretized impact tier.
	Level ImpactLevel `json:"level"`

	// Mode is the governance posture the decision was made under.
	Mode Mode `json:"mode"`

	// Action is the final governed outcome.
	Action Action `json:"action"`

	// Reason explains restrictive actions (empty for plain ALLOW).
	Reason string `json:"reason,omitempty"`

	// ValidatingRoles are the distinct roles that signed off on the decision.
	// CRITICAL decisions carry at least two.
	ValidatingRoles []string `json:"validating_roles"`

	// ConstitutionalHash is the process-wide invariant token the decision
	// was made under. It always equals the compiled-in constant.
	ConstitutionalHash string `json:"constitutional_hash"`

	// Timestamp is when the decision was assembled.
	Timestamp time.Time `json:"timestamp"`
}

// Restrictive reports whether the action blocks delivery.
func (d *Decision) Restrictive() bool {
	return d.Action == ActionDeny || d.Action == ActionQuarantine
}
