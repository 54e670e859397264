package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"mercator-hq/aegis/pkg/audit"
	"mercator-hq/aegis/pkg/audit/ledger"
	"mercator-hq/aegis/pkg/governance"
	"mercator-hq/aegis/pkg/governance/hashguard"
	"mercator-hq/aegis/pkg/governance/maci"
	"mercator-hq/aegis/pkg/governance/scoring"
	"mercator-hq/aegis/pkg/governance/thresholds"
	"mercator-hq/aegis/pkg/policy"
)

// PolicyChecker is the slice of the policy adapter the engine consumes.
type PolicyChecker interface {
	Check(ctx context.Context, input *policy.Input) (*policy.Result, error)
}

// Observer receives evaluation outcomes for metrics export. All methods
// must be safe for concurrent use and must not block.
type Observer interface {
	// DecisionObserved is called once per issued decision.
	DecisionObserved(d *governance.Decision, duration time.Duration)

	// FeedbackObserved is called once per accepted feedback call.
	FeedbackObserved(outcome governance.Outcome)

	// PolicyDegraded is called when the policy service could not produce
	// a verdict and the engine fell back to its fail-closed mapping.
	PolicyDegraded()
}

// Config contains configuration for the governance engine.
type Config struct {
	// PolicyFloor is the lowest impact level that requires an external
	// policy check. Default: MODERATE.
	PolicyFloor governance.ImpactLevel `yaml:"policy_floor"`

	// FatalOnRuntimeMismatch escalates a runtime constitutional hash
	// mismatch to OnFatal after the denial is recorded. Default: true.
	FatalOnRuntimeMismatch bool `yaml:"fatal_on_runtime_mismatch"`

	// MaxTrackedDecisions bounds the feedback registry. Oldest entries
	// are evicted first. Default: 10000.
	MaxTrackedDecisions int `yaml:"max_tracked_decisions"`

	// Escalation configures the automatic mode controller.
	Escalation *thresholds.EscalationConfig `yaml:"escalation"`

	// OnFatal, when set, is invoked for fatal conditions (runtime hash
	// mismatch with FatalOnRuntimeMismatch enabled). Typically wired to
	// server shutdown.
	OnFatal func(error) `yaml:"-"`

	// OnTransition, when set, is invoked after every mode transition, in
	// addition to the operator audit record the engine itself appends.
	OnTransition func(thresholds.Transition) `yaml:"-"`
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() *Config {
	return &Config{
		PolicyFloor:            governance.LevelModerate,
		FatalOnRuntimeMismatch: true,
		MaxTrackedDecisions:    10000,
		Escalation:             thresholds.DefaultEscalationConfig(),
	}
}

// Components are the collaborators the engine orchestrates. All fields
// except Policy and Observer are required.
type Components struct {
	Guard      *hashguard.Guard
	Scorer     *scoring.Scorer
	Directory  *scoring.Directory
	Thresholds *thresholds.Manager
	Validator  *maci.Validator
	Ledger     *ledger.Ledger
	Policy     PolicyChecker
	Observer   Observer
}

// EvaluateRequest is one governance evaluation call.
type EvaluateRequest struct {
	// Message is the inter-agent message under evaluation.
	Message *governance.AgentMessage

	// ActorID identifies the validating actor.
	ActorID string

	// ActorRole is the role the actor claims; it must match the
	// registered binding.
	ActorRole maci.Role

	// CoSigners are additional validating actors for quorum at CRITICAL.
	CoSigners map[string]maci.Role

	// ConstitutionalHash is the caller-presented invariant token. Any
	// value other than the compiled-in constant is a hard denial.
	ConstitutionalHash string
}

// Engine evaluates agent messages against the full governance stack.
type Engine struct {
	config     *Config
	guard      *hashguard.Guard
	scorer     *scoring.Scorer
	directory  *scoring.Directory
	thresholds *thresholds.Manager
	modes      *thresholds.ModeController
	validator  *maci.Validator
	policy     PolicyChecker
	ledger     *ledger.Ledger
	observer   Observer
	registry   *decisionRegistry
	logger     *slog.Logger
}

// NewEngine creates a governance engine from its collaborators. The mode
// controller is owned by the engine so that every transition, automatic or
// operator-driven, produces an operator audit record.
func NewEngine(config *Config, comps Components) (*Engine, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.MaxTrackedDecisions <= 0 {
		config.MaxTrackedDecisions = 10000
	}
	if comps.Guard == nil || comps.Scorer == nil || comps.Directory == nil ||
		comps.Thresholds == nil || comps.Validator == nil || comps.Ledger == nil {
		return nil, fmt.Errorf("engine requires guard, scorer, directory, thresholds, validator and ledger")
	}

	e := &Engine{
		config:     config,
		guard:      comps.Guard,
		scorer:     comps.Scorer,
		directory:  comps.Directory,
		thresholds: comps.Thresholds,
		validator:  comps.Validator,
		policy:     comps.Policy,
		ledger:     comps.Ledger,
		observer:   comps.Observer,
		registry:   newDecisionRegistry(config.MaxTrackedDecisions),
		logger:     slog.Default().With("component", "governance.engine"),
	}
	e.modes = thresholds.NewModeController(config.Escalation, e.onTransition)
	return e, nil
}

// Mode returns the current governance posture.
func (e *Engine) Mode() governance.Mode {
	return e.modes.Current()
}

// IncidentOpen reports whether an auto-escalation incident is open.
func (e *Engine) IncidentOpen() bool {
	return e.modes.IncidentOpen()
}

// Evaluate runs one message through the governance pipeline and returns
// the issued decision. Order is fixed: hash guard, scoring, threshold
// snapshot, role validation (with quorum at CRITICAL), policy check at or
// above the configured floor, action derivation, audit append.
//
// Every issued decision has exactly one audit record. If the audit
// backlog is exhausted the evaluation is rejected with
// governance.ErrUnavailable and no decision issues. A wrong
// constitutional hash yields a recorded DENY and governance.ErrHashMismatch.
func (e *Engine) Evaluate(ctx context.Context, req *EvaluateRequest) (*governance.Decision, error) {
	started := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	msg := req.Message
	if msg == nil {
		return nil, fmt.Errorf("evaluate request carries no message")
	}

	if err := e.guard.Verify(req.ConstitutionalHash); err != nil {
		return e.denyHashMismatch(ctx, req, started)
	}

	mode := e.modes.Current()
	snap := e.thresholds.Snapshot(mode)
	sctx := e.directory.ContextFor(msg.Sender, msg.Recipients)
	score, _, level := e.scorer.Evaluate(msg, sctx, snap)

	action := deriveAction(level, mode)
	reason := ""
	if action != governance.ActionAllow {
		reason = fmt.Sprintf("impact %s under mode %s", level, mode)
	}

	roles, denial := e.validate(req, level)
	if denial != nil {
		action = governance.ActionDeny
		reason = denial.Error()
		roles = nil
	} else if e.policy != nil && level >= e.config.PolicyFloor {
		action, reason = e.consultPolicy(ctx, req, level, mode, action, reason)
	}

	decision := &governance.Decision{
		ID:                 uuid.NewString(),
		MessageID:          msg.ID,
		Score:              score,
		Level:              level,
		Mode:               mode,
		Action:             action,
		Reason:             reason,
		ValidatingRoles:    roles,
		ConstitutionalHash: hashguard.ExpectedHash,
		Timestamp:          time.Now().UTC(),
	}

	if err := e.append(ctx, decision); err != nil {
		return nil, err
	}

	// Post-issue bookkeeping: both feed future evaluations only.
	e.modes.RecordDecision(level)
	e.directory.RecordEvaluation(msg.Sender, decision.Restrictive())
	e.registry.put(decision)
	if e.observer != nil {
		e.observer.DecisionObserved(decision, time.Since(started))
	}
	return decision, nil
}

// ProvideFeedback reports the post-hoc outcome of a decision, tuning the
// threshold cut that produced its level. Unknown decision ids are an
// error; the evaluation path is never affected retroactively.
func (e *Engine) ProvideFeedback(decisionID string, outcome governance.Outcome) error {
	if !outcome.Valid() {
		return fmt.Errorf("invalid outcome %q", outcome)
	}
	decision, ok := e.registry.get(decisionID)
	if !ok {
		return fmt.Errorf("%w: %s", governance.ErrUnknownDecision, decisionID)
	}
	e.thresholds.ApplyFeedback(decision, outcome)
	if e.observer != nil {
		e.observer.FeedbackObserved(outcome)
	}
	e.logger.Debug("feedback applied",
		"decision_id", decisionID,
		"outcome", string(outcome),
		"level", decision.Level.String(),
		"mode", decision.Mode.String(),
	)
	return nil
}

// OperatorRelax relaxes the governance mode one step on behalf of an
// operator. The transition itself is audited via the mode controller's
// transition hook.
func (e *Engine) OperatorRelax(operator, reason string) (thresholds.Transition, bool) {
	return e.modes.OperatorRelax(operator, reason)
}

// validate authorizes the acting role and, at CRITICAL, checks quorum
// across the actor and co-signers. It returns the distinct validating role
// names on success.
func (e *Engine) validate(req *EvaluateRequest, level governance.ImpactLevel) ([]string, *governance.DenialError) {
	subject := req.Message.Sender
	if denial := e.validator.Authorize(req.ActorID, req.ActorRole, maci.PermValidate, subject); denial != nil {
		return nil, denial
	}

	signers := map[string]maci.Role{req.ActorID: req.ActorRole}
	for id, role := range req.CoSigners {
		if denial := e.validator.Authorize(id, role, maci.PermValidate, subject); denial != nil {
			return nil, denial
		}
		signers[id] = role
	}

	if level == governance.LevelCritical {
		if denial := e.validator.CheckQuorum(signers); denial != nil {
			return nil, denial
		}
	}

	seen := make(map[string]struct{}, len(signers))
	roles := make([]string, 0, len(signers))
	for _, role := range signers {
		name := role.String()
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		roles = append(roles, name)
	}
	sort.Strings(roles)
	return roles, nil
}

// consultPolicy asks the external policy service for a verdict and merges
// it with the derived action. Unavailability fails closed: the action
// becomes ESCALATE unless the derived action already denies.
func (e *Engine) consultPolicy(ctx context.Context, req *EvaluateRequest, level governance.ImpactLevel, mode governance.Mode, action governance.Action, reason string) (governance.Action, string) {
	msg := req.Message
	result, err := e.policy.Check(ctx, &policy.Input{
		Subject:  msg.Sender,
		Action:   msg.Intent,
		Resource: strings.Join(msg.Recipients, ","),
		Context: map[string]string{
			"level": level.String(),
			"mode":  mode.String(),
		},
	})
	if err != nil {
		e.logger.Warn("policy check degraded, failing closed",
			"message_id", msg.ID,
			"level", level.String(),
			"error", err,
		)
		if e.observer != nil {
			e.observer.PolicyDegraded()
		}
		if restrictive(action) {
			return action, reason
		}
		return governance.ActionEscalate, "policy service unavailable"
	}
	if !result.Allow {
		if action == governance.ActionQuarantine {
			return action, result.Reason
		}
		return governance.ActionDeny, result.Reason
	}
	return action, reason
}

// denyHashMismatch issues and records the hard denial for a wrong runtime
// constitutional hash, then optionally escalates to shutdown.
func (e *Engine) denyHashMismatch(ctx context.Context, req *EvaluateRequest, started time.Time) (*governance.Decision, error) {
	decision := &governance.Decision{
		ID:                 uuid.NewString(),
		MessageID:          req.Message.ID,
		Score:              1.0,
		Level:              governance.LevelCritical,
		Mode:               e.modes.Current(),
		Action:             governance.ActionDeny,
		Reason:             "constitutional hash mismatch",
		ConstitutionalHash: hashguard.ExpectedHash,
		Timestamp:          time.Now().UTC(),
	}
	e.logger.Error("runtime constitutional hash mismatch",
		"message_id", req.Message.ID,
		"sender", req.Message.Sender,
	)

	appendErr := e.append(ctx, decision)

	// The shutdown escalation must not depend on the audit path: a
	// mismatch seen while the backlog is exhausted still trips it.
	if e.config.FatalOnRuntimeMismatch && e.config.OnFatal != nil {
		e.config.OnFatal(governance.ErrHashMismatch)
	}

	if appendErr != nil {
		return nil, appendErr
	}
	if e.observer != nil {
		e.observer.DecisionObserved(decision, time.Since(started))
	}
	return decision, governance.ErrHashMismatch
}

// append seals one audit record for the decision. Backlog exhaustion maps
// to governance.ErrUnavailable: no decision may issue unlogged.
func (e *Engine) append(ctx context.Context, decision *governance.Decision) error {
	record := audit.NewDecisionRecord(uuid.NewString(), decision, time.Now().UTC())
	if _, err := e.ledger.Append(ctx, record); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.logger.Error("audit append rejected, refusing decision",
			"decision_id", decision.ID,
			"error", err,
		)
		return fmt.Errorf("%w: %v", governance.ErrUnavailable, err)
	}
	return nil
}

// onTransition records every mode transition as an operator audit record.
// Automatic escalations are attributed to "system".
func (e *Engine) onTransition(t thresholds.Transition) {
	operator := t.Operator
	if operator == "" {
		operator = "system"
	}
	reason := t.Reason
	if reason == "" {
		reason = t.Trigger
	}
	record := audit.NewOperatorRecord(
		uuid.NewString(), operator, reason,
		t.From.String(), t.To.String(),
		hashguard.ExpectedHash, time.Now().UTC(),
	)
	if _, err := e.ledger.Append(context.Background(), record); err != nil {
		e.logger.Error("mode transition audit append failed",
			"from", t.From.String(),
			"to", t.To.String(),
			"error", err,
		)
	}
	e.logger.Warn("governance mode transition",
		"from", t.From.String(),
		"to", t.To.String(),
		"trigger", t.Trigger,
		"operator", operator,
	)
	if e.config.OnTransition != nil {
		e.config.OnTransition(t)
	}
}
