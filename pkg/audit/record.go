package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"mercator-hq/aegis/pkg/governance"
)

// GenesisHash is the previous-hash value of the first record in a chain.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Kind distinguishes what a record commits to the chain.
type Kind string

const (
	// KindDecision records one governance decision.
	KindDecision Kind = "decision"

	// KindOperator records an explicit operator action (mode relaxation).
	KindOperator Kind = "operator"
)

// Record is one tamper-evident entry in the append-only audit chain.
// Records are immutable after sealing: Seq, PrevHash and Hash are assigned
// exactly once by the ledger's single writer and never change.
type Record struct {
	// Seq is the strictly monotonic chain position, assigned in commit
	// order (when decided, not when submitted).
	Seq uint64 `json:"seq"`

	// ID uniquely identifies the record (UUID v4).
	ID string `json:"id"`

	// Kind is the record kind.
	Kind Kind `json:"kind"`

	// PrevHash is the hex SHA-256 hash of the previous record, or
	// GenesisHash for the first record.
	PrevHash string `json:"prev_hash"`

	// Hash is hex(SHA-256(PrevHash || "\n" || canonical serialization)).
	Hash string `json:"hash"`

	// RecordedAt is when the ledger sealed the record.
	RecordedAt time.Time `json:"recorded_at"`

	// Decision snapshot (KindDecision).
	DecisionID         string   `json:"decision_id,omitempty"`
	MessageID          string   `json:"message_id,omitempty"`
	Score              float64  `json:"score,omitempty"`
	Level              string   `json:"level,omitempty"`
	Mode               string   `json:"mode,omitempty"`
	Action             string   `json:"action,omitempty"`
	Reason             string   `json:"reason,omitempty"`
	ValidatingRoles    []string `json:"validating_roles,omitempty"`
	ConstitutionalHash string   `json:"constitutional_hash,omitempty"`

	// Operator action fields (KindOperator).
	Operator string `json:"operator,omitempty"`
	FromMode string `json:"from_mode,omitempty"`
	ToMode   string `json:"to_mode,omitempty"`
}

// NewDecisionRecord builds an unsealed record from a decision snapshot.
// Seq, PrevHash and Hash are assigned later by the ledger writer.
func NewDecisionRecord(id string, d *governance.Decision, recordedAt time.Time) *Record {
	roles := make([]string, len(d.ValidatingRoles))
	copy(roles, d.ValidatingRoles)
	return &Record{
		ID:                 id,
		Kind:               KindDecision,
		RecordedAt:         recordedAt.UTC(),
		DecisionID:         d.ID,
		MessageID:          d.MessageID,
		Score:              d.Score,
		Level:              d.Level.String(),
		Mode:               d.Mode.String(),
		Action:             string(d.Action),
		Reason:             d.Reason,
		ValidatingRoles:    roles,
		ConstitutionalHash: d.ConstitutionalHash,
	}
}

// NewOperatorRecord builds an unsealed record for an operator action.
func NewOperatorRecord(id, operator, reason, fromMode, toMode, constitutionalHash string, recordedAt time.Time) *Record {
	return &Record{
		ID:                 id,
		Kind:               KindOperator,
		RecordedAt:         recordedAt.UTC(),
		Reason:             reason,
		Operator:           operator,
		FromMode:           fromMode,
		ToMode:             toMode,
		ConstitutionalHash: constitutionalHash,
	}
}

// Canonical returns the record's canonical serialization: the byte string
// the chain hash commits to.
//
// The format is a language-agnostic contract; any reimplementation must
// reproduce it byte for byte to verify chains produced here. It is a fixed
// sequence of "key=value" lines, each terminated by '\n', in exactly this
// order:
//
//	v=1
//	seq=<decimal>
//	id=<uuid>
//	kind=<decision|operator>
//	recorded_at=<RFC 3339 with nanoseconds, UTC>
//	decision_id=
//	message_id=
//	score=<shortest round-trip decimal, Go strconv 'g' -1>
//	level=
//	mode=
//	action=
//	reason=
//	validating_roles=<comma-joined, sorted by the producer order>
//	constitutional_hash=
//	operator=
//	from_mode=
//	to_mode=
//
// Every line is present for every kind; fields that do not apply are empty.
// PrevHash and Hash are never part of the canonical form: the previous hash
// is mixed in separately and the own hash is derived.
func (r *Record) Canonical() []byte {
	var b strings.Builder
	b.Grow(512)

	writeField := func(key, value string) {
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(value)
		b.WriteByte('\n')
	}

	writeField("v", "1")
	writeField("seq", strconv.FormatUint(r.Seq, 10))
	writeField("id", r.ID)
	writeField("kind", string(r.Kind))
	writeField("recorded_at", r.RecordedAt.UTC().Format(time.RFC3339Nano))
	writeField("decision_id", r.DecisionID)
	writeField("message_id", r.MessageID)
	writeField("score", strconv.FormatFloat(r.Score, 'g', -1, 64))
	writeField("level", r.Level)
	writeField("mode", r.Mode)
	writeField("action", r.Action)
	writeField("reason", r.Reason)
	writeField("validating_roles", strings.Join(r.ValidatingRoles, ","))
	writeField("constitutional_hash", r.ConstitutionalHash)
	writeField("operator", r.Operator)
	writeField("from_mode", r.FromMode)
	writeField("to_mode", r.ToMode)

	return []byte(b.String())
}

// ComputeHash derives the chain hash for a record given its predecessor's
// hash: hex(SHA-256(prevHash || "\n" || canonical)).
func ComputeHash(prevHash string, canonical []byte) string {
	h := sha256.New()
	h.Write([]byte(prevHash))
	h.Write([]byte{'\n'})
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil))
}

// Seal assigns the record's chain position and hash. Called only by the
// ledger's single writer.
func (r *Record) Seal(seq uint64, prevHash string) {
	r.Seq = seq
	r.PrevHash = prevHash
	r.Hash = ComputeHash(prevHash, r.Canonical())
}

// VerifyAgainst recomputes the record's hash from its canonical form and
// the given predecessor hash, reporting whether the stored values match.
func (r *Record) VerifyAgainst(prevHash string) bool {
	if r.PrevHash != prevHash {
		return false
	}
	return r.Hash == ComputeHash(prevHash, r.Canonical())
}
