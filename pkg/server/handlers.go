package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"mercator-hq/aegis/pkg/governance"
	"mercator-hq/aegis/pkg/governance/engine"
	"mercator-hq/aegis/pkg/governance/maci"
)

// evaluateRequest is the wire form of one evaluation call.
type evaluateRequest struct {
	Message            json.RawMessage   `json:"message"`
	ActorID            string            `json:"actor_id"`
	ActorRole          string            `json:"actor_role"`
	CoSigners          map[string]string `json:"co_signers,omitempty"`
	ConstitutionalHash string            `json:"constitutional_hash"`
}

// feedbackRequest is the wire form of one feedback call.
type feedbackRequest struct {
	DecisionID string `json:"decision_id"`
	Outcome    string `json:"outcome"`
}

// relaxRequest is the wire form of an operator mode relaxation.
type relaxRequest struct {
	Operator string `json:"operator"`
	Reason   string `json:"reason"`
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Message) == 0 {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	// Schema validation happens before the engine sees the message, so a
	// malformed message never consumes an audit sequence number.
	var doc any
	if err := json.Unmarshal(req.Message, &doc); err != nil {
		writeError(w, http.StatusBadRequest, "message is not valid JSON")
		return
	}
	if err := s.schema.Validate(doc); err != nil {
		writeError(w, http.StatusBadRequest, "message failed schema validation: "+err.Error())
		return
	}

	var msg governance.AgentMessage
	if err := json.Unmarshal(req.Message, &msg); err != nil {
		writeError(w, http.StatusBadRequest, "message does not decode: "+err.Error())
		return
	}

	// Unknown role names flow through as an invalid role so the engine
	// denies and audits them instead of the transport swallowing the call.
	actorRole, ok := maci.ParseRole(req.ActorRole)
	if !ok {
		actorRole = maci.Role(-1)
	}
	coSigners := make(map[string]maci.Role, len(req.CoSigners))
	for id, name := range req.CoSigners {
		role, ok := maci.ParseRole(name)
		if !ok {
			role = maci.Role(-1)
		}
		coSigners[id] = role
	}

	decision, err := s.engine.Evaluate(r.Context(), &engine.EvaluateRequest{
		Message:            &msg,
		ActorID:            req.ActorID,
		ActorRole:          actorRole,
		CoSigners:          coSigners,
		ConstitutionalHash: req.ConstitutionalHash,
	})
	switch {
	case err == nil:
		// A denial is a governance outcome, not an HTTP error.
		writeJSON(w, http.StatusOK, decision)
	case errors.Is(err, governance.ErrHashMismatch) && decision != nil:
		// The denial was recorded; shutdown is already in motion when
		// configured. The caller still gets the decision.
		writeJSON(w, http.StatusOK, decision)
	case errors.Is(err, governance.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "governance unavailable")
	default:
		slog.ErrorContext(r.Context(), "evaluation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "evaluation failed")
	}
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.DecisionID == "" {
		writeError(w, http.StatusBadRequest, "decision_id is required")
		return
	}

	outcome := governance.Outcome(req.Outcome)
	if !outcome.Valid() {
		writeError(w, http.StatusBadRequest, "outcome must be correct, false_positive or false_negative")
		return
	}

	err := s.engine.ProvideFeedback(req.DecisionID, outcome)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, governance.ErrUnknownDecision):
		writeError(w, http.StatusNotFound, "unknown decision id")
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

func (s *Server) handleModeRelax(w http.ResponseWriter, r *http.Request) {
	var req relaxRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Operator == "" || req.Reason == "" {
		writeError(w, http.StatusBadRequest, "operator and reason are required")
		return
	}

	transition, ok := s.engine.OperatorRelax(req.Operator, req.Reason)
	if !ok {
		writeError(w, http.StatusConflict, "mode cannot be relaxed further")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"from":     transition.From.String(),
		"to":       transition.To.String(),
		"operator": transition.Operator,
		"reason":   transition.Reason,
	})
}

func (s *Server) handleAuditVerify(w http.ResponseWriter, r *http.Request) {
	fromSeq := uint64(0)
	toSeq := s.ledger.NextSeq()

	if v := r.URL.Query().Get("from"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "from must be a sequence number")
			return
		}
		fromSeq = n
	}
	if v := r.URL.Query().Get("to"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "to must be a sequence number")
			return
		}
		toSeq = n
	}

	ok, firstBad, err := s.ledger.VerifyChain(r.Context(), fromSeq, toSeq)
	if err != nil {
		slog.ErrorContext(r.Context(), "chain verification failed", "error", err)
		writeError(w, http.StatusInternalServerError, "verification failed")
		return
	}

	resp := map[string]any{
		"ok":   ok,
		"from": fromSeq,
		"to":   toSeq,
	}
	if !ok {
		resp["first_bad_seq"] = firstBad
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}
