package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/lcalzada-xor/auditchain/internal/core/domain"
	"github.com/lcalzada-xor/auditchain/internal/core/ports"
)

// RuleHandler handles operator rule CRUD
type RuleHandler struct {
	Rules ports.RuleAdmin
}

// NewRuleHandler creates a new RuleHandler
func NewRuleHandler(rules ports.RuleAdmin) *RuleHandler {
	return &RuleHandler{Rules: rules}
}

type ruleRequest struct {
	Name        string             `json:"name"`
	Priority    int                `json:"priority"`
	Enabled     *bool              `json:"enabled,omitempty"`
	Conditions  []domain.Condition `json:"conditions"`
	Actions     []domain.Action    `json:"actions"`
	CorrelateBy string             `json:"correlate_by,omitempty"`
}

// HandleCreate creates a new rule; rules may be staged disabled
func (h *RuleHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	rule, err := domain.NewRule(req.Name, req.Priority, req.Conditions, req.Actions)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rule.CorrelateBy = req.CorrelateBy
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}

	if err := h.Rules.CreateRule(r.Context(), rule); err != nil {
		log.Printf("Failed to create rule: %v", err)
		http.Error(w, "Failed to create rule", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(rule)
}

// HandleUpdate replaces a rule definition, bumping its version
func (h *RuleHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req ruleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	rule := domain.Rule{
		ID:          id,
		Name:        req.Name,
		Priority:    req.Priority,
		Enabled:     req.Enabled == nil || *req.Enabled,
		Conditions:  req.Conditions,
		Actions:     req.Actions,
		CorrelateBy: req.CorrelateBy,
	}

	updated, err := h.Rules.UpdateRule(r.Context(), rule)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRuleNotFound):
			http.Error(w, "Rule not found", http.StatusNotFound)
		case isRuleValidationError(err):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			log.Printf("Failed to update rule: %v", err)
			http.Error(w, "Failed to update rule", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(updated)
}

// HandleSetEnabled toggles a rule on or off
func (h *RuleHandler) HandleSetEnabled(enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		rule, err := h.Rules.SetRuleEnabled(r.Context(), id, enabled)
		if err != nil {
			if errors.Is(err, domain.ErrRuleNotFound) {
				http.Error(w, "Rule not found", http.StatusNotFound)
				return
			}
			log.Printf("Failed to toggle rule: %v", err)
			http.Error(w, "Failed to toggle rule", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(rule)
	}
}

// HandleDelete soft-deletes a rule; the definition stays for audit
func (h *RuleHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.Rules.DeleteRule(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrRuleNotFound) {
			http.Error(w, "Rule not found", http.StatusNotFound)
			return
		}
		log.Printf("Failed to delete rule: %v", err)
		http.Error(w, "Failed to delete rule", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"rule_deleted"}`))
}

// HandleGet returns one rule, soft-deleted included
func (h *RuleHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	rule, err := h.Rules.GetRule(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrRuleNotFound) {
			http.Error(w, "Rule not found", http.StatusNotFound)
			return
		}
		log.Printf("Failed to fetch rule: %v", err)
		http.Error(w, "Failed to fetch rule", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rule)
}

// HandleList returns all rules by priority
func (h *RuleHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	includeDeleted := r.URL.Query().Get("include_deleted") == "1"

	rules, err := h.Rules.ListRules(r.Context(), includeDeleted)
	if err != nil {
		log.Printf("Failed to list rules: %v", err)
		http.Error(w, "Failed to list rules", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"rules": rules,
	})
}

func isRuleValidationError(err error) bool {
	return errors.Is(err, domain.ErrInvalidRule) ||
		errors.Is(err, domain.ErrEmptyRuleName) ||
		errors.Is(err, domain.ErrInvalidOperator) ||
		errors.Is(err, domain.ErrInvalidAction) ||
		errors.Is(err, domain.ErrInvalidSeverity) ||
		errors.Is(err, domain.ErrEmptyConditionOp)
}
