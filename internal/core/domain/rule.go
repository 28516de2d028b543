package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Domain Errors for Rules
var (
	ErrInvalidRule      = errors.New("invalid rule definition")
	ErrEmptyRuleName    = errors.New("rule name cannot be empty")
	ErrInvalidOperator  = errors.New("invalid condition operator")
	ErrInvalidAction    = errors.New("invalid rule action")
	ErrRuleNotFound     = errors.New("rule not found")
	ErrInvalidSeverity  = errors.New("invalid alert severity level")
	ErrEmptyConditionOp = errors.New("condition field and operator are required")
)

// Operator identifies a condition predicate.
type Operator string

const (
	OpEquals   Operator = "equals"   // case-sensitive exact match
	OpContains Operator = "contains" // case-insensitive substring
	OpInSet    Operator = "in"       // membership in a finite set
	OpRange    Operator = "range"    // inclusive numeric range, open bounds allowed
)

// Condition is one field predicate. All conditions of a rule must hold
// (AND) for the rule to match.
type Condition struct {
	Field  string   `json:"field"`
	Op     Operator `json:"op"`
	Value  string   `json:"value,omitempty"`  // equals / contains
	Values []string `json:"values,omitempty"` // in
	Min    *float64 `json:"min,omitempty"`    // range, nil = open
	Max    *float64 `json:"max,omitempty"`    // range, nil = open
}

// Validate checks structural consistency; a semantically malformed
// condition (e.g. range against a non-numeric field) is still a legal
// definition and is handled as a non-match at evaluation time.
func (c *Condition) Validate() error {
	if strings.TrimSpace(c.Field) == "" {
		return ErrEmptyConditionOp
	}
	switch c.Op {
	case OpEquals, OpContains, OpInSet, OpRange:
		return nil
	default:
		return ErrInvalidOperator
	}
}

// ActionType identifies what a matching rule does.
type ActionType string

const (
	ActionTag        ActionType = "tag"
	ActionOpenAlert  ActionType = "open_alert"
	ActionBlock      ActionType = "block"
	ActionQuarantine ActionType = "quarantine"
)

// Action is one element of a rule's ordered action list.
type Action struct {
	Type     ActionType `json:"type"`
	Label    string     `json:"label,omitempty"`    // tag
	Severity Severity   `json:"severity,omitempty"` // open_alert
}

// Validate enforces per-action invariants.
func (a *Action) Validate() error {
	switch a.Type {
	case ActionTag:
		if strings.TrimSpace(a.Label) == "" {
			return ErrInvalidAction
		}
	case ActionOpenAlert:
		if !a.Severity.Valid() {
			return ErrInvalidSeverity
		}
	case ActionBlock, ActionQuarantine:
	default:
		return ErrInvalidAction
	}
	return nil
}

// Severity represents the criticality of a security event.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// Valid reports whether s is a known severity level.
func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo:
		return true
	}
	return false
}

// Rank orders severities for escalation comparisons. Higher is worse.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 5
	case SeverityHigh:
		return 4
	case SeverityMedium:
		return 3
	case SeverityLow:
		return 2
	case SeverityInfo:
		return 1
	}
	return 0
}

// Rule is an operator-defined evaluation criterion. Rules are mutable and
// versioned independently of entries; deletion is soft so the definition
// stays available for audit.
type Rule struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Priority    int         `json:"priority"` // higher evaluated first
	Enabled     bool        `json:"enabled"`
	Deleted     bool        `json:"deleted,omitempty"`
	Conditions  []Condition `json:"conditions"`
	Actions     []Action    `json:"actions"`
	CorrelateBy string      `json:"correlate_by,omitempty"` // payload field folded into the correlation key
	Version     int         `json:"version"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// NewRule is the designated factory for valid Rule entities.
func NewRule(name string, priority int, conditions []Condition, actions []Action) (*Rule, error) {
	r := &Rule{
		ID:         uuid.NewString(),
		Name:       name,
		Priority:   priority,
		Enabled:    true,
		Conditions: conditions,
		Actions:    actions,
		Version:    1,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate performs internal consistency checks on the rule. A rule with
// zero conditions is legal but never matches (guards against accidental
// match-everything rules).
func (r *Rule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrEmptyRuleName
	}
	for i := range r.Conditions {
		if err := r.Conditions[i].Validate(); err != nil {
			return err
		}
	}
	if len(r.Actions) == 0 {
		return ErrInvalidRule
	}
	for i := range r.Actions {
		if err := r.Actions[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Match pairs a rule with the entry it matched. Evaluate returns all
// matching rules ordered by descending priority; consumers decide how far
// down the list each action class applies.
type Match struct {
	Rule  Rule  `json:"rule"`
	Entry Entry `json:"entry"`
}

// AlertRequest asks the alert manager to open or correlate an alert for a
// match, at the severity carried by the rule's open_alert action.
type AlertRequest struct {
	Match    Match    `json:"match"`
	Severity Severity `json:"severity"`
}

// Verdict is the aggregate result of applying every match's actions to one
// entry. Tags accumulate from all matches; only the highest-priority
// block/quarantine takes effect.
type Verdict struct {
	Tags          []string       `json:"tags,omitempty"`
	Blocked       bool           `json:"blocked"`
	Quarantined   bool           `json:"quarantined"`
	ContainedBy   string         `json:"contained_by,omitempty"` // rule ID that blocked or quarantined
	AlertRequests []AlertRequest `json:"-"`
}

// RuleWarning is the structured, non-fatal report of a malformed condition
// encountered during evaluation. A bad rule must never block ingestion.
type RuleWarning struct {
	RuleID string    `json:"rule_id"`
	Field  string    `json:"field"`
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}
