package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Domain Errors for Alerts
var (
	ErrAlertNotFound      = errors.New("alert not found")
	ErrInvalidTransition  = errors.New("invalid alert transition")
	ErrMissingActor       = errors.New("actor identity is required for alert transitions")
	ErrAlertTerminal      = errors.New("alert is in a terminal state")
)

// AlertStatus is the lifecycle state of an alert.
type AlertStatus string

const (
	StatusNew           AlertStatus = "new"
	StatusAcknowledged  AlertStatus = "acknowledged"
	StatusInvestigating AlertStatus = "investigating"
	StatusEscalated     AlertStatus = "escalated"
	StatusResolved      AlertStatus = "resolved"
	StatusDismissed     AlertStatus = "dismissed"
)

// transitions is the validated state machine, encoded as data. Policy
// decision: an alert cannot go new -> resolved directly; it must be
// acknowledged first. new -> dismissed is allowed so operators can discard
// noise in one step. resolved and dismissed are terminal.
var transitions = map[AlertStatus][]AlertStatus{
	StatusNew:           {StatusAcknowledged, StatusEscalated, StatusDismissed},
	StatusAcknowledged:  {StatusInvestigating, StatusEscalated, StatusResolved, StatusDismissed},
	StatusInvestigating: {StatusEscalated, StatusResolved, StatusDismissed},
	StatusEscalated:     {StatusAcknowledged, StatusInvestigating, StatusResolved, StatusDismissed},
	StatusResolved:      {},
	StatusDismissed:     {},
}

// Terminal reports whether s accepts no further transitions, automatic or
// operator-driven. A recurring correlation key on a terminal alert opens a
// new alert instead of reopening this one.
func (s AlertStatus) Terminal() bool {
	return s == StatusResolved || s == StatusDismissed
}

// CanTransition consults the transition table.
func (s AlertStatus) CanTransition(to AlertStatus) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// AlertTransition records one lifecycle step for audit.
type AlertTransition struct {
	From  AlertStatus `json:"from"`
	To    AlertStatus `json:"to"`
	Actor string      `json:"actor"`
	Note  string      `json:"note,omitempty"`
	At    time.Time   `json:"at"`
}

// Alert is the mutable, stateful artifact of a rule match.
type Alert struct {
	ID             string            `json:"id"`
	RuleID         string            `json:"rule_id"`
	EntryID        string            `json:"entry_id"` // triggering entry
	Severity       Severity          `json:"severity"`
	Status         AlertStatus       `json:"status"`
	CorrelationKey string            `json:"correlation_key"`
	Message        string            `json:"message"`
	Occurrences    int               `json:"occurrences"`
	OpenedAt       time.Time         `json:"opened_at"`
	LastSeenAt     time.Time         `json:"last_seen_at"`
	ClosedAt       *time.Time        `json:"closed_at,omitempty"`
	History        []AlertTransition `json:"history,omitempty"`
}

// NewAlert opens an alert in state new for the first match of a
// correlation key.
func NewAlert(ruleID, entryID, correlationKey, message string, severity Severity) (*Alert, error) {
	if !severity.Valid() {
		return nil, ErrInvalidSeverity
	}
	now := time.Now().UTC()
	return &Alert{
		ID:             uuid.NewString(),
		RuleID:         ruleID,
		EntryID:        entryID,
		Severity:       severity,
		Status:         StatusNew,
		CorrelationKey: correlationKey,
		Message:        message,
		Occurrences:    1,
		OpenedAt:       now,
		LastSeenAt:     now,
	}, nil
}

// Transition moves the alert to a new status after validating the table.
// The actor is recorded on the history for audit.
func (a *Alert) Transition(to AlertStatus, actor, note string) error {
	if actor == "" {
		return ErrMissingActor
	}
	if !a.Status.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.Status, to)
	}
	now := time.Now().UTC()
	a.History = append(a.History, AlertTransition{
		From:  a.Status,
		To:    to,
		Actor: actor,
		Note:  note,
		At:    now,
	})
	a.Status = to
	if to.Terminal() {
		a.ClosedAt = &now
	}
	return nil
}

// Correlate folds one more match into a non-terminal alert: bumps
// LastSeenAt and the occurrence counter, raising severity when the new
// match is worse. Callers must not invoke it on terminal alerts.
func (a *Alert) Correlate(severity Severity) error {
	if a.Status.Terminal() {
		return ErrAlertTerminal
	}
	a.LastSeenAt = time.Now().UTC()
	a.Occurrences++
	if severity.Rank() > a.Severity.Rank() {
		a.Severity = severity
	}
	return nil
}

// AlertFilter narrows alert listings for operator views.
type AlertFilter struct {
	Status   AlertStatus `json:"status,omitempty"`
	Severity Severity    `json:"severity,omitempty"`
	RuleID   string      `json:"rule_id,omitempty"`
	Limit    int         `json:"limit,omitempty"`
}
