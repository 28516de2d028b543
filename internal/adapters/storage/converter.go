package storage

import (
	"encoding/json"
	"time"

	"github.com/lcalzada-xor/auditchain/internal/core/domain"
)

// toEntryModel converts a domain entry to its database model.
func toEntryModel(e domain.Entry) (EntryModel, error) {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return EntryModel{}, err
	}
	var tags string
	if len(e.Tags) > 0 {
		b, err := json.Marshal(e.Tags)
		if err != nil {
			return EntryModel{}, err
		}
		tags = string(b)
	}
	return EntryModel{
		Sequence:    e.Sequence,
		EntryID:     e.ID,
		TimestampNS: e.Timestamp.UTC().UnixNano(),
		Payload:     string(payload),
		Hash:        e.Hash,
		PrevHash:    e.PrevHash,
		Tags:        tags,
		Blocked:     e.Blocked,
		Quarantined: e.Quarantined,
	}, nil
}

// toEntryDomain converts a database model to a domain entry.
func toEntryDomain(m EntryModel) (*domain.Entry, error) {
	var payload domain.Payload
	if err := json.Unmarshal([]byte(m.Payload), &payload); err != nil {
		return nil, err
	}
	var tags []string
	if m.Tags != "" {
		if err := json.Unmarshal([]byte(m.Tags), &tags); err != nil {
			return nil, err
		}
	}
	return &domain.Entry{
		ID:          m.EntryID,
		Sequence:    m.Sequence,
		Timestamp:   time.Unix(0, m.TimestampNS).UTC(),
		Payload:     payload,
		Hash:        m.Hash,
		PrevHash:    m.PrevHash,
		Tags:        tags,
		Blocked:     m.Blocked,
		Quarantined: m.Quarantined,
	}, nil
}

// toRuleModel converts a domain rule to its database model.
func toRuleModel(r domain.Rule) (RuleModel, error) {
	conds, err := json.Marshal(r.Conditions)
	if err != nil {
		return RuleModel{}, err
	}
	actions, err := json.Marshal(r.Actions)
	if err != nil {
		return RuleModel{}, err
	}
	return RuleModel{
		RuleID:      r.ID,
		Name:        r.Name,
		Priority:    r.Priority,
		Enabled:     r.Enabled,
		Deleted:     r.Deleted,
		Conditions:  string(conds),
		Actions:     string(actions),
		CorrelateBy: r.CorrelateBy,
		Version:     r.Version,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}, nil
}

// toRuleDomain converts a database model to a domain rule.
func toRuleDomain(m RuleModel) (*domain.Rule, error) {
	var conds []domain.Condition
	if err := json.Unmarshal([]byte(m.Conditions), &conds); err != nil {
		return nil, err
	}
	var actions []domain.Action
	if err := json.Unmarshal([]byte(m.Actions), &actions); err != nil {
		return nil, err
	}
	return &domain.Rule{
		ID:          m.RuleID,
		Name:        m.Name,
		Priority:    m.Priority,
		Enabled:     m.Enabled,
		Deleted:     m.Deleted,
		Conditions:  conds,
		Actions:     actions,
		CorrelateBy: m.CorrelateBy,
		Version:     m.Version,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}, nil
}

// toAlertModel converts a domain alert to its database model.
func toAlertModel(a domain.Alert) (AlertModel, error) {
	var history string
	if len(a.History) > 0 {
		b, err := json.Marshal(a.History)
		if err != nil {
			return AlertModel{}, err
		}
		history = string(b)
	}
	m := AlertModel{
		AlertID:        a.ID,
		RuleID:         a.RuleID,
		EntryID:        a.EntryID,
		Severity:       string(a.Severity),
		Status:         string(a.Status),
		CorrelationKey: a.CorrelationKey,
		Message:        a.Message,
		Occurrences:    a.Occurrences,
		OpenedAtNS:     a.OpenedAt.UTC().UnixNano(),
		LastSeenAtNS:   a.LastSeenAt.UTC().UnixNano(),
		History:        history,
	}
	if a.ClosedAt != nil {
		ns := a.ClosedAt.UTC().UnixNano()
		m.ClosedAtNS = &ns
	}
	return m, nil
}

// toAlertDomain converts a database model to a domain alert.
func toAlertDomain(m AlertModel) (*domain.Alert, error) {
	var history []domain.AlertTransition
	if m.History != "" {
		if err := json.Unmarshal([]byte(m.History), &history); err != nil {
			return nil, err
		}
	}
	a := &domain.Alert{
		ID:             m.AlertID,
		RuleID:         m.RuleID,
		EntryID:        m.EntryID,
		Severity:       domain.Severity(m.Severity),
		Status:         domain.AlertStatus(m.Status),
		CorrelationKey: m.CorrelationKey,
		Message:        m.Message,
		Occurrences:    m.Occurrences,
		OpenedAt:       time.Unix(0, m.OpenedAtNS).UTC(),
		LastSeenAt:     time.Unix(0, m.LastSeenAtNS).UTC(),
		History:        history,
	}
	if m.ClosedAtNS != nil {
		t := time.Unix(0, *m.ClosedAtNS).UTC()
		a.ClosedAt = &t
	}
	return a, nil
}
