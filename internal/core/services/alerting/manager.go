package alerting

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/lcalzada-xor/auditchain/internal/core/domain"
	"github.com/lcalzada-xor/auditchain/internal/core/ports"
	"github.com/lcalzada-xor/auditchain/internal/core/services/policy"
	"github.com/lcalzada-xor/auditchain/internal/telemetry"
)

// Manager owns the alert lifecycle: opening, correlation folding and the
// validated operator transitions. Every change is persisted and published
// as an alert-changed event.
type Manager struct {
	repo      ports.AlertRepository
	publisher ports.Publisher

	// Serializes correlation lookups against operator transitions so a
	// Resolve racing a recurring match cannot fold into a closing alert.
	mu sync.Mutex
}

// NewManager creates an alert manager over the given repository.
func NewManager(repo ports.AlertRepository, publisher ports.Publisher) *Manager {
	return &Manager{repo: repo, publisher: publisher}
}

// CorrelationKey folds repeated matches of one rule into one alert. The
// dedup dimension is the payload field named by the rule's CorrelateBy;
// rules without one correlate purely per rule.
func CorrelationKey(m domain.Match) string {
	if m.Rule.CorrelateBy == "" {
		return m.Rule.ID
	}
	return m.Rule.ID + "|" + policy.Stringify(m.Entry.Payload[m.Rule.CorrelateBy])
}

// OnMatch opens a new alert for the first match of a correlation key, or
// folds the match into the existing non-terminal alert: LastSeenAt and the
// occurrence counter advance, and severity rises if the new match is
// worse. Terminal alerts are never reopened; a recurrence opens a fresh
// alert.
func (m *Manager) OnMatch(ctx context.Context, req domain.AlertRequest) (domain.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := CorrelationKey(req.Match)

	existing, err := m.repo.FindOpenByCorrelationKey(ctx, key)
	if err != nil {
		return domain.Alert{}, fmt.Errorf("correlation lookup: %w", err)
	}
	if existing != nil {
		if err := existing.Correlate(req.Severity); err != nil {
			return domain.Alert{}, err
		}
		if err := m.repo.SaveAlert(ctx, *existing); err != nil {
			return domain.Alert{}, fmt.Errorf("update alert %s: %w", existing.ID, err)
		}
		telemetry.AlertsCorrelated.Inc()
		m.publish(*existing)
		return *existing, nil
	}

	message := fmt.Sprintf("rule %q matched entry %d", req.Match.Rule.Name, req.Match.Entry.Sequence)
	alert, err := domain.NewAlert(req.Match.Rule.ID, req.Match.Entry.ID, key, message, req.Severity)
	if err != nil {
		return domain.Alert{}, err
	}
	if err := m.repo.SaveAlert(ctx, *alert); err != nil {
		return domain.Alert{}, fmt.Errorf("open alert: %w", err)
	}
	telemetry.AlertsOpened.WithLabelValues(string(req.Severity)).Inc()
	slog.Info("alert opened", "alert", alert.ID, "rule", req.Match.Rule.Name, "severity", req.Severity)
	m.publish(*alert)
	return *alert, nil
}

// Acknowledge moves an alert from new (or escalated) into acknowledged.
func (m *Manager) Acknowledge(ctx context.Context, alertID, actor string) (domain.Alert, error) {
	return m.transition(ctx, alertID, domain.StatusAcknowledged, actor, "")
}

// StartInvestigation marks an acknowledged alert as being worked.
func (m *Manager) StartInvestigation(ctx context.Context, alertID, actor string) (domain.Alert, error) {
	return m.transition(ctx, alertID, domain.StatusInvestigating, actor, "")
}

// Escalate raises an alert for attention; the reason is kept for audit.
func (m *Manager) Escalate(ctx context.Context, alertID, actor, reason string) (domain.Alert, error) {
	return m.transition(ctx, alertID, domain.StatusEscalated, actor, reason)
}

// Resolve closes an alert terminally with an operator note.
func (m *Manager) Resolve(ctx context.Context, alertID, actor, note string) (domain.Alert, error) {
	return m.transition(ctx, alertID, domain.StatusResolved, actor, note)
}

// Dismiss discards an alert terminally, e.g. as noise.
func (m *Manager) Dismiss(ctx context.Context, alertID, actor, reason string) (domain.Alert, error) {
	return m.transition(ctx, alertID, domain.StatusDismissed, actor, reason)
}

func (m *Manager) transition(ctx context.Context, alertID string, to domain.AlertStatus, actor, note string) (domain.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	alert, err := m.repo.GetAlert(ctx, alertID)
	if err != nil {
		return domain.Alert{}, err
	}
	if err := alert.Transition(to, actor, note); err != nil {
		return domain.Alert{}, err
	}
	if err := m.repo.SaveAlert(ctx, *alert); err != nil {
		return domain.Alert{}, fmt.Errorf("persist transition of %s: %w", alertID, err)
	}
	slog.Info("alert transitioned", "alert", alertID, "status", to, "actor", actor)
	m.publish(*alert)
	return *alert, nil
}

// GetAlert retrieves one alert.
func (m *Manager) GetAlert(ctx context.Context, alertID string) (*domain.Alert, error) {
	return m.repo.GetAlert(ctx, alertID)
}

// ListAlerts returns alerts matching the filter, most recent first.
func (m *Manager) ListAlerts(ctx context.Context, filter domain.AlertFilter) ([]domain.Alert, error) {
	return m.repo.ListAlerts(ctx, filter)
}

func (m *Manager) publish(a domain.Alert) {
	if m.publisher != nil {
		m.publisher.Publish(domain.NewAlertChanged(a))
	}
}

// Ensure interface compliance
var _ ports.AlertManager = (*Manager)(nil)
