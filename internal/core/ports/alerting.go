package ports

import (
	"context"

	"github.com/lcalzada-xor/auditchain/internal/core/domain"
)

// AlertManager owns the alert lifecycle state machine, deduplication and
// operator transitions. Every change publishes an alert-changed event.
type AlertManager interface {
	// OnMatch opens a new alert or folds the match into the existing
	// non-terminal alert sharing its correlation key.
	OnMatch(ctx context.Context, req domain.AlertRequest) (domain.Alert, error)

	Acknowledge(ctx context.Context, alertID, actor string) (domain.Alert, error)
	StartInvestigation(ctx context.Context, alertID, actor string) (domain.Alert, error)
	Escalate(ctx context.Context, alertID, actor, reason string) (domain.Alert, error)
	Resolve(ctx context.Context, alertID, actor, note string) (domain.Alert, error)
	Dismiss(ctx context.Context, alertID, actor, reason string) (domain.Alert, error)

	GetAlert(ctx context.Context, alertID string) (*domain.Alert, error)
	ListAlerts(ctx context.Context, filter domain.AlertFilter) ([]domain.Alert, error)
}
