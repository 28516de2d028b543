package ports

import (
	"context"

	"github.com/lcalzada-xor/auditchain/internal/core/domain"
)

// EntryStore handles the low-level persistence of ledger entries. Entries
// are append-only; the only post-commit writes are the evaluation verdict
// columns, which sit outside the hashed fields.
type EntryStore interface {
	// SaveEntry persists a single entry atomically.
	SaveEntry(ctx context.Context, e domain.Entry) error

	// GetEntry retrieves an entry by its opaque ID.
	// Returns domain.ErrEntryNotFound when absent.
	GetEntry(ctx context.Context, id string) (*domain.Entry, error)

	// GetEntryBySequence retrieves an entry by sequence number.
	// Returns domain.ErrEntryNotFound when absent.
	GetEntryBySequence(ctx context.Context, seq int64) (*domain.Entry, error)

	// GetEntryRange retrieves entries with from <= sequence <= to in
	// ascending order.
	GetEntryRange(ctx context.Context, from, to int64) ([]domain.Entry, error)

	// LastEntry returns the highest-sequence entry, or nil when the
	// ledger is empty.
	LastEntry(ctx context.Context) (*domain.Entry, error)

	// CountEntries returns the total number of persisted entries.
	CountEntries(ctx context.Context) (int64, error)

	// ApplyVerdict records evaluation results on an already-appended
	// entry without touching any hashed field.
	ApplyVerdict(ctx context.Context, id string, v domain.Verdict) error
}

// RuleRepository handles persistence of operator-defined rules.
type RuleRepository interface {
	// SaveRule inserts or updates a rule definition.
	SaveRule(ctx context.Context, r domain.Rule) error

	// GetRule retrieves a rule by ID, including soft-deleted ones.
	// Returns domain.ErrRuleNotFound when absent.
	GetRule(ctx context.Context, id string) (*domain.Rule, error)

	// ListRules returns rules ordered by priority descending, then
	// creation time. Soft-deleted rules are excluded unless requested.
	ListRules(ctx context.Context, includeDeleted bool) ([]domain.Rule, error)
}

// AlertRepository handles persistence of alerts.
type AlertRepository interface {
	// SaveAlert inserts or updates an alert.
	SaveAlert(ctx context.Context, a domain.Alert) error

	// GetAlert retrieves an alert by ID.
	// Returns domain.ErrAlertNotFound when absent.
	GetAlert(ctx context.Context, id string) (*domain.Alert, error)

	// FindOpenByCorrelationKey returns the non-terminal alert holding the
	// key, or nil when none exists. Terminal alerts never match.
	FindOpenByCorrelationKey(ctx context.Context, key string) (*domain.Alert, error)

	// ListAlerts returns alerts matching the filter, most recent first.
	ListAlerts(ctx context.Context, filter domain.AlertFilter) ([]domain.Alert, error)

	// CountAlertsByStatus aggregates alert totals for the stats view.
	CountAlertsByStatus(ctx context.Context) (map[domain.AlertStatus]int64, error)
}
