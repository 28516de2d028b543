package ports

import (
	"context"

	"github.com/lcalzada-xor/auditchain/internal/core/domain"
)

// PolicyEngine evaluates entries against the active rule set.
type PolicyEngine interface {
	// Evaluate returns every matching enabled rule, ordered by descending
	// priority (ties by rule creation order). It never mutates rules and
	// never fails the entry: malformed conditions degrade to non-matches
	// reported on the warning channel.
	Evaluate(ctx context.Context, entry domain.Entry) ([]domain.Match, error)

	// ApplyActions folds the matches into a single verdict: tags from
	// every match accumulate, the highest-priority block/quarantine wins,
	// and each open_alert action yields an AlertRequest.
	ApplyActions(matches []domain.Match) domain.Verdict

	// Warnings exposes the structured, non-fatal evaluation diagnostics.
	Warnings() <-chan domain.RuleWarning
}

// RuleAdmin is the operator-facing rule CRUD surface.
type RuleAdmin interface {
	CreateRule(ctx context.Context, r *domain.Rule) error
	UpdateRule(ctx context.Context, r domain.Rule) (*domain.Rule, error)
	SetRuleEnabled(ctx context.Context, id string, enabled bool) (*domain.Rule, error)
	// DeleteRule is soft: the rule is disabled and flagged deleted but
	// retained for audit.
	DeleteRule(ctx context.Context, id string) error
	GetRule(ctx context.Context, id string) (*domain.Rule, error)
	ListRules(ctx context.Context, includeDeleted bool) ([]domain.Rule, error)
}
