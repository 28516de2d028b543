package policy

import (
	"context"
	"time"

	"github.com/lcalzada-xor/auditchain/internal/core/domain"
	"github.com/lcalzada-xor/auditchain/internal/core/ports"
)

// CreateRule validates and persists a new rule. The rule keeps the enabled
// flag it was built with, so operators can stage rules disabled.
func (e *Engine) CreateRule(ctx context.Context, r *domain.Rule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	return e.repo.SaveRule(ctx, *r)
}

// UpdateRule replaces the stored definition, bumping version and
// UpdatedAt. Identity, creation time and the deleted flag are preserved.
func (e *Engine) UpdateRule(ctx context.Context, r domain.Rule) (*domain.Rule, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	current, err := e.repo.GetRule(ctx, r.ID)
	if err != nil {
		return nil, err
	}

	r.CreatedAt = current.CreatedAt
	r.Deleted = current.Deleted
	r.Version = current.Version + 1
	r.UpdatedAt = time.Now().UTC()
	if err := e.repo.SaveRule(ctx, r); err != nil {
		return nil, err
	}
	e.forgetWarnings(r.ID)
	return &r, nil
}

// SetRuleEnabled toggles a rule without touching its definition.
func (e *Engine) SetRuleEnabled(ctx context.Context, id string, enabled bool) (*domain.Rule, error) {
	rule, err := e.repo.GetRule(ctx, id)
	if err != nil {
		return nil, err
	}
	if rule.Enabled == enabled {
		return rule, nil
	}
	rule.Enabled = enabled
	rule.Version++
	rule.UpdatedAt = time.Now().UTC()
	if err := e.repo.SaveRule(ctx, *rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// DeleteRule is soft: the rule is disabled and flagged deleted but its
// definition stays on record for audit.
func (e *Engine) DeleteRule(ctx context.Context, id string) error {
	rule, err := e.repo.GetRule(ctx, id)
	if err != nil {
		return err
	}
	rule.Enabled = false
	rule.Deleted = true
	rule.Version++
	rule.UpdatedAt = time.Now().UTC()
	return e.repo.SaveRule(ctx, *rule)
}

// GetRule retrieves one rule, including soft-deleted ones.
func (e *Engine) GetRule(ctx context.Context, id string) (*domain.Rule, error) {
	return e.repo.GetRule(ctx, id)
}

// ListRules lists rules by priority, optionally with soft-deleted ones.
func (e *Engine) ListRules(ctx context.Context, includeDeleted bool) ([]domain.Rule, error) {
	return e.repo.ListRules(ctx, includeDeleted)
}

// forgetWarnings clears the warn-once record for a rule so a fixed
// definition that is still malformed gets reported again.
func (e *Engine) forgetWarnings(ruleID string) {
	prefix := ruleID + "|"
	e.mu.Lock()
	defer e.mu.Unlock()
	for key := range e.warned {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(e.warned, key)
		}
	}
}

// Ensure interface compliance
var _ ports.RuleAdmin = (*Engine)(nil)
