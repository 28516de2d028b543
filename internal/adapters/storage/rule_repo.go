package storage

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lcalzada-xor/auditchain/internal/core/domain"
	"github.com/lcalzada-xor/auditchain/internal/core/ports"
)

// Ensure interface compliance
var _ ports.RuleRepository = (*SQLiteStore)(nil)

// SaveRule inserts or updates a rule definition.
func (s *SQLiteStore) SaveRule(ctx context.Context, r domain.Rule) error {
	model, err := toRuleModel(r)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		UpdateAll: true,
	}).Create(&model).Error
}

// GetRule retrieves a rule by ID, including soft-deleted ones.
func (s *SQLiteStore) GetRule(ctx context.Context, id string) (*domain.Rule, error) {
	var model RuleModel
	if err := s.db.WithContext(ctx).First(&model, "rule_id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrRuleNotFound
		}
		return nil, err
	}
	return toRuleDomain(model)
}

// ListRules returns rules by priority descending then creation time,
// excluding soft-deleted ones unless requested.
func (s *SQLiteStore) ListRules(ctx context.Context, includeDeleted bool) ([]domain.Rule, error) {
	query := s.db.WithContext(ctx).Order("priority desc, created_at asc")
	if !includeDeleted {
		query = query.Where("deleted = ?", false)
	}

	var models []RuleModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	rules := make([]domain.Rule, 0, len(models))
	for _, m := range models {
		r, err := toRuleDomain(m)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *r)
	}
	return rules, nil
}
