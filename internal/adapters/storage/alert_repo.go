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
var _ ports.AlertRepository = (*SQLiteStore)(nil)

// SaveAlert inserts or updates an alert.
func (s *SQLiteStore) SaveAlert(ctx context.Context, a domain.Alert) error {
	model, err := toAlertModel(a)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		UpdateAll: true,
	}).Create(&model).Error
}

// GetAlert retrieves an alert by ID.
func (s *SQLiteStore) GetAlert(ctx context.Context, id string) (*domain.Alert, error) {
	var model AlertModel
	if err := s.db.WithContext(ctx).First(&model, "alert_id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAlertNotFound
		}
		return nil, err
	}
	return toAlertDomain(model)
}

// FindOpenByCorrelationKey returns the non-terminal alert holding the key,
// or nil when none exists.
func (s *SQLiteStore) FindOpenByCorrelationKey(ctx context.Context, key string) (*domain.Alert, error) {
	var model AlertModel
	err := s.db.WithContext(ctx).
		Where("correlation_key = ? AND status NOT IN ?", key,
			[]string{string(domain.StatusResolved), string(domain.StatusDismissed)}).
		Order("opened_at_ns desc").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toAlertDomain(model)
}

// ListAlerts returns alerts matching the filter, most recent first.
func (s *SQLiteStore) ListAlerts(ctx context.Context, filter domain.AlertFilter) ([]domain.Alert, error) {
	query := s.db.WithContext(ctx).Order("last_seen_at_ns desc")
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	if filter.Severity != "" {
		query = query.Where("severity = ?", string(filter.Severity))
	}
	if filter.RuleID != "" {
		query = query.Where("rule_id = ?", filter.RuleID)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var models []AlertModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	alerts := make([]domain.Alert, 0, len(models))
	for _, m := range models {
		a, err := toAlertDomain(m)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, *a)
	}
	return alerts, nil
}

// CountAlertsByStatus aggregates alert totals for the stats view.
func (s *SQLiteStore) CountAlertsByStatus(ctx context.Context) (map[domain.AlertStatus]int64, error) {
	type row struct {
		Status string
		Total  int64
	}
	var rows []row
	err := s.db.WithContext(ctx).Model(&AlertModel{}).
		Select("status, count(*) as total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[domain.AlertStatus]int64, len(rows))
	for _, r := range rows {
		counts[domain.AlertStatus(r.Status)] = r.Total
	}
	return counts, nil
}
