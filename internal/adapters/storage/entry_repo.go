package storage

import (
	"context"
	"encoding/json"
	"errors"

	"gorm.io/gorm"

	"github.com/lcalzada-xor/auditchain/internal/core/domain"
	"github.com/lcalzada-xor/auditchain/internal/core/ports"
)

// Ensure interface compliance
var _ ports.EntryStore = (*SQLiteStore)(nil)

// SaveEntry persists a single entry. The insert is plain Create: sequence
// is the primary key, so a duplicate assignment fails loudly instead of
// silently overwriting history.
func (s *SQLiteStore) SaveEntry(ctx context.Context, e domain.Entry) error {
	model, err := toEntryModel(e)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(&model).Error
}

// GetEntry retrieves an entry by its opaque ID.
func (s *SQLiteStore) GetEntry(ctx context.Context, id string) (*domain.Entry, error) {
	var model EntryModel
	if err := s.db.WithContext(ctx).First(&model, "entry_id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrEntryNotFound
		}
		return nil, err
	}
	return toEntryDomain(model)
}

// GetEntryBySequence retrieves an entry by its sequence number.
func (s *SQLiteStore) GetEntryBySequence(ctx context.Context, seq int64) (*domain.Entry, error) {
	var model EntryModel
	if err := s.db.WithContext(ctx).First(&model, "sequence = ?", seq).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrEntryNotFound
		}
		return nil, err
	}
	return toEntryDomain(model)
}

// GetEntryRange retrieves entries with from <= sequence <= to ascending.
func (s *SQLiteStore) GetEntryRange(ctx context.Context, from, to int64) ([]domain.Entry, error) {
	var models []EntryModel
	err := s.db.WithContext(ctx).
		Where("sequence >= ? AND sequence <= ?", from, to).
		Order("sequence asc").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	entries := make([]domain.Entry, 0, len(models))
	for _, m := range models {
		e, err := toEntryDomain(m)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, nil
}

// LastEntry returns the highest-sequence entry, or nil when empty.
func (s *SQLiteStore) LastEntry(ctx context.Context) (*domain.Entry, error) {
	var model EntryModel
	err := s.db.WithContext(ctx).Order("sequence desc").First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toEntryDomain(model)
}

// CountEntries returns the total number of persisted entries.
func (s *SQLiteStore) CountEntries(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&EntryModel{}).Count(&count).Error
	return count, err
}

// ApplyVerdict records evaluation results on an appended entry. Only the
// unhashed verdict columns are touched.
func (s *SQLiteStore) ApplyVerdict(ctx context.Context, id string, v domain.Verdict) error {
	updates := map[string]any{
		"blocked":     v.Blocked,
		"quarantined": v.Quarantined,
	}
	if len(v.Tags) > 0 {
		b, err := json.Marshal(v.Tags)
		if err != nil {
			return err
		}
		updates["tags"] = string(b)
	}

	res := s.db.WithContext(ctx).Model(&EntryModel{}).Where("entry_id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrEntryNotFound
	}
	return nil
}
