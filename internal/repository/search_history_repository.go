package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/afrocoder16/mkc-songbook/internal/model"
)

// SearchHistoryRepository persists per-user search history records.
type SearchHistoryRepository interface {
	Create(ctx context.Context, record *model.SearchHistory) error
	ListByUser(ctx context.Context, userID uint, limit int) ([]model.SearchHistory, error)
}

type searchHistoryRepository struct {
	db *gorm.DB
}

// NewSearchHistoryRepository creates a new search history repository.
func NewSearchHistoryRepository(db *gorm.DB) SearchHistoryRepository {
	return &searchHistoryRepository{db: db}
}

func (r *searchHistoryRepository) Create(ctx context.Context, record *model.SearchHistory) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *searchHistoryRepository) ListByUser(ctx context.Context, userID uint, limit int) ([]model.SearchHistory, error) {
	var records []model.SearchHistory
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
