package repository

import (
	"context"

	"family-taxi/internal/models"

	"gorm.io/gorm"
)

type LocationRepository struct {
	db *gorm.DB
}

func NewLocationRepository(db *gorm.DB) *LocationRepository {
	return &LocationRepository{db: db}
}

func (r *LocationRepository) Create(ctx context.Context, loc *models.Location) error {
	return r.db.WithContext(ctx).Create(loc).Error
}

// ListByUser - избранные места первыми
func (r *LocationRepository) ListByUser(ctx context.Context, userID uint) ([]models.Location, error) {
	var locations []models.Location
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("is_favorite DESC").Order("id ASC").
		Find(&locations).Error
	return locations, err
}

func (r *LocationRepository) DeleteByUser(ctx context.Context, userID uint) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Location{}).Error
}
