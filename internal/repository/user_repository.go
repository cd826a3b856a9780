package repository

import (
	"context"
	"time"

	"family-taxi/internal/models"

	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.Rating == 0 {
		user.Rating = models.DefaultUserRating
	}
	return translate(r.db.WithContext(ctx).Create(user).Error)
}

func (r *UserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *UserRepository) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).Order("id ASC").Find(&users).Error
	return users, err
}

func (r *UserRepository) UpdateLocation(ctx context.Context, id uint, lat, lng float64) error {
	return r.updateColumns(ctx, id, map[string]interface{}{
		"current_latitude":  lat,
		"current_longitude": lng,
	})
}

func (r *UserRepository) SetOnline(ctx context.Context, id uint, online bool) error {
	return r.updateColumns(ctx, id, map[string]interface{}{"is_online": online})
}

func (r *UserRepository) UpdateProfilePicture(ctx context.Context, id uint, url string) error {
	return r.updateColumns(ctx, id, map[string]interface{}{"profile_picture": url})
}

func (r *UserRepository) IncrementTripCount(ctx context.Context, id uint) error {
	return r.updateColumns(ctx, id, map[string]interface{}{"trip_count": gorm.Expr("trip_count + 1")})
}

// RecomputeRating пересчитывает рейтинг как среднее всех оценок, полученных
// пользователем в указанной роли по завершённым поездкам. Без оценок рейтинг не меняется.
// Удалённый пользователь пропускается: оценка в поездке всё равно сохраняется.
func (r *UserRepository) RecomputeRating(ctx context.Context, id uint, role models.Role) error {
	ratingCol, partyCol := "driver_rating", "driver_id"
	if role == models.RolePassenger {
		ratingCol, partyCol = "passenger_rating", "passenger_id"
	}

	var result struct {
		Avg *float64
	}
	err := r.db.WithContext(ctx).Model(&models.Trip{}).
		Select("AVG("+ratingCol+") AS avg").
		Where(partyCol+" = ? AND status = ?", id, models.TripStatusCompleted).
		Where(ratingCol + " IS NOT NULL").
		Scan(&result).Error
	if err != nil {
		return err
	}
	if result.Avg == nil {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).
		Update("rating", *result.Avg).Error
}

// Delete удаляет пользователя вместе с сохранёнными местами. Активные поездки
// пассажира и водителя отменяются, статус поездки назад не откатывается.
func (r *UserRepository) Delete(ctx context.Context, id uint, now time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := forUpdate(tx).First(&user, id).Error; err != nil {
			return translate(err)
		}

		if err := NewLocationRepository(tx).DeleteByUser(ctx, id); err != nil {
			return err
		}

		cancel := map[string]interface{}{
			"status":              models.TripStatusCancelled,
			"cancelled_at":        now,
			"cancellation_reason": "пользователь удалён",
		}
		if err := tx.Model(&models.Trip{}).
			Where("passenger_id = ? AND status IN ?", id, []models.TripStatus{
				models.TripStatusRequested, models.TripStatusAccepted, models.TripStatusInProgress,
			}).
			Updates(cancel).Error; err != nil {
			return err
		}

		if user.Role == models.RoleDriver {
			if err := tx.Model(&models.Trip{}).
				Where("driver_id = ? AND status IN ?", id, []models.TripStatus{
					models.TripStatusAccepted, models.TripStatusInProgress,
				}).
				Updates(cancel).Error; err != nil {
				return err
			}
		}

		return tx.Delete(&models.User{}, id).Error
	})
}

func (r *UserRepository) updateColumns(ctx context.Context, id uint, values map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
