package repository

import (
	"context"
	"time"

	"family-taxi/internal/models"

	"gorm.io/gorm"
)

type TripRepository struct {
	db *gorm.DB
}

func NewTripRepository(db *gorm.DB) *TripRepository {
	return &TripRepository{db: db}
}

func (r *TripRepository) Create(ctx context.Context, trip *models.Trip) error {
	trip.Status = models.TripStatusRequested
	trip.DriverID = nil
	if trip.RequestedAt.IsZero() {
		trip.RequestedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(trip).Error
}

func (r *TripRepository) GetByID(ctx context.Context, id uint) (*models.Trip, error) {
	var trip models.Trip
	if err := r.db.WithContext(ctx).First(&trip, id).Error; err != nil {
		return nil, translate(err)
	}
	return &trip, nil
}

// ListRecentByPassenger возвращает последние поездки пассажира, новые первыми
func (r *TripRepository) ListRecentByPassenger(ctx context.Context, passengerID uint, limit int) ([]models.Trip, error) {
	var trips []models.Trip
	err := r.db.WithContext(ctx).
		Where("passenger_id = ?", passengerID).
		Order("requested_at DESC").Order("id DESC").
		Limit(limit).
		Find(&trips).Error
	return trips, err
}

// ListPending возвращает поездки без водителя в порядке создания
func (r *TripRepository) ListPending(ctx context.Context) ([]models.Trip, error) {
	var trips []models.Trip
	err := r.db.WithContext(ctx).
		Where("status = ? AND driver_id IS NULL", models.TripStatusRequested).
		Order("requested_at ASC").Order("id ASC").
		Find(&trips).Error
	return trips, err
}

// FindActiveByDriver возвращает принятую или начатую поездку водителя
func (r *TripRepository) FindActiveByDriver(ctx context.Context, driverID uint) (*models.Trip, error) {
	var trip models.Trip
	err := r.db.WithContext(ctx).
		Where("driver_id = ? AND status IN ?", driverID, models.ActiveDriverStatuses).
		Order("accepted_at DESC").
		First(&trip).Error
	if err != nil {
		return nil, translate(err)
	}
	return &trip, nil
}

// Reaffirm - повторное подтверждение заявки пассажиром. Статус не меняется,
// но запись выполняется с тем же условием, что и остальные переходы.
func (r *TripRepository) Reaffirm(ctx context.Context, id, passengerID uint) error {
	res := r.db.WithContext(ctx).Model(&models.Trip{}).
		Where("id = ? AND passenger_id = ? AND status = ?", id, passengerID, models.TripStatusRequested).
		Update("status", models.TripStatusRequested)
	return guarded(res)
}

// Accept назначает водителя. Строка водителя блокируется на время транзакции,
// поэтому один водитель не может одновременно принять две поездки.
func (r *TripRepository) Accept(ctx context.Context, id, driverID uint, now time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var driver models.User
		if err := forUpdate(tx).Select("id").First(&driver, driverID).Error; err != nil {
			return translate(err)
		}

		var active int64
		if err := tx.Model(&models.Trip{}).
			Where("driver_id = ? AND status IN ?", driverID, models.ActiveDriverStatuses).
			Count(&active).Error; err != nil {
			return err
		}
		if active > 0 {
			return ErrDriverBusy
		}

		res := tx.Model(&models.Trip{}).
			Where("id = ? AND status = ? AND driver_id IS NULL", id, models.TripStatusRequested).
			Updates(map[string]interface{}{
				"status":      models.TripStatusAccepted,
				"driver_id":   driverID,
				"accepted_at": now,
			})
		return guarded(res)
	})
}

func (r *TripRepository) Start(ctx context.Context, id, driverID uint, now time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.Trip{}).
		Where("id = ? AND driver_id = ? AND status = ?", id, driverID, models.TripStatusAccepted).
		Updates(map[string]interface{}{
			"status":     models.TripStatusInProgress,
			"started_at": now,
		})
	return guarded(res)
}

// Complete завершает поездку и увеличивает счётчик поездок водителя в одной транзакции
func (r *TripRepository) Complete(ctx context.Context, id, driverID uint, now time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Trip{}).
			Where("id = ? AND driver_id = ? AND status = ?", id, driverID, models.TripStatusInProgress).
			Updates(map[string]interface{}{
				"status":       models.TripStatusCompleted,
				"completed_at": now,
			})
		if err := guarded(res); err != nil {
			return err
		}
		return NewUserRepository(tx).IncrementTripCount(ctx, driverID)
	})
}

// Cancel отменяет ещё не начатую поездку пассажира
func (r *TripRepository) Cancel(ctx context.Context, id, passengerID uint, reason string, now time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.Trip{}).
		Where("id = ? AND passenger_id = ? AND status IN ?", id, passengerID,
			[]models.TripStatus{models.TripStatusRequested, models.TripStatusAccepted}).
		Updates(map[string]interface{}{
			"status":              models.TripStatusCancelled,
			"cancelled_at":        now,
			"cancellation_reason": reason,
		})
	return guarded(res)
}

// RateDriver сохраняет оценку, которую пассажир поставил водителю, и пересчитывает рейтинг водителя
func (r *TripRepository) RateDriver(ctx context.Context, id, passengerID uint, rating int, review string) error {
	return r.rate(ctx, id, passengerID, rating, review, models.RolePassenger)
}

// RatePassenger сохраняет оценку, которую водитель поставил пассажиру, и пересчитывает рейтинг пассажира
func (r *TripRepository) RatePassenger(ctx context.Context, id, driverID uint, rating int, review string) error {
	return r.rate(ctx, id, driverID, rating, review, models.RoleDriver)
}

func (r *TripRepository) rate(ctx context.Context, id, raterID uint, rating int, review string, raterRole models.Role) error {
	raterCol, ratingCol, reviewCol, rateeRole := "passenger_id", "driver_rating", "driver_review", models.RoleDriver
	if raterRole == models.RoleDriver {
		raterCol, ratingCol, reviewCol, rateeRole = "driver_id", "passenger_rating", "passenger_review", models.RolePassenger
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Trip{}).
			Where("id = ? AND status = ?", id, models.TripStatusCompleted).
			Where(raterCol+" = ?", raterID).
			Where(ratingCol + " IS NULL").
			Updates(map[string]interface{}{
				ratingCol: rating,
				reviewCol: review,
			})
		if err := guarded(res); err != nil {
			return err
		}

		var trip models.Trip
		if err := tx.Select("id", "passenger_id", "driver_id").First(&trip, id).Error; err != nil {
			return translate(err)
		}
		rateeID := trip.PassengerID
		if rateeRole == models.RoleDriver {
			if trip.DriverID == nil {
				return ErrStaleStatus
			}
			rateeID = *trip.DriverID
		}
		return NewUserRepository(tx).RecomputeRating(ctx, rateeID, rateeRole)
	})
}

type DriverDayTotals struct {
	Trips    int64
	Earnings float64
}

// CompletedByDriverSince считает завершённые поездки водителя и заработок начиная с момента since
func (r *TripRepository) CompletedByDriverSince(ctx context.Context, driverID uint, since time.Time) (DriverDayTotals, error) {
	var totals DriverDayTotals
	err := r.db.WithContext(ctx).Model(&models.Trip{}).
		Select("COUNT(*) AS trips, COALESCE(SUM(total_fare), 0) AS earnings").
		Where("driver_id = ? AND status = ? AND completed_at >= ?", driverID, models.TripStatusCompleted, since).
		Scan(&totals).Error
	return totals, err
}

func guarded(res *gorm.DB) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleStatus
	}
	return nil
}
