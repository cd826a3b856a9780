package models

import (
	"time"
)

type TripStatus string

const (
	TripStatusRequested  TripStatus = "requested"   // Ожидает водителя
	TripStatusAccepted   TripStatus = "accepted"    // Водитель назначен и едет к пассажиру
	TripStatusInProgress TripStatus = "in_progress" // Пассажир в машине
	TripStatusCompleted  TripStatus = "completed"   // Поездка завершена
	TripStatusCancelled  TripStatus = "cancelled"   // Поездка отменена
)

// ActiveDriverStatuses - статусы, при которых водитель считается занятым
var ActiveDriverStatuses = []TripStatus{TripStatusAccepted, TripStatusInProgress}

type Trip struct {
	ID          uint       `json:"id" gorm:"primaryKey;autoIncrement"`
	PassengerID uint       `json:"passenger_id" gorm:"column:passenger_id;not null;index"`
	DriverID    *uint      `json:"driver_id" gorm:"column:driver_id;index"`
	Status      TripStatus `json:"status" gorm:"column:status;not null;default:'requested';type:varchar(20);index"`

	PickupAddress        string  `json:"pickup_address" gorm:"column:pickup_address;not null"`
	PickupLatitude       float64 `json:"pickup_latitude" gorm:"column:pickup_latitude;not null"`
	PickupLongitude      float64 `json:"pickup_longitude" gorm:"column:pickup_longitude;not null"`
	DestinationAddress   string  `json:"destination_address" gorm:"column:destination_address;not null"`
	DestinationLatitude  float64 `json:"destination_latitude" gorm:"column:destination_latitude;not null"`
	DestinationLongitude float64 `json:"destination_longitude" gorm:"column:destination_longitude;not null"`

	Distance  float64 `json:"distance" gorm:"column:distance;not null"`
	BaseFare  float64 `json:"base_fare" gorm:"column:base_fare;not null"`
	PerKmRate float64 `json:"per_km_rate" gorm:"column:per_km_rate;not null"`
	TotalFare float64 `json:"total_fare" gorm:"column:total_fare;not null"`

	RequestedAt time.Time  `json:"requested_at" gorm:"column:requested_at;not null;index"`
	AcceptedAt  *time.Time `json:"accepted_at" gorm:"column:accepted_at"`
	StartedAt   *time.Time `json:"started_at" gorm:"column:started_at"`
	CompletedAt *time.Time `json:"completed_at" gorm:"column:completed_at"`
	CancelledAt *time.Time `json:"cancelled_at" gorm:"column:cancelled_at"`

	CancellationReason string `json:"cancellation_reason,omitempty" gorm:"column:cancellation_reason;default:''"`

	// Оценка, которую водитель поставил пассажиру
	PassengerRating *int   `json:"passenger_rating" gorm:"column:passenger_rating"`
	PassengerReview string `json:"passenger_review" gorm:"column:passenger_review;default:''"`
	// Оценка, которую пассажир поставил водителю
	DriverRating *int   `json:"driver_rating" gorm:"column:driver_rating"`
	DriverReview string `json:"driver_review" gorm:"column:driver_review;default:''"`
}

// IsActive - поездка ещё не завершена и не отменена
func (t *Trip) IsActive() bool {
	return t.Status == TripStatusRequested || t.Status == TripStatusAccepted || t.Status == TripStatusInProgress
}

// AssignedTo сообщает, назначена ли поездка указанному водителю
func (t *Trip) AssignedTo(driverID uint) bool {
	return t.DriverID != nil && *t.DriverID == driverID
}

// TripStatusUpdate - сообщение, которое получают участники поездки после перехода
type TripStatusUpdate struct {
	TripID    uint       `json:"trip_id"`
	Status    TripStatus `json:"status"`
	Event     string     `json:"event"`
	DriverID  *uint      `json:"driver_id,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// DriverStats - сводка водителя за текущие сутки
type DriverStats struct {
	TripCount     int     `json:"trip_count"`
	TodayTrips    int64   `json:"today_trips"`
	TodayEarnings float64 `json:"today_earnings"`
	Rating        float64 `json:"rating"`
	IsOnline      bool    `json:"is_online"`
}

// TripEstimate - предварительный расчёт поездки
type TripEstimate struct {
	Distance         float64 `json:"distance"`
	EstimatedMinutes int     `json:"estimated_minutes"`
	BaseFare         float64 `json:"base_fare"`
	PerKmRate        float64 `json:"per_km_rate"`
	TotalFare        float64 `json:"total_fare"`
	Source           string  `json:"source"`
}
