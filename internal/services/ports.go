package services

import (
	"context"
	"errors"
	"time"

	"family-taxi/internal/models"
)

// Notifier доставляет события участникам поездки. Доставка не гарантирована:
// клиенты всё равно опрашивают REST.
type Notifier interface {
	NotifyTripStatus(userIDs []uint, update models.TripStatusUpdate)
	NotifyDriverLocation(passengerID, tripID uint, lat, lng float64)
}

// DeclineStore помнит отказы водителей от поездок в течение короткого окна
type DeclineStore interface {
	Remember(ctx context.Context, driverID, tripID uint) error
	Declined(ctx context.Context, driverID uint, tripIDs []uint) (map[uint]bool, error)
}

// TokenRevoker хранит отозванные при выходе идентификаторы токенов
type TokenRevoker interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// RouteEstimator считает длину маршрута по дорогам
type RouteEstimator interface {
	RouteDistanceKm(ctx context.Context, fromLat, fromLng, toLat, toLng float64) (float64, error)
}

// Geocoder ищет адреса по текстовому запросу
type Geocoder interface {
	SearchPlaces(ctx context.Context, query string) ([]models.Place, error)
}

type nopNotifier struct{}

func (nopNotifier) NotifyTripStatus([]uint, models.TripStatusUpdate)   {}
func (nopNotifier) NotifyDriverLocation(uint, uint, float64, float64) {}

type nopDeclineStore struct{}

func (nopDeclineStore) Remember(context.Context, uint, uint) error { return nil }
func (nopDeclineStore) Declined(context.Context, uint, []uint) (map[uint]bool, error) {
	return nil, nil
}

type nopRevoker struct{}

func (nopRevoker) Revoke(context.Context, string, time.Time) error { return nil }
func (nopRevoker) IsRevoked(context.Context, string) (bool, error) { return false, nil }

// RouteChain опрашивает провайдеров маршрутов по порядку до первого успешного ответа
type RouteChain []RouteEstimator

func (rc RouteChain) RouteDistanceKm(ctx context.Context, fromLat, fromLng, toLat, toLng float64) (float64, error) {
	err := errors.New("нет провайдеров маршрутов")
	for _, r := range rc {
		var km float64
		km, err = r.RouteDistanceKm(ctx, fromLat, fromLng, toLat, toLng)
		if err == nil {
			return km, nil
		}
	}
	return 0, err
}

// MultiNotifier рассылает события всем получателям по очереди
type MultiNotifier []Notifier

func (m MultiNotifier) NotifyTripStatus(userIDs []uint, update models.TripStatusUpdate) {
	for _, n := range m {
		n.NotifyTripStatus(userIDs, update)
	}
}

func (m MultiNotifier) NotifyDriverLocation(passengerID, tripID uint, lat, lng float64) {
	for _, n := range m {
		n.NotifyDriverLocation(passengerID, tripID, lat, lng)
	}
}
