package services

import (
	"family-taxi/internal/models"
	"family-taxi/internal/services/geo"
)

// FindNearestTrip выбирает из ожидающих поездок ту, у которой точка подачи ближе
// всего к водителю. Полный перебор: при равенстве побеждает поездка, встреченная
// первой (список упорядочен по времени заявки). Если ближайшая дальше radiusKm,
// возвращается nil. Без координат водителя подбора нет.
func FindNearestTrip(driverLat, driverLng *float64, pending []models.Trip, radiusKm float64) (*models.Trip, float64) {
	if driverLat == nil || driverLng == nil || len(pending) == 0 {
		return nil, 0
	}

	best := -1
	bestDist := 0.0
	for i := range pending {
		d := geo.DistanceKm(*driverLat, *driverLng, pending[i].PickupLatitude, pending[i].PickupLongitude)
		if best < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}

	if bestDist > radiusKm {
		return nil, bestDist
	}
	trip := pending[best]
	return &trip, bestDist
}
