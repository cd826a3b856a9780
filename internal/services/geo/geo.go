// Package geo содержит расчёты расстояния, времени в пути и стоимости поездки.
package geo

import "math"

const (
	earthRadiusKm = 6371.0

	DefaultAvgSpeedKmh = 30.0
	DefaultBaseFare    = 5.0
	DefaultPerKmRate   = 1.5
)

// DistanceKm - расстояние по большому кругу (формула гаверсинусов) в километрах
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// EstimateMinutes - время в пути, округлённое вверх до целой минуты.
// avgSpeedKmh <= 0 заменяется скоростью по умолчанию.
func EstimateMinutes(distanceKm, avgSpeedKmh float64) int {
	if avgSpeedKmh <= 0 {
		avgSpeedKmh = DefaultAvgSpeedKmh
	}
	return int(math.Ceil(distanceKm / avgSpeedKmh * 60))
}

// Fare = базовый тариф + тариф за километр * расстояние
func Fare(distanceKm, baseFare, perKmRate float64) float64 {
	return baseFare + perKmRate*distanceKm
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
