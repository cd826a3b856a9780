package handlers

import (
	"net/http"

	"family-taxi/internal/services"

	"github.com/gin-gonic/gin"
)

type TripCreateRequest struct {
	PickupAddress        string   `json:"pickup_address" binding:"required"`
	PickupLatitude       *float64 `json:"pickup_latitude" binding:"required"`
	PickupLongitude      *float64 `json:"pickup_longitude" binding:"required"`
	DestinationAddress   string   `json:"destination_address" binding:"required"`
	DestinationLatitude  *float64 `json:"destination_latitude" binding:"required"`
	DestinationLongitude *float64 `json:"destination_longitude" binding:"required"`

	Distance  *float64 `json:"distance"`
	BaseFare  *float64 `json:"base_fare"`
	PerKmRate *float64 `json:"per_km_rate"`
	TotalFare *float64 `json:"total_fare"`
}

type TripEstimateRequest struct {
	PickupLatitude       *float64 `json:"pickup_latitude" binding:"required"`
	PickupLongitude      *float64 `json:"pickup_longitude" binding:"required"`
	DestinationLatitude  *float64 `json:"destination_latitude" binding:"required"`
	DestinationLongitude *float64 `json:"destination_longitude" binding:"required"`
}

type TripCancelRequest struct {
	Reason string `json:"reason"`
}

type RateRequest struct {
	Rating int    `json:"rating" binding:"required"`
	Review string `json:"review"`
}

// TripCreate создаёт заявку пассажира на поездку
func TripCreate(trips *services.TripService) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := principal(c)
		if !ok {
			return
		}
		var req TripCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		trip, err := trips.Create(c.Request.Context(), p, services.CreateTripInput{
			PickupAddress:        req.PickupAddress,
			PickupLatitude:       *req.PickupLatitude,
			PickupLongitude:      *req.PickupLongitude,
			DestinationAddress:   req.DestinationAddress,
			DestinationLatitude:  *req.DestinationLatitude,
			DestinationLongitude: *req.DestinationLongitude,
			Distance:             req.Distance,
			BaseFare:             req.BaseFare,
			PerKmRate:            req.PerKmRate,
			TotalFare:            req.TotalFare,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, trip)
	}
}

func TripEstimate(trips *services.TripService) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := principal(c)
		if !ok {
			return
		}
		var req TripEstimateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		estimate, err := trips.Estimate(c.Request.Context(), p, services.EstimateInput{
			PickupLatitude:       *req.PickupLatitude,
			PickupLongitude:      *req.PickupLongitude,
			DestinationLatitude:  *req.DestinationLatitude,
			DestinationLongitude: *req.DestinationLongitude,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, estimate)
	}
}

// TripGetRecent - последние поездки пассажира, новые первыми
func TripGetRecent(trips *services.TripService) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := principal(c)
		if !ok {
			return
		}
		list, err := trips.Recent(c.Request.Context(), p)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

// TripGetByID отдаёт поездку с учётом прав просмотра. Используется и для
// /trips/:id, и для /driver/trips/:id.
func TripGetByID(trips *services.TripService) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := principal(c)
		if !ok {
			return
		}
		id, ok := idParam(c)
		if !ok {
			return
		}
		trip, err := trips.Get(c.Request.Context(), p, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, trip)
	}
}

// TripRequest подтверждает, что пассажир всё ещё ждёт водителя
func TripRequest(trips *services.TripService) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := principal(c)
		if !ok {
			return
		}
		id, ok := idParam(c)
		if !ok {
			return
		}
		trip, err := trips.Reaffirm(c.Request.Context(), p, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, trip)
	}
}

func TripCancel(trips *services.TripService) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := principal(c)
		if !ok {
			return
		}
		id, ok := idParam(c)
		if !ok {
			return
		}
		var req TripCancelRequest
		if !bindOptionalJSON(c, &req) {
			return
		}

		trip, err := trips.Cancel(c.Request.Context(), p, id, req.Reason)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, trip)
	}
}

// TripRateDriver - оценка водителя пассажиром после завершения поездки
func TripRateDriver(trips *services.TripService) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := principal(c)
		if !ok {
			return
		}
		id, ok := idParam(c)
		if !ok {
			return
		}
		var req RateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		trip, err := trips.RateDriver(c.Request.Context(), p, id, req.Rating, req.Review)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, trip)
	}
}
