package handlers

import (
	"net/http"

	"family-taxi/internal/models"
	"family-taxi/internal/services"

	"github.com/gin-gonic/gin"
)

type DriverStatusRequest struct {
	IsOnline *bool `json:"is_online" binding:"required"`
}

// DriverUpdateStatus переключает водителя на линию и обратно
func DriverUpdateStatus(users *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := principal(c)
		if !ok {
			return
		}
		var req DriverStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		user, err := users.SetOnline(c.Request.Context(), p, *req.IsOnline)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

func DriverStatsToday(trips *services.TripService) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := principal(c)
		if !ok {
			return
		}
		stats, err := trips.DriverStats(c.Request.Context(), p)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

// DriverActiveTrip отдаёт текущую поездку водителя или null
func DriverActiveTrip(trips *services.TripService) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := principal(c)
		if !ok {
			return
		}
		trip, err := trips.ActiveForDriver(c.Request.Context(), p)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, trip)
	}
}

// DriverNextRequest - ближайшая свободная заявка в радиусе или null.
// Клиент водителя опрашивает этот маршрут.
func DriverNextRequest(trips *services.TripService) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := principal(c)
		if !ok {
			return
		}
		trip, err := trips.NextRequest(c.Request.Context(), p)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, trip)
	}
}

func DriverDecline(trips *services.TripService) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := principal(c)
		if !ok {
			return
		}
		id, ok := idParam(c)
		if !ok {
			return
		}
		if err := trips.Decline(c.Request.Context(), p, id); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// driverTransition собирает обработчик для перехода без тела запроса
func driverTransition(apply func(*gin.Context, models.Principal, uint) (*models.Trip, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := principal(c)
		if !ok {
			return
		}
		id, ok := idParam(c)
		if !ok {
			return
		}
		trip, err := apply(c, p, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, trip)
	}
}

func DriverAccept(trips *services.TripService) gin.HandlerFunc {
	return driverTransition(func(c *gin.Context, p models.Principal, id uint) (*models.Trip, error) {
		return trips.Accept(c.Request.Context(), p, id)
	})
}

// DriverArrived сообщает пассажиру, что водитель на месте. Статус не меняется.
func DriverArrived(trips *services.TripService) gin.HandlerFunc {
	return driverTransition(func(c *gin.Context, p models.Principal, id uint) (*models.Trip, error) {
		return trips.Arrive(c.Request.Context(), p, id)
	})
}

func DriverStart(trips *services.TripService) gin.HandlerFunc {
	return driverTransition(func(c *gin.Context, p models.Principal, id uint) (*models.Trip, error) {
		return trips.Start(c.Request.Context(), p, id)
	})
}

func DriverComplete(trips *services.TripService) gin.HandlerFunc {
	return driverTransition(func(c *gin.Context, p models.Principal, id uint) (*models.Trip, error) {
		return trips.Complete(c.Request.Context(), p, id)
	})
}

// DriverRatePassenger - оценка пассажира водителем
func DriverRatePassenger(trips *services.TripService) gin.HandlerFunc {
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

		trip, err := trips.RatePassenger(c.Request.Context(), p, id, req.Rating, req.Review)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, trip)
	}
}
