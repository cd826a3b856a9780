package handlers

import (
	"net/http"

	"family-taxi/internal/services"

	"github.com/gin-gonic/gin"
)

type LocationCreateRequest struct {
	Name       string   `json:"name" binding:"required"`
	Address    string   `json:"address" binding:"required"`
	Latitude   *float64 `json:"latitude" binding:"required"`
	Longitude  *float64 `json:"longitude" binding:"required"`
	IsFavorite bool     `json:"is_favorite"`
}

type LocationSearchRequest struct {
	Query string `json:"query" binding:"required"`
}

func LocationsList(locations *services.LocationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := principal(c)
		if !ok {
			return
		}
		list, err := locations.List(c.Request.Context(), p)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

func LocationCreate(locations *services.LocationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := principal(c)
		if !ok {
			return
		}
		var req LocationCreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		loc, err := locations.Create(c.Request.Context(), p, services.CreateLocationInput{
			Name:       req.Name,
			Address:    req.Address,
			Latitude:   *req.Latitude,
			Longitude:  *req.Longitude,
			IsFavorite: req.IsFavorite,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, loc)
	}
}

// LocationSearch ищет адрес среди сохранённых мест и у картографических сервисов
func LocationSearch(locations *services.LocationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := principal(c)
		if !ok {
			return
		}
		var req LocationSearchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		places, err := locations.Search(c.Request.Context(), p, req.Query)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, places)
	}
}
