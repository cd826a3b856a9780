package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"family-taxi/internal/middleware"
	"family-taxi/internal/models"
	"family-taxi/internal/services"

	"github.com/gin-gonic/gin"
)

// respondError переводит ошибку сервиса в HTTP ответ. Неизвестные ошибки
// попадают в c.Errors и в лог запроса, клиент видит только "internal error".
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrNotAuthenticated):
		status = http.StatusUnauthorized
	case errors.Is(err, services.ErrNotAuthorized):
		status = http.StatusForbidden
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrPreconditionFailed):
		status = http.StatusConflict
	case errors.Is(err, services.ErrValidation):
		status = http.StatusBadRequest
	}

	_ = c.Error(err)
	if status == http.StatusInternalServerError {
		c.AbortWithStatusJSON(status, gin.H{"error": "internal error"})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	respondError(c, fmt.Errorf("%w: неверный формат данных: %v", services.ErrValidation, err))
}

// principal достаёт пользователя из контекста; без него отвечает 401
func principal(c *gin.Context) (models.Principal, bool) {
	p, ok := middleware.Principal(c)
	if !ok {
		respondError(c, services.ErrNotAuthenticated)
	}
	return p, ok
}

// idParam разбирает числовой :id из пути
func idParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, fmt.Errorf("%w: неверный ID %q", services.ErrValidation, c.Param("id")))
		return 0, false
	}
	return uint(id), true
}

// bindOptionalJSON разбирает тело, если оно есть
func bindOptionalJSON(c *gin.Context, dst interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err)
		return false
	}
	return true
}
