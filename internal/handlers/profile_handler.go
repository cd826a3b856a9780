package handlers

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"family-taxi/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const maxPhotoSize = 5 << 20

var allowedPhotoExt = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true}

type LocationUpdateRequest struct {
	Latitude  *float64 `json:"latitude" binding:"required"`
	Longitude *float64 `json:"longitude" binding:"required"`
}

// UserUpdateLocation сохраняет текущие координаты пользователя
func UserUpdateLocation(users *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := principal(c)
		if !ok {
			return
		}
		var req LocationUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}

		user, err := users.UpdateLocation(c.Request.Context(), p, *req.Latitude, *req.Longitude)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

// UserUpdatePhoto принимает фото профиля в поле "file" и сохраняет его
// в uploadDir/yyyy/mm/dd под случайным именем
func UserUpdatePhoto(users *services.UserService, uploadDir string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := principal(c)
		if !ok {
			return
		}

		file, err := c.FormFile("file")
		if err != nil {
			respondError(c, fmt.Errorf("%w: файл не найден", services.ErrValidation))
			return
		}
		if file.Size > maxPhotoSize {
			respondError(c, fmt.Errorf("%w: файл больше %d МБ", services.ErrValidation, maxPhotoSize>>20))
			return
		}
		ext := strings.ToLower(filepath.Ext(file.Filename))
		if !allowedPhotoExt[ext] {
			respondError(c, fmt.Errorf("%w: неподдерживаемый формат %q", services.ErrValidation, ext))
			return
		}

		// Создаем поддиректорию по дате
		datePath := time.Now().Format("2006/01/02")
		dateDir := filepath.Join(uploadDir, filepath.FromSlash(datePath))
		if err := os.MkdirAll(dateDir, 0o755); err != nil {
			respondError(c, fmt.Errorf("ошибка при создании директории: %w", err))
			return
		}

		name := uuid.NewString() + ext
		if err := c.SaveUploadedFile(file, filepath.Join(dateDir, name)); err != nil {
			respondError(c, fmt.Errorf("ошибка при сохранении файла: %w", err))
			return
		}

		user, err := users.UpdatePhoto(c.Request.Context(), p, fmt.Sprintf("/uploads/%s/%s", datePath, name))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}
