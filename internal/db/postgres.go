package db

import (
	"fmt"
	"log/slog"
	"time"

	"family-taxi/internal/config"
	"family-taxi/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ConnectWithRetry открывает соединение с PostgreSQL, повторяя попытки,
// пока база поднимается вместе с сервисом
func ConnectWithRetry(cfg config.Config, log *slog.Logger, maxAttempts int, delay time.Duration) (*gorm.DB, error) {
	var err error
	for i := 0; i < maxAttempts; i++ {
		var db *gorm.DB
		db, err = gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
			Logger:         logger.Default.LogMode(logger.Error),
			TranslateError: true,
		})
		if err == nil {
			sqlDB, err := db.DB()
			if err != nil {
				return nil, fmt.Errorf("не удалось получить доступ к sql.DB: %w", err)
			}
			sqlDB.SetMaxOpenConns(cfg.DB.MaxOpenConns)
			sqlDB.SetMaxIdleConns(cfg.DB.MaxIdleConns)
			sqlDB.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)
			return db, nil
		}
		log.Warn("попытка подключения к БД не удалась", "attempt", i+1, "max_attempts", maxAttempts, "error", err)
		time.Sleep(delay)
	}
	return nil, fmt.Errorf("не удалось подключиться к базе данных после %d попыток: %w", maxAttempts, err)
}

// Migrate создаёт и обновляет таблицы users, trips и locations
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.User{}, &models.Trip{}, &models.Location{}); err != nil {
		return fmt.Errorf("ошибка миграции базы данных: %w", err)
	}
	return nil
}
