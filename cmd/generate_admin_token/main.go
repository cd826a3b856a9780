package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"family-taxi/internal/config"
	"family-taxi/internal/models"
	"family-taxi/internal/utils"
)

// Выпускает долгоживущий токен администратора для ручных запросов к API.
// ID должен принадлежать существующему администратору: сервисы проверяют роль
// по токену, но профиль и удаление пользователей опираются на ID.
func main() {
	userID := flag.Uint("user-id", 1, "ID администратора")
	ttl := flag.Duration("ttl", 365*24*time.Hour, "срок действия токена")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Ошибка конфигурации: %v", err)
	}
	if *userID == 0 {
		log.Fatal("user-id должен быть больше нуля")
	}

	token, claims, err := utils.NewJWTManager(cfg.JWT.Secret, cfg.JWT.TTL).GenerateWithTTL(*userID, models.RoleAdmin, *ttl)
	if err != nil {
		log.Fatalf("Ошибка генерации токена администратора: %v", err)
	}

	fmt.Printf("Токен администратора (user_id=%d, jti=%s, действует до %s):\n%s\n",
		*userID, claims.ID, claims.ExpiresAt.Time.Format(time.RFC3339), token)
}
