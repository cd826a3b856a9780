package dgis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// CacheService кэширует ответы 2ГИС в Redis. Без клиента Redis кэш выключен.
type CacheService struct {
	redisClient *redis.Client
	ttl         time.Duration
	enabled     bool
}

func NewCacheService(client *redis.Client, enabled bool, ttl time.Duration) *CacheService {
	return &CacheService{
		redisClient: client,
		ttl:         ttl,
		enabled:     enabled && client != nil,
	}
}

// Get получает данные из кэша
func (c *CacheService) Get(ctx context.Context, key string, result interface{}) (bool, error) {
	if !c.enabled {
		return false, nil
	}

	val, err := c.redisClient.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("ошибка при получении данных из кэша: %w", err)
	}

	if err := json.Unmarshal([]byte(val), result); err != nil {
		return false, fmt.Errorf("ошибка при десериализации данных из кэша: %w", err)
	}
	return true, nil
}

// Set сохраняет данные в кэш
func (c *CacheService) Set(ctx context.Context, key string, value interface{}) error {
	if !c.enabled {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("ошибка при сериализации данных для кэша: %w", err)
	}
	if err := c.redisClient.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("ошибка при сохранении данных в кэш: %w", err)
	}
	return nil
}

// RouteKey - координаты округляются до ~10 м, чтобы соседние запросы попадали в кэш
func RouteKey(startLat, startLng, endLat, endLng float64) string {
	return fmt.Sprintf("dgis:route:%.4f:%.4f:%.4f:%.4f", startLat, startLng, endLat, endLng)
}

func GeocodingKey(query string) string {
	return "dgis:geocoding:" + query
}
