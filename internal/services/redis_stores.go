package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisDeclineStore хранит отказ под ключом trip:declined:<driver>:<trip> с TTL.
// Ключ истекает сам, поэтому после окна поездка снова предлагается водителю.
type RedisDeclineStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDeclineStore(client *redis.Client, ttl time.Duration) *RedisDeclineStore {
	return &RedisDeclineStore{client: client, ttl: ttl}
}

func declineKey(driverID, tripID uint) string {
	return fmt.Sprintf("trip:declined:%d:%d", driverID, tripID)
}

func (s *RedisDeclineStore) Remember(ctx context.Context, driverID, tripID uint) error {
	if err := s.client.Set(ctx, declineKey(driverID, tripID), 1, s.ttl).Err(); err != nil {
		return fmt.Errorf("ошибка сохранения отказа в Redis: %w", err)
	}
	return nil
}

func (s *RedisDeclineStore) Declined(ctx context.Context, driverID uint, tripIDs []uint) (map[uint]bool, error) {
	if len(tripIDs) == 0 {
		return nil, nil
	}
	keys := make([]string, len(tripIDs))
	for i, id := range tripIDs {
		keys[i] = declineKey(driverID, id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения отказов из Redis: %w", err)
	}
	declined := make(map[uint]bool)
	for i, v := range values {
		if v != nil {
			declined[tripIDs[i]] = true
		}
	}
	return declined, nil
}

// RedisTokenRevoker держит отозванный jti до истечения срока действия токена
type RedisTokenRevoker struct {
	client *redis.Client
}

func NewRedisTokenRevoker(client *redis.Client) *RedisTokenRevoker {
	return &RedisTokenRevoker{client: client}
}

func revokedKey(jti string) string {
	return "auth:revoked:" + jti
}

func (r *RedisTokenRevoker) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, revokedKey(jti), 1, ttl).Err(); err != nil {
		return fmt.Errorf("ошибка отзыва токена: %w", err)
	}
	return nil
}

func (r *RedisTokenRevoker) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := r.client.Exists(ctx, revokedKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("ошибка проверки отзыва токена: %w", err)
	}
	return n > 0, nil
}
