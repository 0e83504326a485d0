package store

import (
	"context"
	"fmt"
	"time"

	"github.com/layer-3/ledgerlink/ports"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps revoked session ids as expiring Redis keys.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client) ports.Store {
	return &RedisStore{
		client: client,
		prefix: "ledgerlink:session:revoked:",
	}
}

// InvalidateToken revokes tokenID until expiry; non-positive expiries get a minute.
func (s *RedisStore) InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error {
	if expiry <= 0 {
		expiry = time.Minute
	}

	if err := s.client.Set(ctx, s.prefix+tokenID, "1", expiry).Err(); err != nil {
		return fmt.Errorf("failed to invalidate token: %w", err)
	}

	return nil
}

func (s *RedisStore) IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error) {
	val, err := s.client.Exists(ctx, s.prefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token invalidation: %w", err)
	}

	return val > 0, nil
}
