package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/ledgerlink/ports"
	"github.com/redis/go-redis/v9"
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker serializes operations per key across instances sharing one Redis
type RedisLocker struct {
	client   *redis.Client
	prefix   string
	ttl      time.Duration
	interval time.Duration
}

// NewRedisLocker creates a Redis locker. ttl bounds how long a crashed holder keeps the lock.
func NewRedisLocker(client *redis.Client, ttl time.Duration) ports.Locker {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisLocker{
		client:   client,
		prefix:   "ledgerlink:lock:",
		ttl:      ttl,
		interval: 50 * time.Millisecond,
	}
}

// Lock polls until the key is acquired or ctx is done
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := l.prefix + strings.ToLower(key)
	token := uuid.New().String()

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			return nil, fmt.Errorf("failed to acquire lock: %w", err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	return func() {
		// Release with a fresh context so a cancelled operation still frees the lock
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err()
	}, nil
}
