package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fruitai/outreach/internal/config"
	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned by GetString when the key does not exist
var ErrCacheMiss = errors.New("cache miss")

// Redis wraps the Redis client used for rate limiting and caching
type Redis struct {
	*redis.Client
}

// NewRedis creates and verifies a Redis connection
func NewRedis(cfg config.RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     20,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &Redis{Client: client}, nil
}

// HealthCheck verifies the Redis connection is healthy
func (r *Redis) HealthCheck(ctx context.Context) error {
	return r.Ping(ctx).Err()
}

// SetWithTTL sets a key with an expiration time
func (r *Redis) SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return r.Set(ctx, key, value, ttl).Err()
}

// GetString retrieves a string value, returning ErrCacheMiss for absent keys
func (r *Redis) GetString(ctx context.Context, key string) (string, error) {
	s, err := r.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	return s, err
}

// IncrWindow increments a counter and starts its expiry window on first use
func (r *Redis) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := r.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := r.Expire(ctx, key, window).Err(); err != nil {
			return count, err
		}
	}
	return count, nil
}

// WindowTTL returns the time left in a counter's window
func (r *Redis) WindowTTL(ctx context.Context, key string) (time.Duration, error) {
	return r.TTL(ctx, key).Result()
}
