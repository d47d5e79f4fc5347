package resilient

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisDurable writes objects to Redis. Suited for deployments that already
// run Redis and want a low-latency durable tier; persistence depends on the
// server's AOF/RDB configuration.
type RedisDurable struct {
	client *redis.Client
	prefix string
}

// RedisConfig holds configuration for RedisDurable.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string // Optional key prefix
}

// NewRedisDurable connects to Redis and verifies the connection.
func NewRedisDurable(ctx context.Context, cfg RedisConfig) (*RedisDurable, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisDurable{client: rdb, prefix: cfg.Prefix}, nil
}

func (s *RedisDurable) Write(ctx context.Context, key string, data []byte) error {
	// SET is naturally idempotent; no expiry, durable entries never age out.
	if err := s.client.Set(ctx, s.prefix+key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set failed for %s: %w", key, err)
	}
	return nil
}

func (s *RedisDurable) Name() string { return "redis" }

// Close closes the Redis client.
func (s *RedisDurable) Close() error {
	return s.client.Close()
}
