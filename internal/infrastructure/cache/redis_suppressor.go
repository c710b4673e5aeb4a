package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/channelsync/backend/internal/domain/platform"
)

// echoKeyPrefix namespaces suppression keys in Redis
const echoKeyPrefix = "csync:echo:"

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// RedisEchoSuppressor implements echo suppression using Redis. Suppression
// markers expire via TTL, so entries never need explicit cleanup, and state
// is shared across instances in distributed deployments.
type RedisEchoSuppressor struct {
	client *redis.Client
}

// NewRedisEchoSuppressor creates a Redis-backed echo suppressor
func NewRedisEchoSuppressor(cfg RedisConfig) (*RedisEchoSuppressor, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisEchoSuppressor{client: client}, nil
}

// NewRedisEchoSuppressorWithClient creates a suppressor with an existing client.
// Useful for testing or when sharing a client across components.
func NewRedisEchoSuppressorWithClient(client *redis.Client) *RedisEchoSuppressor {
	return &RedisEchoSuppressor{client: client}
}

// Suppress marks a listing as recently written by us
func (s *RedisEchoSuppressor) Suppress(ctx context.Context, code platform.Code, externalID string, ttl time.Duration) error {
	if err := s.client.Set(ctx, echoKey(code, externalID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to set suppression marker: %w", err)
	}
	return nil
}

// IsSuppressed reports whether a listing carries an unexpired suppression marker
func (s *RedisEchoSuppressor) IsSuppressed(ctx context.Context, code platform.Code, externalID string) (bool, error) {
	exists, err := s.client.Exists(ctx, echoKey(code, externalID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check suppression marker: %w", err)
	}
	return exists > 0, nil
}

// Close closes the Redis client
func (s *RedisEchoSuppressor) Close() error {
	return s.client.Close()
}

// echoKey builds the Redis key for a (platform, listing) pair
func echoKey(code platform.Code, externalID string) string {
	return echoKeyPrefix + string(code) + ":" + externalID
}

// Ensure RedisEchoSuppressor implements EchoSuppressor
var _ platform.EchoSuppressor = (*RedisEchoSuppressor)(nil)
