package cache

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/channelsync/backend/internal/domain/platform"
	"github.com/channelsync/backend/internal/domain/shared"
	"github.com/channelsync/backend/internal/infrastructure/config"
)

// Factory creates cache-backed components based on configuration. When Redis
// is disabled or unreachable it falls back to in-memory implementations,
// which do not share state across process instances.
type Factory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// FactoryOption is a functional option for configuring the factory
type FactoryOption func(*Factory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *Factory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to in-memory
// implementations when Redis is unavailable. Default is true.
func WithInMemoryFallback(allow bool) FactoryOption {
	return func(f *Factory) {
		f.allowInMemoryFallback = allow
	}
}

// NewFactory creates a new cache factory
func NewFactory(cfg config.RedisConfig, opts ...FactoryOption) *Factory {
	f := &Factory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

func (f *Factory) redisCacheConfig() RedisConfig {
	return RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	}
}

// CreateEchoSuppressor creates an echo suppressor. Redis is preferred when
// enabled; otherwise the in-memory suppressor is used, in which case a
// restart may let a single echo per listing back through.
func (f *Factory) CreateEchoSuppressor() (platform.EchoSuppressor, error) {
	if !f.redisConfig.Enabled {
		f.logger.Info("using in-memory echo suppressor")
		return NewInMemoryEchoSuppressor(), nil
	}

	suppressor, err := NewRedisEchoSuppressor(f.redisCacheConfig())
	if err == nil {
		f.logger.Info("using Redis echo suppressor")
		return suppressor, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for echo suppression but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory echo suppressor. "+
		"Suppression state will not be shared across instances.",
		zap.Error(err),
	)
	return NewInMemoryEchoSuppressor(), nil
}

// CreateIdempotencyStore creates an idempotency store. Redis is preferred
// when enabled; the in-memory store cannot deduplicate across instances.
func (f *Factory) CreateIdempotencyStore() (shared.IdempotencyStore, error) {
	if !f.redisConfig.Enabled {
		f.logger.Info("using in-memory idempotency store")
		return NewInMemoryIdempotencyStore(), nil
	}

	store, err := NewRedisIdempotencyStore(f.redisCacheConfig())
	if err == nil {
		f.logger.Info("using Redis idempotency store")
		return store, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for idempotency but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory idempotency store. "+
		"This may cause duplicate event processing in distributed deployments.",
		zap.Error(err),
	)
	return NewInMemoryIdempotencyStore(), nil
}
