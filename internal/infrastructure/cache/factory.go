package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/faasbill/backend/internal/domain/shared"
	"github.com/faasbill/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Stores bundles the coordination primitives the services need.
// Client is nil when the in-memory fallbacks are in use.
type Stores struct {
	Idempotency shared.IdempotencyStore
	Locker      shared.Locker
	Client      *redis.Client
}

// Close releases the store and the Redis client
func (s *Stores) Close() error {
	if s.Idempotency != nil {
		_ = s.Idempotency.Close()
	}
	if s.Client != nil {
		return s.Client.Close()
	}
	return nil
}

// Ping checks Redis when it is configured
func (s *Stores) Ping(ctx context.Context) error {
	if s.Client == nil {
		return nil
	}
	return s.Client.Ping(ctx).Err()
}

// Factory creates the stores based on configuration
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

// WithInMemoryFallback controls whether an unreachable Redis falls back to
// in-memory stores. Default is true.
func WithInMemoryFallback(allow bool) FactoryOption {
	return func(f *Factory) {
		f.allowInMemoryFallback = allow
	}
}

// NewFactory creates a new factory
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

// NewRedisClient connects and pings Redis
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr(), err)
	}
	return client, nil
}

// InMemory returns process-local stores
func (f *Factory) InMemory() *Stores {
	return &Stores{
		Idempotency: NewInMemoryIdempotencyStore(),
		Locker:      NewInMemoryLocker(),
	}
}

// Create returns Redis-backed stores when Redis is configured and reachable.
// An empty host selects the in-memory stores directly.
func (f *Factory) Create(ctx context.Context) (*Stores, error) {
	if f.redisConfig.Host == "" {
		f.logger.Info("Redis not configured, using in-memory idempotency store and locker")
		return f.InMemory(), nil
	}

	client, err := NewRedisClient(ctx, f.redisConfig)
	if err == nil {
		f.logger.Info("Using Redis idempotency store and locker", zap.String("addr", f.redisConfig.Addr()))
		return &Stores{
			Idempotency: NewRedisIdempotencyStore(client, ""),
			Locker:      NewRedisLocker(client, f.logger),
			Client:      client,
		}, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory stores. "+
		"Bill locks are then only exclusive within this instance.",
		zap.Error(err),
	)
	return f.InMemory(), nil
}
