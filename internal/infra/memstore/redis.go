package memstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tutu-network/vitals/internal/domain"
)

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Addr      string // host:port
	Password  string
	DB        int
	KeyPrefix string // prepended to every key (default "vitals:")
}

// Redis stores entries in Redis, relying on native key expiry.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis connects to Redis and verifies connectivity.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "vitals:"
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("memstore: connect to redis at %s: %w", cfg.Addr, err)
	}
	return &Redis{client: client, prefix: cfg.KeyPrefix}, nil
}

// Store writes value under key. A zero TTL means the key does not expire.
func (r *Redis) Store(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, r.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("memstore: set %q: %w", key, err)
	}
	return nil
}

// Retrieve reads key. Redis drops expired keys itself.
func (r *Redis) Retrieve(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("memstore: get %q: %w", key, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("memstore: get %q: %w", key, err)
	}
	return val, nil
}

// TTL returns the remaining lifetime of key. Negative means no expiry.
func (r *Redis) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := r.client.TTL(ctx, r.prefix+key).Result()
	if err != nil {
		return 0, fmt.Errorf("memstore: ttl %q: %w", key, err)
	}
	if d == -2 {
		return 0, fmt.Errorf("memstore: ttl %q: %w", key, domain.ErrNotFound)
	}
	return d, nil
}

// Close shuts down the Redis client.
func (r *Redis) Close() error {
	return r.client.Close()
}
