package bridge

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisCache wraps the go-redis client shared by the transient cache and the
// outcome queue.
type RedisCache struct {
	InternalCache *redis.Client
	logger        zerolog.Logger
}

// RedisConfig contains configuration for the Redis connection.
type RedisConfig struct {
	Addr        string
	Username    string
	Password    string
	Db          int
	PingTimeout time.Duration
	Logger      zerolog.Logger
}

// NewRedis creates a Redis client and verifies it with a ping.
func NewRedis(ctx context.Context, config RedisConfig) (*RedisCache, error) {
	logger := config.Logger
	logger.Info().Msgf("address: %s | username: %s | password: %s", config.Addr, config.Username, "******")

	rd := redis.NewClient(&redis.Options{
		Username: config.Username,
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.Db,
	})

	timeout := config.PingTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := rd.Ping(rctx).Err(); err != nil {
		logger.Error().Err(err).Msg("Failed to connect to Redis")
		_ = rd.Close()
		return nil, err
	}

	logger.Info().Msg("Redis connection successful.")
	return &RedisCache{InternalCache: rd, logger: logger}, nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client *redis.Client, logger zerolog.Logger) *RedisCache {
	return &RedisCache{InternalCache: client, logger: logger}
}

func (rd *RedisCache) Ping(ctx context.Context) error {
	return rd.InternalCache.Ping(ctx).Err()
}

func (rd *RedisCache) Shutdown() {
	if err := rd.InternalCache.Close(); err != nil {
		rd.logger.Warn().Err(err).Msg("Failed to close Redis client")
	}
}
