package config

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig backs the token blacklist, login lockout, directory cache,
// rate limits and audit pub/sub. The read timeout bounds every blacklist
// lookup on the request path.
type RedisConfig struct {
	Host         string
	Port         string
	Password     string
	DB           int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Host:         getEnvWithDefault("REDIS_HOST", "localhost"),
		Port:         getEnvWithDefault("REDIS_PORT", "6379"),
		Password:     getEnvWithDefault("REDIS_PASSWORD", ""),
		DB:           getEnvIntWithDefault("REDIS_DB", 0),
		PoolSize:     getEnvIntWithDefault("REDIS_POOL_SIZE", 50),
		DialTimeout:  getEnvDurationWithDefault("REDIS_DIAL_TIMEOUT", 2*time.Second),
		ReadTimeout:  getEnvDurationWithDefault("REDIS_READ_TIMEOUT", 500*time.Millisecond),
		WriteTimeout: getEnvDurationWithDefault("REDIS_WRITE_TIMEOUT", 500*time.Millisecond),
	}
}

func (c *RedisConfig) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// GetClient connects and pings once so a misconfigured address fails at
// startup rather than on the first request.
func (c *RedisConfig) GetClient() (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         c.Addr(),
		Password:     c.Password,
		DB:           c.DB,
		PoolSize:     c.PoolSize,
		DialTimeout:  c.DialTimeout,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), c.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", c.Addr(), err)
	}

	return client, nil
}
