package config

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxConfig configures the pool used for tenant schema DDL. Provisioning holds
// one connection per in-flight tenant for the lifetime of its advisory lock,
// so MaxConns bounds how many tenants can be provisioned in parallel.
type PgxConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

func DefaultPgxConfig() *PgxConfig {
	return &PgxConfig{
		DSN:             getWriterConfig().DSN(),
		MaxConns:        int32(getEnvIntWithDefault("PROVISION_MAX_CONNS", 10)),
		MinConns:        int32(getEnvIntWithDefault("PROVISION_MIN_CONNS", 1)),
		MaxConnLifetime: getEnvDurationWithDefault("PROVISION_CONN_MAX_LIFETIME", time.Hour),
	}
}

func (c *PgxConfig) GetPool(ctx context.Context) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(c.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pgx config: %w", err)
	}
	poolConfig.MaxConns = c.MaxConns
	poolConfig.MinConns = c.MinConns
	poolConfig.MaxConnLifetime = c.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}
