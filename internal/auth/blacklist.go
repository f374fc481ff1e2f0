package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedKeyPrefix = "token:revoked:"

// Blacklist tracks revoked token identifiers. Entries expire together with
// the token they revoke.
type Blacklist interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	// Claim revokes jti only if it was not revoked yet and reports whether
	// this call did it. Refresh rotation relies on exactly one caller winning.
	Claim(ctx context.Context, jti string, ttl time.Duration) (bool, error)
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type RedisBlacklist struct {
	client  redis.Cmdable
	timeout time.Duration
}

func NewRedisBlacklist(client redis.Cmdable, timeout time.Duration) *RedisBlacklist {
	return &RedisBlacklist{client: client, timeout: timeout}
}

func (b *RedisBlacklist) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, b.timeout)
}

// keep an entry at least this long so a token at the edge of expiry is still
// covered while clocks disagree
const minRevocationTTL = time.Second

func entryTTL(ttl time.Duration) time.Duration {
	if ttl < minRevocationTTL {
		return minRevocationTTL
	}
	return ttl
}

func (b *RedisBlacklist) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	if err := b.client.Set(ctx, revokedKeyPrefix+jti, "1", entryTTL(ttl)).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

func (b *RedisBlacklist) Claim(ctx context.Context, jti string, ttl time.Duration) (bool, error) {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	ok, err := b.client.SetNX(ctx, revokedKeyPrefix+jti, "1", entryTTL(ttl)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim token: %w", err)
	}
	return ok, nil
}

func (b *RedisBlacklist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	n, err := b.client.Exists(ctx, revokedKeyPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token blacklist: %w", err)
	}
	return n > 0, nil
}
