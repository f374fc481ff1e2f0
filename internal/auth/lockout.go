package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/kingrain94/tenant-platform/internal/domain"
)

// LoginGuard counts failed logins per (scope, username) in a sliding window
// kept as a sorted set scored by time. Reaching the limit sets a lock key
// that expires on its own after the lockout period.
type LoginGuard struct {
	client      redis.Cmdable
	maxFailures int
	window      time.Duration
	lockout     time.Duration
	now         func() time.Time
}

func NewLoginGuard(client redis.Cmdable, maxFailures int, window, lockout time.Duration) *LoginGuard {
	return &LoginGuard{
		client:      client,
		maxFailures: maxFailures,
		window:      window,
		lockout:     lockout,
		now:         time.Now,
	}
}

func failuresKey(scope, username string) string {
	return fmt.Sprintf("login:failures:%s:%s", scope, username)
}

func lockKey(scope, username string) string {
	return fmt.Sprintf("login:locked:%s:%s", scope, username)
}

// Check fails with AccountLocked while the lock key exists.
func (g *LoginGuard) Check(ctx context.Context, scope, username string) error {
	ttl, err := g.client.TTL(ctx, lockKey(scope, username)).Result()
	if err != nil {
		return fmt.Errorf("failed to check login lock: %w", err)
	}
	// go-redis reports a missing key as -2 and a key without expiry as -1
	if ttl == -2 {
		return nil
	}
	if ttl < 0 {
		ttl = g.lockout
	}
	return domain.NewError(domain.CodeAccountLocked, "too many failed logins, retry in %s", ttl.Round(time.Second))
}

// RecordFailure adds one failure and reports whether it locked the account.
func (g *LoginGuard) RecordFailure(ctx context.Context, scope, username string) (bool, error) {
	now := g.now()
	key := failuresKey(scope, username)
	cutoff := now.Add(-g.window).UnixNano()

	var count *redis.IntCmd
	_, err := g.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: uuid.NewString()})
		pipe.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(cutoff, 10))
		count = pipe.ZCard(ctx, key)
		pipe.Expire(ctx, key, g.window)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to record login failure: %w", err)
	}

	if count.Val() < int64(g.maxFailures) {
		return false, nil
	}

	_, err = g.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, lockKey(scope, username), "1", g.lockout)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to lock account: %w", err)
	}
	return true, nil
}

// Reset clears the failure history after a successful login.
func (g *LoginGuard) Reset(ctx context.Context, scope, username string) error {
	if err := g.client.Del(ctx, failuresKey(scope, username)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to reset login failures: %w", err)
	}
	return nil
}
