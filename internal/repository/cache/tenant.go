package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kingrain94/tenant-platform/internal/domain"
	"github.com/kingrain94/tenant-platform/internal/repository"
	"github.com/kingrain94/tenant-platform/pkg/logger"
)

const (
	slugKeyPrefix = "tenant:slug:"
	idKeyPrefix   = "tenant:id:"

	// generationKey is bumped by every invalidation. A fill only lands if the
	// generation is still the one read before the catalog query.
	generationKey = "tenant:generation"
)

// fillScript writes the cache entries unless an invalidation ran since the
// caller read the generation.
// KEYS[1] generation, KEYS[2..] entries; ARGV[1] expected generation,
// ARGV[2] payload, ARGV[3] ttl in milliseconds.
var fillScript = redis.NewScript(`
local gen = redis.call('GET', KEYS[1]) or '0'
if gen ~= ARGV[1] then
	return 0
end
for i = 2, #KEYS do
	redis.call('SET', KEYS[i], ARGV[2], 'PX', ARGV[3])
end
return 1
`)

// RedisClient is the subset of the redis client the cache uses.
type RedisClient interface {
	redis.Scripter
	Get(ctx context.Context, key string) *redis.StringCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// TenantRepository is a read-through cache in front of the tenant catalog.
// Lookups by slug and id are served from redis; concurrent misses for the
// same key share one catalog query. Every status change bumps the directory
// generation and drops the cached entries, and a fill started before that
// bump is discarded, so a suspended tenant is never cached as active.
// Redis failures fall through to the catalog.
type TenantRepository struct {
	repository.TenantRepository
	redis  RedisClient
	ttl    time.Duration
	group  singleflight.Group
	logger *logger.Logger
}

func NewTenantRepository(inner repository.TenantRepository, redis RedisClient, ttl time.Duration, logger *logger.Logger) *TenantRepository {
	return &TenantRepository{
		TenantRepository: inner,
		redis:            redis,
		ttl:              ttl,
		logger:           logger,
	}
}

func (r *TenantRepository) GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	return r.load(ctx, slugKeyPrefix+slug, func(ctx context.Context) (*domain.Tenant, error) {
		return r.TenantRepository.GetBySlug(ctx, slug)
	})
}

func (r *TenantRepository) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	return r.load(ctx, idKeyPrefix+id, func(ctx context.Context) (*domain.Tenant, error) {
		return r.TenantRepository.GetByID(ctx, id)
	})
}

func (r *TenantRepository) UpdateStatus(ctx context.Context, id string, from, to domain.TenantStatus) (*domain.Tenant, error) {
	tenant, err := r.TenantRepository.UpdateStatus(ctx, id, from, to)
	if err != nil {
		return nil, err
	}
	r.Invalidate(ctx, tenant)
	return tenant, nil
}

// Invalidate drops both cache entries of a tenant and fences off fills that
// read the catalog before the change.
func (r *TenantRepository) Invalidate(ctx context.Context, tenant *domain.Tenant) {
	if err := r.redis.Incr(ctx, generationKey).Err(); err != nil {
		r.logger.Warn("Failed to bump tenant cache generation", zap.String("tenant_id", tenant.ID), zap.Error(err))
	}
	if err := r.redis.Del(ctx, slugKeyPrefix+tenant.Slug, idKeyPrefix+tenant.ID).Err(); err != nil {
		r.logger.Warn("Failed to invalidate tenant cache",
			zap.String("tenant_id", tenant.ID),
			zap.String("slug", tenant.Slug),
			zap.Error(err))
	}
}

func (r *TenantRepository) load(ctx context.Context, key string, fetch func(context.Context) (*domain.Tenant, error)) (*domain.Tenant, error) {
	if tenant, ok := r.get(ctx, key); ok {
		return tenant, nil
	}

	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		generation, cacheable := r.generation(ctx)
		tenant, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		if cacheable {
			r.set(ctx, tenant, generation)
		}
		return tenant, nil
	})
	if err != nil {
		return nil, err
	}

	// Callers may mutate the result; hand each one its own copy.
	tenant := *v.(*domain.Tenant)
	return &tenant, nil
}

func (r *TenantRepository) get(ctx context.Context, key string) (*domain.Tenant, bool) {
	raw, err := r.redis.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("Tenant cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	var tenant domain.Tenant
	if err := json.Unmarshal(raw, &tenant); err != nil {
		r.logger.Warn("Discarding corrupt tenant cache entry", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return &tenant, true
}

// generation reads the current directory generation. The result is not
// cacheable when redis cannot tell us.
func (r *TenantRepository) generation(ctx context.Context) (string, bool) {
	gen, err := r.redis.Get(ctx, generationKey).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return "0", true
	case err != nil:
		r.logger.Warn("Tenant cache generation read failed", zap.Error(err))
		return "", false
	}
	return gen, true
}

func (r *TenantRepository) set(ctx context.Context, tenant *domain.Tenant, generation string) {
	raw, err := json.Marshal(tenant)
	if err != nil {
		r.logger.Error("Failed to marshal tenant for cache", err)
		return
	}
	keys := []string{generationKey, slugKeyPrefix + tenant.Slug, idKeyPrefix + tenant.ID}
	stored, err := fillScript.Run(ctx, r.redis, keys, generation, raw, r.ttl.Milliseconds()).Int()
	if err != nil {
		r.logger.Warn("Tenant cache write failed", zap.String("tenant_id", tenant.ID), zap.Error(fmt.Errorf("fill: %w", err)))
		return
	}
	if stored == 0 {
		r.logger.Debug("Skipped stale tenant cache fill", zap.String("tenant_id", tenant.ID))
	}
}
