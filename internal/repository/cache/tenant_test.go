package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kingrain94/tenant-platform/internal/domain"
	"github.com/kingrain94/tenant-platform/internal/mocks"
	"github.com/kingrain94/tenant-platform/pkg/logger"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *mocks.TenantRepository, *TenantRepository) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	inner := mocks.NewTenantRepository(t)
	return mr, inner, NewTenantRepository(inner, client, time.Minute, logger.NewNop())
}

func activeTenant() *domain.Tenant {
	return &domain.Tenant{
		ID:         "t-1",
		Slug:       "acme",
		Name:       "Acme",
		SchemaName: "tenant_acme",
		Status:     domain.TenantStatusActive,
	}
}

func TestTenantCache_GetBySlug_ReadsThrough(t *testing.T) {
	mr, inner, repo := setupTestRedis(t)
	ctx := context.Background()

	inner.On("GetBySlug", mock.Anything, "acme").Return(activeTenant(), nil).Once()

	first, err := repo.GetBySlug(ctx, "acme")
	require.NoError(t, err)
	second, err := repo.GetBySlug(ctx, "acme")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.True(t, mr.Exists("tenant:slug:acme"))
	assert.True(t, mr.Exists("tenant:id:t-1"))
	assert.Equal(t, time.Minute, mr.TTL("tenant:slug:acme"))

	// the id entry was filled by the slug lookup
	byID, err := repo.GetByID(ctx, "t-1")
	require.NoError(t, err)
	assert.Equal(t, "acme", byID.Slug)
}

func TestTenantCache_NotFoundIsNotCached(t *testing.T) {
	mr, inner, repo := setupTestRedis(t)
	ctx := context.Background()

	inner.On("GetBySlug", mock.Anything, "ghost").Return(nil, domain.NewError(domain.CodeTenantNotFound, "missing")).Twice()

	_, err := repo.GetBySlug(ctx, "ghost")
	assert.True(t, errors.Is(err, domain.ErrTenantNotFound))
	_, err = repo.GetBySlug(ctx, "ghost")
	assert.True(t, errors.Is(err, domain.ErrTenantNotFound))

	assert.False(t, mr.Exists("tenant:slug:ghost"))
}

func TestTenantCache_UpdateStatusInvalidates(t *testing.T) {
	mr, inner, repo := setupTestRedis(t)
	ctx := context.Background()

	suspended := activeTenant()
	suspended.Status = domain.TenantStatusSuspended

	inner.On("GetBySlug", mock.Anything, "acme").Return(activeTenant(), nil).Once()
	inner.On("UpdateStatus", mock.Anything, "t-1", domain.TenantStatusActive, domain.TenantStatusSuspended).Return(suspended, nil).Once()
	inner.On("GetBySlug", mock.Anything, "acme").Return(suspended, nil).Once()

	_, err := repo.GetBySlug(ctx, "acme")
	require.NoError(t, err)
	require.True(t, mr.Exists("tenant:slug:acme"))

	_, err = repo.UpdateStatus(ctx, "t-1", domain.TenantStatusActive, domain.TenantStatusSuspended)
	require.NoError(t, err)
	assert.False(t, mr.Exists("tenant:slug:acme"))
	assert.False(t, mr.Exists("tenant:id:t-1"))

	tenant, err := repo.GetBySlug(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, domain.TenantStatusSuspended, tenant.Status)
}

func TestTenantCache_FillRacingStatusChangeIsDiscarded(t *testing.T) {
	mr, inner, repo := setupTestRedis(t)
	ctx := context.Background()

	suspended := activeTenant()
	suspended.Status = domain.TenantStatusSuspended

	read := make(chan struct{})
	release := make(chan struct{})
	// the first lookup reads the row while it is still active, then stalls
	inner.On("GetBySlug", mock.Anything, "acme").Run(func(mock.Arguments) {
		close(read)
		<-release
	}).Return(activeTenant(), nil).Once()
	inner.On("UpdateStatus", mock.Anything, "t-1", domain.TenantStatusActive, domain.TenantStatusSuspended).Return(suspended, nil).Once()
	inner.On("GetBySlug", mock.Anything, "acme").Return(suspended, nil).Once()

	done := make(chan error, 1)
	go func() {
		_, err := repo.GetBySlug(ctx, "acme")
		done <- err
	}()

	<-read
	_, err := repo.UpdateStatus(ctx, "t-1", domain.TenantStatusActive, domain.TenantStatusSuspended)
	require.NoError(t, err)
	close(release)
	require.NoError(t, <-done)

	assert.False(t, mr.Exists("tenant:slug:acme"))
	assert.False(t, mr.Exists("tenant:id:t-1"))

	tenant, err := repo.GetBySlug(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, domain.TenantStatusSuspended, tenant.Status)
	assert.True(t, mr.Exists("tenant:slug:acme"))
}

func TestTenantCache_RedisDownFallsThrough(t *testing.T) {
	mr, inner, repo := setupTestRedis(t)
	mr.Close()

	inner.On("GetBySlug", mock.Anything, "acme").Return(activeTenant(), nil).Once()

	tenant, err := repo.GetBySlug(context.Background(), "acme")

	require.NoError(t, err)
	assert.Equal(t, "t-1", tenant.ID)
}
