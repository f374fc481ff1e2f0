package integration

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kingrain94/tenant-platform/internal/auth"
	"github.com/kingrain94/tenant-platform/internal/authz"
	"github.com/kingrain94/tenant-platform/internal/domain"
	"github.com/kingrain94/tenant-platform/internal/mocks"
	"github.com/kingrain94/tenant-platform/internal/tenancy"
)

const (
	acmeID  = "11111111-1111-1111-1111-111111111111"
	aliceID = "22222222-2222-2222-2222-222222222222"
)

type staticDirectory map[string]*domain.Tenant

func (d staticDirectory) GetBySlug(_ context.Context, slug string) (*domain.Tenant, error) {
	if t, ok := d[slug]; ok {
		return t, nil
	}
	return nil, domain.NewError(domain.CodeTenantNotFound, "tenant %q not found", slug)
}

// requestChain is the per-request work of a tenant-scoped call: resolve the
// tenant, validate the bearer token, authorize the permission.
type requestChain struct {
	resolver *tenancy.Resolver
	tokens   *auth.TokenService
	engine   *authz.Engine
	token    string
}

func newRequestChain(tb testing.TB) *requestChain {
	tb.Helper()

	mr, err := miniredis.Run()
	require.NoError(tb, err)
	tb.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	tb.Cleanup(func() { client.Close() })

	acme := &domain.Tenant{ID: acmeID, Slug: "acme", SchemaName: "tenant_acme", Status: domain.TenantStatusActive}
	resolver := tenancy.NewResolver(staticDirectory{"acme": acme}, "example.com", time.Second)

	roles := new(mocks.RoleRepository)
	overrides := new(mocks.OverrideRepository)
	overrides.On("ListForPrincipal", mock.Anything, "tenant_acme", aliceID).Return([]domain.PermissionOverride{}, nil)
	engine := authz.NewEngine(roles, overrides)

	tokens := auth.NewTokenService("benchmark-secret", 15*time.Minute, time.Hour, auth.NewRedisBlacklist(client, time.Second))
	tenantID := acmeID
	alice := &domain.Principal{ID: aliceID, TenantID: &tenantID, Username: "alice", Roles: []string{domain.RoleTenantUser}}
	pair, err := tokens.Issue(context.Background(), alice, domain.NewTenantContext(acme, domain.TenantSourceSubdomain), domain.RoleTenantUser)
	require.NoError(tb, err)

	return &requestChain{resolver: resolver, tokens: tokens, engine: engine, token: pair.AccessToken}
}

func (c *requestChain) run(ctx context.Context, perm string) (authz.Decision, error) {
	tc, err := c.resolver.Resolve(ctx, tenancy.Signals{Host: "acme.example.com", Path: "/orders", Header: http.Header{}})
	if err != nil {
		return authz.Decision{}, err
	}
	claims, err := c.tokens.ValidateAccess(ctx, c.token)
	if err != nil {
		return authz.Decision{}, err
	}
	return c.engine.Authorize(ctx, claims.AuthSubject(), tc, perm)
}

func BenchmarkResolveTenant(b *testing.B) {
	chain := newRequestChain(b)
	signals := tenancy.Signals{Host: "acme.example.com", Path: "/orders", Header: http.Header{tenancy.HeaderTenantSlug: []string{"acme"}}}

	b.ResetTimer()
	b.ReportAllocs()

	b.RunParallel(func(pb *testing.PB) {
		ctx := context.Background()
		for pb.Next() {
			if _, err := chain.resolver.Resolve(ctx, signals); err != nil {
				b.Errorf("resolve failed: %v", err)
			}
		}
	})
}

func BenchmarkValidateAccessToken(b *testing.B) {
	chain := newRequestChain(b)

	b.ResetTimer()
	b.ReportAllocs()

	b.RunParallel(func(pb *testing.PB) {
		ctx := context.Background()
		for pb.Next() {
			if _, err := chain.tokens.ValidateAccess(ctx, chain.token); err != nil {
				b.Errorf("validate failed: %v", err)
			}
		}
	})
}

func BenchmarkAuthorizeChain(b *testing.B) {
	chain := newRequestChain(b)

	b.ResetTimer()
	b.ReportAllocs()

	b.RunParallel(func(pb *testing.PB) {
		ctx := context.Background()
		for pb.Next() {
			decision, err := chain.run(ctx, "orders.read")
			if err != nil || !decision.Allowed {
				b.Errorf("expected allow, got %+v (%v)", decision, err)
			}
		}
	})
}

// TestHighConcurrencyRequestChain runs the request chain from many goroutines
// and checks every decision comes back the same.
func TestHighConcurrencyRequestChain(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping load test in short mode")
	}

	chain := newRequestChain(t)

	numGoroutines := 100
	requestsPerGoroutine := 10
	totalRequests := numGoroutines * requestsPerGoroutine

	var allowed, denied, failed int32
	var totalLatency, maxLatency time.Duration
	var mutex sync.Mutex

	startTime := time.Now()
	var wg sync.WaitGroup

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			perm := "orders.read"
			if i%2 == 1 {
				perm = "users.delete"
			}

			for j := 0; j < requestsPerGoroutine; j++ {
				reqStart := time.Now()
				decision, err := chain.run(context.Background(), perm)
				reqLatency := time.Since(reqStart)

				switch {
				case err != nil:
					atomic.AddInt32(&failed, 1)
				case decision.Allowed:
					atomic.AddInt32(&allowed, 1)
				default:
					atomic.AddInt32(&denied, 1)
				}

				mutex.Lock()
				totalLatency += reqLatency
				if reqLatency > maxLatency {
					maxLatency = reqLatency
				}
				mutex.Unlock()
			}
		}(i)
	}

	wg.Wait()
	totalTime := time.Since(startTime)
	avgLatency := totalLatency / time.Duration(totalRequests)

	t.Logf("=== Request Chain Load Results ===")
	t.Logf("Total requests: %d", totalRequests)
	t.Logf("Allowed: %d, denied: %d, failed: %d", allowed, denied, failed)
	t.Logf("Total time: %v", totalTime)
	t.Logf("Throughput: %.2f requests/second", float64(totalRequests)/totalTime.Seconds())
	t.Logf("Average latency: %v", avgLatency)
	t.Logf("Max latency: %v", maxLatency)

	assert.Equal(t, int32(0), failed, "No request should fail")
	assert.Equal(t, int32(totalRequests/2), allowed, "orders.read is granted to tenant_user")
	assert.Equal(t, int32(totalRequests/2), denied, "users.delete is not granted to tenant_user")
	assert.Less(t, avgLatency, 100*time.Millisecond)
}
