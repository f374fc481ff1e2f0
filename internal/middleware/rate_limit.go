package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kingrain94/tenant-platform/internal/api/dto"
	"github.com/kingrain94/tenant-platform/internal/config"
	"github.com/kingrain94/tenant-platform/internal/domain"
	"github.com/kingrain94/tenant-platform/internal/utils"
	"github.com/kingrain94/tenant-platform/pkg/logger"
)

const rateLimitWindow = time.Minute

// TenantLimits looks up a tenant's configured request budget.
type TenantLimits interface {
	GetByID(ctx context.Context, id string) (*domain.Tenant, error)
}

type RateLimitMiddleware struct {
	redis   redis.Cmdable
	tenants TenantLimits
	config  *config.Config
	logger  *logger.Logger
}

func NewRateLimitMiddleware(redis redis.Cmdable, tenants TenantLimits, config *config.Config, logger *logger.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		redis:   redis,
		tenants: tenants,
		config:  config,
		logger:  logger,
	}
}

// TenantRateLimit applies the resolved tenant's per-minute budget. Platform
// scope shares one budget of the configured default size.
func (m *RateLimitMiddleware) TenantRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		tc, err := utils.GetTenantContext(ctx)
		if err != nil {
			status, body := dto.NewError(domain.NewError(domain.CodeInternal, "tenant context required for rate limiting"))
			c.AbortWithStatusJSON(status, body)
			return
		}

		scope := tc.TenantID
		if tc.IsPlatform() {
			scope = "platform"
		}
		limit := m.getTenantRateLimit(ctx, tc)

		m.apply(c, fmt.Sprintf("rate_limit:tenant:%s", scope), limit, "Rate limit exceeded")
	}
}

// GlobalRateLimit implements global rate limiting based on IP
func (m *RateLimitMiddleware) GlobalRateLimit(limit int) gin.HandlerFunc {
	return func(c *gin.Context) {
		m.apply(c, fmt.Sprintf("rate_limit:global:%s", c.ClientIP()), limit, "Global rate limit exceeded")
	}
}

// apply counts the request in a fixed one minute window. Redis errors fail
// open.
func (m *RateLimitMiddleware) apply(c *gin.Context, key string, limit int, message string) {
	ctx := c.Request.Context()

	current, err := m.redis.Incr(ctx, key).Result()
	if err != nil {
		m.logger.Error("Redis error in rate limiting", err, zap.String("key", key))
		c.Next()
		return
	}
	if current == 1 {
		// first hit opens the window
		if err := m.redis.Expire(ctx, key, rateLimitWindow).Err(); err != nil {
			m.logger.Error("Redis error setting rate limit window", err, zap.String("key", key))
		}
	}
	reset := time.Now().Add(rateLimitWindow)

	remaining := limit - int(current)
	if remaining < 0 {
		remaining = 0
	}
	c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

	if int(current) > limit {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error_code": "RateLimited",
			"message":    message,
			"limit":      limit,
			"reset":      reset.Unix(),
		})
		return
	}

	c.Next()
}

func (m *RateLimitMiddleware) getTenantRateLimit(ctx context.Context, tc domain.TenantContext) int {
	if !tc.IsPlatform() && m.tenants != nil {
		tenant, err := m.tenants.GetByID(ctx, tc.TenantID)
		if err != nil {
			m.logger.Warn("Failed to load tenant rate limit, using default",
				zap.String("tenant_id", tc.TenantID), zap.Error(err))
		} else if tenant.RateLimit > 0 {
			return tenant.RateLimit
		}
	}
	if m.config.DefaultRateLimit > 0 {
		return m.config.DefaultRateLimit
	}
	return 1000
}
