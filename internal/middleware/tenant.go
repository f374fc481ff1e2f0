package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/kingrain94/tenant-platform/internal/api/dto"
	"github.com/kingrain94/tenant-platform/internal/domain"
	"github.com/kingrain94/tenant-platform/internal/tenancy"
	"github.com/kingrain94/tenant-platform/internal/utils"
)

type TenantResolver interface {
	Resolve(ctx context.Context, s tenancy.Signals) (domain.TenantContext, error)
}

type TenantMiddleware struct {
	resolver TenantResolver
	auditor  Auditor
}

func NewTenantMiddleware(resolver TenantResolver, auditor Auditor) *TenantMiddleware {
	return &TenantMiddleware{resolver: resolver, auditor: auditor}
}

// Resolve attaches the request's tenant, or platform scope, to the gin keys
// and the request context. Requests that name an unknown, inactive or
// conflicting tenant stop here.
func (m *TenantMiddleware) Resolve() gin.HandlerFunc {
	return func(c *gin.Context) {
		tc, err := m.resolver.Resolve(c.Request.Context(), tenancy.SignalsFromRequest(c.Request))
		if err != nil {
			if m.auditor != nil {
				de := domain.AsError(err)
				outcome := domain.AuditOutcomeDeny
				if de.Code == domain.CodeInternal {
					outcome = domain.AuditOutcomeFailure
				}
				m.auditor.Record(c.Request.Context(), &domain.AuditEvent{
					Action:    domain.AuditActionTenantResolve,
					Outcome:   outcome,
					ErrorCode: string(de.Code),
					Reason:    de.Error(),
					Method:    c.Request.Method,
					Path:      c.Request.URL.Path,
					RemoteIP:  c.ClientIP(),
				})
			}
			status, body := dto.NewError(err)
			c.AbortWithStatusJSON(status, body)
			return
		}

		c.Set(string(utils.TenantContextKey), tc)
		c.Set(string(utils.TenantIDKey), tc.TenantID)
		c.Request = c.Request.WithContext(utils.WithTenantContext(c.Request.Context(), tc))
		c.Next()
	}
}

// RequirePlatform rejects requests resolved to a tenant. Tenant lifecycle
// endpoints are operator-only.
func (m *TenantMiddleware) RequirePlatform() gin.HandlerFunc {
	return func(c *gin.Context) {
		tc, err := utils.GetTenantContext(c.Request.Context())
		if err == nil && !tc.IsPlatform() {
			status, body := dto.NewError(domain.NewError(domain.CodePermissionDenied, "tenant administration requires platform scope"))
			c.AbortWithStatusJSON(status, body)
			return
		}
		c.Next()
	}
}
