package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kingrain94/tenant-platform/internal/api/dto"
	"github.com/kingrain94/tenant-platform/internal/auth"
	"github.com/kingrain94/tenant-platform/internal/authz"
	"github.com/kingrain94/tenant-platform/internal/domain"
	"github.com/kingrain94/tenant-platform/internal/utils"
)

type TokenValidator interface {
	ValidateAccess(ctx context.Context, raw string) (*auth.Claims, error)
}

type Authorizer interface {
	Authorize(ctx context.Context, subject domain.Subject, tc domain.TenantContext, perm string) (authz.Decision, error)
}

type Auditor interface {
	Record(ctx context.Context, event *domain.AuditEvent)
}

type AuthMiddleware struct {
	tokens     TokenValidator
	authorizer Authorizer
	auditor    Auditor
}

func NewAuthMiddleware(tokens TokenValidator, authorizer Authorizer, auditor Auditor) *AuthMiddleware {
	return &AuthMiddleware{
		tokens:     tokens,
		authorizer: authorizer,
		auditor:    auditor,
	}
}

// BearerToken extracts the token of an "Authorization: Bearer" header.
func BearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// JWTAuth requires a valid access token and stores its claims and subject
// in the gin keys and the request context.
func (m *AuthMiddleware) JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			m.reject(c, domain.NewError(domain.CodeTokenInvalid, "authorization header is required"))
			return
		}

		token, ok := BearerToken(authHeader)
		if !ok {
			m.reject(c, domain.NewTokenError(domain.DetailMalformed, nil))
			return
		}

		claims, err := m.tokens.ValidateAccess(c.Request.Context(), token)
		if err != nil {
			m.reject(c, err)
			return
		}

		subject := claims.AuthSubject()
		c.Set(string(utils.ClaimsKey), claims)
		c.Set(string(utils.SubjectKey), subject)
		c.Set(string(utils.RawTokenKey), token)
		c.Request = c.Request.WithContext(utils.WithSubject(c.Request.Context(), subject))
		c.Next()
	}
}

// RequirePermission lets the request through only when the engine allows
// perm for the authenticated subject inside the resolved tenant. It must run
// after tenant resolution and JWTAuth.
func (m *AuthMiddleware) RequirePermission(perm string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		subject, err := utils.GetSubject(ctx)
		if err != nil {
			m.reject(c, domain.NewError(domain.CodeTokenInvalid, "authentication required"))
			return
		}
		tc, err := utils.GetTenantContext(ctx)
		if err != nil {
			tc = domain.PlatformContext()
		}

		decision, err := m.authorizer.Authorize(ctx, subject, tc, perm)
		if err == nil {
			err = decision.Err(perm)
		}
		if err != nil {
			m.audit(c, domain.AuditActionAuthorize, err, subject.PrincipalID, tc)
			status, body := dto.NewError(err)
			c.AbortWithStatusJSON(status, body)
			return
		}

		c.Next()
	}
}

func (m *AuthMiddleware) reject(c *gin.Context, err error) {
	tc, tcErr := utils.GetTenantContext(c.Request.Context())
	if tcErr != nil {
		tc = domain.PlatformContext()
	}
	m.audit(c, domain.AuditActionTokenRejected, err, "", tc)

	status, body := dto.NewError(err)
	c.AbortWithStatusJSON(status, body)
}

func (m *AuthMiddleware) audit(c *gin.Context, action string, err error, principalID string, tc domain.TenantContext) {
	if m.auditor == nil {
		return
	}
	de := domain.AsError(err)
	outcome := domain.AuditOutcomeDeny
	if de.Code == domain.CodeInternal {
		outcome = domain.AuditOutcomeFailure
	}
	m.auditor.Record(c.Request.Context(), &domain.AuditEvent{
		TenantID:    tc.TenantID,
		TenantSlug:  tc.Slug,
		PrincipalID: principalID,
		Action:      action,
		Outcome:     outcome,
		ErrorCode:   string(de.Code),
		Reason:      de.Error(),
		Method:      c.Request.Method,
		Path:        c.Request.URL.Path,
		RemoteIP:    c.ClientIP(),
	})
}
