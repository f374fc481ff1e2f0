package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kingrain94/tenant-platform/internal/api/dto"
	"github.com/kingrain94/tenant-platform/internal/auth"
	"github.com/kingrain94/tenant-platform/internal/authz"
	"github.com/kingrain94/tenant-platform/internal/domain"
	"github.com/kingrain94/tenant-platform/internal/utils"
)

//go:generate mockery --name AuthService --output ../mocks
type AuthService interface {
	Login(ctx context.Context, tc domain.TenantContext, req dto.LoginRequest, remoteIP string) (*auth.TokenPair, error)
	Refresh(ctx context.Context, tc domain.TenantContext, raw string) (*auth.TokenPair, error)
	Logout(ctx context.Context, accessToken, refreshToken string) error
	Validate(ctx context.Context, raw string) (*auth.Claims, error)
}

type Authorizer interface {
	Authorize(ctx context.Context, subject domain.Subject, tc domain.TenantContext, perm string) (authz.Decision, error)
}

type Auditor interface {
	Record(ctx context.Context, event *domain.AuditEvent)
}

type AuthHandler struct {
	*BaseHandler
	service    AuthService
	authorizer Authorizer
	auditor    Auditor
}

func NewAuthHandler(service AuthService, authorizer Authorizer, auditor Auditor) *AuthHandler {
	return &AuthHandler{service: service, authorizer: authorizer, auditor: auditor}
}

// Login godoc
// @Summary Log in
// @Description Authenticates a principal of the resolved tenant, or a platform principal when no tenant is named
// @Tags auth
// @Accept json
// @Produce json
// @Param X-Tenant-Slug header string false "Tenant slug"
// @Param body body dto.LoginRequest true "Credentials"
// @Success 200 {object} auth.TokenPair
// @Failure 400 {object} dto.Error
// @Failure 401 {object} dto.Error
// @Failure 429 {object} dto.Error
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	pair, err := h.service.Login(h.RequestCtx(c), h.TenantCtx(c), req, c.ClientIP())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, pair)
}

// Refresh godoc
// @Summary Rotate a refresh token
// @Description Exchanges a refresh token for a new pair. Each refresh token works once.
// @Tags auth
// @Accept json
// @Produce json
// @Param body body dto.RefreshRequest true "Refresh token"
// @Success 200 {object} auth.TokenPair
// @Failure 400 {object} dto.Error
// @Failure 401 {object} dto.Error
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req dto.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	pair, err := h.service.Refresh(h.RequestCtx(c), h.TenantCtx(c), req.RefreshToken)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, pair)
}

// Logout godoc
// @Summary Log out
// @Description Revokes the bearer token and, when given, the refresh token
// @Tags auth
// @Accept json
// @Param body body dto.LogoutRequest false "Refresh token"
// @Success 204
// @Failure 401 {object} dto.Error
// @Security BearerAuth
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	var req dto.LogoutRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
	}

	if err := h.service.Logout(h.RequestCtx(c), c.GetString(string(utils.RawTokenKey)), req.RefreshToken); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Validate godoc
// @Summary Inspect the bearer token
// @Tags auth
// @Produce json
// @Success 200 {object} dto.ValidateTokenResponse
// @Failure 401 {object} dto.Error
// @Security BearerAuth
// @Router /auth/validate [get]
func (h *AuthHandler) Validate(c *gin.Context) {
	if v, ok := c.Get(string(utils.ClaimsKey)); ok {
		if claims, ok := v.(*auth.Claims); ok {
			c.JSON(http.StatusOK, dto.FromClaims(claims))
			return
		}
	}

	claims, err := h.service.Validate(h.RequestCtx(c), c.GetString(string(utils.RawTokenKey)))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromClaims(claims))
}

// CheckPermission godoc
// @Summary Decide a permission
// @Description Evaluates a permission for the bearer inside the resolved tenant. Denials answer 200 with allowed=false.
// @Tags authz
// @Accept json
// @Produce json
// @Param body body dto.CheckPermissionRequest true "Permission"
// @Success 200 {object} dto.CheckPermissionResponse
// @Failure 400 {object} dto.Error
// @Failure 401 {object} dto.Error
// @Security BearerAuth
// @Router /authz/check [post]
func (h *AuthHandler) CheckPermission(c *gin.Context) {
	var req dto.CheckPermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	ctx := h.RequestCtx(c)
	subject, err := utils.GetSubject(ctx)
	if err != nil {
		respondError(c, domain.NewError(domain.CodeTokenInvalid, "authentication required"))
		return
	}
	tc := h.TenantCtx(c)

	decision, err := h.authorizer.Authorize(ctx, subject, tc, req.Permission)
	if err != nil {
		respondError(c, err)
		return
	}

	if !decision.Allowed && h.auditor != nil {
		h.auditor.Record(ctx, &domain.AuditEvent{
			TenantID:    tc.TenantID,
			TenantSlug:  tc.Slug,
			PrincipalID: subject.PrincipalID,
			Action:      domain.AuditActionAuthorize,
			Outcome:     domain.AuditOutcomeDeny,
			ErrorCode:   string(domain.CodePermissionDenied),
			Reason:      req.Permission + ": " + string(decision.Rule),
			Method:      c.Request.Method,
			Path:        c.Request.URL.Path,
			RemoteIP:    c.ClientIP(),
		})
	}

	c.JSON(http.StatusOK, dto.FromDecision(decision))
}
