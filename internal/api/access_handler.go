package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kingrain94/tenant-platform/internal/api/dto"
	"github.com/kingrain94/tenant-platform/internal/domain"
)

//go:generate mockery --name AccessService --output ../mocks
type AccessService interface {
	CreatePrincipal(ctx context.Context, tc domain.TenantContext, req dto.CreatePrincipalRequest) (*domain.Principal, error)
	ListRoles(ctx context.Context, tc domain.TenantContext) ([]domain.Role, error)
	CreateRole(ctx context.Context, tc domain.TenantContext, req dto.CreateRoleRequest) (*domain.Role, error)
	DeleteRole(ctx context.Context, tc domain.TenantContext, name string) error
	SetOverride(ctx context.Context, tc domain.TenantContext, principalID string, req dto.SetOverrideRequest) (*domain.PermissionOverride, error)
	DeleteOverride(ctx context.Context, tc domain.TenantContext, principalID, permission string) error
}

type AccessHandler struct {
	*BaseHandler
	service AccessService
}

func NewAccessHandler(service AccessService) *AccessHandler {
	return &AccessHandler{service: service}
}

// CreatePrincipal godoc
// @Summary Create a user
// @Description Creates a user in the resolved tenant, or a platform user without a tenant
// @Tags principals
// @Accept json
// @Produce json
// @Param body body dto.CreatePrincipalRequest true "User"
// @Success 201 {object} dto.PrincipalResponse
// @Failure 400 {object} dto.Error
// @Failure 403 {object} dto.Error
// @Failure 409 {object} dto.Error
// @Security BearerAuth
// @Router /principals [post]
func (h *AccessHandler) CreatePrincipal(c *gin.Context) {
	var req dto.CreatePrincipalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	principal, err := h.service.CreatePrincipal(h.RequestCtx(c), h.TenantCtx(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromPrincipal(principal))
}

// ListRoles godoc
// @Summary List roles
// @Description Built-in roles followed by the scope's custom roles, highest priority first
// @Tags roles
// @Produce json
// @Success 200 {array} dto.RoleResponse
// @Security BearerAuth
// @Router /roles [get]
func (h *AccessHandler) ListRoles(c *gin.Context) {
	roles, err := h.service.ListRoles(h.RequestCtx(c), h.TenantCtx(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromRoles(roles))
}

// CreateRole godoc
// @Summary Create a custom role
// @Tags roles
// @Accept json
// @Produce json
// @Param body body dto.CreateRoleRequest true "Role"
// @Success 201 {object} dto.RoleResponse
// @Failure 400 {object} dto.Error
// @Failure 409 {object} dto.Error
// @Security BearerAuth
// @Router /roles [post]
func (h *AccessHandler) CreateRole(c *gin.Context) {
	var req dto.CreateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	role, err := h.service.CreateRole(h.RequestCtx(c), h.TenantCtx(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromRoles([]domain.Role{*role})[0])
}

// DeleteRole godoc
// @Summary Delete a custom role
// @Tags roles
// @Param name path string true "Role name"
// @Success 204
// @Failure 404 {object} dto.Error
// @Failure 409 {object} dto.Error
// @Security BearerAuth
// @Router /roles/{name} [delete]
func (h *AccessHandler) DeleteRole(c *gin.Context) {
	if err := h.service.DeleteRole(h.RequestCtx(c), h.TenantCtx(c), c.Param("name")); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// SetOverride godoc
// @Summary Allow or deny one permission for one user
// @Tags principals
// @Accept json
// @Produce json
// @Param id path string true "Principal ID"
// @Param body body dto.SetOverrideRequest true "Override"
// @Success 200 {object} dto.OverrideResponse
// @Failure 400 {object} dto.Error
// @Failure 404 {object} dto.Error
// @Security BearerAuth
// @Router /principals/{id}/overrides [put]
func (h *AccessHandler) SetOverride(c *gin.Context) {
	var req dto.SetOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	override, err := h.service.SetOverride(h.RequestCtx(c), h.TenantCtx(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromOverride(override))
}

// DeleteOverride godoc
// @Summary Remove a permission override
// @Tags principals
// @Param id path string true "Principal ID"
// @Param permission path string true "Permission"
// @Success 204
// @Failure 404 {object} dto.Error
// @Security BearerAuth
// @Router /principals/{id}/overrides/{permission} [delete]
func (h *AccessHandler) DeleteOverride(c *gin.Context) {
	if err := h.service.DeleteOverride(h.RequestCtx(c), h.TenantCtx(c), c.Param("id"), c.Param("permission")); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
