package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kingrain94/tenant-platform/internal/api/dto"
	"github.com/kingrain94/tenant-platform/internal/domain"
	"github.com/kingrain94/tenant-platform/internal/provisioning"
)

//go:generate mockery --name TenantService --output ../mocks
type TenantService interface {
	Create(ctx context.Context, req dto.CreateTenantRequest) (*domain.Tenant, error)
	GetByID(ctx context.Context, id string) (*domain.Tenant, error)
	List(ctx context.Context, filter domain.TenantFilter) ([]domain.Tenant, error)
	Suspend(ctx context.Context, id string) (*domain.Tenant, error)
	Activate(ctx context.Context, id string) (*domain.Tenant, error)
	Delete(ctx context.Context, id string) (*domain.Tenant, error)
	Initialize(ctx context.Context, id, schemaName string) (*dto.InitializeTenantResponse, error)
	VerifySchema(ctx context.Context, id string) (*provisioning.VerifyReport, error)
}

type TenantHandler struct {
	*BaseHandler
	service TenantService
}

func NewTenantHandler(service TenantService) *TenantHandler {
	return &TenantHandler{service: service}
}

// CreateTenant godoc
// @Summary Create a new tenant
// @Description Register a tenant in the catalog and queue its schema provisioning
// @Tags tenants
// @Accept json
// @Produce json
// @Param body body dto.CreateTenantRequest true "Tenant object"
// @Success 201 {object} dto.TenantResponse
// @Failure 400 {object} dto.Error
// @Failure 401 {object} dto.Error
// @Failure 409 {object} dto.Error
// @Failure 500 {object} dto.Error
// @Security BearerAuth
// @Router /tenants [post]
func (h *TenantHandler) CreateTenant(c *gin.Context) {
	var req dto.CreateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	tenant, err := h.service.Create(h.RequestCtx(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromTenant(tenant))
}

// ListTenants godoc
// @Summary List tenants
// @Tags tenants
// @Produce json
// @Param status query string false "Filter by status"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {array} dto.TenantResponse
// @Failure 400 {object} dto.Error
// @Failure 401 {object} dto.Error
// @Failure 500 {object} dto.Error
// @Security BearerAuth
// @Router /tenants [get]
func (h *TenantHandler) ListTenants(c *gin.Context) {
	var req dto.ListTenantsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, err)
		return
	}

	tenants, err := h.service.List(h.RequestCtx(c), req.ToFilter())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromTenants(tenants))
}

// GetTenant godoc
// @Summary Get a tenant
// @Tags tenants
// @Produce json
// @Param id path string true "Tenant ID"
// @Success 200 {object} dto.TenantResponse
// @Failure 404 {object} dto.Error
// @Security BearerAuth
// @Router /tenants/{id} [get]
func (h *TenantHandler) GetTenant(c *gin.Context) {
	tenant, err := h.service.GetByID(h.RequestCtx(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromTenant(tenant))
}

// SuspendTenant godoc
// @Summary Suspend an active tenant
// @Tags tenants
// @Produce json
// @Param id path string true "Tenant ID"
// @Success 200 {object} dto.TenantResponse
// @Failure 404 {object} dto.Error
// @Failure 409 {object} dto.Error
// @Security BearerAuth
// @Router /tenants/{id}/suspend [post]
func (h *TenantHandler) SuspendTenant(c *gin.Context) {
	h.transition(c, h.service.Suspend)
}

// ActivateTenant godoc
// @Summary Reactivate a suspended tenant
// @Tags tenants
// @Produce json
// @Param id path string true "Tenant ID"
// @Success 200 {object} dto.TenantResponse
// @Failure 404 {object} dto.Error
// @Failure 409 {object} dto.Error
// @Security BearerAuth
// @Router /tenants/{id}/activate [post]
func (h *TenantHandler) ActivateTenant(c *gin.Context) {
	h.transition(c, h.service.Activate)
}

// DeleteTenant godoc
// @Summary Delete a tenant
// @Description Marks the tenant deleted and queues archive and schema teardown
// @Tags tenants
// @Produce json
// @Param id path string true "Tenant ID"
// @Success 202 {object} dto.TenantResponse
// @Failure 404 {object} dto.Error
// @Failure 409 {object} dto.Error
// @Security BearerAuth
// @Router /tenants/{id} [delete]
func (h *TenantHandler) DeleteTenant(c *gin.Context) {
	tenant, err := h.service.Delete(h.RequestCtx(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, dto.FromTenant(tenant))
}

func (h *TenantHandler) transition(c *gin.Context, fn func(context.Context, string) (*domain.Tenant, error)) {
	tenant, err := fn(h.RequestCtx(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromTenant(tenant))
}

// InitializeTenant godoc
// @Summary Provision the tenant schema
// @Description Creates the tenant schema and every owning service's tables. A failed run still reports per-service outcomes.
// @Tags tenants
// @Accept json
// @Produce json
// @Param id path string true "Tenant ID"
// @Param body body dto.InitializeTenantRequest true "Schema name"
// @Success 200 {object} dto.InitializeTenantResponse
// @Failure 400 {object} dto.Error
// @Failure 404 {object} dto.Error
// @Failure 500 {object} dto.InitializeTenantResponse
// @Security BearerAuth
// @Router /tenants/{id}/initialize [post]
func (h *TenantHandler) InitializeTenant(c *gin.Context) {
	var req dto.InitializeTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	resp, err := h.service.Initialize(h.RequestCtx(c), c.Param("id"), req.SchemaName)
	if err != nil {
		if resp == nil {
			respondError(c, err)
			return
		}
		status, _ := dto.NewError(err)
		c.JSON(status, resp)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// VerifyTenantSchema godoc
// @Summary Compare the tenant schema with the manifests
// @Tags tenants
// @Produce json
// @Param id path string true "Tenant ID"
// @Success 200 {object} provisioning.VerifyReport
// @Failure 404 {object} dto.Error
// @Security BearerAuth
// @Router /tenants/{id}/schema [get]
func (h *TenantHandler) VerifyTenantSchema(c *gin.Context) {
	report, err := h.service.VerifySchema(h.RequestCtx(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}
