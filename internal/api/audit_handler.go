package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kingrain94/tenant-platform/internal/api/dto"
	"github.com/kingrain94/tenant-platform/internal/domain"
)

//go:generate mockery --name AuditService --output ../mocks
type AuditService interface {
	List(ctx context.Context, filter *domain.AuditEventFilter) ([]domain.AuditEvent, error)
}

type AuditHandler struct {
	*BaseHandler
	service AuditService
}

func NewAuditHandler(service AuditService) *AuditHandler {
	return &AuditHandler{service: service}
}

// ListEvents godoc
// @Summary List audit events
// @Description Audit trail of the resolved tenant; platform scope sees platform events
// @Tags audit
// @Produce json
// @Param principal_id query string false "Filter by principal"
// @Param action query string false "Filter by action"
// @Param outcome query string false "Filter by outcome"
// @Param start_time query string false "Start time (RFC3339 or YYYY-MM-DD)"
// @Param end_time query string false "End time (RFC3339 or YYYY-MM-DD)"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {array} dto.AuditEventResponse
// @Failure 400 {object} dto.Error
// @Failure 401 {object} dto.Error
// @Security BearerAuth
// @Router /audit/events [get]
func (h *AuditHandler) ListEvents(c *gin.Context) {
	var req dto.ListAuditEventsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, err)
		return
	}

	filter, err := req.ToFilter(h.TenantCtx(c).TenantID)
	if err != nil {
		respondError(c, err)
		return
	}

	events, err := h.service.List(h.RequestCtx(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromAuditEvents(events))
}
