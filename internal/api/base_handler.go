package api

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/kingrain94/tenant-platform/internal/api/dto"
	"github.com/kingrain94/tenant-platform/internal/domain"
	"github.com/kingrain94/tenant-platform/internal/utils"
)

type BaseHandler struct{}

func (h *BaseHandler) RequestCtx(ginCtx *gin.Context) context.Context {
	ctx := ginCtx.Request.Context()
	for k, v := range ginCtx.Keys {
		// Convert string keys to proper context key types to avoid collisions
		contextKey := utils.ContextKey(k)
		ctx = context.WithValue(ctx, contextKey, v)
	}
	return ctx
}

// TenantCtx returns the tenant resolved for the request. Routes mounted
// without tenant resolution run in platform scope.
func (h *BaseHandler) TenantCtx(ginCtx *gin.Context) domain.TenantContext {
	if v, ok := ginCtx.Get(string(utils.TenantContextKey)); ok {
		if tc, ok := v.(domain.TenantContext); ok {
			return tc
		}
	}
	return domain.PlatformContext()
}

func respondError(c *gin.Context, err error) {
	status, body := dto.NewError(err)
	c.JSON(status, body)
}

// bindError reports a request body or query that failed binding.
func bindError(c *gin.Context, err error) {
	respondError(c, domain.NewError(domain.CodeInvalidRequest, "%s", err.Error()))
}
