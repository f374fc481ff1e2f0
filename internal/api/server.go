package api

import (
	"github.com/gin-gonic/gin"

	"github.com/kingrain94/tenant-platform/internal/middleware"
	"github.com/kingrain94/tenant-platform/pkg/logger"
)

type Server struct {
	tenant     *TenantHandler
	auth       *AuthHandler
	access     *AccessHandler
	audit      *AuditHandler
	websocket  *WebSocketHandler
	authMw     *middleware.AuthMiddleware
	tenancy    *middleware.TenantMiddleware
	rateLimit  *middleware.RateLimitMiddleware
	validation *middleware.ValidationMiddleware
	globalRate int
}

type Services struct {
	Tenants    TenantService
	Auth       AuthService
	Access     AccessService
	Audit      AuditService
	Authorizer Authorizer
	Auditor    Auditor
	Stream     Subscriber
}

type Middleware struct {
	Auth       *middleware.AuthMiddleware
	Tenancy    *middleware.TenantMiddleware
	RateLimit  *middleware.RateLimitMiddleware
	Validation *middleware.ValidationMiddleware
	// GlobalRateLimit is the per-IP budget per minute.
	GlobalRateLimit int
}

func NewServer(services Services, mw Middleware, logger *logger.Logger) *Server {
	return &Server{
		tenant:     NewTenantHandler(services.Tenants),
		auth:       NewAuthHandler(services.Auth, services.Authorizer, services.Auditor),
		access:     NewAccessHandler(services.Access),
		audit:      NewAuditHandler(services.Audit),
		websocket:  NewWebSocketHandler(logger, services.Stream),
		authMw:     mw.Auth,
		tenancy:    mw.Tenancy,
		rateLimit:  mw.RateLimit,
		validation: mw.Validation,
		globalRate: mw.GlobalRateLimit,
	}
}

func (s *Server) SetupRoutes(api *gin.RouterGroup) {
	// Apply security middleware first
	api.Use(s.validation.BlockSuspiciousPatterns())
	api.Use(s.validation.SanitizeInput())
	api.Use(s.validation.ValidateRequestSize(1 * 1024 * 1024)) // 1MB max
	api.Use(s.validation.ValidateContentType("application/json"))
	api.Use(s.validation.ValidateTenantHeader())

	// Apply global rate limiting
	api.Use(s.rateLimit.GlobalRateLimit(s.globalRate))

	// Every route runs inside a resolved tenant or platform scope
	api.Use(s.tenancy.Resolve(), s.rateLimit.TenantRateLimit())

	{
		auth := api.Group("/auth")
		{
			auth.POST("/login", s.auth.Login)
			auth.POST("/refresh", s.auth.Refresh)
			auth.POST("/logout", s.authMw.JWTAuth(), s.auth.Logout)
			auth.GET("/validate", s.authMw.JWTAuth(), s.auth.Validate)
		}

		api.POST("/authz/check", s.authMw.JWTAuth(), s.auth.CheckPermission)

		tenants := api.Group("/tenants", s.tenancy.RequirePlatform(), s.authMw.JWTAuth())
		{
			tenants.POST("", s.authMw.RequirePermission("tenants.create"), s.tenant.CreateTenant)
			tenants.GET("", s.authMw.RequirePermission("tenants.read"), s.tenant.ListTenants)
			tenants.GET("/:id", s.authMw.RequirePermission("tenants.read"), s.tenant.GetTenant)
			tenants.GET("/:id/schema", s.authMw.RequirePermission("tenants.read"), s.tenant.VerifyTenantSchema)
			tenants.POST("/:id/suspend", s.authMw.RequirePermission("tenants.update"), s.tenant.SuspendTenant)
			tenants.POST("/:id/activate", s.authMw.RequirePermission("tenants.update"), s.tenant.ActivateTenant)
			tenants.POST("/:id/initialize", s.authMw.RequirePermission("tenants.provision"), s.tenant.InitializeTenant)
			tenants.DELETE("/:id", s.authMw.RequirePermission("tenants.delete"), s.tenant.DeleteTenant)
		}

		principals := api.Group("/principals", s.authMw.JWTAuth())
		{
			principals.POST("", s.authMw.RequirePermission("users.write"), s.access.CreatePrincipal)
			principals.PUT("/:id/overrides", s.authMw.RequirePermission("overrides.write"), s.access.SetOverride)
			principals.DELETE("/:id/overrides/:permission", s.authMw.RequirePermission("overrides.write"), s.access.DeleteOverride)
		}

		roles := api.Group("/roles", s.authMw.JWTAuth())
		{
			roles.GET("", s.authMw.RequirePermission("roles.read"), s.access.ListRoles)
			roles.POST("", s.authMw.RequirePermission("roles.write"), s.access.CreateRole)
			roles.DELETE("/:name", s.authMw.RequirePermission("roles.write"), s.access.DeleteRole)
		}

		audit := api.Group("/audit", s.authMw.JWTAuth(), s.authMw.RequirePermission("audit.read"))
		{
			audit.GET("/events", s.audit.ListEvents)
			audit.GET("/stream", s.websocket.HandleWebSocket)
		}
	}
}

// StartWebSocketHub starts the hub that fans audit events out to streams
func (s *Server) StartWebSocketHub() {
	go s.websocket.Start()
}

func (s *Server) StopWebSocketHub() {
	s.websocket.Stop()
}
