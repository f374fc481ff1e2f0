package dto

type CreateTenantRequest struct {
	Slug         string `json:"slug" binding:"required" example:"acme"`
	Name         string `json:"name" binding:"required" example:"Acme Corp"`
	Plan         string `json:"plan" example:"basic"`
	MaxUsers     int    `json:"max_users" binding:"omitempty,min=1" example:"10"`
	MaxStorageMB int    `json:"max_storage_mb" binding:"omitempty,min=1" example:"1024"`
	RateLimit    int    `json:"rate_limit" binding:"omitempty,min=1" example:"1000"`
}

type ListTenantsRequest struct {
	Status   string `form:"status" example:"active"`
	Page     int    `form:"page" binding:"omitempty,min=1" example:"1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100" example:"20"`
}

type InitializeTenantRequest struct {
	SchemaName string `json:"schema_name" binding:"required" example:"tenant_acme"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required" example:"alice"`
	Password string `json:"password" binding:"required" example:"s3cret-passw0rd"`
	// Role optionally picks one of the principal's roles as the token role.
	Role string `json:"role" example:"tenant_admin"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type LogoutRequest struct {
	// RefreshToken, when present, is revoked along with the bearer token.
	RefreshToken string `json:"refresh_token"`
}

type CheckPermissionRequest struct {
	Permission string `json:"permission" binding:"required" example:"users.write"`
}

type CreatePrincipalRequest struct {
	Username string   `json:"username" binding:"required,min=3,max=64" example:"alice"`
	Password string   `json:"password" binding:"required,min=8,max=72" example:"s3cret-passw0rd"`
	Roles    []string `json:"roles" binding:"required,min=1" example:"tenant_user"`
}

type CreateRoleRequest struct {
	Name     string   `json:"name" binding:"required" example:"support"`
	Priority int      `json:"priority" binding:"min=0,max=99" example:"5"`
	Grants   []string `json:"grants" binding:"required,min=1" example:"users.read"`
}

type SetOverrideRequest struct {
	Permission string `json:"permission" binding:"required" example:"users.delete"`
	Effect     string `json:"effect" binding:"required,oneof=allow deny" example:"deny"`
}

type ListAuditEventsRequest struct {
	PrincipalID string `form:"principal_id"`
	Action      string `form:"action" example:"auth.login"`
	Outcome     string `form:"outcome" example:"deny"`
	StartTime   string `form:"start_time" example:"2024-03-20T00:00:00Z"`
	EndTime     string `form:"end_time" example:"2024-03-20"`
	Page        int    `form:"page" binding:"omitempty,min=1"`
	PageSize    int    `form:"page_size" binding:"omitempty,min=1,max=1000"`
}
