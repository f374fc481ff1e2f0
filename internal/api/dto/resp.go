package dto

import (
	"time"

	"github.com/kingrain94/tenant-platform/internal/provisioning"
)

type TenantResponse struct {
	ID           string    `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Slug         string    `json:"slug" example:"acme"`
	Name         string    `json:"name" example:"Acme Corp"`
	SchemaName   string    `json:"schema_name" example:"tenant_acme"`
	Status       string    `json:"status" example:"active"`
	Plan         string    `json:"plan" example:"basic"`
	MaxUsers     int       `json:"max_users" example:"10"`
	MaxStorageMB int       `json:"max_storage_mb" example:"1024"`
	RateLimit    int       `json:"rate_limit" example:"1000"`
	CreatedAt    time.Time `json:"created_at" example:"2025-07-17T21:20:48Z"`
	UpdatedAt    time.Time `json:"updated_at" example:"2025-07-17T21:20:48Z"`
}

// InitializeTenantResponse reports per-service provisioning outcomes.
type InitializeTenantResponse struct {
	TenantID   string                        `json:"tenant_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	SchemaName string                        `json:"schema_name" example:"tenant_acme"`
	Status     string                        `json:"status" example:"active"`
	Services   []provisioning.ServiceOutcome `json:"services"`
}

type ValidateTokenResponse struct {
	PrincipalID string    `json:"sub" example:"7a1c1c9e-5d0b-4a3e-9f57-5b7f0f2b8d11"`
	Role        string    `json:"role" example:"tenant_admin"`
	Roles       []string  `json:"roles,omitempty"`
	TenantID    *string   `json:"tenant_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	TenantSlug  *string   `json:"tenant_slug" example:"acme"`
	TokenType   string    `json:"token_type" example:"access"`
	ExpiresAt   time.Time `json:"exp"`
	JTI         string    `json:"jti"`
}

type CheckPermissionResponse struct {
	Allowed bool   `json:"allowed" example:"false"`
	Rule    string `json:"rule" example:"deny_override"`
	Role    string `json:"role,omitempty" example:"tenant_admin"`
	Reason  string `json:"reason,omitempty"`
}

type PrincipalResponse struct {
	ID        string    `json:"id"`
	TenantID  *string   `json:"tenant_id"`
	Username  string    `json:"username" example:"alice"`
	Roles     []string  `json:"roles"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type RoleResponse struct {
	Name     string   `json:"name" example:"support"`
	Kind     string   `json:"kind" example:"custom"`
	Priority int      `json:"priority" example:"5"`
	Grants   []string `json:"grants"`
}

type OverrideResponse struct {
	PrincipalID string `json:"principal_id"`
	Permission  string `json:"permission" example:"users.delete"`
	Effect      string `json:"effect" example:"deny"`
}

type AuditEventResponse struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id,omitempty"`
	TenantSlug  string    `json:"tenant_slug,omitempty"`
	PrincipalID string    `json:"principal_id,omitempty"`
	Action      string    `json:"action" example:"auth.login"`
	Outcome     string    `json:"outcome" example:"deny"`
	ErrorCode   string    `json:"error_code,omitempty" example:"InvalidCredentials"`
	Reason      string    `json:"reason,omitempty"`
	Method      string    `json:"method,omitempty"`
	Path        string    `json:"path,omitempty"`
	RemoteIP    string    `json:"remote_ip,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
