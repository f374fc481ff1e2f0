package dto

import (
	"github.com/kingrain94/tenant-platform/internal/auth"
	"github.com/kingrain94/tenant-platform/internal/authz"
	"github.com/kingrain94/tenant-platform/internal/domain"
	"github.com/kingrain94/tenant-platform/pkg/utils"
)

// ToTenant converts a create request into a tenant in the provisioning
// state. Unset limits keep the catalog defaults.
func (r *CreateTenantRequest) ToTenant() *domain.Tenant {
	slug := domain.NormalizeSlug(r.Slug)
	return &domain.Tenant{
		Slug:         slug,
		Name:         r.Name,
		SchemaName:   domain.SchemaNameForSlug(slug),
		Status:       domain.TenantStatusProvisioning,
		Plan:         r.Plan,
		MaxUsers:     r.MaxUsers,
		MaxStorageMB: r.MaxStorageMB,
		RateLimit:    r.RateLimit,
	}
}

func (r *ListTenantsRequest) ToFilter() domain.TenantFilter {
	return domain.TenantFilter{
		Status:   domain.TenantStatus(r.Status),
		Page:     r.Page,
		PageSize: r.PageSize,
	}
}

// ToFilter builds the audit filter of one tenant. Times accept RFC3339 or
// YYYY-MM-DD; a date-only end time covers the whole day.
func (r *ListAuditEventsRequest) ToFilter(tenantID string) (*domain.AuditEventFilter, error) {
	page, size := r.Page, r.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 50
	}
	filter := &domain.AuditEventFilter{
		TenantID:    tenantID,
		PrincipalID: r.PrincipalID,
		Action:      r.Action,
		Outcome:     r.Outcome,
		Limit:       size,
		Offset:      (page - 1) * size,
	}

	window, err := utils.ParseTimeRange(r.StartTime, r.EndTime)
	if err != nil {
		return nil, domain.NewError(domain.CodeInvalidRequest, "%v", err)
	}
	filter.StartTime, filter.EndTime = window.Start, window.End
	return filter, nil
}

func FromTenant(t *domain.Tenant) *TenantResponse {
	return &TenantResponse{
		ID:           t.ID,
		Slug:         t.Slug,
		Name:         t.Name,
		SchemaName:   t.SchemaName,
		Status:       string(t.Status),
		Plan:         t.Plan,
		MaxUsers:     t.MaxUsers,
		MaxStorageMB: t.MaxStorageMB,
		RateLimit:    t.RateLimit,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

func FromTenants(tenants []domain.Tenant) []TenantResponse {
	responses := make([]TenantResponse, len(tenants))
	for i := range tenants {
		responses[i] = *FromTenant(&tenants[i])
	}
	return responses
}

func FromClaims(c *auth.Claims) *ValidateTokenResponse {
	resp := &ValidateTokenResponse{
		PrincipalID: c.Subject,
		Role:        c.Role,
		Roles:       c.Roles,
		TenantID:    c.TenantID,
		TenantSlug:  c.TenantSlug,
		TokenType:   string(c.TokenType),
		JTI:         c.ID,
	}
	if c.ExpiresAt != nil {
		resp.ExpiresAt = c.ExpiresAt.Time
	}
	return resp
}

func FromDecision(d authz.Decision) *CheckPermissionResponse {
	return &CheckPermissionResponse{
		Allowed: d.Allowed,
		Rule:    string(d.Rule),
		Role:    d.Role,
		Reason:  d.Reason,
	}
}

func FromPrincipal(p *domain.Principal) *PrincipalResponse {
	return &PrincipalResponse{
		ID:        p.ID,
		TenantID:  p.TenantID,
		Username:  p.Username,
		Roles:     p.Roles,
		Active:    p.Active,
		CreatedAt: p.CreatedAt,
	}
}

func FromRoles(roles []domain.Role) []RoleResponse {
	responses := make([]RoleResponse, len(roles))
	for i, r := range roles {
		responses[i] = RoleResponse{
			Name:     r.Name,
			Kind:     string(r.Kind),
			Priority: r.Priority,
			Grants:   r.Grants,
		}
	}
	return responses
}

func FromOverride(o *domain.PermissionOverride) *OverrideResponse {
	return &OverrideResponse{
		PrincipalID: o.PrincipalID,
		Permission:  o.Permission,
		Effect:      string(o.Effect),
	}
}

func FromAuditEvent(e *domain.AuditEvent) *AuditEventResponse {
	return &AuditEventResponse{
		ID:          e.ID,
		TenantID:    e.TenantID,
		TenantSlug:  e.TenantSlug,
		PrincipalID: e.PrincipalID,
		Action:      e.Action,
		Outcome:     string(e.Outcome),
		ErrorCode:   e.ErrorCode,
		Reason:      e.Reason,
		Method:      e.Method,
		Path:        e.Path,
		RemoteIP:    e.RemoteIP,
		Timestamp:   e.Timestamp,
	}
}

func FromAuditEvents(events []domain.AuditEvent) []AuditEventResponse {
	responses := make([]AuditEventResponse, len(events))
	for i := range events {
		responses[i] = *FromAuditEvent(&events[i])
	}
	return responses
}
