package service

import (
	"context"
	"fmt"
	"slices"

	"golang.org/x/crypto/bcrypt"

	"github.com/kingrain94/tenant-platform/internal/api/dto"
	"github.com/kingrain94/tenant-platform/internal/domain"
	"github.com/kingrain94/tenant-platform/internal/repository"
)

// AccessService administers principals, custom roles and permission
// overrides inside the resolved scope.
type AccessService struct {
	tenants    repository.TenantRepository
	principals repository.PrincipalRepository
	roles      repository.RoleRepository
	overrides  repository.OverrideRepository
	auditor    Auditor
	bcryptCost int
}

func NewAccessService(
	tenants repository.TenantRepository,
	principals repository.PrincipalRepository,
	roles repository.RoleRepository,
	overrides repository.OverrideRepository,
	auditor Auditor,
) *AccessService {
	return &AccessService{
		tenants:    tenants,
		principals: principals,
		roles:      roles,
		overrides:  overrides,
		auditor:    auditor,
		bcryptCost: bcrypt.DefaultCost,
	}
}

// CreatePrincipal adds a user to the scope. Tenant scopes enforce the
// tenant's max_users and may not hand out super_admin.
func (s *AccessService) CreatePrincipal(ctx context.Context, tc domain.TenantContext, req dto.CreatePrincipalRequest) (*domain.Principal, error) {
	schema := schemaFor(tc)
	principal := &domain.Principal{
		Username: domain.NormalizeSlug(req.Username),
		Roles:    req.Roles,
		Active:   true,
	}

	maxUsers := 0
	if !tc.IsPlatform() {
		if slices.Contains(req.Roles, domain.RoleSuperAdmin) {
			return nil, domain.NewError(domain.CodeInvalidRequest, "role %s is reserved for platform operators", domain.RoleSuperAdmin)
		}
		tenant, err := s.tenants.GetByID(ctx, tc.TenantID)
		if err != nil {
			return nil, err
		}
		maxUsers = tenant.MaxUsers
		tenantID := tc.TenantID
		principal.TenantID = &tenantID
	}

	for _, name := range req.Roles {
		if domain.IsBuiltinRole(name) {
			continue
		}
		if _, err := s.roles.Get(ctx, schema, name); err != nil {
			return nil, domain.NewError(domain.CodeInvalidRequest, "unknown role %q", name)
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, domain.NewError(domain.CodeInvalidRequest, "password cannot be used: %v", err)
	}
	principal.PasswordHash = string(hash)

	if tc.IsPlatform() {
		err = s.principals.Create(ctx, schema, principal)
	} else {
		err = s.principals.CreateWithinLimit(ctx, schema, principal, maxUsers)
	}
	if err != nil {
		return nil, err
	}
	return principal, nil
}

// ListRoles returns the built-in roles followed by the scope's custom roles,
// highest priority first.
func (s *AccessService) ListRoles(ctx context.Context, tc domain.TenantContext) ([]domain.Role, error) {
	custom, err := s.roles.List(ctx, schemaFor(tc))
	if err != nil {
		return nil, err
	}
	roles := append(domain.BuiltinRoles(), custom...)
	domain.SortByPriority(roles)
	return roles, nil
}

// CreateRole defines a custom role. Custom roles rank below super_admin.
func (s *AccessService) CreateRole(ctx context.Context, tc domain.TenantContext, req dto.CreateRoleRequest) (*domain.Role, error) {
	if domain.IsBuiltinRole(req.Name) {
		return nil, ErrReservedRole
	}
	if !domain.ValidGrant(req.Name) || req.Name == "*" {
		return nil, domain.NewError(domain.CodeInvalidRequest, "invalid role name %q", req.Name)
	}
	for _, g := range req.Grants {
		if !domain.ValidGrant(g) {
			return nil, domain.NewError(domain.CodeInvalidRequest, "invalid grant %q", g)
		}
		if g == "*" && !tc.IsPlatform() {
			return nil, domain.NewError(domain.CodeInvalidRequest, "tenant roles cannot grant every permission")
		}
	}

	role := &domain.Role{
		Name:     req.Name,
		Kind:     domain.RoleKindCustom,
		Priority: req.Priority,
		Grants:   req.Grants,
	}
	if err := s.roles.Create(ctx, schemaFor(tc), role); err != nil {
		return nil, err
	}

	s.audit(ctx, tc, domain.AuditActionRoleChange, "created role "+role.Name)
	return role, nil
}

func (s *AccessService) DeleteRole(ctx context.Context, tc domain.TenantContext, name string) error {
	if domain.IsBuiltinRole(name) {
		return ErrReservedRole
	}
	if err := s.roles.Delete(ctx, schemaFor(tc), name); err != nil {
		return err
	}
	s.audit(ctx, tc, domain.AuditActionRoleChange, "deleted role "+name)
	return nil
}

// SetOverride allows or denies one permission for one principal regardless
// of its roles.
func (s *AccessService) SetOverride(ctx context.Context, tc domain.TenantContext, principalID string, req dto.SetOverrideRequest) (*domain.PermissionOverride, error) {
	effect := domain.Effect(req.Effect)
	if !effect.Valid() {
		return nil, domain.NewError(domain.CodeInvalidRequest, "effect must be allow or deny")
	}
	if !domain.ValidGrant(req.Permission) {
		return nil, domain.NewError(domain.CodeInvalidRequest, "invalid permission %q", req.Permission)
	}

	schema := schemaFor(tc)
	if _, err := s.principals.GetByID(ctx, schema, principalID); err != nil {
		return nil, err
	}

	override := &domain.PermissionOverride{
		PrincipalID: principalID,
		Permission:  req.Permission,
		Effect:      effect,
	}
	if err := s.overrides.Upsert(ctx, schema, override); err != nil {
		return nil, err
	}

	s.audit(ctx, tc, domain.AuditActionOverrideChange, fmt.Sprintf("%s %s for %s", effect, req.Permission, principalID))
	return override, nil
}

func (s *AccessService) DeleteOverride(ctx context.Context, tc domain.TenantContext, principalID, permission string) error {
	if err := s.overrides.Delete(ctx, schemaFor(tc), principalID, permission); err != nil {
		return err
	}
	s.audit(ctx, tc, domain.AuditActionOverrideChange, "removed "+permission+" for "+principalID)
	return nil
}

func (s *AccessService) audit(ctx context.Context, tc domain.TenantContext, action, reason string) {
	if s.auditor == nil {
		return
	}
	event := &domain.AuditEvent{
		TenantID:   tc.TenantID,
		TenantSlug: tc.Slug,
		Action:     action,
		Outcome:    domain.AuditOutcomeSuccess,
		Reason:     reason,
	}
	if subject, err := subjectFrom(ctx); err == nil {
		event.PrincipalID = subject.PrincipalID
	}
	s.auditor.Record(ctx, event)
}
