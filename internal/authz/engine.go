package authz

import (
	"context"
	"strings"

	"github.com/kingrain94/tenant-platform/internal/domain"
	"github.com/kingrain94/tenant-platform/internal/repository"
)

// Rule names the step of the resolution order that decided.
type Rule string

const (
	RuleCrossTenant   Rule = "cross_tenant"
	RuleDenyOverride  Rule = "deny_override"
	RuleAllowOverride Rule = "allow_override"
	RuleRole          Rule = "role"
	RuleDefaultDeny   Rule = "default_deny"
)

type Decision struct {
	Allowed bool   `json:"allowed"`
	Rule    Rule   `json:"rule"`
	Role    string `json:"role,omitempty"`
	Reason  string `json:"reason"`
}

func deny(rule Rule, reason string) Decision {
	return Decision{Rule: rule, Reason: reason}
}

// Err converts a denial into PermissionDenied, nil when allowed.
func (d Decision) Err(perm string) error {
	if d.Allowed {
		return nil
	}
	return &domain.Error{Code: domain.CodePermissionDenied, Message: "permission " + perm + " denied", Detail: string(d.Rule)}
}

type Engine struct {
	roles     repository.RoleRepository
	overrides repository.OverrideRepository
}

func NewEngine(roles repository.RoleRepository, overrides repository.OverrideRepository) *Engine {
	return &Engine{roles: roles, overrides: overrides}
}

// Authorize decides whether subject may use perm inside tc. First match wins:
// tenant mismatch, deny override, allow override, highest priority granting
// role, default deny. Lookup failures are returned with a deny decision.
func (e *Engine) Authorize(ctx context.Context, subject domain.Subject, tc domain.TenantContext, perm string) (Decision, error) {
	if perm == "" || strings.ContainsAny(perm, " \t\n") {
		return deny(RuleDefaultDeny, "invalid permission"), domain.NewError(domain.CodeInvalidRequest, "invalid permission %q", perm)
	}

	if !subject.IsPlatform() && (tc.IsPlatform() || *subject.TenantID != tc.TenantID) {
		return deny(RuleCrossTenant, "principal belongs to another tenant"), nil
	}

	schema := subject.Schema()

	overrides, err := e.overrides.ListForPrincipal(ctx, schema, subject.PrincipalID)
	if err != nil {
		return deny(RuleDefaultDeny, "override lookup failed"), domain.WrapError(domain.CodeInternal, "failed to load permission overrides", err)
	}
	if o, ok := matchOverride(overrides, perm, domain.EffectDeny); ok {
		return deny(RuleDenyOverride, "explicit deny for "+o.Permission), nil
	}
	if o, ok := matchOverride(overrides, perm, domain.EffectAllow); ok {
		return Decision{Allowed: true, Rule: RuleAllowOverride, Reason: "explicit allow for " + o.Permission}, nil
	}

	roles, err := e.resolveRoles(ctx, schema, subject.Roles)
	if err != nil {
		return deny(RuleDefaultDeny, "role lookup failed"), domain.WrapError(domain.CodeInternal, "failed to load roles", err)
	}
	for _, r := range roles {
		if r.Allows(perm) {
			return Decision{Allowed: true, Rule: RuleRole, Role: r.Name, Reason: "granted by role " + r.Name}, nil
		}
	}

	return deny(RuleDefaultDeny, "no role or override grants "+perm), nil
}

func matchOverride(overrides []domain.PermissionOverride, perm string, effect domain.Effect) (domain.PermissionOverride, bool) {
	for _, o := range overrides {
		if o.Effect == effect && domain.GrantMatches(o.Permission, perm) {
			return o, true
		}
	}
	return domain.PermissionOverride{}, false
}

// resolveRoles maps role names to definitions, highest priority first.
// Custom roles are only loaded when a name is not built in; unknown names are
// dropped.
func (e *Engine) resolveRoles(ctx context.Context, schema string, names []string) ([]domain.Role, error) {
	roles := make([]domain.Role, 0, len(names))
	var custom map[string]domain.Role

	for _, name := range names {
		if r, ok := domain.BuiltinRole(name); ok {
			roles = append(roles, r)
			continue
		}
		if custom == nil {
			list, err := e.roles.List(ctx, schema)
			if err != nil {
				return nil, err
			}
			custom = make(map[string]domain.Role, len(list))
			for _, r := range list {
				custom[r.Name] = r
			}
		}
		if r, ok := custom[name]; ok {
			roles = append(roles, r)
		}
	}

	domain.SortByPriority(roles)
	return roles, nil
}
