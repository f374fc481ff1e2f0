package domain

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"
)

type RoleKind string

const (
	RoleKindBuiltin RoleKind = "builtin"
	RoleKindCustom  RoleKind = "custom"
)

const (
	RoleSuperAdmin  = "super_admin"
	RoleTenantAdmin = "tenant_admin"
	RoleTenantUser  = "tenant_user"
)

// Role is a named set of permission grants. When a principal holds several
// roles, the highest priority role that grants a permission decides.
type Role struct {
	Name      string         `gorm:"primaryKey;type:text" json:"name"`
	Kind      RoleKind       `gorm:"type:text;not null;default:'custom'" json:"kind"`
	Priority  int            `gorm:"not null;default:0" json:"priority"`
	Grants    pq.StringArray `gorm:"type:text[];not null" json:"grants"`
	CreatedAt time.Time      `gorm:"type:timestamp with time zone;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Role) TableName() string {
	return "roles"
}

// Allows reports whether any of the role's grants covers perm.
func (r Role) Allows(perm string) bool {
	for _, g := range r.Grants {
		if GrantMatches(g, perm) {
			return true
		}
	}
	return false
}

// GrantMatches matches a grant against a dotted permission. "*" matches
// everything and "users.*" matches every permission under "users.".
func GrantMatches(grant, perm string) bool {
	if grant == "*" || grant == perm {
		return true
	}
	if prefix, ok := strings.CutSuffix(grant, "*"); ok && strings.HasSuffix(prefix, ".") {
		return strings.HasPrefix(perm, prefix)
	}
	return false
}

var grantPattern = regexp.MustCompile(`^(\*|[a-z][a-z0-9_]*(\.[a-z][a-z0-9_]*)*(\.\*)?)$`)

// ValidGrant reports whether g is a dotted permission, optionally ending in
// ".*", or the lone wildcard.
func ValidGrant(g string) bool {
	return grantPattern.MatchString(g)
}

var builtinRoles = map[string]Role{
	RoleSuperAdmin: {
		Name:     RoleSuperAdmin,
		Kind:     RoleKindBuiltin,
		Priority: 100,
		Grants:   pq.StringArray{"*"},
	},
	RoleTenantAdmin: {
		Name:     RoleTenantAdmin,
		Kind:     RoleKindBuiltin,
		Priority: 10,
		Grants: pq.StringArray{
			"users.*", "roles.*", "overrides.*", "tenant.read", "audit.read",
			"orders.*", "invoices.*", "crm.*",
		},
	},
	RoleTenantUser: {
		Name:     RoleTenantUser,
		Kind:     RoleKindBuiltin,
		Priority: 1,
		Grants: pq.StringArray{
			"users.read", "tenant.read",
			"orders.read", "orders.write", "invoices.read", "crm.read", "crm.write",
		},
	},
}

// BuiltinRole returns the reserved role with the given name.
func BuiltinRole(name string) (Role, bool) {
	r, ok := builtinRoles[name]
	return r, ok
}

func IsBuiltinRole(name string) bool {
	_, ok := builtinRoles[name]
	return ok
}

// BuiltinRoles returns the reserved roles, highest priority first.
func BuiltinRoles() []Role {
	roles := make([]Role, 0, len(builtinRoles))
	for _, r := range builtinRoles {
		roles = append(roles, r)
	}
	SortByPriority(roles)
	return roles
}

// SortByPriority orders roles by descending priority, then by name.
func SortByPriority(roles []Role) {
	sort.SliceStable(roles, func(i, j int) bool {
		if roles[i].Priority != roles[j].Priority {
			return roles[i].Priority > roles[j].Priority
		}
		return roles[i].Name < roles[j].Name
	})
}

// PrimaryRole picks the highest priority role name among names, using
// resolve to look up non-builtin roles. Unknown names are skipped.
func PrimaryRole(names []string, resolve func(string) (Role, bool)) string {
	var best *Role
	for _, n := range names {
		r, ok := BuiltinRole(n)
		if !ok && resolve != nil {
			r, ok = resolve(n)
		}
		if !ok {
			continue
		}
		if best == nil || r.Priority > best.Priority || (r.Priority == best.Priority && r.Name < best.Name) {
			rc := r
			best = &rc
		}
	}
	if best == nil {
		return ""
	}
	return best.Name
}
