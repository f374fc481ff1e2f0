package domain

import (
	"regexp"
	"strings"
	"time"
)

type TenantStatus string

const (
	TenantStatusProvisioning TenantStatus = "provisioning"
	TenantStatusActive       TenantStatus = "active"
	TenantStatusSuspended    TenantStatus = "suspended"
	TenantStatusFailed       TenantStatus = "failed"
	TenantStatusDeleted      TenantStatus = "deleted"
)

const (
	SchemaPrefix = "tenant_"

	// MaxIdentifierLen is PostgreSQL's identifier limit; longer names are
	// silently truncated, so two schema names sharing a 63-byte prefix would
	// be the same schema.
	MaxIdentifierLen = 63
	MaxSlugLen       = MaxIdentifierLen - len(SchemaPrefix)

	// CatalogSchema holds the shared catalog and platform-scope principals.
	CatalogSchema = "public"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]{1,54}[a-z0-9])?$`)

type Tenant struct {
	ID           string       `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Slug         string       `gorm:"type:text;not null;uniqueIndex" json:"slug"`
	Name         string       `gorm:"type:text;not null" json:"name"`
	SchemaName   string       `gorm:"type:text;not null;uniqueIndex" json:"schema_name"`
	Status       TenantStatus `gorm:"type:text;not null;default:'provisioning'" json:"status"`
	Plan         string       `gorm:"type:text;not null;default:'basic'" json:"plan"`
	MaxUsers     int          `gorm:"not null;default:10" json:"max_users"`
	MaxStorageMB int          `gorm:"not null;default:1024" json:"max_storage_mb"`
	RateLimit    int          `gorm:"not null;default:1000" json:"rate_limit"`
	CreatedAt    time.Time    `gorm:"type:timestamp with time zone;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"type:timestamp with time zone;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Tenant) TableName() string {
	return "tenants"
}

func (t *Tenant) IsActive() bool {
	return t.Status == TenantStatusActive
}

// ValidSlug reports whether s is a lowercase DNS label usable as a tenant slug.
// Slugs are capped at MaxSlugLen so the derived schema name fits one
// PostgreSQL identifier.
func ValidSlug(s string) bool {
	return slugPattern.MatchString(s)
}

// NormalizeSlug lowercases and trims a slug taken from request input.
func NormalizeSlug(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// SchemaNameForSlug derives the tenant schema name. It is a pure function of
// the slug, so the same slug always maps to the same schema.
func SchemaNameForSlug(slug string) string {
	return SchemaPrefix + strings.ReplaceAll(slug, "-", "_")
}

var tenantTransitions = map[TenantStatus][]TenantStatus{
	TenantStatusProvisioning: {TenantStatusActive, TenantStatusFailed, TenantStatusDeleted},
	TenantStatusFailed:       {TenantStatusProvisioning, TenantStatusDeleted},
	TenantStatusActive:       {TenantStatusSuspended, TenantStatusDeleted},
	TenantStatusSuspended:    {TenantStatusActive, TenantStatusDeleted},
	TenantStatusDeleted:      nil,
}

// CanTransition reports whether a tenant may move from one status to another.
// Only active and suspended move back and forth; deleted is terminal.
func CanTransition(from, to TenantStatus) bool {
	for _, s := range tenantTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type TenantFilter struct {
	Status   TenantStatus `json:"status"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
	Limit    int          `json:"limit"`
	Offset   int          `json:"offset"`
}
