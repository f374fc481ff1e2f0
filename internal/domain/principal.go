package domain

import (
	"time"

	"github.com/lib/pq"
)

// Principal is a user that can authenticate. Platform principals have no
// tenant and live in the catalog schema. Tenant principals live in their
// tenant's schema, so usernames are only unique inside one tenant.
type Principal struct {
	ID           string         `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	TenantID     *string        `gorm:"type:uuid" json:"tenant_id"`
	Username     string         `gorm:"type:text;not null;uniqueIndex" json:"username"`
	PasswordHash string         `gorm:"type:text;not null" json:"-"`
	Roles        pq.StringArray `gorm:"type:text[];not null" json:"roles"`
	Active       bool           `gorm:"not null;default:true" json:"active"`
	CreatedAt    time.Time      `gorm:"type:timestamp with time zone;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"type:timestamp with time zone;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Principal) TableName() string {
	return "users"
}

func (p *Principal) IsPlatform() bool {
	return p.TenantID == nil
}

// Subject is the authenticated identity handed to authorization. It is built
// from validated token claims, never from request input.
type Subject struct {
	PrincipalID string
	TenantID    *string
	TenantSlug  *string
	Roles       []string
}

func (s Subject) IsPlatform() bool {
	return s.TenantID == nil
}

// Schema returns the schema that stores this subject's principal record.
func (s Subject) Schema() string {
	if s.TenantSlug == nil {
		return CatalogSchema
	}
	return SchemaNameForSlug(*s.TenantSlug)
}
