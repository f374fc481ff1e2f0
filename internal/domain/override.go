package domain

import "time"

type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

func (e Effect) Valid() bool {
	return e == EffectAllow || e == EffectDeny
}

// PermissionOverride beats any role-derived grant for one principal.
type PermissionOverride struct {
	PrincipalID string    `gorm:"primaryKey;type:uuid" json:"principal_id"`
	Permission  string    `gorm:"primaryKey;type:text" json:"permission"`
	Effect      Effect    `gorm:"type:text;not null" json:"effect"`
	CreatedAt   time.Time `gorm:"type:timestamp with time zone;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (PermissionOverride) TableName() string {
	return "permission_overrides"
}
