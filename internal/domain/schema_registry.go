package domain

import (
	"time"

	"github.com/lib/pq"
)

type RegistryStatus string

const (
	RegistryStatusPending RegistryStatus = "pending"
	RegistryStatusSuccess RegistryStatus = "success"
	RegistryStatusFailed  RegistryStatus = "failed"
)

// SchemaRegistryEntry records, per tenant and owning service, which tables the
// service expects in the tenant schema and how the last provisioning went.
type SchemaRegistryEntry struct {
	TenantID       string         `gorm:"primaryKey;type:uuid" json:"tenant_id"`
	Service        string         `gorm:"primaryKey;type:text" json:"service"`
	SchemaName     string         `gorm:"type:text;not null" json:"schema_name"`
	ExpectedTables pq.StringArray `gorm:"type:text[];not null" json:"expected_tables"`
	Status         RegistryStatus `gorm:"type:text;not null;default:'pending'" json:"status"`
	Attempts       int            `gorm:"not null;default:0" json:"attempts"`
	LastError      string         `gorm:"type:text" json:"last_error,omitempty"`
	ProvisionedAt  *time.Time     `gorm:"type:timestamp with time zone" json:"provisioned_at,omitempty"`
	UpdatedAt      time.Time      `gorm:"type:timestamp with time zone;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (SchemaRegistryEntry) TableName() string {
	return "schema_registry"
}

// AllServicesProvisioned reports whether every entry succeeded. A tenant with
// no entries at all is not considered provisioned.
func AllServicesProvisioned(entries []SchemaRegistryEntry) bool {
	if len(entries) == 0 {
		return false
	}
	for _, e := range entries {
		if e.Status != RegistryStatusSuccess {
			return false
		}
	}
	return true
}
