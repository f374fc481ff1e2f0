package repository

import (
	"context"

	"github.com/kingrain94/tenant-platform/internal/domain"
)

//go:generate mockery --name TenantRepository --output ../mocks
type TenantRepository interface {
	Create(ctx context.Context, tenant *domain.Tenant) (*domain.Tenant, error)
	GetByID(ctx context.Context, id string) (*domain.Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error)
	// UpdateStatus moves the tenant from one status to another only if it is
	// still in the expected status.
	UpdateStatus(ctx context.Context, id string, from, to domain.TenantStatus) (*domain.Tenant, error)
	List(ctx context.Context, filter domain.TenantFilter) ([]domain.Tenant, error)
}

//go:generate mockery --name SchemaRegistryRepository --output ../mocks
type SchemaRegistryRepository interface {
	Upsert(ctx context.Context, entry *domain.SchemaRegistryEntry) error
	ListByTenant(ctx context.Context, tenantID string) ([]domain.SchemaRegistryEntry, error)
	DeleteByTenant(ctx context.Context, tenantID string) error
}

// The principal, role and override repositories take the schema that holds
// the records: the tenant schema for tenant principals, the catalog schema for
// platform principals.

//go:generate mockery --name PrincipalRepository --output ../mocks
type PrincipalRepository interface {
	Create(ctx context.Context, schema string, principal *domain.Principal) error
	GetByID(ctx context.Context, schema, id string) (*domain.Principal, error)
	GetByUsername(ctx context.Context, schema, username string) (*domain.Principal, error)
	// CreateWithinLimit inserts principal unless schema already holds
	// maxUsers users, in which case it returns domain.ErrUserLimitReached.
	CreateWithinLimit(ctx context.Context, schema string, principal *domain.Principal, maxUsers int) error
}

//go:generate mockery --name RoleRepository --output ../mocks
type RoleRepository interface {
	List(ctx context.Context, schema string) ([]domain.Role, error)
	Get(ctx context.Context, schema, name string) (*domain.Role, error)
	Create(ctx context.Context, schema string, role *domain.Role) error
	Delete(ctx context.Context, schema, name string) error
}

//go:generate mockery --name OverrideRepository --output ../mocks
type OverrideRepository interface {
	ListForPrincipal(ctx context.Context, schema, principalID string) ([]domain.PermissionOverride, error)
	Upsert(ctx context.Context, schema string, override *domain.PermissionOverride) error
	Delete(ctx context.Context, schema, principalID, permission string) error
}

//go:generate mockery --name AuditEventRepository --output ../mocks
type AuditEventRepository interface {
	Create(ctx context.Context, event *domain.AuditEvent) error
	List(ctx context.Context, filter domain.AuditEventFilter) ([]domain.AuditEvent, error)
	DeleteByTenant(ctx context.Context, tenantID string) (int64, error)
}

//go:generate mockery --name OpenSearchRepository --output ../mocks
type OpenSearchRepository interface {
	Index(ctx context.Context, event *domain.AuditEvent) error
	BulkIndex(ctx context.Context, events []domain.AuditEvent) error
	Search(ctx context.Context, filter *domain.AuditEventFilter) ([]domain.AuditEvent, error)
	DeleteIndex(ctx context.Context, tenantID string) error
}

//go:generate mockery --name PostgresRepository --output ../mocks
type PostgresRepository interface {
	Tenant() TenantRepository
	Registry() SchemaRegistryRepository
	Principal() PrincipalRepository
	Role() RoleRepository
	Override() OverrideRepository
	AuditEvent() AuditEventRepository
}

//go:generate mockery --name Repository --output ../mocks
type Repository interface {
	PostgresRepository
	OpenSearch() OpenSearchRepository
}
