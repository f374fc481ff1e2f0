package postgres

import (
	"gorm.io/gorm"

	"github.com/kingrain94/tenant-platform/internal/config"
	"github.com/kingrain94/tenant-platform/internal/repository"
)

type postgresRepository struct {
	tenantRepo     repository.TenantRepository
	registryRepo   repository.SchemaRegistryRepository
	principalRepo  repository.PrincipalRepository
	roleRepo       repository.RoleRepository
	overrideRepo   repository.OverrideRepository
	auditEventRepo repository.AuditEventRepository
}

func NewPostgresRepository(dbConnections *config.DatabaseConnections) repository.PostgresRepository {
	return newPostgresRepository(dbConnections.Writer, dbConnections.Reader)
}

func newPostgresRepository(writer, reader *gorm.DB) *postgresRepository {
	return &postgresRepository{
		tenantRepo:     NewTenantRepository(writer, reader),
		registryRepo:   NewSchemaRegistryRepository(writer, reader),
		principalRepo:  NewPrincipalRepository(writer, reader),
		roleRepo:       NewRoleRepository(writer, reader),
		overrideRepo:   NewOverrideRepository(writer, reader),
		auditEventRepo: NewAuditEventRepository(writer, reader),
	}
}

func (r *postgresRepository) Tenant() repository.TenantRepository {
	return r.tenantRepo
}

func (r *postgresRepository) Registry() repository.SchemaRegistryRepository {
	return r.registryRepo
}

func (r *postgresRepository) Principal() repository.PrincipalRepository {
	return r.principalRepo
}

func (r *postgresRepository) Role() repository.RoleRepository {
	return r.roleRepo
}

func (r *postgresRepository) Override() repository.OverrideRepository {
	return r.overrideRepo
}

func (r *postgresRepository) AuditEvent() repository.AuditEventRepository {
	return r.auditEventRepo
}
