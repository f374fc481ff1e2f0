package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/kingrain94/tenant-platform/internal/domain"
)

// RoleRepository stores custom roles. Built-in roles are compiled in and
// never read from or written to the database.
type RoleRepository struct {
	writerDB *gorm.DB
	readerDB *gorm.DB
}

func NewRoleRepository(writerDB, readerDB *gorm.DB) *RoleRepository {
	return &RoleRepository{
		writerDB: writerDB,
		readerDB: readerDB,
	}
}

func (r *RoleRepository) List(ctx context.Context, schema string) ([]domain.Role, error) {
	db, err := schemaTable(r.readerDB, ctx, schema, "roles")
	if err != nil {
		return nil, err
	}
	var roles []domain.Role
	if err := db.Order("priority DESC, name").Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}

func (r *RoleRepository) Get(ctx context.Context, schema, name string) (*domain.Role, error) {
	db, err := schemaTable(r.readerDB, ctx, schema, "roles")
	if err != nil {
		return nil, err
	}
	var role domain.Role
	if err := db.First(&role, "name = ?", name).Error; err != nil {
		return nil, notFound(err, domain.CodeNotFound, "role %q not found", name)
	}
	return &role, nil
}

func (r *RoleRepository) Create(ctx context.Context, schema string, role *domain.Role) error {
	db, err := schemaTable(r.writerDB, ctx, schema, "roles")
	if err != nil {
		return err
	}
	if err := db.Create(role).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.NewError(domain.CodeConflict, "role %q already exists", role.Name)
		}
		return err
	}
	return nil
}

func (r *RoleRepository) Delete(ctx context.Context, schema, name string) error {
	db, err := schemaTable(r.writerDB, ctx, schema, "roles")
	if err != nil {
		return err
	}
	result := db.Where("name = ?", name).Delete(&domain.Role{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.NewError(domain.CodeNotFound, "role %q not found", name)
	}
	return nil
}
