package postgres

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kingrain94/tenant-platform/internal/domain"
)

type OverrideRepository struct {
	writerDB *gorm.DB
	readerDB *gorm.DB
}

func NewOverrideRepository(writerDB, readerDB *gorm.DB) *OverrideRepository {
	return &OverrideRepository{
		writerDB: writerDB,
		readerDB: readerDB,
	}
}

func (r *OverrideRepository) ListForPrincipal(ctx context.Context, schema, principalID string) ([]domain.PermissionOverride, error) {
	db, err := schemaTable(r.readerDB, ctx, schema, "permission_overrides")
	if err != nil {
		return nil, err
	}
	var overrides []domain.PermissionOverride
	if err := db.Where("principal_id = ?", principalID).Find(&overrides).Error; err != nil {
		return nil, err
	}
	return overrides, nil
}

func (r *OverrideRepository) Upsert(ctx context.Context, schema string, override *domain.PermissionOverride) error {
	db, err := schemaTable(r.writerDB, ctx, schema, "permission_overrides")
	if err != nil {
		return err
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "principal_id"}, {Name: "permission"}},
		DoUpdates: clause.AssignmentColumns([]string{"effect"}),
	}).Create(override).Error
}

func (r *OverrideRepository) Delete(ctx context.Context, schema, principalID, permission string) error {
	db, err := schemaTable(r.writerDB, ctx, schema, "permission_overrides")
	if err != nil {
		return err
	}
	result := db.Where("principal_id = ? AND permission = ?", principalID, permission).Delete(&domain.PermissionOverride{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.NewError(domain.CodeNotFound, "override %q not found", permission)
	}
	return nil
}
