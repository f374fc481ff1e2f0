package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kingrain94/tenant-platform/internal/domain"
)

type SchemaRegistryRepository struct {
	writerDB *gorm.DB
	readerDB *gorm.DB
}

func NewSchemaRegistryRepository(writerDB, readerDB *gorm.DB) *SchemaRegistryRepository {
	return &SchemaRegistryRepository{
		writerDB: writerDB,
		readerDB: readerDB,
	}
}

func (r *SchemaRegistryRepository) Upsert(ctx context.Context, entry *domain.SchemaRegistryEntry) error {
	entry.UpdatedAt = time.Now().UTC()
	return r.writerDB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tenant_id"}, {Name: "service"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"schema_name", "expected_tables", "status", "attempts", "last_error", "provisioned_at", "updated_at",
			}),
		}).
		Create(entry).Error
}

// ListByTenant reads from the writer so that the activation check right after
// provisioning never sees a lagging replica.
func (r *SchemaRegistryRepository) ListByTenant(ctx context.Context, tenantID string) ([]domain.SchemaRegistryEntry, error) {
	var entries []domain.SchemaRegistryEntry
	if err := r.writerDB.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("service").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *SchemaRegistryRepository) DeleteByTenant(ctx context.Context, tenantID string) error {
	return r.writerDB.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Delete(&domain.SchemaRegistryEntry{}).Error
}
