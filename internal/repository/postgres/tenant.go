package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/kingrain94/tenant-platform/internal/domain"
)

type TenantRepository struct {
	writerDB *gorm.DB
	readerDB *gorm.DB
}

func NewTenantRepository(writerDB, readerDB *gorm.DB) *TenantRepository {
	return &TenantRepository{
		writerDB: writerDB,
		readerDB: readerDB,
	}
}

func (r *TenantRepository) Create(ctx context.Context, tenant *domain.Tenant) (*domain.Tenant, error) {
	if err := r.writerDB.WithContext(ctx).Create(tenant).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, domain.NewError(domain.CodeTenantExists, "tenant %q already exists", tenant.Slug)
		}
		return nil, err
	}
	return tenant, nil
}

func (r *TenantRepository) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	var tenant domain.Tenant
	if err := r.readerDB.WithContext(ctx).First(&tenant, "id = ?", id).Error; err != nil {
		return nil, notFound(err, domain.CodeTenantNotFound, "tenant %q not found", id)
	}
	return &tenant, nil
}

func (r *TenantRepository) GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	var tenant domain.Tenant
	if err := r.readerDB.WithContext(ctx).First(&tenant, "slug = ?", slug).Error; err != nil {
		return nil, notFound(err, domain.CodeTenantNotFound, "tenant %q not found", slug)
	}
	return &tenant, nil
}

// UpdateStatus is a compare-and-set on the status column, so two concurrent
// transitions out of the same status cannot both succeed.
func (r *TenantRepository) UpdateStatus(ctx context.Context, id string, from, to domain.TenantStatus) (*domain.Tenant, error) {
	if !domain.CanTransition(from, to) {
		return nil, domain.NewError(domain.CodeInvalidTransition, "cannot move tenant from %s to %s", from, to)
	}

	result := r.writerDB.WithContext(ctx).
		Model(&domain.Tenant{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{"status": to, "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return nil, result.Error
	}

	var tenant domain.Tenant
	if err := r.writerDB.WithContext(ctx).First(&tenant, "id = ?", id).Error; err != nil {
		return nil, notFound(err, domain.CodeTenantNotFound, "tenant %q not found", id)
	}

	if result.RowsAffected == 0 && tenant.Status != to {
		return nil, domain.NewError(domain.CodeInvalidTransition, "tenant is %s, expected %s", tenant.Status, from)
	}
	return &tenant, nil
}

func (r *TenantRepository) List(ctx context.Context, filter domain.TenantFilter) ([]domain.Tenant, error) {
	query := r.readerDB.WithContext(ctx).Order("created_at DESC")
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit).Offset(filter.Offset)
	}

	var tenants []domain.Tenant
	if err := query.Find(&tenants).Error; err != nil {
		return nil, err
	}
	return tenants, nil
}
