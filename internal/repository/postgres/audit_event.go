package postgres

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kingrain94/tenant-platform/internal/domain"
)

type AuditEventRepository struct {
	writerDB *gorm.DB
	readerDB *gorm.DB
}

func NewAuditEventRepository(writerDB, readerDB *gorm.DB) *AuditEventRepository {
	return &AuditEventRepository{
		writerDB: writerDB,
		readerDB: readerDB,
	}
}

// Create inserts the event. Events are delivered at least once, so a repeated
// id is ignored.
func (r *AuditEventRepository) Create(ctx context.Context, event *domain.AuditEvent) error {
	return r.writerDB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(event).Error
}

func (r *AuditEventRepository) List(ctx context.Context, filter domain.AuditEventFilter) ([]domain.AuditEvent, error) {
	query := r.readerDB.WithContext(ctx).Where("tenant_id = ?", filter.TenantID)

	if filter.PrincipalID != "" {
		query = query.Where("principal_id = ?", filter.PrincipalID)
	}
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}
	if filter.Outcome != "" {
		query = query.Where("outcome = ?", filter.Outcome)
	}
	if !filter.StartTime.IsZero() {
		query = query.Where("timestamp >= ?", filter.StartTime)
	}
	if !filter.EndTime.IsZero() {
		query = query.Where("timestamp < ?", filter.EndTime)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit).Offset(filter.Offset)
	}

	var events []domain.AuditEvent
	if err := query.Order("timestamp ASC").Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (r *AuditEventRepository) DeleteByTenant(ctx context.Context, tenantID string) (int64, error) {
	result := r.writerDB.WithContext(ctx).Where("tenant_id = ?", tenantID).Delete(&domain.AuditEvent{})
	return result.RowsAffected, result.Error
}
