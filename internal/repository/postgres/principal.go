package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/kingrain94/tenant-platform/internal/domain"
)

type PrincipalRepository struct {
	writerDB *gorm.DB
	readerDB *gorm.DB
}

func NewPrincipalRepository(writerDB, readerDB *gorm.DB) *PrincipalRepository {
	return &PrincipalRepository{
		writerDB: writerDB,
		readerDB: readerDB,
	}
}

func (r *PrincipalRepository) Create(ctx context.Context, schema string, principal *domain.Principal) error {
	db, err := schemaTable(r.writerDB, ctx, schema, "users")
	if err != nil {
		return err
	}
	if err := db.Create(principal).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.NewError(domain.CodeConflict, "username %q is taken", principal.Username)
		}
		return err
	}
	return nil
}

func (r *PrincipalRepository) GetByID(ctx context.Context, schema, id string) (*domain.Principal, error) {
	db, err := schemaTable(r.readerDB, ctx, schema, "users")
	if err != nil {
		return nil, err
	}
	var principal domain.Principal
	if err := db.First(&principal, "id = ?", id).Error; err != nil {
		return nil, notFound(err, domain.CodeNotFound, "principal %q not found", id)
	}
	return &principal, nil
}

func (r *PrincipalRepository) GetByUsername(ctx context.Context, schema, username string) (*domain.Principal, error) {
	db, err := schemaTable(r.readerDB, ctx, schema, "users")
	if err != nil {
		return nil, err
	}
	var principal domain.Principal
	if err := db.First(&principal, "username = ?", username).Error; err != nil {
		return nil, notFound(err, domain.CodeNotFound, "principal %q not found", username)
	}
	return &principal, nil
}

// CreateWithinLimit counts and inserts inside one transaction that holds an
// advisory lock keyed on the users table, so concurrent creates for the same
// tenant are serialized and cannot overshoot maxUsers.
func (r *PrincipalRepository) CreateWithinLimit(ctx context.Context, schema string, principal *domain.Principal, maxUsers int) error {
	if _, err := schemaTable(r.writerDB, ctx, schema, "users"); err != nil {
		return err
	}
	return r.writerDB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", schema+".users").Error; err != nil {
			return fmt.Errorf("lock %s.users: %w", schema, err)
		}

		users, _ := schemaTable(tx, ctx, schema, "users")
		var count int64
		if err := users.Count(&count).Error; err != nil {
			return err
		}
		if count >= int64(maxUsers) {
			return &domain.Error{
				Code:    domain.CodeConflict,
				Detail:  domain.DetailUserLimit,
				Message: fmt.Sprintf("tenant user limit of %d reached", maxUsers),
			}
		}

		users, _ = schemaTable(tx, ctx, schema, "users")
		if err := users.Create(principal).Error; err != nil {
			if isUniqueViolation(err) {
				return domain.NewError(domain.CodeConflict, "username %q is taken", principal.Username)
			}
			return err
		}
		return nil
	})
}
