package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"gorm.io/gorm"

	"github.com/kingrain94/tenant-platform/internal/domain"
)

var schemaPattern = regexp.MustCompile(`^(public|tenant_[a-z0-9_]{1,56})$`)

// schemaTable returns a db handle bound to schema.table. Schema names come
// from SchemaNameForSlug, but they are still checked here since they end up
// in SQL as identifiers.
func schemaTable(db *gorm.DB, ctx context.Context, schema, table string) (*gorm.DB, error) {
	if !schemaPattern.MatchString(schema) {
		return nil, domain.NewError(domain.CodeInvalidRequest, "invalid schema name %q", schema)
	}
	return db.WithContext(ctx).Table(fmt.Sprintf("%s.%s", schema, table)), nil
}

// notFound maps gorm's missing-record error to a domain error.
func notFound(err error, code domain.ErrorCode, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.NewError(code, format, args...)
	}
	return err
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
