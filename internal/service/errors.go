package service

import (
	"context"

	"github.com/kingrain94/tenant-platform/internal/domain"
	"github.com/kingrain94/tenant-platform/internal/utils"
)

var (
	ErrUnauthenticated  = domain.NewError(domain.CodeTokenInvalid, "authentication required")
	ErrUserLimitReached = domain.ErrUserLimitReached
	ErrReservedRole     = domain.NewError(domain.CodeConflict, "built-in roles cannot be redefined or deleted")
)

func subjectFrom(ctx context.Context) (domain.Subject, error) {
	s, err := utils.GetSubject(ctx)
	if err != nil {
		return domain.Subject{}, ErrUnauthenticated
	}
	return s, nil
}

// schemaFor returns the schema holding principals, roles and overrides of
// the resolved scope.
func schemaFor(tc domain.TenantContext) string {
	if tc.IsPlatform() {
		return domain.CatalogSchema
	}
	return tc.SchemaName
}
