package utils

import (
	"context"
	"errors"

	"github.com/kingrain94/tenant-platform/internal/domain"
)

type ContextKey string

const (
	ClaimsKey        ContextKey = "claims"
	SubjectKey       ContextKey = "subject"
	TenantContextKey ContextKey = "tenant_context"
	TenantIDKey      ContextKey = "tenant_id"
	RawTokenKey      ContextKey = "raw_token"
)

var (
	ErrNoSubjectInContext = errors.New("no authenticated subject in context")
	ErrNoTenantInContext  = errors.New("no tenant context in context")
)

func WithTenantContext(ctx context.Context, tc domain.TenantContext) context.Context {
	return context.WithValue(ctx, TenantContextKey, tc)
}

// GetTenantContext returns the resolved tenant. Requests that never went
// through resolution get ErrNoTenantInContext rather than platform scope.
func GetTenantContext(ctx context.Context) (domain.TenantContext, error) {
	tc, ok := ctx.Value(TenantContextKey).(domain.TenantContext)
	if !ok {
		return domain.TenantContext{}, ErrNoTenantInContext
	}
	return tc, nil
}

func WithSubject(ctx context.Context, s domain.Subject) context.Context {
	return context.WithValue(ctx, SubjectKey, s)
}

func GetSubject(ctx context.Context) (domain.Subject, error) {
	s, ok := ctx.Value(SubjectKey).(domain.Subject)
	if !ok {
		return domain.Subject{}, ErrNoSubjectInContext
	}
	return s, nil
}

// GetTenantIDFromContext returns the tenant id of the resolved tenant, or
// the empty string for platform scope.
func GetTenantIDFromContext(ctx context.Context) (string, error) {
	tc, err := GetTenantContext(ctx)
	if err != nil {
		return "", err
	}
	return tc.TenantID, nil
}
