package service

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/kingrain94/tenant-platform/internal/api/dto"
	"github.com/kingrain94/tenant-platform/internal/auth"
	"github.com/kingrain94/tenant-platform/internal/domain"
	"github.com/kingrain94/tenant-platform/internal/repository"
	"github.com/kingrain94/tenant-platform/pkg/logger"
)

const platformLoginScope = "platform"

//go:generate mockery --name TokenManager --output ../mocks
type TokenManager interface {
	Issue(ctx context.Context, principal *domain.Principal, tc domain.TenantContext, role string) (*auth.TokenPair, error)
	Validate(ctx context.Context, raw string) (*auth.Claims, error)
	Refresh(ctx context.Context, raw string) (*auth.TokenPair, *auth.Claims, error)
	Revoke(ctx context.Context, raw string) (*auth.Claims, error)
}

type LoginGuard interface {
	Check(ctx context.Context, scope, username string) error
	RecordFailure(ctx context.Context, scope, username string) (bool, error)
	Reset(ctx context.Context, scope, username string) error
}

type AuthService struct {
	principals repository.PrincipalRepository
	roles      repository.RoleRepository
	tokens     TokenManager
	guard      LoginGuard
	auditor    Auditor
	logger     *logger.Logger
}

func NewAuthService(
	principals repository.PrincipalRepository,
	roles repository.RoleRepository,
	tokens TokenManager,
	guard LoginGuard,
	auditor Auditor,
	logger *logger.Logger,
) *AuthService {
	return &AuthService{
		principals: principals,
		roles:      roles,
		tokens:     tokens,
		guard:      guard,
		auditor:    auditor,
		logger:     logger,
	}
}

var (
	dummyHashOnce sync.Once
	dummyHash     []byte
)

// equalizeTiming spends one bcrypt comparison so that unknown usernames take
// as long as wrong passwords.
func equalizeTiming(password string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)
	})
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
}

func loginScope(tc domain.TenantContext) string {
	if tc.IsPlatform() {
		return platformLoginScope
	}
	return tc.Slug
}

// Login authenticates against the principals of the resolved scope: the
// tenant schema for a tenant, the catalog for platform operators. Unknown
// users, inactive users and wrong passwords all yield InvalidCredentials.
func (s *AuthService) Login(ctx context.Context, tc domain.TenantContext, req dto.LoginRequest, remoteIP string) (*auth.TokenPair, error) {
	scope := loginScope(tc)
	username := domain.NormalizeSlug(req.Username)

	if err := s.guard.Check(ctx, scope, username); err != nil {
		s.auditLogin(ctx, tc, "", remoteIP, err)
		return nil, err
	}

	principal, err := s.principals.GetByUsername(ctx, schemaFor(tc), username)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		equalizeTiming(req.Password)
		return nil, s.failLogin(ctx, tc, scope, username, "", remoteIP)
	case err != nil:
		return nil, domain.WrapError(domain.CodeInternal, "failed to load principal", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(principal.PasswordHash), []byte(req.Password)) != nil || !principal.Active {
		return nil, s.failLogin(ctx, tc, scope, username, principal.ID, remoteIP)
	}

	if err := s.guard.Reset(ctx, scope, username); err != nil {
		s.logger.Warn("failed to reset login failures", zap.String("username", username), zap.Error(err))
	}

	role := req.Role
	if role == "" {
		role = domain.PrimaryRole(principal.Roles, func(name string) (domain.Role, bool) {
			r, err := s.roles.Get(ctx, schemaFor(tc), name)
			if err != nil {
				return domain.Role{}, false
			}
			return *r, true
		})
	}

	pair, err := s.tokens.Issue(ctx, principal, tc, role)
	s.auditLogin(ctx, tc, principal.ID, remoteIP, err)
	if err != nil {
		return nil, err
	}
	return pair, nil
}

func (s *AuthService) failLogin(ctx context.Context, tc domain.TenantContext, scope, username, principalID, remoteIP string) error {
	result := domain.NewError(domain.CodeInvalidCredentials, "invalid username or password")

	locked, err := s.guard.RecordFailure(ctx, scope, username)
	if err != nil {
		s.logger.Warn("failed to record login failure", zap.String("username", username), zap.Error(err))
	}
	if locked {
		result = domain.NewError(domain.CodeAccountLocked, "too many failed logins, try again later")
	}

	s.auditLogin(ctx, tc, principalID, remoteIP, result)
	return result
}

func (s *AuthService) auditLogin(ctx context.Context, tc domain.TenantContext, principalID, remoteIP string, err error) {
	event := &domain.AuditEvent{
		TenantID:    tc.TenantID,
		TenantSlug:  tc.Slug,
		PrincipalID: principalID,
		Action:      domain.AuditActionLogin,
		Outcome:     domain.AuditOutcomeSuccess,
		RemoteIP:    remoteIP,
	}
	if err != nil {
		de := domain.AsError(err)
		event.Outcome = domain.AuditOutcomeDeny
		event.ErrorCode = string(de.Code)
		event.Reason = de.Message
	}
	s.record(ctx, event)
}

// Refresh rotates a refresh token. A tenant-bound token is only accepted in
// its own tenant's scope, and the check runs before the old token is spent.
func (s *AuthService) Refresh(ctx context.Context, tc domain.TenantContext, raw string) (*auth.TokenPair, error) {
	claims, err := s.tokens.Validate(ctx, raw)
	if err == nil && !claims.IsPlatform() && *claims.TenantID != tc.TenantID {
		err = domain.NewError(domain.CodeTenantConflict, "token belongs to another tenant")
	}

	var pair *auth.TokenPair
	if err == nil {
		pair, claims, err = s.tokens.Refresh(ctx, raw)
	}

	event := &domain.AuditEvent{
		TenantID:   tc.TenantID,
		TenantSlug: tc.Slug,
		Action:     domain.AuditActionRefresh,
		Outcome:    domain.AuditOutcomeSuccess,
	}
	if claims != nil {
		event.PrincipalID = claims.Subject
	}
	if err != nil {
		de := domain.AsError(err)
		event.Outcome = domain.AuditOutcomeDeny
		event.ErrorCode = string(de.Code)
		event.Reason = de.Detail
		s.record(ctx, event)
		return nil, err
	}

	s.record(ctx, event)
	return pair, nil
}

// Logout revokes the access token and, when given, the refresh token.
func (s *AuthService) Logout(ctx context.Context, accessToken, refreshToken string) error {
	claims, err := s.tokens.Revoke(ctx, accessToken)
	if err != nil {
		return err
	}
	if refreshToken != "" {
		if _, err := s.tokens.Revoke(ctx, refreshToken); err != nil {
			return err
		}
	}

	event := &domain.AuditEvent{
		PrincipalID: claims.Subject,
		Action:      domain.AuditActionLogout,
		Outcome:     domain.AuditOutcomeSuccess,
	}
	if claims.TenantID != nil {
		event.TenantID = *claims.TenantID
		event.TenantSlug = *claims.TenantSlug
	}
	s.record(ctx, event)
	return nil
}

func (s *AuthService) Validate(ctx context.Context, raw string) (*auth.Claims, error) {
	return s.tokens.Validate(ctx, raw)
}

func (s *AuthService) record(ctx context.Context, event *domain.AuditEvent) {
	if s.auditor != nil {
		s.auditor.Record(ctx, event)
	}
}
