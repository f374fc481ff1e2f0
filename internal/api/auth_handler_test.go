package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/kingrain94/tenant-platform/internal/api/dto"
	"github.com/kingrain94/tenant-platform/internal/auth"
	"github.com/kingrain94/tenant-platform/internal/authz"
	"github.com/kingrain94/tenant-platform/internal/domain"
	"github.com/kingrain94/tenant-platform/internal/utils"
)

type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Login(ctx context.Context, tc domain.TenantContext, req dto.LoginRequest, remoteIP string) (*auth.TokenPair, error) {
	args := m.Called(ctx, tc, req, remoteIP)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.TokenPair), args.Error(1)
}

func (m *MockAuthService) Refresh(ctx context.Context, tc domain.TenantContext, raw string) (*auth.TokenPair, error) {
	args := m.Called(ctx, tc, raw)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.TokenPair), args.Error(1)
}

func (m *MockAuthService) Logout(ctx context.Context, accessToken, refreshToken string) error {
	return m.Called(ctx, accessToken, refreshToken).Error(0)
}

func (m *MockAuthService) Validate(ctx context.Context, raw string) (*auth.Claims, error) {
	args := m.Called(ctx, raw)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Claims), args.Error(1)
}

type MockAuthorizer struct {
	mock.Mock
}

func (m *MockAuthorizer) Authorize(ctx context.Context, subject domain.Subject, tc domain.TenantContext, perm string) (authz.Decision, error) {
	args := m.Called(ctx, subject, tc, perm)
	return args.Get(0).(authz.Decision), args.Error(1)
}

type recordedEvents struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

func (r *recordedEvents) Record(_ context.Context, event *domain.AuditEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *event)
}

type AuthHandlerTestSuite struct {
	suite.Suite
	router     *gin.Engine
	service    *MockAuthService
	authorizer *MockAuthorizer
	auditor    *recordedEvents
	handler    *AuthHandler

	tenant  domain.TenantContext
	subject domain.Subject
	claims  *auth.Claims
}

func TestAuthHandler(t *testing.T) {
	suite.Run(t, new(AuthHandlerTestSuite))
}

func (s *AuthHandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	s.service = new(MockAuthService)
	s.authorizer = new(MockAuthorizer)
	s.auditor = &recordedEvents{}
	s.handler = NewAuthHandler(s.service, s.authorizer, s.auditor)

	s.tenant = domain.NewTenantContext(&domain.Tenant{ID: "tenant1", Slug: "acme", SchemaName: "tenant_acme"}, domain.TenantSourceHeader)
	tenantID, slug := "tenant1", "acme"
	s.subject = domain.Subject{
		PrincipalID: "user1",
		TenantID:    &tenantID,
		TenantSlug:  &slug,
		Roles:       []string{domain.RoleTenantUser},
	}
	s.claims = &auth.Claims{
		Role:       domain.RoleTenantUser,
		Roles:      []string{domain.RoleTenantUser},
		TenantID:   &tenantID,
		TenantSlug: &slug,
		TokenType:  auth.TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user1",
			ID:        "jti-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(15 * time.Minute)),
		},
	}

	s.router = gin.New()
	// stands in for tenant resolution
	s.router.Use(func(c *gin.Context) {
		c.Set(string(utils.TenantContextKey), s.tenant)
		c.Next()
	})
	authed := func(c *gin.Context) {
		c.Set(string(utils.ClaimsKey), s.claims)
		c.Set(string(utils.SubjectKey), s.subject)
		c.Set(string(utils.RawTokenKey), "raw-access")
		c.Next()
	}
	s.router.POST("/auth/login", s.handler.Login)
	s.router.POST("/auth/refresh", s.handler.Refresh)
	s.router.POST("/auth/logout", authed, s.handler.Logout)
	s.router.GET("/auth/validate", authed, s.handler.Validate)
	s.router.GET("/auth/validate-raw", func(c *gin.Context) {
		c.Set(string(utils.RawTokenKey), "raw-access")
		c.Next()
	}, s.handler.Validate)
	s.router.POST("/authz/check", authed, s.handler.CheckPermission)
	s.router.POST("/authz/check-anonymous", s.handler.CheckPermission)
}

func (s *AuthHandlerTestSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "10.0.0.7:5555"
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *AuthHandlerTestSuite) TestLogin_Success() {
	req := dto.LoginRequest{Username: "alice", Password: "s3cret-passw0rd"}
	pair := &auth.TokenPair{AccessToken: "a", RefreshToken: "r", TokenType: "Bearer", ExpiresIn: 900}
	s.service.On("Login", mock.Anything, s.tenant, req, "10.0.0.7").Return(pair, nil)

	w := s.do(http.MethodPost, "/auth/login", req)

	s.Equal(http.StatusOK, w.Code)
	var body auth.TokenPair
	s.NoError(json.Unmarshal(w.Body.Bytes(), &body))
	s.Equal("a", body.AccessToken)
	s.Equal("Bearer", body.TokenType)
	s.service.AssertExpectations(s.T())
}

func (s *AuthHandlerTestSuite) TestLogin_InvalidCredentials() {
	req := dto.LoginRequest{Username: "alice", Password: "wrong-password"}
	s.service.On("Login", mock.Anything, s.tenant, req, mock.Anything).
		Return(nil, domain.NewError(domain.CodeInvalidCredentials, "invalid username or password"))

	w := s.do(http.MethodPost, "/auth/login", req)

	s.Equal(http.StatusUnauthorized, w.Code)
	var body dto.Error
	s.NoError(json.Unmarshal(w.Body.Bytes(), &body))
	s.Equal("InvalidCredentials", body.ErrorCode)
}

func (s *AuthHandlerTestSuite) TestLogin_Locked() {
	req := dto.LoginRequest{Username: "alice", Password: "whatever1"}
	s.service.On("Login", mock.Anything, s.tenant, req, mock.Anything).
		Return(nil, domain.NewError(domain.CodeAccountLocked, "too many failed attempts"))

	w := s.do(http.MethodPost, "/auth/login", req)

	s.Equal(http.StatusTooManyRequests, w.Code)
}

func (s *AuthHandlerTestSuite) TestLogin_MissingFields() {
	w := s.do(http.MethodPost, "/auth/login", map[string]string{"username": "alice"})

	s.Equal(http.StatusBadRequest, w.Code)
	s.service.AssertNotCalled(s.T(), "Login", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (s *AuthHandlerTestSuite) TestRefresh_Revoked() {
	s.service.On("Refresh", mock.Anything, s.tenant, "old-refresh").
		Return(nil, domain.NewTokenError(domain.DetailRevoked, nil))

	w := s.do(http.MethodPost, "/auth/refresh", dto.RefreshRequest{RefreshToken: "old-refresh"})

	s.Equal(http.StatusUnauthorized, w.Code)
	var body dto.Error
	s.NoError(json.Unmarshal(w.Body.Bytes(), &body))
	s.Equal("TokenInvalid", body.ErrorCode)
	s.Equal("Revoked", body.Detail)
}

func (s *AuthHandlerTestSuite) TestRefresh_Success() {
	pair := &auth.TokenPair{AccessToken: "a2", RefreshToken: "r2", TokenType: "Bearer"}
	s.service.On("Refresh", mock.Anything, s.tenant, "old-refresh").Return(pair, nil)

	w := s.do(http.MethodPost, "/auth/refresh", dto.RefreshRequest{RefreshToken: "old-refresh"})

	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `"refresh_token":"r2"`)
}

func (s *AuthHandlerTestSuite) TestLogout_RevokesBothTokens() {
	s.service.On("Logout", mock.Anything, "raw-access", "raw-refresh").Return(nil)

	w := s.do(http.MethodPost, "/auth/logout", dto.LogoutRequest{RefreshToken: "raw-refresh"})

	s.Equal(http.StatusNoContent, w.Code)
	s.service.AssertExpectations(s.T())
}

func (s *AuthHandlerTestSuite) TestLogout_WithoutBody() {
	s.service.On("Logout", mock.Anything, "raw-access", "").Return(nil)

	w := s.do(http.MethodPost, "/auth/logout", nil)

	s.Equal(http.StatusNoContent, w.Code)
}

func (s *AuthHandlerTestSuite) TestValidate_UsesVerifiedClaims() {
	w := s.do(http.MethodGet, "/auth/validate", nil)

	s.Equal(http.StatusOK, w.Code)
	var body dto.ValidateTokenResponse
	s.NoError(json.Unmarshal(w.Body.Bytes(), &body))
	s.Equal("user1", body.PrincipalID)
	s.Equal("jti-1", body.JTI)
	s.Require().NotNil(body.TenantSlug)
	s.Equal("acme", *body.TenantSlug)
	s.service.AssertNotCalled(s.T(), "Validate", mock.Anything, mock.Anything)
}

func (s *AuthHandlerTestSuite) TestValidate_FallsBackToService() {
	s.service.On("Validate", mock.Anything, "raw-access").Return(nil, domain.NewTokenError(domain.DetailExpired, nil))

	w := s.do(http.MethodGet, "/auth/validate-raw", nil)

	s.Equal(http.StatusUnauthorized, w.Code)
	s.Contains(w.Body.String(), `"detail":"Expired"`)
}

func (s *AuthHandlerTestSuite) TestCheckPermission_Allowed() {
	decision := authz.Decision{Allowed: true, Rule: authz.RuleRole, Role: domain.RoleTenantUser}
	s.authorizer.On("Authorize", mock.Anything, s.subject, s.tenant, "orders.read").Return(decision, nil)

	w := s.do(http.MethodPost, "/authz/check", dto.CheckPermissionRequest{Permission: "orders.read"})

	s.Equal(http.StatusOK, w.Code)
	var body dto.CheckPermissionResponse
	s.NoError(json.Unmarshal(w.Body.Bytes(), &body))
	s.True(body.Allowed)
	s.Equal("role", body.Rule)
	s.Empty(s.auditor.events)
}

func (s *AuthHandlerTestSuite) TestCheckPermission_DeniedIsAudited() {
	decision := authz.Decision{Rule: authz.RuleDenyOverride, Reason: "explicit deny for users.delete"}
	s.authorizer.On("Authorize", mock.Anything, s.subject, s.tenant, "users.delete").Return(decision, nil)

	w := s.do(http.MethodPost, "/authz/check", dto.CheckPermissionRequest{Permission: "users.delete"})

	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `"allowed":false`)
	s.Require().Len(s.auditor.events, 1)
	event := s.auditor.events[0]
	s.Equal(domain.AuditActionAuthorize, event.Action)
	s.Equal(domain.AuditOutcomeDeny, event.Outcome)
	s.Equal("tenant1", event.TenantID)
	s.Equal("users.delete: deny_override", event.Reason)
}

func (s *AuthHandlerTestSuite) TestCheckPermission_RequiresSubject() {
	w := s.do(http.MethodPost, "/authz/check-anonymous", dto.CheckPermissionRequest{Permission: "orders.read"})

	s.Equal(http.StatusUnauthorized, w.Code)
	s.authorizer.AssertNotCalled(s.T(), "Authorize", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
