package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"

	"github.com/kingrain94/tenant-platform/internal/api/dto"
	"github.com/kingrain94/tenant-platform/internal/auth"
	"github.com/kingrain94/tenant-platform/internal/authz"
	"github.com/kingrain94/tenant-platform/internal/config"
	"github.com/kingrain94/tenant-platform/internal/domain"
	"github.com/kingrain94/tenant-platform/internal/tenancy"
	"github.com/kingrain94/tenant-platform/pkg/logger"
)

type staticDirectory map[string]*domain.Tenant

func (d staticDirectory) GetBySlug(_ context.Context, slug string) (*domain.Tenant, error) {
	t, ok := d[slug]
	if !ok {
		return nil, domain.NewError(domain.CodeTenantNotFound, "tenant %q not found", slug)
	}
	return t, nil
}

type staticTokens map[string]*auth.Claims

func (s staticTokens) ValidateAccess(_ context.Context, raw string) (*auth.Claims, error) {
	c, ok := s[raw]
	if !ok {
		return nil, domain.NewTokenError(domain.DetailMalformed, errors.New("unknown token"))
	}
	return c, nil
}

type allowList map[string]bool

func (a allowList) Authorize(_ context.Context, _ domain.Subject, _ domain.TenantContext, perm string) (authz.Decision, error) {
	if a[perm] {
		return authz.Decision{Allowed: true, Rule: authz.RuleRole}, nil
	}
	return authz.Decision{Rule: authz.RuleDefaultDeny, Reason: "no grant"}, nil
}

type auditSink struct {
	events []*domain.AuditEvent
}

func (a *auditSink) Record(_ context.Context, e *domain.AuditEvent) {
	a.events = append(a.events, e)
}

type echoed struct {
	Path      string `json:"path"`
	TenantID  string `json:"tenant_id"`
	Slug      string `json:"slug"`
	Schema    string `json:"schema"`
	Principal string `json:"principal"`
	Role      string `json:"role"`
	RequestID string `json:"request_id"`
}

type RouterTestSuite struct {
	suite.Suite
	backend *httptest.Server
	hits    atomic.Int64
	delay   atomic.Int64
	aborted atomic.Int64
	monitor *Monitor
	auditor *auditSink
	engine  *gin.Engine
}

func TestRouter(t *testing.T) {
	suite.Run(t, new(RouterTestSuite))
}

func (s *RouterTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	s.hits.Store(0)
	s.delay.Store(0)
	s.aborted.Store(0)

	s.backend = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		if d := time.Duration(s.delay.Load()); d > 0 {
			select {
			case <-time.After(d):
			case <-r.Context().Done():
				s.aborted.Add(1)
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(echoed{
			Path:      r.URL.Path,
			TenantID:  r.Header.Get(HeaderTenantID),
			Slug:      r.Header.Get(HeaderTenantSlug),
			Schema:    r.Header.Get(HeaderTenantSchema),
			Principal: r.Header.Get(HeaderPrincipalID),
			Role:      r.Header.Get(HeaderPrincipalRole),
			RequestID: r.Header.Get(HeaderRequestID),
		})
	}))

	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()

	routes, err := NewRouteTable([]config.RouteConfig{
		{Prefix: "/tenants", Backend: "tenant-service", URL: s.backend.URL + "/api/v1", PublicPaths: []string{"/tenants/public"}},
		{Prefix: "/orders", Backend: "orders-service", URL: s.backend.URL, Timeout: "50ms", ReadPermission: "orders.read", WritePermission: "orders.write"},
		{Prefix: "/crm", Backend: "crm-service", URL: closedURL},
	}, time.Second)
	s.Require().NoError(err)

	s.monitor = NewMonitor(routes.Backends(), nil, MonitorConfig{UnhealthyAfter: 3, HealthyAfter: 2}, logger.NewNop(), nil)
	s.auditor = &auditSink{}

	acmeID, acmeSlug := "t-acme", "acme"
	resolver := tenancy.NewResolver(staticDirectory{
		"acme":   {ID: acmeID, Slug: acmeSlug, SchemaName: "tenant_acme", Status: domain.TenantStatusActive},
		"globex": {ID: "t-globex", Slug: "globex", SchemaName: "tenant_globex", Status: domain.TenantStatusActive},
	}, "example.com", time.Second)
	tokens := staticTokens{
		"alice": {Role: domain.RoleTenantUser, TenantID: &acmeID, TenantSlug: &acmeSlug, TokenType: auth.TokenTypeAccess,
			RegisteredClaims: jwt.RegisteredClaims{Subject: "u-alice"}},
	}

	router := NewRouter(routes, resolver, tokens, allowList{"orders.read": true}, s.monitor, logger.NewNop(), WithAuditor(s.auditor))
	s.engine = gin.New()
	s.engine.GET("/health", HealthHandler(s.monitor))
	router.Register(s.engine)
}

func (s *RouterTestSuite) TearDownTest() {
	s.backend.Close()
}

func (s *RouterTestSuite) do(method, target, token string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	req.Host = "example.com"
	for k, v := range header {
		req.Header[k] = v
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func (s *RouterTestSuite) errorBody(w *httptest.ResponseRecorder) dto.Error {
	var body dto.Error
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func (s *RouterTestSuite) TestProxy_ForwardsWithResolvedIdentity() {
	// Arrange
	spoofed := http.Header{}
	spoofed.Set(HeaderTenantID, "t-globex")
	spoofed.Set(HeaderPrincipalID, "root")
	spoofed.Set(HeaderTenantSchema, "public")

	// Act
	w := s.do(http.MethodGet, "/tenant/acme/tenants/42", "alice", spoofed)

	// Assert
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var got echoed
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &got))
	s.Equal("/api/v1/tenants/42", got.Path)
	s.Equal("t-acme", got.TenantID)
	s.Equal("acme", got.Slug)
	s.Equal("tenant_acme", got.Schema)
	s.Equal("u-alice", got.Principal)
	s.Equal(domain.RoleTenantUser, got.Role)
	s.NotEmpty(got.RequestID)
	s.Equal(int64(1), s.hits.Load())
}

func (s *RouterTestSuite) TestProxy_SubdomainResolution() {
	req := httptest.NewRequest(http.MethodGet, "/tenants/42", nil)
	req.Host = "acme.example.com"
	req.Header.Set("Authorization", "Bearer alice")
	w := httptest.NewRecorder()

	s.engine.ServeHTTP(w, req)

	s.Require().Equal(http.StatusOK, w.Code)
	var got echoed
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &got))
	s.Equal("t-acme", got.TenantID)
}

func (s *RouterTestSuite) TestProxy_UnknownRoute() {
	w := s.do(http.MethodGet, "/billing/1", "alice", nil)

	s.Equal(http.StatusNotFound, w.Code)
	s.Equal(string(domain.CodeRouteNotFound), s.errorBody(w).ErrorCode)
	s.Zero(s.hits.Load())
}

func (s *RouterTestSuite) TestProxy_GatewayEndpointsTakePrecedence() {
	w := s.do(http.MethodGet, "/health", "", nil)

	s.Equal(http.StatusOK, w.Code)
	s.Zero(s.hits.Load())
}

func (s *RouterTestSuite) TestProxy_UnhealthyBackendFailsFast() {
	// Arrange
	for i := 0; i < 5; i++ {
		s.monitor.Observe("tenant-service", errors.New("connection refused"), time.Millisecond)
	}
	s.Require().False(s.monitor.Healthy("tenant-service"))

	// Act
	w := s.do(http.MethodGet, "/tenant/acme/tenants/42", "alice", nil)

	// Assert
	s.Equal(http.StatusServiceUnavailable, w.Code)
	s.Equal(string(domain.CodeUpstreamUnavailable), s.errorBody(w).ErrorCode)
	s.Zero(s.hits.Load(), "no connection may be attempted to an unhealthy backend")
	s.Require().NotEmpty(s.auditor.events)
	s.Equal(domain.AuditActionUpstreamFailure, s.auditor.events[len(s.auditor.events)-1].Action)
}

func (s *RouterTestSuite) TestProxy_RecoveredBackendServesAgain() {
	for i := 0; i < 3; i++ {
		s.monitor.Observe("tenant-service", errors.New("down"), time.Millisecond)
	}
	s.monitor.Observe("tenant-service", nil, time.Millisecond)
	s.False(s.monitor.Healthy("tenant-service"))
	s.monitor.Observe("tenant-service", nil, time.Millisecond)

	w := s.do(http.MethodGet, "/tenant/acme/tenants/42", "alice", nil)

	s.Equal(http.StatusOK, w.Code)
	s.Equal(int64(1), s.hits.Load())
}

func (s *RouterTestSuite) TestProxy_UpstreamTimeout() {
	s.delay.Store(int64(time.Second))

	w := s.do(http.MethodGet, "/tenant/acme/orders/7", "alice", nil)

	s.Equal(http.StatusGatewayTimeout, w.Code)
	s.Equal(string(domain.CodeUpstreamTimeout), s.errorBody(w).ErrorCode)
}

func (s *RouterTestSuite) TestProxy_ClientCancellationReachesUpstream() {
	s.delay.Store(int64(5 * time.Second))
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/tenant/acme/tenants/42", nil).WithContext(ctx)
	req.Host = "example.com"
	req.Header.Set("Authorization", "Bearer alice")

	time.AfterFunc(50*time.Millisecond, cancel)
	started := time.Now()
	s.engine.ServeHTTP(httptest.NewRecorder(), req)

	s.Less(time.Since(started), time.Second)
	s.Eventually(func() bool { return s.aborted.Load() == 1 }, time.Second, 10*time.Millisecond)
	// a client that went away is not an upstream failure
	s.Empty(s.auditor.events)
}

func (s *RouterTestSuite) TestProxy_UnreachableBackend() {
	w := s.do(http.MethodGet, "/tenant/acme/crm/contacts", "alice", nil)

	s.Equal(http.StatusServiceUnavailable, w.Code)
	s.Equal(string(domain.CodeUpstreamUnavailable), s.errorBody(w).ErrorCode)
}

func (s *RouterTestSuite) TestProxy_MissingToken() {
	w := s.do(http.MethodGet, "/tenant/acme/tenants/42", "", nil)

	s.Equal(http.StatusUnauthorized, w.Code)
	s.Equal(string(domain.CodeTokenInvalid), s.errorBody(w).ErrorCode)
	s.Zero(s.hits.Load())
}

func (s *RouterTestSuite) TestProxy_PublicPathNeedsNoToken() {
	w := s.do(http.MethodGet, "/tenants/public/plans", "", nil)

	s.Equal(http.StatusOK, w.Code)
	var got echoed
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &got))
	s.Empty(got.Principal)
	s.Empty(got.TenantID)
}

func (s *RouterTestSuite) TestProxy_PermissionByMethod() {
	read := s.do(http.MethodGet, "/tenant/acme/orders/7", "alice", nil)
	write := s.do(http.MethodPost, "/tenant/acme/orders", "alice", nil)

	s.Equal(http.StatusOK, read.Code)
	s.Equal(http.StatusForbidden, write.Code)
	body := s.errorBody(write)
	s.Equal(string(domain.CodePermissionDenied), body.ErrorCode)
	s.Equal(string(authz.RuleDefaultDeny), body.Detail)
	s.Equal(int64(1), s.hits.Load())
}

func (s *RouterTestSuite) TestProxy_ConflictingTenantSignals() {
	h := http.Header{}
	h.Set(HeaderTenantSlug, "globex")

	w := s.do(http.MethodGet, "/tenant/acme/tenants/42", "alice", h)

	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal(string(domain.CodeTenantConflict), s.errorBody(w).ErrorCode)
	s.Zero(s.hits.Load())
}

func (s *RouterTestSuite) TestProxy_UnknownTenant() {
	w := s.do(http.MethodGet, "/tenant/nobody/tenants/42", "alice", nil)

	s.Equal(http.StatusNotFound, w.Code)
	s.Equal(string(domain.CodeTenantNotFound), s.errorBody(w).ErrorCode)
}

func (s *RouterTestSuite) TestProxy_DotSegmentsCannotEscapePublicPath() {
	w := s.do(http.MethodGet, "/tenants/public/../../orders/7", "", nil)

	s.Equal(http.StatusUnauthorized, w.Code)
	s.Equal(string(domain.CodeTokenInvalid), s.errorBody(w).ErrorCode)
	s.Zero(s.hits.Load())
}

func (s *RouterTestSuite) TestProxy_ForwardsCleanedPath() {
	w := s.do(http.MethodGet, "/tenant/acme/orders/./items//7", "alice", nil)

	s.Require().Equal(http.StatusOK, w.Code)
	var body echoed
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	s.Equal("/orders/items/7", body.Path)
}

func TestCleanPath(t *testing.T) {
	cases := map[string]string{
		"/auth/login/../../tenants/x": "/tenants/x",
		"/orders//1":                  "/orders/1",
		"/orders/./1/":                "/orders/1/",
		"/../../etc":                  "/etc",
		"":                            "/",
		"/":                           "/",
	}
	for in, want := range cases {
		if got := cleanPath(in); got != want {
			t.Errorf("cleanPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRoutingPath(t *testing.T) {
	cases := map[string]string{
		"/tenant/acme/orders/1": "/orders/1",
		"/tenant/acme":          "/",
		"/orders/1":             "/orders/1",
		"/tenants/42":           "/tenants/42",
	}
	for in, want := range cases {
		if got := routingPath(in); got != want {
			t.Errorf("routingPath(%q) = %q, want %q", in, got, want)
		}
	}
}
