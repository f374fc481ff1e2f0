package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httputil"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kingrain94/tenant-platform/internal/api/dto"
	"github.com/kingrain94/tenant-platform/internal/auth"
	"github.com/kingrain94/tenant-platform/internal/authz"
	"github.com/kingrain94/tenant-platform/internal/domain"
	"github.com/kingrain94/tenant-platform/internal/tenancy"
	"github.com/kingrain94/tenant-platform/internal/utils"
	"github.com/kingrain94/tenant-platform/pkg/logger"
)

// Identity headers set by the gateway for backends. Client supplied copies
// are always removed first.
const (
	HeaderTenantID      = "X-Tenant-ID"
	HeaderTenantSlug    = tenancy.HeaderTenantSlug
	HeaderTenantSchema  = "X-Tenant-Schema"
	HeaderPrincipalID   = "X-Principal-ID"
	HeaderPrincipalRole = "X-Principal-Role"
	HeaderRequestID     = "X-Request-ID"
)

var identityHeaders = []string{HeaderTenantID, HeaderTenantSlug, HeaderTenantSchema, HeaderPrincipalID, HeaderPrincipalRole}

type Resolver interface {
	Resolve(ctx context.Context, s tenancy.Signals) (domain.TenantContext, error)
}

type TokenValidator interface {
	ValidateAccess(ctx context.Context, raw string) (*auth.Claims, error)
}

type Authorizer interface {
	Authorize(ctx context.Context, subject domain.Subject, tc domain.TenantContext, perm string) (authz.Decision, error)
}

type HealthChecker interface {
	Healthy(backend string) bool
}

type Auditor interface {
	Record(ctx context.Context, event *domain.AuditEvent)
}

type Router struct {
	routes     *RouteTable
	resolver   Resolver
	tokens     TokenValidator
	authorizer Authorizer
	health     HealthChecker
	auditor    Auditor
	metrics    *Metrics
	logger     *logger.Logger
	proxies    map[string]*httputil.ReverseProxy
}

type proxyStateKey struct{}

// proxyState travels with the outgoing request so the error handler knows
// which route failed and the caller knows whether it did.
type proxyState struct {
	route  *Route
	failed bool
}

type Option func(*Router)

func WithAuditor(a Auditor) Option {
	return func(r *Router) { r.auditor = a }
}

func WithMetrics(m *Metrics) Option {
	return func(r *Router) { r.metrics = m }
}

// WithTransport replaces the upstream transport, e.g. in tests.
func WithTransport(t http.RoundTripper) Option {
	return func(r *Router) {
		for _, p := range r.proxies {
			p.Transport = t
		}
	}
}

func NewTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          200,
		MaxIdleConnsPerHost:   50,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: 0,
	}
}

func NewRouter(
	routes *RouteTable,
	resolver Resolver,
	tokens TokenValidator,
	authorizer Authorizer,
	health HealthChecker,
	logger *logger.Logger,
	opts ...Option,
) *Router {
	r := &Router{
		routes:     routes,
		resolver:   resolver,
		tokens:     tokens,
		authorizer: authorizer,
		health:     health,
		logger:     logger,
		proxies:    make(map[string]*httputil.ReverseProxy),
	}

	transport := NewTransport()
	for _, route := range routes.routes {
		r.proxies[route.Prefix] = r.newProxy(route, transport)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Router) newProxy(route *Route, transport http.RoundTripper) *httputil.ReverseProxy {
	target := route.Target
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
		},
		Transport:     transport,
		FlushInterval: -1,
		ErrorHandler:  r.upstreamError,
	}
}

// Register makes the router the fallback handler of engine, so the gateway's
// own endpoints registered on engine take precedence.
func (r *Router) Register(engine *gin.Engine) {
	engine.NoRoute(r.Handle)
	engine.NoMethod(r.Handle)
}

// Handle runs one request through route lookup, tenant resolution, token
// validation, authorization and the health gate, then proxies it.
func (r *Router) Handle(c *gin.Context) {
	if cleaned := cleanPath(c.Request.URL.Path); cleaned != c.Request.URL.Path {
		c.Request.URL.Path = cleaned
		c.Request.URL.RawPath = ""
	}
	path := routingPath(c.Request.URL.Path)
	route, ok := r.routes.Match(path)
	if !ok {
		r.reject(c, nil, domain.PlatformContext(), nil, domain.NewError(domain.CodeRouteNotFound, "no route for %s", path))
		return
	}

	ctx := c.Request.Context()
	tc, err := r.resolver.Resolve(ctx, tenancy.SignalsFromRequest(c.Request))
	if err != nil {
		r.reject(c, route, domain.PlatformContext(), nil, err)
		return
	}
	ctx = utils.WithTenantContext(ctx, tc)

	var subject *domain.Subject
	if !route.IsPublic(path) {
		claims, err := r.tokens.ValidateAccess(ctx, bearerToken(c.Request))
		if err != nil {
			r.reject(c, route, tc, nil, err)
			return
		}
		s := claims.AuthSubject()
		subject = &s
		ctx = utils.WithSubject(ctx, s)

		if perm := route.Permission(c.Request.Method); perm != "" {
			decision, err := r.authorizer.Authorize(ctx, s, tc, perm)
			if err == nil {
				err = decision.Err(perm)
			}
			if err != nil {
				r.reject(c, route, tc, subject, err)
				return
			}
		}
	}

	if !r.health.Healthy(route.Backend) {
		r.reject(c, route, tc, subject, domain.NewError(domain.CodeUpstreamUnavailable, "backend %s is unhealthy", route.Backend))
		return
	}

	r.forward(c, ctx, route, path, tc, subject)
}

func (r *Router) forward(c *gin.Context, ctx context.Context, route *Route, path string, tc domain.TenantContext, subject *domain.Subject) {
	if route.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, route.Timeout)
		defer cancel()
	}
	state := &proxyState{route: route}
	ctx = context.WithValue(ctx, proxyStateKey{}, state)

	out := c.Request.Clone(ctx)
	out.URL.Path = path
	out.URL.RawPath = ""
	setIdentity(out.Header, tc, subject)
	if out.Header.Get(HeaderRequestID) == "" {
		out.Header.Set(HeaderRequestID, uuid.NewString())
	}

	start := time.Now()
	r.proxies[route.Prefix].ServeHTTP(c.Writer, out)
	r.metrics.upstreamDuration(route.Backend, time.Since(start))
	if !state.failed {
		r.metrics.request(route.Backend, "proxied")
	}
}

func setIdentity(h http.Header, tc domain.TenantContext, subject *domain.Subject) {
	for _, k := range identityHeaders {
		h.Del(k)
	}
	if !tc.IsPlatform() {
		h.Set(HeaderTenantID, tc.TenantID)
		h.Set(HeaderTenantSlug, tc.Slug)
		h.Set(HeaderTenantSchema, tc.SchemaName)
	}
	if subject != nil {
		h.Set(HeaderPrincipalID, subject.PrincipalID)
		h.Set(HeaderPrincipalRole, strings.Join(subject.Roles, ","))
	}
}

func bearerToken(req *http.Request) string {
	scheme, token, ok := strings.Cut(req.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// upstreamError maps transport failures. Nothing is retried: the caller gets
// the code and decides whether its request is safe to repeat.
func (r *Router) upstreamError(w http.ResponseWriter, req *http.Request, err error) {
	backend := ""
	if state, ok := req.Context().Value(proxyStateKey{}).(*proxyState); ok {
		state.failed = true
		backend = state.route.Backend
	}

	var derr *domain.Error
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(req.Context().Err(), context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		derr = &domain.Error{Code: domain.CodeUpstreamTimeout, Message: "backend " + backend + " did not answer in time", Err: err}
	case errors.Is(err, context.Canceled):
		r.logger.Debug("client went away before upstream answered", zap.String("backend", backend))
		r.metrics.request(backend, "canceled")
		return
	default:
		derr = &domain.Error{Code: domain.CodeUpstreamUnavailable, Message: "backend " + backend + " is unreachable", Err: err}
	}

	r.logger.Warn("upstream call failed", zap.String("backend", backend), zap.String("path", req.URL.Path), zap.Error(err))
	r.metrics.request(backend, string(derr.Code))

	tc, _ := utils.GetTenantContext(req.Context())
	var subject *domain.Subject
	if s, err := utils.GetSubject(req.Context()); err == nil {
		subject = &s
	}
	r.audit(req.Context(), req, tc, subject, domain.AuditActionUpstreamFailure, derr)

	w.Header().Set("X-Gateway-Error", string(derr.Code))
	writeError(w, derr)
}

func (r *Router) reject(c *gin.Context, route *Route, tc domain.TenantContext, subject *domain.Subject, err error) {
	derr := domain.AsError(err)
	backend := ""
	if route != nil {
		backend = route.Backend
	}
	r.metrics.request(backend, string(derr.Code))

	action := domain.AuditActionAuthorize
	switch derr.Code {
	case domain.CodeTenantNotFound, domain.CodeTenantInactive, domain.CodeTenantConflict:
		action = domain.AuditActionTenantResolve
	case domain.CodeTokenInvalid:
		action = domain.AuditActionTokenRejected
	case domain.CodeUpstreamUnavailable, domain.CodeUpstreamTimeout, domain.CodeRouteNotFound:
		action = domain.AuditActionUpstreamFailure
	}
	r.audit(c.Request.Context(), c.Request, tc, subject, action, derr)

	status, body := dto.NewError(derr)
	c.Header("X-Gateway-Error", body.ErrorCode)
	c.AbortWithStatusJSON(status, body)
}

func (r *Router) audit(ctx context.Context, req *http.Request, tc domain.TenantContext, subject *domain.Subject, action string, derr *domain.Error) {
	if r.auditor == nil {
		return
	}
	event := &domain.AuditEvent{
		TenantID:   tc.TenantID,
		TenantSlug: tc.Slug,
		Action:     action,
		Outcome:    domain.AuditOutcomeDeny,
		ErrorCode:  string(derr.Code),
		Reason:     derr.Error(),
		Method:     req.Method,
		Path:       req.URL.Path,
		RemoteIP:   clientIP(req),
	}
	if derr.Code == domain.CodeUpstreamUnavailable || derr.Code == domain.CodeUpstreamTimeout {
		event.Outcome = domain.AuditOutcomeFailure
	}
	if subject != nil {
		event.PrincipalID = subject.PrincipalID
	}
	r.auditor.Record(ctx, event)
}

func clientIP(req *http.Request) string {
	if fwd := req.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}

func writeError(w http.ResponseWriter, err error) {
	status, body := dto.NewError(err)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
