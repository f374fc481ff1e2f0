package tenancy

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kingrain94/tenant-platform/internal/domain"
)

const (
	HeaderTenantSlug = "X-Tenant-Slug"
	pathPrefix       = "/tenant/"
)

var reservedLabels = map[string]struct{}{
	"www":       {},
	"app":       {},
	"api":       {},
	"localhost": {},
}

// Directory is the read side of the tenant catalog the resolver needs.
type Directory interface {
	GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error)
}

// Signals are the parts of a request that may name a tenant.
type Signals struct {
	Host   string
	Path   string
	Header http.Header
	Query  url.Values
}

func SignalsFromRequest(r *http.Request) Signals {
	return Signals{
		Host:   r.Host,
		Path:   r.URL.Path,
		Header: r.Header,
		Query:  r.URL.Query(),
	}
}

type candidate struct {
	slug   string
	source domain.TenantSource
}

type Resolver struct {
	directory     Directory
	baseDomain    string
	lookupTimeout time.Duration
}

// NewResolver builds a resolver. When baseDomain is set, only hosts directly
// under it yield a subdomain signal; otherwise any host with three or more
// labels does.
func NewResolver(directory Directory, baseDomain string, lookupTimeout time.Duration) *Resolver {
	return &Resolver{
		directory:     directory,
		baseDomain:    strings.Trim(strings.ToLower(baseDomain), "."),
		lookupTimeout: lookupTimeout,
	}
}

// Resolve maps request signals to exactly one tenant, or to platform scope
// when no signal is present. Signals that name different tenants fail with
// TenantConflict; the resolver never picks one of them.
func (r *Resolver) Resolve(ctx context.Context, s Signals) (domain.TenantContext, error) {
	candidates := r.candidates(s)
	if len(candidates) == 0 {
		return domain.PlatformContext(), nil
	}

	chosen := candidates[0]
	for _, c := range candidates {
		if !domain.ValidSlug(c.slug) {
			return domain.TenantContext{}, domain.NewError(domain.CodeTenantNotFound, "invalid tenant slug %q from %s", c.slug, c.source)
		}
		if c.slug != chosen.slug {
			return domain.TenantContext{}, domain.NewError(domain.CodeTenantConflict,
				"%s names %q but %s names %q", chosen.source, chosen.slug, c.source, c.slug)
		}
	}

	tenant, err := r.lookup(ctx, chosen.slug)
	if err != nil {
		return domain.TenantContext{}, err
	}

	if tenant.IsActive() {
		return domain.NewTenantContext(tenant, chosen.source), nil
	}
	if tenant.Status == domain.TenantStatusDeleted {
		return domain.TenantContext{}, domain.NewError(domain.CodeTenantNotFound, "tenant %q not found", chosen.slug)
	}
	return domain.TenantContext{}, domain.NewError(domain.CodeTenantInactive, "tenant %q is %s", chosen.slug, tenant.Status)
}

func (r *Resolver) lookup(ctx context.Context, slug string) (*domain.Tenant, error) {
	if r.lookupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.lookupTimeout)
		defer cancel()
	}

	tenant, err := r.directory.GetBySlug(ctx, slug)
	if err == nil {
		return tenant, nil
	}
	if errors.Is(err, domain.ErrTenantNotFound) {
		return nil, err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, &domain.Error{Code: domain.CodeInternal, Message: "tenant directory lookup timed out", Err: err}
	}
	return nil, domain.WrapError(domain.CodeInternal, "tenant directory lookup failed", err)
}

// candidates lists the present signals in precedence order.
func (r *Resolver) candidates(s Signals) []candidate {
	var out []candidate

	if s.Header != nil {
		if v := domain.NormalizeSlug(s.Header.Get(HeaderTenantSlug)); v != "" {
			out = append(out, candidate{slug: v, source: domain.TenantSourceHeader})
		}
	}
	if v := slugFromPath(s.Path); v != "" {
		out = append(out, candidate{slug: v, source: domain.TenantSourcePath})
	}
	if v := r.slugFromHost(s.Host); v != "" {
		out = append(out, candidate{slug: v, source: domain.TenantSourceSubdomain})
	}

	return out
}

func slugFromPath(path string) string {
	if !strings.HasPrefix(path, pathPrefix) {
		return ""
	}
	rest := strings.TrimPrefix(path, pathPrefix)
	slug, _, _ := strings.Cut(rest, "/")
	return domain.NormalizeSlug(slug)
}

func (r *Resolver) slugFromHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[].")
	if host == "" || net.ParseIP(host) != nil {
		return ""
	}

	var label string
	if r.baseDomain != "" {
		sub, ok := strings.CutSuffix(host, "."+r.baseDomain)
		if !ok || sub == "" || strings.Contains(sub, ".") {
			return ""
		}
		label = sub
	} else {
		labels := strings.Split(host, ".")
		if len(labels) < 3 {
			return ""
		}
		label = labels[0]
	}

	if _, reserved := reservedLabels[label]; reserved {
		return ""
	}
	return label
}
