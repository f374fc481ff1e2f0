package gateway

import (
	"fmt"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/kingrain94/tenant-platform/internal/config"
)

const defaultHealthPath = "/health"

type Route struct {
	Prefix          string
	Backend         string
	Target          *url.URL
	Timeout         time.Duration
	PublicPaths     []string
	ReadPermission  string
	WritePermission string
}

// Backend is one upstream service. Several routes may share a backend.
type Backend struct {
	Name      string
	HealthURL string
}

// RouteTable matches request paths against route prefixes, longest prefix
// first. A prefix only matches at a path segment boundary, so "/orders" does
// not match "/orders-archive".
type RouteTable struct {
	routes   []*Route
	backends []Backend
}

func NewRouteTable(cfgs []config.RouteConfig, defaultTimeout time.Duration) (*RouteTable, error) {
	t := &RouteTable{}
	seenBackend := make(map[string]bool)
	seenPrefix := make(map[string]bool)

	for _, c := range cfgs {
		target, err := url.Parse(c.URL)
		if err != nil || target.Scheme == "" || target.Host == "" {
			return nil, fmt.Errorf("route %s: invalid backend url %q", c.Prefix, c.URL)
		}

		prefix := strings.TrimSuffix(c.Prefix, "/")
		if prefix == "" {
			prefix = "/"
		}
		if seenPrefix[prefix] {
			return nil, fmt.Errorf("route %s: duplicate prefix", prefix)
		}
		seenPrefix[prefix] = true

		timeout := defaultTimeout
		if c.Timeout != "" {
			if timeout, err = time.ParseDuration(c.Timeout); err != nil {
				return nil, fmt.Errorf("route %s: invalid timeout: %w", prefix, err)
			}
		}

		t.routes = append(t.routes, &Route{
			Prefix:          prefix,
			Backend:         c.Backend,
			Target:          target,
			Timeout:         timeout,
			PublicPaths:     c.PublicPaths,
			ReadPermission:  c.ReadPermission,
			WritePermission: c.WritePermission,
		})

		if !seenBackend[c.Backend] {
			seenBackend[c.Backend] = true
			healthPath := c.HealthPath
			if healthPath == "" {
				healthPath = defaultHealthPath
			}
			t.backends = append(t.backends, Backend{
				Name:      c.Backend,
				HealthURL: target.Scheme + "://" + target.Host + healthPath,
			})
		}
	}

	sort.SliceStable(t.routes, func(i, j int) bool {
		return len(t.routes[i].Prefix) > len(t.routes[j].Prefix)
	})
	return t, nil
}

func (t *RouteTable) Backends() []Backend {
	return t.backends
}

func (t *RouteTable) Match(path string) (*Route, bool) {
	for _, r := range t.routes {
		if pathHasPrefix(path, r.Prefix) {
			return r, true
		}
	}
	return nil, false
}

func pathHasPrefix(path, prefix string) bool {
	if prefix == "/" {
		return true
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

// IsPublic reports whether path may be called without a token.
func (r *Route) IsPublic(path string) bool {
	for _, p := range r.PublicPaths {
		if pathHasPrefix(path, p) {
			return true
		}
	}
	return false
}

// Permission returns the permission a request with method needs, or "" when
// the route leaves authorization to the backend.
func (r *Route) Permission(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return r.ReadPermission
	default:
		return r.WritePermission
	}
}

// routingPath drops a leading /tenant/{slug} segment pair. The slug has
// already been consumed by tenant resolution, and backends are addressed by
// the remainder.
// cleanPath resolves dot segments and repeated slashes, keeping a trailing
// slash. Route matching, public-path checks and the forwarded URL all use the
// cleaned form, so "/auth/login/../../tenants" is routed as "/tenants".
func cleanPath(p string) string {
	cleaned := path.Clean("/" + p)
	if strings.HasSuffix(p, "/") && cleaned != "/" {
		cleaned += "/"
	}
	return cleaned
}

func routingPath(path string) string {
	rest, ok := strings.CutPrefix(path, "/tenant/")
	if !ok {
		return path
	}
	_, tail, found := strings.Cut(rest, "/")
	if !found {
		return "/"
	}
	return "/" + tail
}
