package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// RouteConfig is one entry of GATEWAY_ROUTES.
type RouteConfig struct {
	Prefix          string   `json:"prefix"`
	Backend         string   `json:"backend"`
	URL             string   `json:"url"`
	HealthPath      string   `json:"health_path,omitempty"`
	Timeout         string   `json:"timeout,omitempty"`
	PublicPaths     []string `json:"public_paths,omitempty"`
	ReadPermission  string   `json:"read_permission,omitempty"`
	WritePermission string   `json:"write_permission,omitempty"`
}

type GatewayConfig struct {
	Port               int
	Routes             []RouteConfig
	DefaultTimeout     time.Duration
	ProbeInterval      time.Duration
	ProbeTimeout       time.Duration
	UnhealthyThreshold int
	HealthyThreshold   int
}

const defaultGatewayRoutes = `[
	{"prefix": "/auth", "backend": "tenant-service", "url": "http://localhost:10000/api/v1", "public_paths": ["/auth/login", "/auth/refresh"]},
	{"prefix": "/tenants", "backend": "tenant-service", "url": "http://localhost:10000/api/v1"},
	{"prefix": "/orders", "backend": "orders-service", "url": "http://localhost:10010", "read_permission": "orders.read", "write_permission": "orders.write"},
	{"prefix": "/invoices", "backend": "invoicing-service", "url": "http://localhost:10020", "read_permission": "invoices.read", "write_permission": "invoices.write"},
	{"prefix": "/crm", "backend": "crm-service", "url": "http://localhost:10030", "read_permission": "crm.read", "write_permission": "crm.write"}
]`

func DefaultGatewayConfig() (*GatewayConfig, error) {
	routes, err := ParseRoutes(getEnvWithDefault("GATEWAY_ROUTES", defaultGatewayRoutes))
	if err != nil {
		return nil, err
	}

	return &GatewayConfig{
		Port:               getEnvIntWithDefault("GATEWAY_PORT", 8080),
		Routes:             routes,
		DefaultTimeout:     getEnvDurationWithDefault("GATEWAY_UPSTREAM_TIMEOUT", 10*time.Second),
		ProbeInterval:      getEnvDurationWithDefault("GATEWAY_PROBE_INTERVAL", 5*time.Second),
		ProbeTimeout:       getEnvDurationWithDefault("GATEWAY_PROBE_TIMEOUT", 2*time.Second),
		UnhealthyThreshold: getEnvIntWithDefault("GATEWAY_UNHEALTHY_THRESHOLD", 3),
		HealthyThreshold:   getEnvIntWithDefault("GATEWAY_HEALTHY_THRESHOLD", 2),
	}, nil
}

// ParseRoutes decodes a JSON route table and checks that every entry is usable.
func ParseRoutes(raw string) ([]RouteConfig, error) {
	var routes []RouteConfig
	if err := json.Unmarshal([]byte(raw), &routes); err != nil {
		return nil, fmt.Errorf("failed to parse GATEWAY_ROUTES: %w", err)
	}

	for i, r := range routes {
		if !strings.HasPrefix(r.Prefix, "/") {
			return nil, fmt.Errorf("route %d: prefix %q must start with '/'", i, r.Prefix)
		}
		if r.Backend == "" || r.URL == "" {
			return nil, fmt.Errorf("route %d: backend and url are required", i)
		}
		if r.Timeout != "" {
			if _, err := time.ParseDuration(r.Timeout); err != nil {
				return nil, fmt.Errorf("route %d: invalid timeout %q: %w", i, r.Timeout, err)
			}
		}
	}

	return routes, nil
}
