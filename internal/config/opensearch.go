package config

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"
)

const platformIndexScope = "platform"

// OpenSearchConfig locates the cluster holding the audit event indices. Each
// tenant gets one index per month so archiving a tenant drops whole indices.
type OpenSearchConfig struct {
	Addresses   []string
	Username    string
	Password    string
	IndexPrefix string
	// InsecureTLS skips certificate checks, for local single-node clusters.
	InsecureTLS bool
}

func DefaultOpenSearchConfig() *OpenSearchConfig {
	host := getEnvWithDefault("OPENSEARCH_HOST", "localhost")
	port := getEnvWithDefault("OPENSEARCH_PORT", "9200")
	addresses := getEnvWithDefault("OPENSEARCH_ADDRESSES", fmt.Sprintf("http://%s:%s", host, port))

	return &OpenSearchConfig{
		Addresses:   strings.Split(addresses, ","),
		Username:    getEnvWithDefault("OPENSEARCH_USERNAME", ""),
		Password:    getEnvWithDefault("OPENSEARCH_PASSWORD", ""),
		IndexPrefix: getEnvWithDefault("OPENSEARCH_INDEX_PREFIX", "audit_events"),
		InsecureTLS: getEnvBoolWithDefault("OPENSEARCH_INSECURE_TLS", false),
	}
}

func (c *OpenSearchConfig) GetClient() (*opensearch.Client, error) {
	cfg := opensearch.Config{
		Addresses: c.Addresses,
		Username:  c.Username,
		Password:  c.Password,
	}
	if c.InsecureTLS {
		cfg.Transport = &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}}
	}
	return opensearch.NewClient(cfg)
}

func (c *OpenSearchConfig) prefix() string {
	if c.IndexPrefix == "" {
		return "audit_events"
	}
	return c.IndexPrefix
}

func indexScope(tenantID string) string {
	if tenantID == "" {
		return platformIndexScope
	}
	return tenantID
}

// GetIndexName returns the monthly index of a tenant, e.g.
// audit_events_<tenant>_2024_03. Platform events use the "platform" scope.
func (c *OpenSearchConfig) GetIndexName(tenantID string, t time.Time) string {
	return fmt.Sprintf("%s_%s_%s", c.prefix(), indexScope(tenantID), t.UTC().Format("2006_01"))
}

// GetIndexPattern matches every monthly index of a tenant.
func (c *OpenSearchConfig) GetIndexPattern(tenantID string) string {
	return fmt.Sprintf("%s_%s_*", c.prefix(), indexScope(tenantID))
}
