package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_RequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "")

	_, err := Load()

	assert.ErrorIs(t, err, ErrMissingJWTSecret)
}

func TestLoad_ReadsEnvironment(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "s3cret")
	t.Setenv("BASE_DOMAIN", "Example.COM")
	t.Setenv("ACCESS_TOKEN_TTL", "5m")
	t.Setenv("LOGIN_MAX_FAILURES", "not-a-number")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "example.com", cfg.BaseDomain)
	assert.Equal(t, 5*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 5, cfg.LoginMaxFailures)
	assert.Equal(t, 10000, cfg.ServerPort)
}

func TestReaderFallsBackToWriter(t *testing.T) {
	t.Setenv("POSTGRES_WRITER_HOST", "primary.db")
	t.Setenv("POSTGRES_WRITER_PASSWORD", "pw")
	t.Setenv("POSTGRES_READER_HOST", "")

	reader := getReaderConfig()

	assert.Equal(t, "primary.db", reader.Host)
	assert.Equal(t, "pw", reader.Password)

	t.Setenv("POSTGRES_READER_HOST", "replica.db")
	assert.Equal(t, "replica.db", getReaderConfig().Host)
	assert.Equal(t, "host=primary.db port=5432 user=postgres password=pw dbname=tenant_platform sslmode=disable", WriterConfig().DSN())
}

func TestParseRoutes(t *testing.T) {
	routes, err := ParseRoutes(defaultGatewayRoutes)
	require.NoError(t, err)
	assert.Len(t, routes, 5)
	assert.Equal(t, []string{"/auth/login", "/auth/refresh"}, routes[0].PublicPaths)

	_, err = ParseRoutes(`[{"prefix": "orders", "backend": "b", "url": "http://x"}]`)
	assert.ErrorContains(t, err, "must start with '/'")

	_, err = ParseRoutes(`[{"prefix": "/orders", "backend": "b", "url": "http://x", "timeout": "soon"}]`)
	assert.ErrorContains(t, err, "invalid timeout")

	_, err = ParseRoutes(`{}`)
	assert.Error(t, err)
}

func TestWorkerConfig(t *testing.T) {
	t.Setenv("ARCHIVE_WORKER_COUNT", "4")

	cfg := DefaultWorkerConfig("archive", time.Minute)

	assert.Equal(t, 4, cfg.Count)
	assert.Equal(t, time.Minute, cfg.HandlerTimeout)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
}

func TestOpenSearchIndexNames(t *testing.T) {
	cfg := &OpenSearchConfig{}
	at := time.Date(2024, 3, 20, 23, 0, 0, 0, time.FixedZone("UTC-5", -5*3600))

	assert.Equal(t, "audit_events_t1_2024_03", cfg.GetIndexName("t1", at.Add(-2*time.Hour)))
	assert.Equal(t, "audit_events_platform_2024_03", cfg.GetIndexName("", at.Add(-2*time.Hour)))
	assert.Equal(t, "audit_events_t1_*", cfg.GetIndexPattern("t1"))
}
