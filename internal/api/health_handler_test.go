package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingrain94/tenant-platform/internal/gateway"
)

func serveHealth(t *testing.T, checks ...HealthCheck) (int, gateway.HealthResponse) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/health", HealthHandler(checks...))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	var resp gateway.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w.Code, resp
}

func ok(context.Context) error { return nil }

func TestHealthHandler_AllHealthy(t *testing.T) {
	code, resp := serveHealth(t,
		HealthCheck{Name: "postgres", Ping: ok},
		HealthCheck{Name: "redis", Ping: ok},
	)

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, gateway.StatusHealthy, resp.Status)
	require.Len(t, resp.Dependencies, 2)
	assert.Equal(t, "postgres", resp.Dependencies[0].Name)
	assert.Equal(t, "redis", resp.Dependencies[1].Name)
}

func TestHealthHandler_OneDown(t *testing.T) {
	code, resp := serveHealth(t,
		HealthCheck{Name: "postgres", Ping: ok},
		HealthCheck{Name: "redis", Ping: func(context.Context) error { return errors.New("dial tcp: connection refused") }},
	)

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, gateway.StatusDegraded, resp.Status)
	assert.Equal(t, gateway.StatusUnhealthy, resp.Dependencies[1].Status)
	assert.Equal(t, "dial tcp: connection refused", resp.Dependencies[1].Error)
}

func TestHealthHandler_PingHonoursTimeout(t *testing.T) {
	code, resp := serveHealth(t, HealthCheck{Name: "opensearch", Ping: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, gateway.StatusUnhealthy, resp.Status)
}
