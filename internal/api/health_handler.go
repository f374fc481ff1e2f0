package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kingrain94/tenant-platform/internal/gateway"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck pings one dependency.
type HealthCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

// HealthHandler checks every dependency concurrently and reports them in the
// same shape as the gateway.
func HealthHandler(checks ...HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()

		statuses := make([]gateway.BackendStatus, len(checks))
		var wg sync.WaitGroup
		for i, check := range checks {
			wg.Add(1)
			go func(i int, check HealthCheck) {
				defer wg.Done()
				start := time.Now()
				err := check.Ping(ctx)
				statuses[i] = gateway.BackendStatus{
					Name:        check.Name,
					Healthy:     err == nil,
					Latency:     time.Since(start),
					LastChecked: start,
				}
				if err != nil {
					statuses[i].LastError = err.Error()
				}
			}(i, check)
		}
		wg.Wait()

		resp := gateway.Report(statuses)
		status := http.StatusOK
		if resp.Status != gateway.StatusHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, resp)
	}
}
