package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

type DependencyHealth struct {
	Name      string  `json:"name"`
	Status    string  `json:"status"`
	LatencyMS float64 `json:"latency_ms"`
	Error     string  `json:"error,omitempty"`
}

type HealthResponse struct {
	Status       string             `json:"status"`
	Dependencies []DependencyHealth `json:"dependencies"`
}

// Report summarises backend health. A backend still marked healthy but
// failing its latest probes is degraded. The gateway is healthy when every
// backend is healthy, unhealthy when none is up, degraded otherwise.
func Report(statuses []BackendStatus) HealthResponse {
	resp := HealthResponse{Status: StatusHealthy, Dependencies: make([]DependencyHealth, 0, len(statuses))}
	up, healthy := 0, 0
	for _, s := range statuses {
		d := DependencyHealth{
			Name:      s.Name,
			Status:    StatusHealthy,
			LatencyMS: float64(s.Latency.Microseconds()) / 1000,
			Error:     s.LastError,
		}
		switch {
		case !s.Healthy:
			d.Status = StatusUnhealthy
		case s.ConsecutiveFailures > 0:
			d.Status = StatusDegraded
			up++
		default:
			up++
			healthy++
		}
		resp.Dependencies = append(resp.Dependencies, d)
	}

	switch {
	case healthy == len(statuses):
		resp.Status = StatusHealthy
	case up == 0:
		resp.Status = StatusUnhealthy
	default:
		resp.Status = StatusDegraded
	}
	return resp
}

// HealthHandler serves the gateway's own health. Degraded still answers 200
// since the healthy backends keep serving.
func HealthHandler(m *Monitor) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := Report(m.Snapshot())
		status := http.StatusOK
		if resp.Status == StatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, resp)
	}
}

func MetricsHandler(g prometheus.Gatherer) gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
}
