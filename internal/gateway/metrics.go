package gateway

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	requests      *prometheus.CounterVec
	upstream      *prometheus.HistogramVec
	backendHealth *prometheus.GaugeVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_requests_total",
				Help: "Requests handled by the gateway by backend and outcome",
			},
			[]string{"backend", "outcome"},
		),
		upstream: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_upstream_duration_seconds",
				Help:    "Duration of proxied upstream calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"backend"},
		),
		backendHealth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gateway_backend_healthy",
				Help: "1 when the backend passes its health probes, 0 otherwise",
			},
			[]string{"backend"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.upstream, m.backendHealth)
	}
	return m
}

func (m *Metrics) request(backend, outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(backend, outcome).Inc()
}

func (m *Metrics) upstreamDuration(backend string, d time.Duration) {
	if m == nil {
		return
	}
	m.upstream.WithLabelValues(backend).Observe(d.Seconds())
}

func (m *Metrics) health(backend string, healthy bool) {
	if m == nil {
		return
	}
	v := 0.0
	if healthy {
		v = 1
	}
	m.backendHealth.WithLabelValues(backend).Set(v)
}
