package provisioning

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	provisioned *prometheus.CounterVec
	duration    prometheus.Histogram
}

// NewMetrics registers the provisioning metrics with reg. A nil reg yields
// unregistered collectors, which is what tests use.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		provisioned: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenant_provisioning_total",
				Help: "Total number of tenant provisioning runs by status",
			},
			[]string{"status"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tenant_provisioning_duration_seconds",
				Help:    "Duration of tenant provisioning in seconds",
				Buckets: prometheus.LinearBuckets(0, 1, 10),
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.provisioned, m.duration)
	}
	return m
}

func (m *Metrics) observe(status string, started time.Time) {
	if m == nil {
		return
	}
	m.provisioned.WithLabelValues(status).Inc()
	m.duration.Observe(time.Since(started).Seconds())
}

func (m *Metrics) count(status string) {
	if m == nil {
		return
	}
	m.provisioned.WithLabelValues(status).Inc()
}
