package gateway

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/kingrain94/tenant-platform/pkg/logger"
)

// Prober checks one health endpoint.
type Prober interface {
	Probe(ctx context.Context, url string) error
}

type HTTPProber struct {
	client *resty.Client
}

// NewHTTPProber builds a prober without retries: a probe is a single attempt
// and the monitor's thresholds decide what a failure means.
func NewHTTPProber(timeout time.Duration) *HTTPProber {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "tenant-platform-gateway")
	return &HTTPProber{client: client}
}

func (p *HTTPProber) Probe(ctx context.Context, url string) error {
	resp, err := p.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return fmt.Errorf("probe failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("probe returned status %d", resp.StatusCode())
	}
	return nil
}

type MonitorConfig struct {
	Interval time.Duration
	Timeout  time.Duration
	// UnhealthyAfter consecutive failures mark a backend unhealthy and
	// HealthyAfter consecutive successes mark it healthy again.
	UnhealthyAfter int
	HealthyAfter   int
}

type BackendStatus struct {
	Name                 string        `json:"name"`
	Healthy              bool          `json:"healthy"`
	ConsecutiveFailures  int           `json:"consecutive_failures"`
	ConsecutiveSuccesses int           `json:"consecutive_successes"`
	Latency              time.Duration `json:"latency"`
	LastError            string        `json:"last_error,omitempty"`
	LastChecked          time.Time     `json:"last_checked"`
}

type backendState struct {
	backend Backend
	status  BackendStatus
}

// Monitor probes every backend on its own goroutine and keeps a healthy flag
// per backend with hysteresis. Request handling only reads the flags.
type Monitor struct {
	prober  Prober
	cfg     MonitorConfig
	logger  *logger.Logger
	metrics *Metrics

	mu     sync.RWMutex
	states map[string]*backendState

	shutdownChan chan struct{}
	stopOnce     sync.Once
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

// NewMonitor starts every backend as healthy so traffic flows before the
// first probe round completes.
func NewMonitor(backends []Backend, prober Prober, cfg MonitorConfig, logger *logger.Logger, metrics *Metrics) *Monitor {
	if cfg.UnhealthyAfter < 1 {
		cfg.UnhealthyAfter = 1
	}
	if cfg.HealthyAfter < 1 {
		cfg.HealthyAfter = 1
	}

	m := &Monitor{
		prober:       prober,
		cfg:          cfg,
		logger:       logger,
		metrics:      metrics,
		states:       make(map[string]*backendState, len(backends)),
		shutdownChan: make(chan struct{}),
	}
	for _, b := range backends {
		m.states[b.Name] = &backendState{
			backend: b,
			status:  BackendStatus{Name: b.Name, Healthy: true},
		}
		metrics.health(b.Name, true)
	}
	return m
}

func (m *Monitor) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.states {
		m.wg.Add(1)
		go m.run(ctx, s.backend)
	}
	m.logger.Info("Health monitor started", zap.Int("backends", len(m.states)), zap.Duration("interval", m.cfg.Interval))
}

// Stop halts probing and waits for the probe goroutines. Later calls are
// no-ops.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.shutdownChan)
		if m.cancel != nil {
			m.cancel()
		}
		m.wg.Wait()
		m.logger.Info("Health monitor stopped")
	})
}

func (m *Monitor) run(ctx context.Context, b Backend) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	m.probe(ctx, b)
	for {
		select {
		case <-m.shutdownChan:
			return
		case <-ticker.C:
			m.probe(ctx, b)
		}
	}
}

func (m *Monitor) probe(ctx context.Context, b Backend) {
	probeCtx := ctx
	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, m.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	err := m.prober.Probe(probeCtx, b.HealthURL)
	if ctx.Err() != nil {
		return
	}
	m.Observe(b.Name, err, time.Since(start))
}

// CheckNow probes every backend once, synchronously.
func (m *Monitor) CheckNow(ctx context.Context) {
	m.mu.RLock()
	backends := make([]Backend, 0, len(m.states))
	for _, s := range m.states {
		backends = append(backends, s.backend)
	}
	m.mu.RUnlock()

	for _, b := range backends {
		m.probe(ctx, b)
	}
}

// Observe records one probe result and applies the thresholds.
func (m *Monitor) Observe(name string, err error, latency time.Duration) {
	m.mu.Lock()
	s, ok := m.states[name]
	if !ok {
		m.mu.Unlock()
		return
	}

	st := &s.status
	st.Latency = latency
	st.LastChecked = time.Now()
	was := st.Healthy

	if err != nil {
		st.ConsecutiveFailures++
		st.ConsecutiveSuccesses = 0
		st.LastError = err.Error()
		if st.Healthy && st.ConsecutiveFailures >= m.cfg.UnhealthyAfter {
			st.Healthy = false
		}
	} else {
		st.ConsecutiveSuccesses++
		st.ConsecutiveFailures = 0
		st.LastError = ""
		if !st.Healthy && st.ConsecutiveSuccesses >= m.cfg.HealthyAfter {
			st.Healthy = true
		}
	}
	now := st.Healthy
	failures := st.ConsecutiveFailures
	m.mu.Unlock()

	if was != now {
		m.metrics.health(name, now)
		if now {
			m.logger.Info("Backend recovered", zap.String("backend", name))
		} else {
			m.logger.Warn("Backend marked unhealthy", zap.String("backend", name), zap.Int("failures", failures), zap.Error(err))
		}
	}
}

// Healthy reports the current flag. Unknown backends are treated as healthy.
func (m *Monitor) Healthy(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.states[name]
	return !ok || s.status.Healthy
}

func (m *Monitor) Snapshot() []BackendStatus {
	m.mu.RLock()
	out := make([]BackendStatus, 0, len(m.states))
	for _, s := range m.states {
		out = append(out, s.status)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
