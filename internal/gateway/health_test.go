package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/kingrain94/tenant-platform/pkg/logger"
)

type scriptedProber struct {
	mu      sync.Mutex
	results map[string][]error
	calls   map[string]int
}

func (p *scriptedProber) Probe(_ context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[url]++
	queue := p.results[url]
	if len(queue) == 0 {
		return nil
	}
	err := queue[0]
	p.results[url] = queue[1:]
	return err
}

type MonitorTestSuite struct {
	suite.Suite
	backends []Backend
	prober   *scriptedProber
	monitor  *Monitor
}

func TestMonitor(t *testing.T) {
	suite.Run(t, new(MonitorTestSuite))
}

func (s *MonitorTestSuite) SetupTest() {
	s.backends = []Backend{
		{Name: "orders-service", HealthURL: "http://orders/health"},
		{Name: "crm-service", HealthURL: "http://crm/health"},
	}
	s.prober = &scriptedProber{results: map[string][]error{}, calls: map[string]int{}}
	s.monitor = NewMonitor(s.backends, s.prober, MonitorConfig{
		Interval:       10 * time.Millisecond,
		Timeout:        time.Second,
		UnhealthyAfter: 3,
		HealthyAfter:   2,
	}, logger.NewNop(), NewMetrics(nil))
}

func (s *MonitorTestSuite) TestStartsHealthy() {
	s.True(s.monitor.Healthy("orders-service"))
	s.True(s.monitor.Healthy("crm-service"))
	s.True(s.monitor.Healthy("unknown"))
}

func (s *MonitorTestSuite) TestHysteresis() {
	boom := errors.New("connection refused")

	s.monitor.Observe("orders-service", boom, time.Millisecond)
	s.monitor.Observe("orders-service", boom, time.Millisecond)
	s.True(s.monitor.Healthy("orders-service"), "two failures stay under the threshold")

	s.monitor.Observe("orders-service", boom, time.Millisecond)
	s.False(s.monitor.Healthy("orders-service"))

	s.monitor.Observe("orders-service", nil, time.Millisecond)
	s.False(s.monitor.Healthy("orders-service"), "one success does not restore the backend")

	s.monitor.Observe("orders-service", boom, time.Millisecond)
	s.monitor.Observe("orders-service", nil, time.Millisecond)
	s.False(s.monitor.Healthy("orders-service"), "a failure resets the success streak")

	s.monitor.Observe("orders-service", nil, time.Millisecond)
	s.True(s.monitor.Healthy("orders-service"))
	s.True(s.monitor.Healthy("crm-service"))
}

func (s *MonitorTestSuite) TestFlakyBackendStaysHealthy() {
	boom := errors.New("timeout")
	for i := 0; i < 10; i++ {
		s.monitor.Observe("crm-service", boom, time.Millisecond)
		s.monitor.Observe("crm-service", boom, time.Millisecond)
		s.monitor.Observe("crm-service", nil, time.Millisecond)
	}
	s.True(s.monitor.Healthy("crm-service"))
}

func (s *MonitorTestSuite) TestCheckNowProbesEveryBackend() {
	boom := errors.New("503")
	s.prober.results["http://crm/health"] = []error{boom, boom, boom}

	for i := 0; i < 3; i++ {
		s.monitor.CheckNow(context.Background())
	}

	s.True(s.monitor.Healthy("orders-service"))
	s.False(s.monitor.Healthy("crm-service"))
	s.Equal(3, s.prober.calls["http://orders/health"])

	snap := s.monitor.Snapshot()
	s.Require().Len(snap, 2)
	s.Equal("crm-service", snap[0].Name)
	s.Equal(3, snap[0].ConsecutiveFailures)
	s.Equal("503", snap[0].LastError)
}

func (s *MonitorTestSuite) TestStartStop() {
	failures := make([]error, 1000)
	for i := range failures {
		failures[i] = errors.New("connection refused")
	}
	s.prober.mu.Lock()
	s.prober.results["http://orders/health"] = failures
	s.prober.mu.Unlock()

	s.monitor.Start()
	s.Eventually(func() bool {
		return !s.monitor.Healthy("orders-service")
	}, time.Second, 5*time.Millisecond)
	s.monitor.Stop()

	s.True(s.monitor.Healthy("crm-service"))
}

func (s *MonitorTestSuite) TestStopTwice() {
	s.monitor.Start()
	s.monitor.Stop()

	s.NotPanics(s.monitor.Stop)
}

func (s *MonitorTestSuite) TestReport_FailingBelowThresholdIsDegraded() {
	s.monitor.Observe("orders-service", errors.New("timeout"), 3*time.Millisecond)

	report := Report(s.monitor.Snapshot())
	s.Equal(StatusDegraded, report.Status)
	s.Equal(StatusHealthy, report.Dependencies[0].Status)
	s.Equal(StatusDegraded, report.Dependencies[1].Status)
	s.Equal("timeout", report.Dependencies[1].Error)
	s.True(s.monitor.Healthy("orders-service"), "routing still uses the backend")

	s.monitor.Observe("orders-service", nil, time.Millisecond)
	report = Report(s.monitor.Snapshot())
	s.Equal(StatusHealthy, report.Status)
	s.Equal(StatusHealthy, report.Dependencies[1].Status)
}

func (s *MonitorTestSuite) TestReport() {
	s.Equal(StatusHealthy, Report(s.monitor.Snapshot()).Status)

	for i := 0; i < 3; i++ {
		s.monitor.Observe("crm-service", errors.New("down"), 2*time.Millisecond)
	}
	report := Report(s.monitor.Snapshot())
	s.Equal(StatusDegraded, report.Status)
	s.Equal(StatusUnhealthy, report.Dependencies[0].Status)
	s.InDelta(2.0, report.Dependencies[0].LatencyMS, 0.001)

	for i := 0; i < 3; i++ {
		s.monitor.Observe("orders-service", errors.New("down"), time.Millisecond)
	}
	s.Equal(StatusUnhealthy, Report(s.monitor.Snapshot()).Status)
}

func TestHTTPProber(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ok.Close()
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer failing.Close()

	prober := NewHTTPProber(time.Second)
	if err := prober.Probe(context.Background(), ok.URL+"/health"); err != nil {
		t.Fatalf("healthy backend: %v", err)
	}
	if err := prober.Probe(context.Background(), failing.URL+"/health"); err == nil {
		t.Fatal("expected an error for a 503 probe")
	}
}
