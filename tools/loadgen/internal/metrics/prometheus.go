// Package metrics records load generator results and exposes them to
// Prometheus.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus metric names.
const (
	MetricRequestsTotal          = "loadgen_requests_total"
	MetricRequestDurationSeconds = "loadgen_request_duration_seconds"
	MetricResponseBytesTotal     = "loadgen_response_bytes_total"
	MetricActiveWorkers          = "loadgen_active_workers"
	MetricPooledJobs             = "loadgen_pooled_jobs"
)

// Collector records per-endpoint request outcomes.
//
// Thread Safety: Safe for concurrent use.
type Collector struct {
	registry      *prometheus.Registry
	requests      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	responseBytes *prometheus.CounterVec
	activeWorkers prometheus.Gauge
	pooledJobs    prometheus.Gauge

	mu      sync.Mutex
	summary map[string]*EndpointSummary
}

// EndpointSummary aggregates one endpoint for the final report.
type EndpointSummary struct {
	Requests     int64
	Failures     int64
	TotalLatency time.Duration
	MaxLatency   time.Duration
}

// AvgLatency returns the mean request latency
func (s EndpointSummary) AvgLatency() time.Duration {
	if s.Requests == 0 {
		return 0
	}
	return s.TotalLatency / time.Duration(s.Requests)
}

// NewCollector creates a collector on its own registry. Render latencies
// run from tens of milliseconds to several seconds.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricRequestsTotal,
			Help: "Requests sent to the export service.",
		}, []string{"endpoint", "status", "success"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricRequestDurationSeconds,
			Help:    "Request latency.",
			Buckets: []float64{.025, .05, .1, .25, .5, 1, 2, 4, 8, 16},
		}, []string{"endpoint"}),
		responseBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricResponseBytesTotal,
			Help: "Response body bytes received.",
		}, []string{"endpoint"}),
		activeWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricActiveWorkers,
			Help: "Workers currently waiting on a response.",
		}),
		pooledJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricPooledJobs,
			Help: "Job IDs available to read endpoints.",
		}),
		summary: make(map[string]*EndpointSummary),
	}
	c.registry.MustRegister(c.requests, c.duration, c.responseBytes, c.activeWorkers, c.pooledJobs)
	return c
}

// Registry returns the collector's registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Record counts one finished request. status is 0 when no response arrived.
func (c *Collector) Record(endpoint string, status int, success bool, latency time.Duration, bytes int64) {
	c.requests.WithLabelValues(endpoint, strconv.Itoa(status), strconv.FormatBool(success)).Inc()
	c.duration.WithLabelValues(endpoint).Observe(latency.Seconds())
	if bytes > 0 {
		c.responseBytes.WithLabelValues(endpoint).Add(float64(bytes))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.summary[endpoint]
	if !ok {
		s = &EndpointSummary{}
		c.summary[endpoint] = s
	}
	s.Requests++
	if !success {
		s.Failures++
	}
	s.TotalLatency += latency
	s.MaxLatency = max(s.MaxLatency, latency)
}

// WorkerBusy tracks a worker waiting on a response; call the returned func
// when it is done.
func (c *Collector) WorkerBusy() func() {
	c.activeWorkers.Inc()
	return c.activeWorkers.Dec
}

// SetPooledJobs reports the size of the job pool
func (c *Collector) SetPooledJobs(n int) {
	c.pooledJobs.Set(float64(n))
}

// Summary returns a copy of the per-endpoint aggregates
func (c *Collector) Summary() map[string]EndpointSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]EndpointSummary, len(c.summary))
	for k, v := range c.summary {
		out[k] = *v
	}
	return out
}

// Server serves the collector's registry over HTTP.
type Server struct {
	server *http.Server
	ln     net.Listener
}

// Serve starts the metrics endpoint on addr. It returns once the listener
// is bound.
func (c *Collector) Serve(addr, path string) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry}))

	s := &Server{
		server: &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		ln:     ln,
	}
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			_ = ln.Close()
		}
	}()
	return s, nil
}

// Addr returns the bound address
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Shutdown stops the metrics endpoint
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
