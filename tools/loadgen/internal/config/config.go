// Package config holds the YAML configuration of the export load generator.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Errors returned by the config package.
var (
	ErrInvalidConfig  = errors.New("config: invalid configuration")
	ErrConfigNotFound = errors.New("config: configuration file not found")
)

// EndpointKind selects which export API call an endpoint makes
type EndpointKind string

// Endpoint kinds
const (
	KindWarrantyCard EndpointKind = "warranty_card" // POST /export/warranty-cards
	KindHTML         EndpointKind = "html"          // POST /export/html
	KindPreview      EndpointKind = "preview"       // POST /export/preview
	KindGetJob       EndpointKind = "get_job"       // GET /export/jobs/:id
	KindDownload     EndpointKind = "download"      // GET /export/jobs/:id/download
	KindListJobs     EndpointKind = "list_jobs"     // GET /export/jobs
)

var validKinds = map[EndpointKind]bool{
	KindWarrantyCard: true,
	KindHTML:         true,
	KindPreview:      true,
	KindGetJob:       true,
	KindDownload:     true,
	KindListJobs:     true,
}

// NeedsJob reports whether the endpoint addresses an existing job
func (k EndpointKind) NeedsJob() bool {
	return k == KindGetJob || k == KindDownload
}

// CreatesJob reports whether a successful call yields a job ID
func (k EndpointKind) CreatesJob() bool {
	return k == KindWarrantyCard || k == KindHTML
}

// Config is the root configuration of a load run.
type Config struct {
	Name      string           `yaml:"name"`
	Target    TargetConfig     `yaml:"target"`
	Duration  time.Duration    `yaml:"duration"`
	Rate      RateConfig       `yaml:"rate"`
	Workers   int              `yaml:"workers"`
	Seed      uint64           `yaml:"seed,omitempty"`
	Pool      PoolConfig       `yaml:"pool,omitempty"`
	Metrics   MetricsConfig    `yaml:"metrics,omitempty"`
	Payload   PayloadConfig    `yaml:"payload,omitempty"`
	Endpoints []EndpointConfig `yaml:"endpoints"`
}

// TargetConfig describes the export service under test.
type TargetConfig struct {
	BaseURL  string        `yaml:"baseURL"`
	TenantID string        `yaml:"tenantID,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
}

// RateConfig paces requests with a token bucket.
type RateConfig struct {
	QPS   float64 `yaml:"qps"`
	Burst int     `yaml:"burst,omitempty"`
}

// PoolConfig bounds the pool of created job IDs.
type PoolConfig struct {
	MaxJobs int           `yaml:"maxJobs,omitempty"`
	TTL     time.Duration `yaml:"ttl,omitempty"`
}

// MetricsConfig exposes run metrics for Prometheus.
type MetricsConfig struct {
	Listen string `yaml:"listen,omitempty"` // e.g. :9091; empty disables the endpoint
	Path   string `yaml:"path,omitempty"`
}

// PayloadConfig tunes generated render requests.
type PayloadConfig struct {
	Scale      float64 `yaml:"scale,omitempty"`
	Padding    *int    `yaml:"padding,omitempty"`
	Background string  `yaml:"background,omitempty"`
	// DuplicateRatio is the share of requests that reuse an earlier payload,
	// which exercises fingerprint reuse on the server.
	DuplicateRatio float64 `yaml:"duplicateRatio,omitempty"`
}

// EndpointConfig weights one kind of call in the request mix.
type EndpointConfig struct {
	Name   string       `yaml:"name,omitempty"`
	Kind   EndpointKind `yaml:"kind"`
	Weight int          `yaml:"weight"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{
		Name:   "export-smoke",
		Target: TargetConfig{BaseURL: "http://localhost:8080/api/v1"},
		Endpoints: []EndpointConfig{
			{Kind: KindWarrantyCard, Weight: 5},
			{Kind: KindHTML, Weight: 2},
			{Kind: KindGetJob, Weight: 3},
			{Kind: KindDownload, Weight: 1},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

// LoadFromFile reads and validates a YAML configuration file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Duration == 0 {
		c.Duration = time.Minute
	}
	if c.Rate.QPS == 0 {
		c.Rate.QPS = 5
	}
	if c.Rate.Burst == 0 {
		c.Rate.Burst = max(1, int(c.Rate.QPS))
	}
	if c.Workers == 0 {
		c.Workers = 4
	}
	if c.Target.Timeout == 0 {
		c.Target.Timeout = 30 * time.Second
	}
	if c.Pool.MaxJobs == 0 {
		c.Pool.MaxJobs = 1000
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	for i := range c.Endpoints {
		if c.Endpoints[i].Name == "" {
			c.Endpoints[i].Name = string(c.Endpoints[i].Kind)
		}
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Target.BaseURL == "" {
		return fmt.Errorf("%w: target.baseURL is required", ErrInvalidConfig)
	}
	if u, err := url.Parse(c.Target.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: target.baseURL %q is not an absolute URL", ErrInvalidConfig, c.Target.BaseURL)
	}
	if c.Target.TenantID != "" {
		if _, err := uuid.Parse(c.Target.TenantID); err != nil {
			return fmt.Errorf("%w: target.tenantID is not a UUID", ErrInvalidConfig)
		}
	}
	if c.Duration < 0 {
		return fmt.Errorf("%w: duration cannot be negative", ErrInvalidConfig)
	}
	if c.Rate.QPS < 0 {
		return fmt.Errorf("%w: rate.qps cannot be negative", ErrInvalidConfig)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers cannot be negative", ErrInvalidConfig)
	}
	if c.Payload.DuplicateRatio < 0 || c.Payload.DuplicateRatio > 1 {
		return fmt.Errorf("%w: payload.duplicateRatio must be between 0 and 1", ErrInvalidConfig)
	}
	if len(c.Endpoints) == 0 {
		return fmt.Errorf("%w: at least one endpoint is required", ErrInvalidConfig)
	}

	creates := false
	for _, ep := range c.Endpoints {
		if !validKinds[ep.Kind] {
			return fmt.Errorf("%w: unknown endpoint kind %q", ErrInvalidConfig, ep.Kind)
		}
		if ep.Weight <= 0 {
			return fmt.Errorf("%w: endpoint %s needs a positive weight", ErrInvalidConfig, ep.Name)
		}
		creates = creates || ep.Kind.CreatesJob()
	}
	if !creates {
		for _, ep := range c.Endpoints {
			if ep.Kind.NeedsJob() {
				return fmt.Errorf("%w: endpoint %s reads jobs but no endpoint creates them", ErrInvalidConfig, ep.Name)
			}
		}
	}
	return nil
}
