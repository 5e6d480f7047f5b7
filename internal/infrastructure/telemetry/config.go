// Package telemetry wires OpenTelemetry traces, metrics and logs, plus
// Pyroscope profiling, for the export service.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
)

// Config is shared by the trace, metric and log pipelines
type Config struct {
	Enabled           bool
	CollectorEndpoint string // host:port of the OTLP gRPC receiver
	SamplingRatio     float64
	ServiceName       string
	ServiceVersion    string
	Insecure          bool
	MetricsInterval   time.Duration
	ExportLogs        bool
}

const (
	defaultServiceVersion  = "dev"
	defaultMetricsInterval = time.Minute
	shutdownTimeout        = 10 * time.Second
)

func (c Config) serviceVersion() string {
	if c.ServiceVersion == "" {
		return defaultServiceVersion
	}
	return c.ServiceVersion
}

func (c Config) metricsInterval() time.Duration {
	if c.MetricsInterval <= 0 {
		return defaultMetricsInterval
	}
	return c.MetricsInterval
}

// newResource identifies the service on every exported signal
func newResource(cfg Config) (*resource.Resource, error) {
	own := resource.NewWithAttributes(semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.serviceVersion()),
	)
	res, err := resource.Merge(resource.Default(), own)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

// shutdownWithin runs stop under a bounded context and wraps its error
func shutdownWithin(ctx context.Context, what string, stop func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := stop(ctx); err != nil {
		return fmt.Errorf("failed to shutdown %s: %w", what, err)
	}
	return nil
}
