package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"
)

// MeterName is the instrumentation scope of the export metrics
const MeterName = "github.com/storefront/backend/export"

// MeterProvider owns the metric pipeline. Without telemetry, Meter hands
// out meters from the global no-op provider.
type MeterProvider struct {
	provider *sdkmetric.MeterProvider
	logger   *zap.Logger
}

// NewMeterProvider builds a periodic OTLP metric reader and installs it as
// the global provider.
func NewMeterProvider(ctx context.Context, cfg Config, logger *zap.Logger) (*MeterProvider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	mp := &MeterProvider{logger: logger}
	if !cfg.Enabled {
		logger.Info("Metrics disabled")
		return mp, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.CollectorEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
	}
	res, err := newResource(cfg)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.metricsInterval()))
	mp.provider = sdkmetric.NewMeterProvider(sdkmetric.WithResource(res), sdkmetric.WithReader(reader))
	otel.SetMeterProvider(mp.provider)

	logger.Info("Metrics enabled",
		zap.String("collector_endpoint", cfg.CollectorEndpoint),
		zap.Duration("export_interval", cfg.metricsInterval()),
	)
	return mp, nil
}

// Meter returns a named meter
func (mp *MeterProvider) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	if mp.provider != nil {
		return mp.provider.Meter(name, opts...)
	}
	return otel.GetMeterProvider().Meter(name, opts...)
}

// Shutdown pushes the last collection and stops the reader
func (mp *MeterProvider) Shutdown(ctx context.Context) error {
	if mp.provider == nil {
		return nil
	}
	if err := shutdownWithin(ctx, "meter provider", mp.provider.Shutdown); err != nil {
		mp.logger.Error("Meter provider shutdown failed", zap.Error(err))
		return err
	}
	return nil
}

// ExportOutcome labels one finished export
type ExportOutcome struct {
	ArtifactType string
	Status       string // COMPLETED or FAILED
	ErrorCode    string
	FromCache    bool
}

// ExportMetrics records counters and histograms for raster exports.
type ExportMetrics struct {
	exports     metric.Int64Counter
	duration    metric.Float64Histogram
	artifactLen metric.Int64Histogram
	inFlight    metric.Int64UpDownCounter
}

// NewExportMetrics creates the export instruments on meter.
func NewExportMetrics(meter metric.Meter) (*ExportMetrics, error) {
	exports, err := meter.Int64Counter("export.jobs",
		metric.WithDescription("Finished export jobs"),
		metric.WithUnit("{job}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create export.jobs counter: %w", err)
	}
	duration, err := meter.Float64Histogram("export.duration",
		metric.WithDescription("Wall time of an export job"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("failed to create export.duration histogram: %w", err)
	}
	artifactLen, err := meter.Int64Histogram("export.artifact.size",
		metric.WithDescription("Encoded PNG size"),
		metric.WithUnit("By"))
	if err != nil {
		return nil, fmt.Errorf("failed to create export.artifact.size histogram: %w", err)
	}
	inFlight, err := meter.Int64UpDownCounter("export.in_flight",
		metric.WithDescription("Exports currently rendering"),
		metric.WithUnit("{job}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create export.in_flight counter: %w", err)
	}
	return &ExportMetrics{
		exports:     exports,
		duration:    duration,
		artifactLen: artifactLen,
		inFlight:    inFlight,
	}, nil
}

// Started marks one export as in flight. The returned func must be called
// exactly once when it finishes.
func (m *ExportMetrics) Started(ctx context.Context, artifactType string) func() {
	if m == nil {
		return func() {}
	}
	attrs := metric.WithAttributes(attribute.String("artifact_type", artifactType))
	m.inFlight.Add(ctx, 1, attrs)
	return func() { m.inFlight.Add(ctx, -1, attrs) }
}

// Record counts a finished export.
func (m *ExportMetrics) Record(ctx context.Context, outcome ExportOutcome, elapsed time.Duration, sizeBytes int64) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("artifact_type", outcome.ArtifactType),
		attribute.String("status", outcome.Status),
		attribute.Bool("from_cache", outcome.FromCache),
	}
	if outcome.ErrorCode != "" {
		attrs = append(attrs, attribute.String("error_code", outcome.ErrorCode))
	}
	set := metric.WithAttributes(attrs...)
	m.exports.Add(ctx, 1, set)
	m.duration.Record(ctx, float64(elapsed.Microseconds())/1000, set)
	if sizeBytes > 0 {
		m.artifactLen.Record(ctx, sizeBytes, set)
	}
}

// =============================================================================
// Connection pool
// =============================================================================

// DBStatsFunc reports connection pool statistics, usually (*sql.DB).Stats
type DBStatsFunc func() sql.DBStats

// RegisterDBPoolMetrics exposes pool gauges that are read on every
// collection. The returned registration is released on Unregister.
func RegisterDBPoolMetrics(meter metric.Meter, stats DBStatsFunc) (metric.Registration, error) {
	connections, err := meter.Int64ObservableGauge("db.pool.connections",
		metric.WithDescription("Database connections by state"),
		metric.WithUnit("{connection}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create db.pool.connections gauge: %w", err)
	}
	maxOpen, err := meter.Int64ObservableGauge("db.pool.connections.max",
		metric.WithDescription("Maximum open database connections"),
		metric.WithUnit("{connection}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create db.pool.connections.max gauge: %w", err)
	}
	waits, err := meter.Int64ObservableCounter("db.pool.wait_count",
		metric.WithDescription("Connections waited for"),
		metric.WithUnit("{wait}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create db.pool.wait_count counter: %w", err)
	}

	idle := metric.WithAttributes(attribute.String("state", "idle"))
	inUse := metric.WithAttributes(attribute.String("state", "in_use"))

	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s := stats()
		o.ObserveInt64(connections, int64(s.Idle), idle)
		o.ObserveInt64(connections, int64(s.InUse), inUse)
		o.ObserveInt64(maxOpen, int64(s.MaxOpenConnections))
		o.ObserveInt64(waits, s.WaitCount)
		return nil
	}, connections, maxOpen, waits)
}
