package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap/zaptest"
)

func disabledConfig() Config {
	return Config{
		Enabled:           false,
		CollectorEndpoint: "localhost:14317",
		SamplingRatio:     1.0,
		ServiceName:       "storefront-export-test",
	}
}

func TestNewTracerProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	cfg := disabledConfig()

	tp, err := NewTracerProvider(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NotNil(t, tp)

	assert.False(t, tp.IsEnabled())
	assert.Equal(t, cfg, tp.GetConfig())

	_, span := tp.Tracer("test").Start(ctx, "noop")
	span.End()
	assert.False(t, span.SpanContext().IsValid())

	assert.NoError(t, tp.ForceFlush(ctx))
	assert.NoError(t, tp.Shutdown(ctx))
}

func TestNewTracerProvider_NilLogger(t *testing.T) {
	tp, err := NewTracerProvider(context.Background(), disabledConfig(), nil)
	require.NoError(t, err)
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestTracerProvider_ShutdownWithCancelledContext(t *testing.T) {
	tp, err := NewTracerProvider(context.Background(), disabledConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, tp.Shutdown(ctx))
}

func TestSamplerFor(t *testing.T) {
	tests := []struct {
		ratio float64
		want  string
	}{
		{1.0, sdktrace.AlwaysSample().Description()},
		{2.0, sdktrace.AlwaysSample().Description()},
		{0, sdktrace.NeverSample().Description()},
		{-1, sdktrace.NeverSample().Description()},
		{0.25, sdktrace.ParentBased(sdktrace.TraceIDRatioBased(0.25)).Description()},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, samplerFor(tt.ratio).Description(), "ratio %v", tt.ratio)
	}
}

func TestNewResource(t *testing.T) {
	res, err := newResource(Config{ServiceName: "storefront-export"})
	require.NoError(t, err)

	values := map[string]string{}
	for _, kv := range res.Attributes() {
		values[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "storefront-export", values["service.name"])
	assert.Equal(t, "dev", values["service.version"])
}
