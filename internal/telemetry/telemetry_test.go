package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/yairfalse/sweep/internal/config"
)

func disabledConfig() config.OTELConfig {
	return config.OTELConfig{
		ServiceName: "test-sweep",
		Traces:      config.TracesConfig{Enabled: false},
		Metrics:     config.MetricsConfig{Enabled: false},
	}
}

func TestNewProvider_Disabled(t *testing.T) {
	p, err := NewProvider(context.Background(), disabledConfig())
	require.NoError(t, err)
	require.NotNil(t, p)

	assert.NotNil(t, p.Tracer())
	assert.NotNil(t, p.Meter())

	err = p.Shutdown(context.Background())
	require.NoError(t, err)
}

func TestNewProvider_WithEndpoint(t *testing.T) {
	cfg := config.OTELConfig{
		Endpoint:    "localhost:4317",
		Insecure:    true,
		ServiceName: "test-sweep",
		Traces:      config.TracesConfig{Enabled: true, SampleRate: 1.0},
		Metrics:     config.MetricsConfig{Enabled: true},
	}

	// Provider setup should succeed even without a real collector
	p, err := NewProvider(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, p)

	// collector isn't running
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = p.Shutdown(ctx)
}

func TestProvider_StartSpan(t *testing.T) {
	p, err := NewProvider(context.Background(), disabledConfig())
	require.NoError(t, err)

	ctx, span := p.StartSpan(context.Background(), "test-operation")
	require.NotNil(t, ctx)
	require.NotNil(t, span)

	span.End()
	_ = p.Shutdown(context.Background())
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestProvider_RecordProbe(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	p, err := NewProvider(context.Background(), disabledConfig(), reader)
	require.NoError(t, err)
	defer func() { _ = p.Shutdown(context.Background()) }()

	p.RecordProbe(context.Background(), "us-east-1", "EC2", 100*time.Millisecond, 42)
	p.RecordProbe(context.Background(), "eu-west-1", "EC2", 50*time.Millisecond, 8)

	metrics := collect(t, reader)

	records, ok := metrics["sweep_probe_records_total"]
	require.True(t, ok)
	sum, ok := records.Data.(metricdata.Sum[int64])
	require.True(t, ok)

	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	assert.Equal(t, int64(50), total)
	assert.Len(t, sum.DataPoints, 2)

	_, ok = metrics["sweep_probe_duration_seconds"]
	assert.True(t, ok)
}

func TestProvider_RecordFailure(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	p, err := NewProvider(context.Background(), disabledConfig(), reader)
	require.NoError(t, err)
	defer func() { _ = p.Shutdown(context.Background()) }()

	p.RecordFailure(context.Background(), "us-east-1", "RDS", "expected", "authorization")

	metrics := collect(t, reader)
	failures, ok := metrics["sweep_probe_failures_total"]
	require.True(t, ok)

	sum := failures.Data.(metricdata.Sum[int64])
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(1), sum.DataPoints[0].Value)

	cause, ok := sum.DataPoints[0].Attributes.Value("cause")
	require.True(t, ok)
	assert.Equal(t, "authorization", cause.AsString())
}

func TestProvider_RecordDiscovery(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	p, err := NewProvider(context.Background(), disabledConfig(), reader)
	require.NoError(t, err)
	defer func() { _ = p.Shutdown(context.Background()) }()

	p.RecordDiscovery(context.Background(), 3*time.Second, true)

	metrics := collect(t, reader)
	_, ok := metrics["sweep_discoveries_total"]
	assert.True(t, ok)
	_, ok = metrics["sweep_discovery_duration_seconds"]
	assert.True(t, ok)
}
