package daemon

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds scheduler metrics using OTEL semantic conventions
type Metrics struct {
	runs        metric.Int64Counter
	runDuration metric.Float64Histogram
	emits       metric.Int64Counter
}

// NewMetrics creates daemon metrics on the global meter provider
func NewMetrics() (*Metrics, error) {
	return newMetricsWithProvider(otel.GetMeterProvider())
}

func newMetricsWithProvider(provider metric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter("sweep.daemon")

	runs, err := meter.Int64Counter(
		"sweep.daemon.runs",
		metric.WithDescription("Number of scheduled discovery runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	runDuration, err := meter.Float64Histogram(
		"sweep.daemon.run.duration",
		metric.WithDescription("Duration of scheduled discovery runs"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	emits, err := meter.Int64Counter(
		"sweep.daemon.emits",
		metric.WithDescription("Number of snapshot emit operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		runs:        runs,
		runDuration: runDuration,
		emits:       emits,
	}, nil
}

// RecordRun records a discovery run with status (success, partial, fatal)
func (m *Metrics) RecordRun(ctx context.Context, status string) {
	m.runs.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("status", status),
			attribute.String("cloud.provider", "aws"),
		),
	)
}

// RecordRunDuration records run duration
func (m *Metrics) RecordRunDuration(ctx context.Context, durationSeconds float64, status string) {
	m.runDuration.Record(ctx, durationSeconds,
		metric.WithAttributes(
			attribute.String("status", status),
		),
	)
}

// RecordEmit records an emit operation
func (m *Metrics) RecordEmit(ctx context.Context, status string) {
	m.emits.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("status", status),
		),
	)
}
