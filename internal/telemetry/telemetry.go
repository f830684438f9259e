// Package telemetry provides OpenTelemetry instrumentation for Sweep.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/yairfalse/sweep/internal/config"
)

// Provider wraps OTEL tracer and meter providers.
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter

	// Metrics
	probeDuration     metric.Float64Histogram
	probeRecords      metric.Int64Counter
	probeFailures     metric.Int64Counter
	discoveryDuration metric.Float64Histogram
	discoveries       metric.Int64Counter
}

// NewProvider creates a new telemetry provider. Extra readers (such as the
// Prometheus exporter) are attached to the meter provider alongside OTLP.
func NewProvider(ctx context.Context, cfg config.OTELConfig, readers ...sdkmetric.Reader) (*Provider, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	p := &Provider{}

	if err := p.setupTracing(ctx, cfg, res); err != nil {
		return nil, err
	}

	if err := p.setupMetrics(ctx, cfg, res, readers); err != nil {
		if p.tracerProvider != nil {
			_ = p.tracerProvider.Shutdown(ctx)
		}
		return nil, err
	}

	if err := p.initMetrics(); err != nil {
		return nil, err
	}

	return p, nil
}

func (p *Provider) setupTracing(ctx context.Context, cfg config.OTELConfig, res *resource.Resource) error {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
	}

	if cfg.Traces.Enabled && cfg.Endpoint != "" {
		exp, err := createTraceExporter(ctx, cfg)
		if err != nil {
			return fmt.Errorf("create trace exporter: %w", err)
		}
		sampler := sdktrace.TraceIDRatioBased(cfg.Traces.SampleRate)
		opts = append(opts, sdktrace.WithBatcher(exp), sdktrace.WithSampler(sampler))
	}

	p.tracerProvider = sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(p.tracerProvider)
	p.tracer = p.tracerProvider.Tracer("sweep")

	return nil
}

func (p *Provider) setupMetrics(ctx context.Context, cfg config.OTELConfig, res *resource.Resource, readers []sdkmetric.Reader) error {
	opts := []sdkmetric.Option{
		sdkmetric.WithResource(res),
	}

	if cfg.Metrics.Enabled && cfg.Endpoint != "" {
		exp, err := createMetricExporter(ctx, cfg)
		if err != nil {
			return fmt.Errorf("create metric exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)))
	}
	for _, r := range readers {
		opts = append(opts, sdkmetric.WithReader(r))
	}

	p.meterProvider = sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(p.meterProvider)
	p.meter = p.meterProvider.Meter("sweep")

	return nil
}

func createTraceExporter(ctx context.Context, cfg config.OTELConfig) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	return otlptracegrpc.New(ctx, opts...)
}

func createMetricExporter(ctx context.Context, cfg config.OTELConfig) (sdkmetric.Exporter, error) {
	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	return otlpmetricgrpc.New(ctx, opts...)
}

func (p *Provider) initMetrics() error {
	var err error

	p.probeDuration, err = p.meter.Float64Histogram(
		"sweep_probe_duration_seconds",
		metric.WithDescription("Duration of a single service probe"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("create probe_duration: %w", err)
	}

	p.probeRecords, err = p.meter.Int64Counter(
		"sweep_probe_records_total",
		metric.WithDescription("Total records returned by probes"),
	)
	if err != nil {
		return fmt.Errorf("create probe_records: %w", err)
	}

	p.probeFailures, err = p.meter.Int64Counter(
		"sweep_probe_failures_total",
		metric.WithDescription("Total probe and enrichment failures"),
	)
	if err != nil {
		return fmt.Errorf("create probe_failures: %w", err)
	}

	p.discoveryDuration, err = p.meter.Float64Histogram(
		"sweep_discovery_duration_seconds",
		metric.WithDescription("Duration of a full discovery"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("create discovery_duration: %w", err)
	}

	p.discoveries, err = p.meter.Int64Counter(
		"sweep_discoveries_total",
		metric.WithDescription("Total discoveries completed"),
	)
	if err != nil {
		return fmt.Errorf("create discoveries: %w", err)
	}

	return nil
}

// Tracer returns the tracer.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// Meter returns the meter.
func (p *Provider) Meter() metric.Meter {
	return p.meter
}

// StartSpan starts a new span.
func (p *Provider) StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, name)
}

// RecordProbe records a successful probe.
func (p *Provider) RecordProbe(ctx context.Context, region, service string, d time.Duration, records int) {
	attrs := metric.WithAttributes(
		attribute.String("region", region),
		attribute.String("service", service),
	)
	p.probeDuration.Record(ctx, d.Seconds(), attrs)
	p.probeRecords.Add(ctx, int64(records), attrs)
}

// RecordFailure records a probe or enrichment failure.
func (p *Provider) RecordFailure(ctx context.Context, region, service, kind, cause string) {
	p.probeFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("region", region),
		attribute.String("service", service),
		attribute.String("kind", kind),
		attribute.String("cause", cause),
	))
}

// RecordDiscovery records a completed discovery.
func (p *Provider) RecordDiscovery(ctx context.Context, d time.Duration, partial bool) {
	attrs := metric.WithAttributes(attribute.Bool("partial", partial))
	p.discoveryDuration.Record(ctx, d.Seconds(), attrs)
	p.discoveries.Add(ctx, 1, attrs)
}

// Shutdown flushes and shuts down the providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown tracer: %w", err)
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown meter: %w", err)
		}
	}
	return nil
}
