package emitter

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/yairfalse/sweep/pkg/resource"
)

// PrometheusEmitter exposes the latest snapshot as metrics via OTEL.
type PrometheusEmitter struct {
	meter metric.Meter
	log   zerolog.Logger

	// Metrics
	resourceInfo         metric.Int64ObservableGauge
	resourceCount        metric.Int64ObservableGauge
	diagnosticsTotal     metric.Int64Counter
	resourceChangesTotal metric.Int64Counter

	// State for observable gauges
	mu        sync.RWMutex
	resources resource.Aggregate

	// Diff tracking
	diffTracker *DiffTracker
}

// NewPrometheusEmitter creates a Prometheus emitter on the global meter provider.
func NewPrometheusEmitter(log zerolog.Logger) (*PrometheusEmitter, error) {
	e := &PrometheusEmitter{
		meter:       otel.Meter("sweep"),
		log:         log,
		resources:   make(resource.Aggregate),
		diffTracker: NewDiffTracker(),
	}

	if err := e.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return e, nil
}

func (e *PrometheusEmitter) initMetrics() error {
	var err error

	e.resourceInfo, err = e.meter.Int64ObservableGauge(
		"sweep_resource_info",
		metric.WithDescription("Discovered cloud resource information"),
		metric.WithInt64Callback(e.observeResources),
	)
	if err != nil {
		return fmt.Errorf("create resource_info gauge: %w", err)
	}

	e.resourceCount, err = e.meter.Int64ObservableGauge(
		"sweep_resources",
		metric.WithDescription("Resources in the latest snapshot per region and service"),
		metric.WithInt64Callback(e.observeCounts),
	)
	if err != nil {
		return fmt.Errorf("create resources gauge: %w", err)
	}

	e.diagnosticsTotal, err = e.meter.Int64Counter(
		"sweep_diagnostics_total",
		metric.WithDescription("Total failures reported in snapshots"),
	)
	if err != nil {
		return fmt.Errorf("create diagnostics counter: %w", err)
	}

	e.resourceChangesTotal, err = e.meter.Int64Counter(
		"sweep_resource_changes_total",
		metric.WithDescription("Total resource changes detected between snapshots"),
	)
	if err != nil {
		return fmt.Errorf("create resource_changes counter: %w", err)
	}

	return nil
}

// Emit records the snapshot as metrics and logs changes since the previous one.
func (e *PrometheusEmitter) Emit(ctx context.Context, snap *resource.Snapshot) error {
	for _, d := range snap.Diagnostics {
		e.diagnosticsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("kind", d.Kind),
			attribute.String("cause", d.Cause),
			attribute.String("service", d.Service),
		))
	}

	// Partial snapshots would report every skipped resource as deleted.
	if !snap.Partial {
		e.emitDiffs(ctx, snap.Resources)
		e.diffTracker.Update(snap.Resources)
	}

	e.mu.Lock()
	e.resources = snap.Resources.Clone()
	e.mu.Unlock()

	e.log.Info().
		Str("snapshot", snap.ID).
		Int("resources", snap.Resources.Count()).
		Int("failures", len(snap.Diagnostics)).
		Msg("snapshot emitted")

	return nil
}

// emitDiffs computes diffs and emits metrics/logs for changes.
func (e *PrometheusEmitter) emitDiffs(ctx context.Context, current resource.Aggregate) {
	diffs := e.diffTracker.ComputeDiff(current)
	if diffs == nil {
		// first snapshot, baseline established
		return
	}

	for _, diff := range diffs {
		e.resourceChangesTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("region", string(diff.Region)),
			attribute.String("service", diff.Kind.Label()),
			attribute.String("change_type", string(diff.Type)),
		))

		event := e.log.Info().
			Str("id", diff.ID).
			Str("region", string(diff.Region)).
			Str("service", diff.Kind.Label()).
			Str("change", string(diff.Type))

		if diff.Type == resource.DiffModified {
			for field, change := range diff.Changes {
				event = event.
					Str(field+".from", change.Previous).
					Str(field+".to", change.Current)
			}
		}

		event.Msg("resource changed")
	}
}

// observeResources is the callback for the resource_info gauge.
func (e *PrometheusEmitter) observeResources(_ context.Context, o metric.Int64Observer) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for region, services := range e.resources {
		for kind, records := range services {
			for _, r := range records {
				attrs := []attribute.KeyValue{
					attribute.String("id", r.ID),
					attribute.String("region", string(region)),
					attribute.String("service", kind.Label()),
				}
				for _, key := range []string{"name", "state", "status", "type"} {
					if v := r.Str(key); v != "" && v != resource.NotAvailable {
						attrs = append(attrs, attribute.String(key, v))
					}
				}
				o.Observe(1, metric.WithAttributes(attrs...))
			}
		}
	}

	return nil
}

// observeCounts is the callback for the resources gauge.
func (e *PrometheusEmitter) observeCounts(_ context.Context, o metric.Int64Observer) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for region, services := range e.resources {
		for kind, records := range services {
			o.Observe(int64(len(records)), metric.WithAttributes(
				attribute.String("region", string(region)),
				attribute.String("service", kind.Label()),
			))
		}
	}
	return nil
}

// Close is a no-op for Prometheus emitter.
func (e *PrometheusEmitter) Close() error {
	return nil
}
