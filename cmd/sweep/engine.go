package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/yairfalse/sweep/internal/config"
	"github.com/yairfalse/sweep/internal/discovery"
	"github.com/yairfalse/sweep/internal/filter"
	"github.com/yairfalse/sweep/internal/probe/aws"
	"github.com/yairfalse/sweep/internal/telemetry"
	"github.com/yairfalse/sweep/pkg/resource"
)

// engine is the wired discovery stack shared by discover and serve.
type engine struct {
	clients    *aws.SDKFactory
	telemetry  *telemetry.Provider
	discoverer *discovery.Discoverer
	bootstrap  string
}

// buildEngine wires telemetry, AWS clients and the discoverer from cfg.
// Extra metric readers are attached to the telemetry meter provider.
func buildEngine(ctx context.Context, cfg *config.Config, readers ...sdkmetric.Reader) (*engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	tp, err := telemetry.NewProvider(ctx, cfg.OTEL, readers...)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	clients, err := aws.NewSDKFactory(ctx, aws.Config{
		Profile:         cfg.AWS.Profile,
		BootstrapRegion: cfg.AWS.BootstrapRegion,
	})
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}

	provider := aws.New(clients, aws.WithEnrichConcurrency(cfg.Scanner.EnrichConcurrency))
	lister := aws.NewRegionLister(clients, cfg.AWS.BootstrapRegion)

	d, err := discovery.New(lister, provider.Probes(),
		discovery.WithLogger(log.Logger),
		discovery.WithAnchor(cfg.Scanner.AnchorRegion),
		discovery.WithConcurrency(cfg.Scanner.Concurrency),
		discovery.WithRateLimit(cfg.Scanner.RateLimit),
		discovery.WithMaxRetries(cfg.Retries()),
		discovery.WithProbeTimeout(cfg.Scanner.ProbeTimeout),
		discovery.WithFilter(filter.New(cfg.AWS.Regions, cfg.AWS.ExcludeRegions, cfg.Scanner.ExcludeKinds)),
		discovery.WithMetrics(tp),
		discovery.WithClassifier(aws.Classify),
	)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("create discoverer: %w", err)
	}

	return &engine{
		clients:    clients,
		telemetry:  tp,
		discoverer: d,
		bootstrap:  cfg.AWS.BootstrapRegion,
	}, nil
}

// account returns label, or the caller identity when label is empty.
// Resolution failure is logged and yields N/A.
func (e *engine) account(ctx context.Context, label string) string {
	if label != "" {
		return label
	}
	id, err := aws.AccountLabel(ctx, e.clients, e.bootstrap)
	if err != nil {
		log.Warn().Err(err).Msg("could not resolve account id")
		return resource.NotAvailable
	}
	return id
}

func (e *engine) close(ctx context.Context) {
	if err := e.telemetry.Shutdown(ctx); err != nil {
		log.Debug().Err(err).Msg("telemetry shutdown")
	}
}
