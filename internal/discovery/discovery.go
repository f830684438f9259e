// Package discovery runs the probe table across every enabled region and
// assembles the results into one snapshot.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/yairfalse/sweep/internal/filter"
	"github.com/yairfalse/sweep/internal/probe"
	"github.com/yairfalse/sweep/pkg/resource"
)

// Defaults for a Discoverer.
const (
	DefaultAnchor        resource.Region = "us-east-1"
	DefaultConcurrency                   = 16
	DefaultMaxRetries                    = 3
	DefaultProbeTimeout                  = 2 * time.Minute
	DefaultRetryInterval                 = 500 * time.Millisecond
)

// RegionLister enumerates the regions enabled for the account.
type RegionLister interface {
	ListRegions(ctx context.Context) ([]resource.Region, error)
}

// Metrics receives per-probe and per-scan measurements.
type Metrics interface {
	RecordProbe(ctx context.Context, region, service string, d time.Duration, records int)
	RecordFailure(ctx context.Context, region, service, kind, cause string)
	RecordDiscovery(ctx context.Context, d time.Duration, partial bool)
}

// Classifier maps a probe error onto the failure taxonomy.
type Classifier func(err error) *resource.Failure

// Discoverer drives one scan per Discover call. It holds no state between
// calls and is safe for concurrent use.
type Discoverer struct {
	lister        RegionLister
	probes        probe.Table
	log           zerolog.Logger
	anchor        resource.Region
	concurrency   int
	rateLimit     rate.Limit
	maxRetries    int
	retryInterval time.Duration
	probeTimeout  time.Duration
	filter        *filter.Filter
	metrics       Metrics
	classify      Classifier
	tracer        trace.Tracer
}

// Option configures a Discoverer.
type Option func(*Discoverer)

// WithLogger sets the logger diagnostics are written to.
func WithLogger(log zerolog.Logger) Option {
	return func(d *Discoverer) { d.log = log }
}

// WithAnchor sets the preferred region for global probes.
func WithAnchor(region string) Option {
	return func(d *Discoverer) {
		if region != "" {
			d.anchor = resource.Region(region)
		}
	}
}

// WithConcurrency bounds how many probes run at once.
func WithConcurrency(n int) Option {
	return func(d *Discoverer) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// WithRateLimit caps probe starts per second. Zero or less means unlimited.
func WithRateLimit(perSecond float64) Option {
	return func(d *Discoverer) {
		if perSecond > 0 {
			d.rateLimit = rate.Limit(perSecond)
		} else {
			d.rateLimit = rate.Inf
		}
	}
}

// WithMaxRetries sets how often a throttled probe is retried.
func WithMaxRetries(n int) Option {
	return func(d *Discoverer) {
		if n >= 0 {
			d.maxRetries = n
		}
	}
}

// WithRetryInterval sets the initial backoff between throttled attempts.
func WithRetryInterval(interval time.Duration) Option {
	return func(d *Discoverer) {
		if interval > 0 {
			d.retryInterval = interval
		}
	}
}

// WithProbeTimeout bounds a single probe invocation.
func WithProbeTimeout(timeout time.Duration) Option {
	return func(d *Discoverer) {
		if timeout > 0 {
			d.probeTimeout = timeout
		}
	}
}

// WithFilter restricts the regions and services probed.
func WithFilter(f *filter.Filter) Option {
	return func(d *Discoverer) { d.filter = f }
}

// WithMetrics records probe measurements.
func WithMetrics(m Metrics) Option {
	return func(d *Discoverer) { d.metrics = m }
}

// WithClassifier sets how provider errors are mapped to failures.
func WithClassifier(c Classifier) Option {
	return func(d *Discoverer) {
		if c != nil {
			d.classify = c
		}
	}
}

// New creates a Discoverer over the given region lister and probe table.
func New(lister RegionLister, probes probe.Table, opts ...Option) (*Discoverer, error) {
	if lister == nil {
		return nil, errors.New("discovery: nil region lister")
	}
	if err := probes.Validate(); err != nil {
		return nil, err
	}

	d := &Discoverer{
		lister:        lister,
		probes:        probes,
		log:           zerolog.Nop(),
		anchor:        DefaultAnchor,
		concurrency:   DefaultConcurrency,
		rateLimit:     rate.Inf,
		maxRetries:    DefaultMaxRetries,
		retryInterval: DefaultRetryInterval,
		probeTimeout:  DefaultProbeTimeout,
		classify:      defaultClassify,
		tracer:        otel.Tracer("github.com/yairfalse/sweep/internal/discovery"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// task is one (region, probe) invocation.
type task struct {
	region resource.Region
	probe  probe.Probe
}

// scan is the per-call state shared by the tasks of one Discover.
type scan struct {
	asm     *Assembler
	diag    *Diagnostics
	limiter *rate.Limiter
	partial atomic.Bool
}

// Discover enumerates regions and runs every probe. Only a region
// enumeration failure is returned as an error; probe failures end up in
// the snapshot's diagnostics. When ctx expires mid-scan the snapshot is
// returned with Partial set.
func (d *Discoverer) Discover(ctx context.Context, account string) (*resource.Snapshot, error) {
	started := time.Now()

	ctx, span := d.tracer.Start(ctx, "discover")
	defer span.End()

	diag := NewDiagnostics(d.log)

	regions, err := d.lister.ListRegions(ctx)
	if err == nil && len(regions) == 0 {
		err = &resource.Failure{Cause: resource.CauseMalformed, Message: "list regions: no regions enabled"}
	}
	if err != nil {
		f := fatal(err)
		diag.Record(f)
		span.RecordError(f)
		span.SetStatus(codes.Error, "list regions")
		return nil, f
	}

	anchor := d.pickAnchor(regions)
	tasks := d.plan(regions, anchor)

	span.SetAttributes(
		attribute.String("sweep.anchor", string(anchor)),
		attribute.Int("sweep.regions", len(regions)),
		attribute.Int("sweep.tasks", len(tasks)),
	)
	d.log.Info().
		Str("account", account).
		Str("anchor", string(anchor)).
		Int("regions", len(regions)).
		Int("tasks", len(tasks)).
		Msg("discovery started")

	s := &scan{
		asm:     NewAssembler(diag),
		diag:    diag,
		limiter: rate.NewLimiter(d.rateLimit, d.concurrency),
	}

	g := new(errgroup.Group)
	g.SetLimit(d.concurrency)
	for _, t := range tasks {
		g.Go(func() error {
			d.runTask(ctx, s, t)
			return nil
		})
	}
	_ = g.Wait()

	snap := &resource.Snapshot{
		ID:          uuid.NewString(),
		Account:     account,
		Anchor:      anchor,
		Regions:     slices.Clone(regions),
		StartedAt:   started.UTC(),
		Duration:    time.Since(started),
		Partial:     s.partial.Load(),
		Resources:   s.asm.Aggregate(),
		Diagnostics: diag.Entries(),
	}

	if d.metrics != nil {
		d.metrics.RecordDiscovery(ctx, snap.Duration, snap.Partial)
	}
	d.log.Info().
		Str("snapshot", snap.ID).
		Int("resources", snap.Resources.Count()).
		Int("failures", len(snap.Diagnostics)).
		Bool("partial", snap.Partial).
		Dur("duration", snap.Duration).
		Msg("discovery complete")

	return snap, nil
}

// pickAnchor returns the configured anchor if it is enabled, otherwise the
// first enumerated region.
func (d *Discoverer) pickAnchor(regions []resource.Region) resource.Region {
	if slices.Contains(regions, d.anchor) {
		return d.anchor
	}
	d.log.Warn().
		Str("anchor", string(d.anchor)).
		Str("fallback", string(regions[0])).
		Msg("anchor region not enabled, using first region")
	return regions[0]
}

// plan expands the probe table into tasks. Regional probes run in every
// region that passes the filter; global probes run once, in the anchor,
// even when the anchor itself is filtered out.
func (d *Discoverer) plan(regions []resource.Region, anchor resource.Region) []task {
	var probes probe.Table
	for _, p := range d.probes {
		if d.filter.ShouldScanKind(p.Kind) {
			probes = append(probes, p)
		}
	}

	var tasks []task
	for _, p := range probes {
		if p.Scope == probe.Global {
			tasks = append(tasks, task{region: anchor, probe: p})
		}
	}
	for _, region := range d.filter.Regions(regions) {
		for _, p := range probes {
			if p.Scope == probe.Regional {
				tasks = append(tasks, task{region: region, probe: p})
			}
		}
	}
	return tasks
}

func (d *Discoverer) runTask(ctx context.Context, s *scan, t task) {
	kind := t.probe.Kind
	label := kind.Label()

	ctx, span := d.tracer.Start(ctx, "probe "+label, trace.WithAttributes(
		attribute.String("sweep.region", string(t.region)),
		attribute.String("sweep.service", label),
		attribute.String("sweep.scope", t.probe.Scope.String()),
	))
	defer span.End()

	start := time.Now()
	records, err := d.invoke(ctx, s, t)
	elapsed := time.Since(start)

	if err == nil {
		span.SetAttributes(attribute.Int("sweep.records", len(records)))
		if d.metrics != nil {
			d.metrics.RecordProbe(ctx, string(t.region), label, elapsed, len(records))
		}
		d.log.Debug().
			Str("region", string(t.region)).
			Str("service", label).
			Int("count", len(records)).
			Dur("duration", elapsed).
			Msg("probe complete")
		s.asm.Fold(t.region, kind, resource.Succeeded(records))
		return
	}

	f := d.classify(err)
	if f.Kind != resource.ExpectedLocal {
		f.Kind = resource.UnexpectedLocal
	}
	f.Region = t.region
	f.Service = kind
	if ctx.Err() != nil {
		f.Cause = resource.CauseCanceled
		s.partial.Store(true)
	}

	span.RecordError(f)
	span.SetStatus(codes.Error, string(f.Cause))
	if d.metrics != nil {
		d.metrics.RecordFailure(ctx, string(t.region), label, f.Kind.String(), string(f.Cause))
	}
	s.asm.Fold(t.region, kind, resource.Failed(f))
}

// invoke waits for a rate token and runs the probe under its own timeout,
// retrying throttled attempts with exponential backoff.
func (d *Discoverer) invoke(ctx context.Context, s *scan, t task) ([]resource.Record, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("rate limit: %w", context.DeadlineExceeded)
	}

	reporter := probe.ReporterFunc(func(f *resource.Failure) {
		pf := *f
		pf.Kind = resource.PartialField
		if pf.Region == "" {
			pf.Region = t.region
		}
		if !pf.Service.Valid() {
			pf.Service = t.probe.Kind
		}
		if d.metrics != nil {
			d.metrics.RecordFailure(ctx, string(pf.Region), pf.Service.Label(), pf.Kind.String(), string(pf.Cause))
		}
		s.diag.Record(&pf)
	})

	attempt := 0
	operation := func() ([]resource.Record, error) {
		attempt++
		pctx, cancel := context.WithTimeout(ctx, d.probeTimeout)
		defer cancel()

		records, err := t.probe.Run(probe.WithReporter(pctx, reporter), t.region)
		if err == nil {
			return records, nil
		}
		if d.classify(err).Cause == resource.CauseThrottled {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = d.retryInterval

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(d.maxRetries)+1),
		backoff.WithNotify(func(err error, next time.Duration) {
			d.log.Debug().
				Err(err).
				Str("region", string(t.region)).
				Str("service", t.probe.Kind.Label()).
				Int("attempt", attempt).
				Dur("retry_in", next).
				Msg("probe throttled, retrying")
		}),
	)
}

// fatal turns a region enumeration error into a Fatal failure.
func fatal(err error) *resource.Failure {
	var existing *resource.Failure
	if errors.As(err, &existing) {
		f := *existing
		f.Kind = resource.Fatal
		return &f
	}
	f := defaultClassify(err)
	f.Kind = resource.Fatal
	f.Message = "list regions: " + f.Message
	return f
}

// defaultClassify understands failures produced by the probes themselves
// and context errors; everything else is unexpected.
func defaultClassify(err error) *resource.Failure {
	var existing *resource.Failure
	if errors.As(err, &existing) {
		f := *existing
		return &f
	}
	f := &resource.Failure{
		Kind:    resource.UnexpectedLocal,
		Cause:   resource.CauseUnknown,
		Message: err.Error(),
		Err:     err,
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		f.Cause = resource.CauseCanceled
	}
	return f
}
