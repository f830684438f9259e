// Package daemon runs discovery on a fixed interval and emits each snapshot.
package daemon

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/yairfalse/sweep/internal/emitter"
	"github.com/yairfalse/sweep/pkg/resource"
)

// Config holds daemon configuration
type Config struct {
	Interval time.Duration
	Account  string
	Timeout  time.Duration // per run; zero means none
}

// Discoverer runs one discovery pass.
type Discoverer interface {
	Discover(ctx context.Context, account string) (*resource.Snapshot, error)
}

// Daemon manages continuous discovery
type Daemon struct {
	discoverer Discoverer
	emit       emitter.Emitter
	metrics    *Metrics
	log        zerolog.Logger

	interval time.Duration
	account  string
	timeout  time.Duration

	startTime time.Time
	runCount  atomic.Int64
	failCount atomic.Int64

	mu   sync.RWMutex
	last *resource.SnapshotInfo
}

// Option configures a Daemon.
type Option func(*Daemon)

// WithLogger sets the daemon logger.
func WithLogger(log zerolog.Logger) Option {
	return func(d *Daemon) { d.log = log }
}

// WithMetrics records run metrics.
func WithMetrics(m *Metrics) Option {
	return func(d *Daemon) { d.metrics = m }
}

// NewDaemon creates a new daemon instance
func NewDaemon(disc Discoverer, emit emitter.Emitter, config Config, opts ...Option) (*Daemon, error) {
	if disc == nil {
		return nil, errors.New("daemon: nil discoverer")
	}
	if config.Interval <= 0 {
		return nil, errors.New("daemon: interval must be positive")
	}
	if emit == nil {
		emit = emitter.NewMultiEmitter()
	}

	d := &Daemon{
		discoverer: disc,
		emit:       emit,
		log:        zerolog.Nop(),
		interval:   config.Interval,
		account:    config.Account,
		timeout:    config.Timeout,
		startTime:  time.Now(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Start runs discovery immediately and then on every tick until ctx ends.
func (d *Daemon) Start(ctx context.Context) error {
	d.log.Info().Dur("interval", d.interval).Msg("daemon starting")

	d.RunOnce(ctx)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.log.Info().Int64("runs", d.runCount.Load()).Msg("daemon stopped")
			return nil
		case <-ticker.C:
			d.RunOnce(ctx)
		}
	}
}

// RunOnce performs one discovery and emit. Failures are logged and counted.
func (d *Daemon) RunOnce(ctx context.Context) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	d.runCount.Add(1)
	start := time.Now()

	snap, err := d.discoverer.Discover(ctx, d.account)
	if err != nil {
		d.failCount.Add(1)
		d.record(ctx, "fatal", time.Since(start))
		d.log.Error().Err(err).Msg("scheduled discovery failed")
		return
	}

	status := "success"
	if snap.Partial {
		status = "partial"
	}
	d.record(ctx, status, time.Since(start))

	info := snap.Info()
	d.mu.Lock()
	d.last = &info
	d.mu.Unlock()

	if err := d.emit.Emit(ctx, snap); err != nil {
		d.log.Error().Err(err).Str("snapshot", snap.ID).Msg("emit failed")
		if d.metrics != nil {
			d.metrics.RecordEmit(ctx, "error")
		}
		return
	}
	if d.metrics != nil {
		d.metrics.RecordEmit(ctx, "success")
	}

	d.log.Info().
		Str("snapshot", snap.ID).
		Int("resources", info.Resources).
		Int("failures", info.Diagnostics).
		Bool("partial", info.Partial).
		Msg("scheduled discovery complete")
}

func (d *Daemon) record(ctx context.Context, status string, elapsed time.Duration) {
	if d.metrics == nil {
		return
	}
	d.metrics.RecordRun(ctx, status)
	d.metrics.RecordRunDuration(ctx, elapsed.Seconds(), status)
}

// Health returns daemon health status
func (d *Daemon) Health() HealthStatus {
	d.mu.RLock()
	defer d.mu.RUnlock()

	status := "healthy"
	if d.runCount.Load() > 0 && d.last == nil {
		status = "degraded"
	}

	h := HealthStatus{
		Status:   status,
		Uptime:   int64(time.Since(d.startTime).Seconds()),
		Runs:     d.runCount.Load(),
		Failures: d.failCount.Load(),
	}
	if d.last != nil {
		h.LastSnapshot = d.last.ID
		h.LastRun = d.last.StartedAt
	}
	return h
}

// HealthStatus represents daemon health
type HealthStatus struct {
	Status       string    `json:"status"`
	Uptime       int64     `json:"uptime_seconds"`
	Runs         int64     `json:"runs"`
	Failures     int64     `json:"failures"`
	LastSnapshot string    `json:"last_snapshot,omitempty"`
	LastRun      time.Time `json:"last_run,omitempty"`
}

// RunCount returns total discovery runs
func (d *Daemon) RunCount() int64 {
	return d.runCount.Load()
}
