package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/prometheus"

	"github.com/yairfalse/sweep/internal/daemon"
	"github.com/yairfalse/sweep/internal/emitter"
	"github.com/yairfalse/sweep/internal/server"
	"github.com/yairfalse/sweep/internal/store"
)

var (
	serveAddr     string
	serveInterval time.Duration
	serveAccount  string
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the discovery HTTP API",
	Long: `Run the HTTP API used by the browser frontend.

Endpoints:
- GET /discover-aws?accountId=X  run a discovery, return the aggregate
- GET /snapshots                 list stored snapshots
- GET /snapshots/{id}            one stored snapshot
- GET /healthz                   health
- GET /metrics                   Prometheus metrics

With --interval, discovery also runs on a schedule and every snapshot is
stored and exported as metrics.`,
	Example: `  sweep serve                          # 127.0.0.1:5000
  sweep serve --addr :8080
  sweep serve --interval 15m           # Scheduled discovery`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config)")
	serveCmd.Flags().DurationVar(&serveInterval, "interval", 0, "Scheduled discovery interval, 0 disables (default from config)")
	serveCmd.Flags().StringVar(&serveAccount, "account", "", "Account label for scheduled snapshots")
}

func runServe(cmd *cobra.Command, _ []string) error {
	if cmd.Flags().Changed("addr") {
		cfg.Server.Addr = serveAddr
	}
	if cmd.Flags().Changed("interval") {
		cfg.Server.Interval = serveInterval
	}

	ctx := context.Background()

	promExporter, err := prometheus.New()
	if err != nil {
		return fmt.Errorf("create prometheus exporter: %w", err)
	}

	eng, err := buildEngine(ctx, cfg, promExporter)
	if err != nil {
		return err
	}
	defer eng.close(context.Background())

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	promEmitter, err := emitter.NewPrometheusEmitter(log.Logger)
	if err != nil {
		return fmt.Errorf("create emitter: %w", err)
	}
	emit := emitter.NewMultiEmitter(emitter.NewStoreEmitter(st), promEmitter)
	defer func() { _ = emit.Close() }()

	opts := []server.Option{
		server.WithSnapshots(st),
		server.WithEmitter(emit),
		server.WithAccountResolver(func(ctx context.Context) string { return eng.account(ctx, "") }),
		server.WithMetricsHandler(promhttp.Handler()),
		server.WithLogger(log.Logger),
		server.WithTimeout(cfg.Scanner.Timeout),
	}

	var g run.Group

	if cfg.Server.Interval > 0 {
		metrics, err := daemon.NewMetrics()
		if err != nil {
			return fmt.Errorf("create daemon metrics: %w", err)
		}
		d, err := daemon.NewDaemon(eng.discoverer, emit, daemon.Config{
			Interval: cfg.Server.Interval,
			Account:  eng.account(ctx, serveAccount),
			Timeout:  cfg.Scanner.Timeout,
		}, daemon.WithLogger(log.Logger), daemon.WithMetrics(metrics))
		if err != nil {
			return fmt.Errorf("create daemon: %w", err)
		}
		opts = append(opts, server.WithHealth(func() any { return d.Health() }))

		dctx, dcancel := context.WithCancel(ctx)
		g.Add(func() error {
			return d.Start(dctx)
		}, func(error) {
			dcancel()
		})
	}

	srv := server.New(eng.discoverer, opts...)
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Add(func() error {
		log.Info().Str("addr", cfg.Server.Addr).Msg("starting http server")
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}, func(error) {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http server shutdown")
		}
	})

	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))

	err = g.Run()
	var sigErr run.SignalError
	if errors.As(err, &sigErr) {
		log.Info().Str("signal", sigErr.Signal.String()).Msg("shutting down")
		return nil
	}
	return err
}
