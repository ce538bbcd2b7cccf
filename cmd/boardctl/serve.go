package main

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"boardcore/internal/api"
	"boardcore/internal/board"
	"boardcore/internal/config"
	"boardcore/internal/observability"
)

const shutdownGrace = 5 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the board HTTP API over the configured storage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.cfg.Server.ListenAddr = addr
			}
			ln, err := net.Listen("tcp", a.cfg.Server.ListenAddr)
			if err != nil {
				return fmt.Errorf("listen: %w", err)
			}
			return a.serve(cmd.Context(), ln)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.listen_addr)")
	return cmd
}

// serve runs the API on ln until ctx is done.
func (a *app) serve(ctx context.Context, ln net.Listener) error {
	store, err := board.OpenPersistentStore(ctx, a.cfg.Storage)
	if err != nil {
		_ = ln.Close()
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if err := board.CloseStore(store); err != nil {
			a.logger.Warn("close storage", "error", err)
		}
	}()

	metrics, metricsHandler, err := a.metrics()
	if err != nil {
		_ = ln.Close()
		return err
	}
	tracer, stopTracing, err := a.tracer("boardcore")
	if err != nil {
		_ = ln.Close()
		return err
	}
	defer a.stopTracing(stopTracing)
	svc := board.NewService(store,
		board.WithLogger(a.logger),
		board.WithMetricsRecorder(metrics),
		board.WithTracer(tracer),
	)
	var routerOpts []api.RouterOption
	if metricsHandler != nil {
		routerOpts = append(routerOpts, api.WithMetricsHandler(metricsHandler))
	}
	srv := &http.Server{
		Handler:           api.NewRouter(svc, a.logger, routerOpts...),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	a.logger.Info("board api listening",
		"addr", ln.Addr().String(),
		"storage", a.cfg.Storage.Driver,
		"metrics", a.cfg.Metrics,
		"tracing", a.cfg.Tracing)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	a.logger.Info("board api stopped")
	return nil
}

func (a *app) metrics() (observability.MetricsRecorder, http.Handler, error) {
	switch a.cfg.Metrics {
	case config.MetricsPrometheus:
		reg := prometheus.NewRegistry()
		rec, err := observability.NewPrometheusMetricsRecorder(reg, "boardcore")
		if err != nil {
			return nil, nil, fmt.Errorf("register metrics: %w", err)
		}
		return rec, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
	case config.MetricsExpvar:
		return observability.NewExpvarMetricsRecorder(""), expvar.Handler(), nil
	default:
		return observability.NoopMetrics{}, nil, nil
	}
}

// tracer builds the configured tracer. The returned stop function flushes
// exporters and is safe to call for every mode.
func (a *app) tracer(service string) (observability.Tracer, func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	switch a.cfg.Tracing {
	case config.TracingJSON:
		return observability.NewJSONTracer(a.stderr), noop, nil
	case config.TracingOTel:
		tracer, shutdown, err := observability.StartOTel(a.stderr, service)
		if err != nil {
			return nil, nil, fmt.Errorf("start tracing: %w", err)
		}
		return tracer, shutdown, nil
	default:
		return observability.NoopTracer{}, noop, nil
	}
}

func (a *app) stopTracing(stop func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := stop(ctx); err != nil {
		a.logger.Warn("flush traces", "error", err)
	}
}
