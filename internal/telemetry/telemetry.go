// Package telemetry installs the OpenTelemetry providers used by the runner
// and refresh metrics. Without Init, otel's no-op providers are in effect.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Config selects the exporters to install. Empty fields disable them.
type Config struct {
	ServiceVersion string
	// MetricsAddr serves Prometheus metrics on /metrics, e.g. "127.0.0.1:9464".
	MetricsAddr string
	// TraceFile receives spans as JSON lines.
	TraceFile string
}

// Telemetry owns the installed providers and the metrics listener.
type Telemetry struct {
	logger    *slog.Logger
	server    *http.Server
	listener  net.Listener
	traceOut  *os.File
	shutdowns []func(context.Context) error
}

// Init installs the providers selected by cfg as otel globals.
func Init(ctx context.Context, cfg Config, logger *slog.Logger) (*Telemetry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Telemetry{logger: logger}

	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", "glitchls"),
		attribute.String("service.version", cfg.ServiceVersion),
	)

	if cfg.TraceFile != "" {
		if err := t.initTracer(cfg.TraceFile, res); err != nil {
			_ = t.Shutdown(ctx)
			return nil, fmt.Errorf("init tracer: %w", err)
		}
	}
	if cfg.MetricsAddr != "" {
		if err := t.initMeter(cfg.MetricsAddr, res); err != nil {
			_ = t.Shutdown(ctx)
			return nil, fmt.Errorf("init meter: %w", err)
		}
	}
	return t, nil
}

func (t *Telemetry) initTracer(path string, res *resource.Resource) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	t.traceOut = f
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(f))
	if err != nil {
		return fmt.Errorf("create exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	t.shutdowns = append(t.shutdowns, tp.Shutdown)
	t.logger.Info("Writing traces", slog.String("path", path))
	return nil
}

func (t *Telemetry) initMeter(addr string, res *resource.Resource) error {
	reg := prometheus.NewRegistry()
	exporter, err := promexporter.New(promexporter.WithRegisterer(reg))
	if err != nil {
		return fmt.Errorf("create prometheus exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(mp)
	t.shutdowns = append(t.shutdowns, mp.Shutdown)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	t.listener = ln

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	t.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := t.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.logger.Error("Metrics server stopped", slog.String("error", err.Error()))
		}
	}()
	t.logger.Info("Serving metrics", slog.String("addr", ln.Addr().String()))
	return nil
}

// MetricsAddr returns the bound metrics address, or "" when metrics are off.
func (t *Telemetry) MetricsAddr() string {
	if t == nil || t.listener == nil {
		return ""
	}
	return t.listener.Addr().String()
}

// Shutdown flushes exporters and stops the metrics server.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	var errs []error
	if t.server != nil {
		if err := t.server.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	} else if t.listener != nil {
		if err := t.listener.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, fn := range t.shutdowns {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if t.traceOut != nil {
		if err := t.traceOut.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
