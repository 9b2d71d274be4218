// Package otel wires OpenTelemetry tracing and metrics around the launcher's
// pipeline stages. Both signals are off unless enabled through the
// environment. Spans and the final metric snapshot go to stderr so the
// agent's stdout stays untouched.
package otel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/WorldWideTelescope/wwt-aligner/launcher"

// Environment toggles read by LoadConfigFromEnv.
const (
	EnvTraces  = "WWT_ALIGNER_OTEL_TRACES"
	EnvMetrics = "WWT_ALIGNER_OTEL_METRICS"
)

// Config controls OTEL exporter behaviour.
type Config struct {
	ServiceName   string
	EnableMetrics bool
	EnableTraces  bool

	// TraceWriter receives pretty-printed spans; defaults to stderr.
	TraceWriter io.Writer

	// MetricWriter receives the metric snapshot taken at Shutdown; defaults
	// to stderr.
	MetricWriter io.Writer
}

// Provider owns OTEL meter/tracer providers and the launcher instruments.
type Provider struct {
	cfg            Config
	meterProvider  *sdkmetric.MeterProvider
	reader         *sdkmetric.ManualReader
	metricExporter sdkmetric.Exporter
	tracerProvider *sdktrace.TracerProvider
	meter          metric.Meter
	tracer         trace.Tracer

	instruments  *Instruments
	shutdownOnce sync.Once
}

// Setup initialises the stdout trace exporter and a manual metric reader
// following the provided config. A config with both signals disabled yields
// a provider whose instruments are no-ops.
func Setup(ctx context.Context, cfg Config) (*Provider, error) {
	p := &Provider{cfg: cfg}
	if !cfg.EnableMetrics && !cfg.EnableTraces {
		p.instruments = newInstruments(p)
		return p, nil
	}

	if strings.TrimSpace(cfg.ServiceName) == "" {
		cfg.ServiceName = "wwt-aligner"
		p.cfg.ServiceName = cfg.ServiceName
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			attribute.String("service.name", cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build resource: %w", err)
	}

	if cfg.EnableMetrics {
		w := cfg.MetricWriter
		if w == nil {
			w = os.Stderr
		}
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(w), stdoutmetric.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("init stdout metric exporter: %w", err)
		}
		p.metricExporter = exp
		p.reader = sdkmetric.NewManualReader()
		p.meterProvider = sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(p.reader),
			sdkmetric.WithResource(res),
		)
		otel.SetMeterProvider(p.meterProvider)
		p.meter = p.meterProvider.Meter(instrumentationName)
	}

	if cfg.EnableTraces {
		tp, err := createTracerProvider(cfg, res)
		if err != nil {
			return nil, err
		}
		p.tracerProvider = tp
		otel.SetTracerProvider(tp)
		p.tracer = tp.Tracer(instrumentationName)
	}

	p.instruments = newInstruments(p)
	return p, nil
}

func createTracerProvider(cfg Config, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	w := cfg.TraceWriter
	if w == nil {
		w = os.Stderr
	}
	exp, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("init stdout trace exporter: %w", err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exp),
		sdktrace.WithResource(res),
	), nil
}

// Instruments returns the launcher instruments. It is safe on a nil
// provider.
func (p *Provider) Instruments() *Instruments {
	if p == nil {
		return nil
	}
	return p.instruments
}

// Collect reads the current metric state. It returns an empty snapshot when
// metrics are disabled.
func (p *Provider) Collect(ctx context.Context) (metricdata.ResourceMetrics, error) {
	var rm metricdata.ResourceMetrics
	if p == nil || p.reader == nil {
		return rm, nil
	}
	err := p.reader.Collect(ctx, &rm)
	return rm, err
}

// Shutdown flushes and stops the configured providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var err error
	p.shutdownOnce.Do(func() {
		var errs []error
		if err := p.exportMetrics(ctx); err != nil {
			errs = append(errs, err)
		}
		if p.meterProvider != nil {
			if shutdownErr := p.meterProvider.Shutdown(ctx); shutdownErr != nil {
				errs = append(errs, shutdownErr)
			}
		}
		if p.tracerProvider != nil {
			if shutdownErr := p.tracerProvider.Shutdown(ctx); shutdownErr != nil {
				errs = append(errs, shutdownErr)
			}
		}
		if len(errs) > 0 {
			err = errors.Join(errs...)
		}
	})
	return err
}

// exportMetrics writes one snapshot of everything recorded so far. The
// launcher is short-lived, so a single export at exit replaces periodic
// pushes.
func (p *Provider) exportMetrics(ctx context.Context) error {
	if p.reader == nil || p.metricExporter == nil {
		return nil
	}
	var rm metricdata.ResourceMetrics
	if err := p.reader.Collect(ctx, &rm); err != nil {
		return fmt.Errorf("collect metrics: %w", err)
	}
	if err := p.metricExporter.Export(ctx, &rm); err != nil {
		return fmt.Errorf("export metrics: %w", err)
	}
	return p.metricExporter.Shutdown(ctx)
}

// EnvBool interprets WWT_ALIGNER_* env toggles.
func EnvBool(value string, defaultOn bool) bool {
	value = strings.TrimSpace(strings.ToLower(value))
	switch value {
	case "":
		return defaultOn
	case "1", "true", "on", "enable", "enabled", "yes":
		return true
	case "0", "false", "off", "disable", "disabled", "no":
		return false
	default:
		return defaultOn
	}
}

// LoadConfigFromEnv reads OTEL config from environment.
func LoadConfigFromEnv() Config {
	return Config{
		ServiceName:   "wwt-aligner",
		EnableMetrics: EnvBool(os.Getenv(EnvMetrics), false),
		EnableTraces:  EnvBool(os.Getenv(EnvTraces), false),
	}
}
