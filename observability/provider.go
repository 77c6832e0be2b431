// Package observability wires OpenTelemetry providers for the command line tools.
// Query spans and pool metrics are emitted through the global providers, so installing
// a Provider is enough to see them.
package observability

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.32.0"
	"go.opentelemetry.io/otel/trace"
)

// DefaultServiceName is reported when Config.ServiceName is empty.
const DefaultServiceName = "go-datasource"

// Config selects where spans are written.
type Config struct {
	ServiceName    string
	ServiceVersion string
	// Writer receives finished spans as JSON. Defaults to os.Stderr.
	Writer io.Writer
	Pretty bool
	// Reader collects metrics on demand. Nil disables the meter provider.
	Reader sdkmetric.Reader
}

// Provider owns the tracer and meter providers installed as globals.
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider

	prevTracer trace.TracerProvider
	prevMeter  metric.MeterProvider

	once sync.Once
}

// NewProvider builds the providers, installs them globally and returns a handle that
// restores the previous globals on Shutdown.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = DefaultServiceName
	}
	if cfg.Writer == nil {
		cfg.Writer = os.Stderr
	}

	opts := []stdouttrace.Option{stdouttrace.WithWriter(cfg.Writer)}
	if cfg.Pretty {
		opts = append(opts, stdouttrace.WithPrettyPrint())
	}
	exporter, err := stdouttrace.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout trace exporter: %w", err)
	}

	res := resource.NewSchemaless(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	)

	p := &Provider{
		prevTracer: otel.GetTracerProvider(),
		prevMeter:  otel.GetMeterProvider(),
		// spans are flushed synchronously so short-lived commands never lose them
		tracerProvider: sdktrace.NewTracerProvider(
			sdktrace.WithSyncer(exporter),
			sdktrace.WithResource(res),
		),
	}
	otel.SetTracerProvider(p.tracerProvider)

	if cfg.Reader != nil {
		p.meterProvider = sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(cfg.Reader),
			sdkmetric.WithResource(res),
		)
		otel.SetMeterProvider(p.meterProvider)
	}

	return p, nil
}

// TracerProvider returns the installed tracer provider.
func (p *Provider) TracerProvider() trace.TracerProvider {
	return p.tracerProvider
}

// MeterProvider returns the installed meter provider, or the previous global one when
// metrics are off.
func (p *Provider) MeterProvider() metric.MeterProvider {
	if p.meterProvider == nil {
		return p.prevMeter
	}
	return p.meterProvider
}

// Shutdown flushes and stops the providers and restores the previous globals.
// Calling it again is a no-op.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	p.once.Do(func() {
		otel.SetTracerProvider(p.prevTracer)
		if p.meterProvider != nil {
			otel.SetMeterProvider(p.prevMeter)
			errs = append(errs, p.meterProvider.Shutdown(ctx))
		}
		errs = append(errs, p.tracerProvider.Shutdown(ctx))
	})
	return errors.Join(errs...)
}

// DefaultShutdownTimeout bounds Shutdown when no timeout is given.
const DefaultShutdownTimeout = 5 * time.Second

// Shutdown stops provider, giving exporters at most timeout to flush. A nil provider
// is a no-op.
func Shutdown(provider *Provider, timeout time.Duration) error {
	if provider == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), cmp.Or(max(timeout, 0), DefaultShutdownTimeout))
	defer cancel()

	if err := provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("shut down telemetry: %w", err)
	}
	return nil
}
