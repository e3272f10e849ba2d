package config

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/librarydesk/lending-engine/lending"
	"github.com/librarydesk/lending-engine/lending/oteladapters"
)

const (
	serviceName           = "librarian"
	instrumentationName   = "github.com/librarydesk/lending-engine"
	metricsExportInterval = 5 * time.Second
	shutdownTimeout       = 5 * time.Second
)

// Telemetry holds the OpenTelemetry providers of one process run.
// The zero value is disabled telemetry and is safe to use.
type Telemetry struct {
	TracerProvider *trace.TracerProvider
	MeterProvider  *metric.MeterProvider
	LoggerProvider *sdklog.LoggerProvider
}

// NewTelemetry sets up OTLP gRPC exporters for traces, metrics and logs when cfg.OTelEnabled
// and registers them as the global providers.
func NewTelemetry(ctx context.Context, cfg Config, version string) (*Telemetry, error) {
	if !cfg.OTelEnabled {
		return &Telemetry{}, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(version),
		),
	)
	if err != nil {
		return nil, err
	}

	traceExporter, err := otlptracegrpc.New(
		ctx,
		otlptracegrpc.WithEndpoint(cfg.OTelEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	tracerProvider := trace.NewTracerProvider(
		trace.WithBatcher(traceExporter),
		trace.WithResource(res),
	)

	metricExporter, err := otlpmetricgrpc.New(
		ctx,
		otlpmetricgrpc.WithEndpoint(cfg.OTelEndpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		_ = tracerProvider.Shutdown(ctx)
		return nil, err
	}

	meterProvider := metric.NewMeterProvider(
		metric.WithReader(metric.NewPeriodicReader(metricExporter,
			metric.WithInterval(metricsExportInterval))),
		metric.WithResource(res),
	)

	logExporter, err := otlploggrpc.New(
		ctx,
		otlploggrpc.WithEndpoint(cfg.OTelEndpoint),
		otlploggrpc.WithInsecure(),
	)
	if err != nil {
		_ = tracerProvider.Shutdown(ctx)
		_ = meterProvider.Shutdown(ctx)
		return nil, err
	}

	loggerProvider := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
		sdklog.WithResource(res),
	)

	otel.SetTracerProvider(tracerProvider)
	otel.SetMeterProvider(meterProvider)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	global.SetLoggerProvider(loggerProvider)

	return &Telemetry{
		TracerProvider: tracerProvider,
		MeterProvider:  meterProvider,
		LoggerProvider: loggerProvider,
	}, nil
}

// Enabled reports whether exporters are running.
func (t *Telemetry) Enabled() bool {
	return t.TracerProvider != nil
}

// Instruments returns the engine and backend hooks for this telemetry setup.
// With telemetry enabled, log records of the engine and the stores go to the collector
// with trace correlation instead of to logger.
func (t *Telemetry) Instruments(logger lending.Logger) Instruments {
	instruments := Instruments{Logger: logger}
	if !t.Enabled() {
		return instruments
	}

	instruments.ContextualLogger = oteladapters.NewSlogBridgeLogger(instrumentationName)
	instruments.StoreLogger = oteladapters.NewOTelLogger(t.LoggerProvider.Logger(instrumentationName + "/sqlengine"))
	instruments.Metrics = oteladapters.NewMetricsCollector(t.MeterProvider.Meter(instrumentationName))
	instruments.Tracing = oteladapters.NewTracingCollector(t.TracerProvider.Tracer(instrumentationName))

	return instruments
}

// Shutdown flushes and stops the exporters.
func (t *Telemetry) Shutdown() error {
	if !t.Enabled() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return errors.Join(
		t.TracerProvider.Shutdown(ctx),
		t.MeterProvider.Shutdown(ctx),
		t.LoggerProvider.Shutdown(ctx),
	)
}
