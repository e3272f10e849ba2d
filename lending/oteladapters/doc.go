// Package oteladapters provides OpenTelemetry implementations of the lending observability interfaces.
//
// The engine and the SQL store accept a lending.ContextualLogger, a lending.MetricsCollector
// and a lending.TracingCollector. The adapters in this package map them onto an
// OpenTelemetry LoggerProvider (through the slog bridge), Meter and Tracer:
//
//	logger := oteladapters.NewSlogBridgeLogger("lending-engine")
//	metrics := oteladapters.NewMetricsCollector(otel.Meter("lending-engine"))
//	tracing := oteladapters.NewTracingCollector(otel.Tracer("lending-engine"))
//
//	eng, err := engine.New(backend,
//		engine.WithContextualLogger(logger),
//		engine.WithMetrics(metrics),
//		engine.WithTracing(tracing))
package oteladapters
