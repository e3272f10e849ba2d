package oteladapters

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/librarydesk/lending-engine/lending"
)

// MetricsCollector implements lending.ContextualMetricsCollector on the OpenTelemetry metrics API:
//   - RecordDuration -> Float64Histogram in seconds
//   - IncrementCounter -> Int64Counter
//   - RecordValue -> Float64Histogram, e.g. the distribution of fines charged at return
//
// Instruments are created on first use and cached. A nil meter turns every call into a no-op.
type MetricsCollector struct {
	meter metric.Meter

	mu         sync.RWMutex
	histograms map[string]metric.Float64Histogram
	counters   map[string]metric.Int64Counter
	values     map[string]metric.Float64Histogram
}

// NewMetricsCollector creates a metrics collector on meter.
func NewMetricsCollector(meter metric.Meter) *MetricsCollector {
	return &MetricsCollector{
		meter:      meter,
		histograms: make(map[string]metric.Float64Histogram),
		counters:   make(map[string]metric.Int64Counter),
		values:     make(map[string]metric.Float64Histogram),
	}
}

// RecordDuration implements lending.MetricsCollector.
func (m *MetricsCollector) RecordDuration(metricName string, duration time.Duration, labels map[string]string) {
	m.RecordDurationContext(context.Background(), metricName, duration, labels)
}

// RecordDurationContext implements lending.ContextualMetricsCollector.
func (m *MetricsCollector) RecordDurationContext(ctx context.Context, metricName string, duration time.Duration, labels map[string]string) {
	histogram := instrument(m, m.histograms, metricName, func(meter metric.Meter) (metric.Float64Histogram, error) {
		return meter.Float64Histogram(metricName, metric.WithDescription(describe(metricName)), metric.WithUnit("s"))
	})
	if histogram == nil {
		return
	}

	histogram.Record(ctx, duration.Seconds(), metric.WithAttributes(attributes(labels)...))
}

// IncrementCounter implements lending.MetricsCollector.
func (m *MetricsCollector) IncrementCounter(metricName string, labels map[string]string) {
	m.IncrementCounterContext(context.Background(), metricName, labels)
}

// IncrementCounterContext implements lending.ContextualMetricsCollector.
func (m *MetricsCollector) IncrementCounterContext(ctx context.Context, metricName string, labels map[string]string) {
	counter := instrument(m, m.counters, metricName, func(meter metric.Meter) (metric.Int64Counter, error) {
		return meter.Int64Counter(metricName, metric.WithDescription(describe(metricName)))
	})
	if counter == nil {
		return
	}

	counter.Add(ctx, 1, metric.WithAttributes(attributes(labels)...))
}

// RecordValue implements lending.MetricsCollector.
func (m *MetricsCollector) RecordValue(metricName string, value float64, labels map[string]string) {
	m.RecordValueContext(context.Background(), metricName, value, labels)
}

// RecordValueContext implements lending.ContextualMetricsCollector.
func (m *MetricsCollector) RecordValueContext(ctx context.Context, metricName string, value float64, labels map[string]string) {
	histogram := instrument(m, m.values, metricName, func(meter metric.Meter) (metric.Float64Histogram, error) {
		return meter.Float64Histogram(metricName, metric.WithDescription(describe(metricName)))
	})
	if histogram == nil {
		return
	}

	histogram.Record(ctx, value, metric.WithAttributes(attributes(labels)...))
}

// instrument returns the cached instrument for name or creates it. Creation errors yield nil.
func instrument[T any](m *MetricsCollector, cache map[string]T, name string, create func(metric.Meter) (T, error)) T {
	var none T
	if m.meter == nil {
		return none
	}

	m.mu.RLock()
	cached, exists := cache[name]
	m.mu.RUnlock()
	if exists {
		return cached
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if cached, exists := cache[name]; exists {
		return cached
	}

	created, err := create(m.meter)
	if err != nil {
		return none
	}

	cache[name] = created

	return created
}

func attributes(labels map[string]string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(labels))
	for key, value := range labels {
		attrs = append(attrs, attribute.String(key, value))
	}

	return attrs
}

func describe(metricName string) string {
	switch {
	case strings.HasPrefix(metricName, "lending_transaction_"):
		return "Lending transaction retries"
	case strings.HasPrefix(metricName, "lending_"):
		return "Lending operation metric"
	case strings.HasPrefix(metricName, "sqlengine_"):
		return "SQL store metric"
	default:
		return "Library lending metric"
	}
}

var _ lending.ContextualMetricsCollector = (*MetricsCollector)(nil)
