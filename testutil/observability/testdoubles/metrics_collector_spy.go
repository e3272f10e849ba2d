package testdoubles

import (
	"context"
	"sync"
	"time"

	"github.com/librarydesk/lending-engine/lending"
)

// SpyMetricRecord represents one recorded measurement.
type SpyMetricRecord struct {
	Metric   string
	Duration time.Duration
	Value    float64
	Labels   map[string]string
}

// MetricsCollectorSpy captures metric calls. It implements lending.ContextualMetricsCollector.
type MetricsCollectorSpy struct {
	mu        sync.Mutex
	durations []SpyMetricRecord
	counters  []SpyMetricRecord
	values    []SpyMetricRecord
}

// NewMetricsCollectorSpy creates a new MetricsCollectorSpy.
func NewMetricsCollectorSpy() *MetricsCollectorSpy {
	return &MetricsCollectorSpy{}
}

// RecordDuration implements lending.MetricsCollector.
func (s *MetricsCollectorSpy) RecordDuration(metric string, duration time.Duration, labels map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.durations = append(s.durations, SpyMetricRecord{Metric: metric, Duration: duration, Labels: copyLabels(labels)})
}

// IncrementCounter implements lending.MetricsCollector.
func (s *MetricsCollectorSpy) IncrementCounter(metric string, labels map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counters = append(s.counters, SpyMetricRecord{Metric: metric, Value: 1, Labels: copyLabels(labels)})
}

// RecordValue implements lending.MetricsCollector.
func (s *MetricsCollectorSpy) RecordValue(metric string, value float64, labels map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values = append(s.values, SpyMetricRecord{Metric: metric, Value: value, Labels: copyLabels(labels)})
}

// RecordDurationContext implements lending.ContextualMetricsCollector.
func (s *MetricsCollectorSpy) RecordDurationContext(_ context.Context, metric string, duration time.Duration, labels map[string]string) {
	s.RecordDuration(metric, duration, labels)
}

// IncrementCounterContext implements lending.ContextualMetricsCollector.
func (s *MetricsCollectorSpy) IncrementCounterContext(_ context.Context, metric string, labels map[string]string) {
	s.IncrementCounter(metric, labels)
}

// RecordValueContext implements lending.ContextualMetricsCollector.
func (s *MetricsCollectorSpy) RecordValueContext(_ context.Context, metric string, value float64, labels map[string]string) {
	s.RecordValue(metric, value, labels)
}

// Durations returns copies of all duration records of metric.
func (s *MetricsCollectorSpy) Durations(metric string) []SpyMetricRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	return filterMetric(s.durations, metric)
}

// Counters returns copies of all counter increments of metric.
func (s *MetricsCollectorSpy) Counters(metric string) []SpyMetricRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	return filterMetric(s.counters, metric)
}

// Values returns copies of all value records of metric.
func (s *MetricsCollectorSpy) Values(metric string) []SpyMetricRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	return filterMetric(s.values, metric)
}

// CounterTotal sums the increments of metric whose labels contain every pair of match.
func (s *MetricsCollectorSpy) CounterTotal(metric string, match map[string]string) int {
	total := 0
	for _, r := range s.Counters(metric) {
		if labelsContain(r.Labels, match) {
			total++
		}
	}

	return total
}

// Reset clears all recorded metrics.
func (s *MetricsCollectorSpy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.durations, s.counters, s.values = nil, nil, nil
}

func filterMetric(records []SpyMetricRecord, metric string) []SpyMetricRecord {
	out := make([]SpyMetricRecord, 0)
	for _, r := range records {
		if r.Metric == metric {
			out = append(out, r)
		}
	}

	return out
}

func labelsContain(labels, match map[string]string) bool {
	for k, v := range match {
		if labels[k] != v {
			return false
		}
	}

	return true
}

func copyLabels(labels map[string]string) map[string]string {
	out := make(map[string]string, len(labels))
	for k, v := range labels {
		out[k] = v
	}

	return out
}

var _ lending.ContextualMetricsCollector = (*MetricsCollectorSpy)(nil)
