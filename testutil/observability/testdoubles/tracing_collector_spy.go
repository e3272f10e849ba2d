package testdoubles

import (
	"context"
	"sync"

	"github.com/librarydesk/lending-engine/lending"
)

// SpySpanRecord represents a started span and, once finished, its final status and attributes.
type SpySpanRecord struct {
	Name     string
	Attrs    map[string]string
	Status   string
	Finished bool
}

// TracingCollectorSpy captures spans. It implements lending.TracingCollector.
type TracingCollectorSpy struct {
	mu    sync.Mutex
	spans []*SpySpanRecord
}

// NewTracingCollectorSpy creates a new TracingCollectorSpy.
func NewTracingCollectorSpy() *TracingCollectorSpy {
	return &TracingCollectorSpy{}
}

type spySpan struct {
	spy    *TracingCollectorSpy
	record *SpySpanRecord
}

func (s spySpan) SetStatus(status string) {
	s.spy.mu.Lock()
	defer s.spy.mu.Unlock()

	s.record.Status = status
}

func (s spySpan) AddAttribute(key, value string) {
	s.spy.mu.Lock()
	defer s.spy.mu.Unlock()

	s.record.Attrs[key] = value
}

// StartSpan implements lending.TracingCollector.
func (s *TracingCollectorSpy) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, lending.SpanContext) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := &SpySpanRecord{Name: name, Attrs: copyLabels(attrs)}
	s.spans = append(s.spans, record)

	return ctx, spySpan{spy: s, record: record}
}

// FinishSpan implements lending.TracingCollector.
func (s *TracingCollectorSpy) FinishSpan(spanCtx lending.SpanContext, status string, attrs map[string]string) {
	span, ok := spanCtx.(spySpan)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	span.record.Status = status
	span.record.Finished = true
	for k, v := range attrs {
		span.record.Attrs[k] = v
	}
}

// Spans returns copies of all spans with the given name, or every span when name is "".
func (s *TracingCollectorSpy) Spans(name string) []SpySpanRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]SpySpanRecord, 0, len(s.spans))
	for _, span := range s.spans {
		if name == "" || span.Name == name {
			cp := *span
			cp.Attrs = copyLabels(span.Attrs)
			out = append(out, cp)
		}
	}

	return out
}

var _ lending.TracingCollector = (*TracingCollectorSpy)(nil)
