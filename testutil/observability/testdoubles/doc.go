// Package testdoubles provides spies for the lending observability interfaces.
//
//   - LoggerSpy: captures Logger and ContextualLogger calls
//   - MetricsCollectorSpy: captures durations, counters and values
//   - TracingCollectorSpy: captures started and finished spans
//
// The spies are safe for concurrent use so they can observe engines under parallel load.
package testdoubles
