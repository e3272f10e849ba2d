package engine

import (
	"errors"
	"time"

	"github.com/librarydesk/lending-engine/lending"
)

var (
	// ErrNilClock is returned when a nil clock is provided to WithClock.
	ErrNilClock = errors.New("clock must not be nil")

	// ErrNilRecordIDGenerator is returned when a nil generator is provided to WithRecordIDGenerator.
	ErrNilRecordIDGenerator = errors.New("record id generator must not be nil")

	// ErrInvalidMaxAttempts is returned when max attempts are not positive.
	ErrInvalidMaxAttempts = errors.New("max attempts must be positive")

	// ErrNegativeBaseDelay is returned when the base delay is negative.
	ErrNegativeBaseDelay = errors.New("base delay must not be negative")
)

// Option defines a functional option for configuring Engine.
type Option func(*Engine) error

// WithPolicy sets the lending policy. The policy is validated.
func WithPolicy(policy lending.Policy) Option {
	return func(e *Engine) error {
		if err := policy.Validate(); err != nil {
			return err
		}

		e.policy = policy

		return nil
	}
}

// WithClock sets the source of "today". Only the calendar day of the returned time is used.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) error {
		if now == nil {
			return ErrNilClock
		}

		e.now = now

		return nil
	}
}

// WithRecordIDGenerator replaces the UUID generator used for new borrow records.
func WithRecordIDGenerator(generate func() string) Option {
	return func(e *Engine) error {
		if generate == nil {
			return ErrNilRecordIDGenerator
		}

		e.newRecordID = generate

		return nil
	}
}

// WithMaxAttempts sets how often a transaction that failed with a transient conflict is attempted.
// 1 disables retries.
func WithMaxAttempts(attempts int) Option {
	return func(e *Engine) error {
		if attempts <= 0 {
			return ErrInvalidMaxAttempts
		}

		e.retry.maxAttempts = attempts

		return nil
	}
}

// WithBaseDelay sets the base delay of the exponential backoff between attempts.
func WithBaseDelay(delay time.Duration) Option {
	return func(e *Engine) error {
		if delay < 0 {
			return ErrNegativeBaseDelay
		}

		e.retry.baseDelay = delay

		return nil
	}
}

// WithLogger sets the logger for the Engine.
//
// Info level: completed and rejected lending operations
// Warn level: transaction retries after transient conflicts
// Error level: persistence failures, including CommitError details.
func WithLogger(logger lending.Logger) Option {
	return func(e *Engine) error {
		e.logger = logger
		return nil
	}
}

// WithContextualLogger sets a context-aware logger. It takes precedence over WithLogger,
// which allows trace correlation of log records.
func WithContextualLogger(logger lending.ContextualLogger) Option {
	return func(e *Engine) error {
		e.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Engine.
// Collectors that also implement lending.ContextualMetricsCollector receive the request context.
func WithMetrics(collector lending.MetricsCollector) Option {
	return func(e *Engine) error {
		e.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the Engine. Every public operation gets one span.
func WithTracing(collector lending.TracingCollector) Option {
	return func(e *Engine) error {
		e.tracingCollector = collector
		return nil
	}
}
