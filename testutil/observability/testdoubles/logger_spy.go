package testdoubles

import (
	"context"
	"fmt"
	"sync"

	"github.com/librarydesk/lending-engine/lending"
)

// Log levels as recorded by LoggerSpy.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// SpyLogRecord represents a recorded log call.
type SpyLogRecord struct {
	Level   string
	Message string
	Args    []any
	Context context.Context // nil for calls through the plain Logger methods
}

// Attr returns the value logged under key, if any.
func (r SpyLogRecord) Attr(key string) (any, bool) {
	for i := 0; i+1 < len(r.Args); i += 2 {
		if k, ok := r.Args[i].(string); ok && k == key {
			return r.Args[i+1], true
		}
	}

	return nil, false
}

// AttrString returns the value logged under key formatted with %v, or "" when absent.
func (r SpyLogRecord) AttrString(key string) string {
	v, ok := r.Attr(key)
	if !ok {
		return ""
	}

	return fmt.Sprintf("%v", v)
}

// LoggerSpy captures logging calls. It implements both lending.Logger and lending.ContextualLogger.
type LoggerSpy struct {
	mu      sync.Mutex
	records []SpyLogRecord
}

// NewLoggerSpy creates a new LoggerSpy.
func NewLoggerSpy() *LoggerSpy {
	return &LoggerSpy{}
}

func (s *LoggerSpy) record(r SpyLogRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, r)
}

// Debug implements lending.Logger.
func (s *LoggerSpy) Debug(msg string, args ...any) {
	s.record(SpyLogRecord{Level: LevelDebug, Message: msg, Args: args})
}

// Info implements lending.Logger.
func (s *LoggerSpy) Info(msg string, args ...any) {
	s.record(SpyLogRecord{Level: LevelInfo, Message: msg, Args: args})
}

// Warn implements lending.Logger.
func (s *LoggerSpy) Warn(msg string, args ...any) {
	s.record(SpyLogRecord{Level: LevelWarn, Message: msg, Args: args})
}

// Error implements lending.Logger.
func (s *LoggerSpy) Error(msg string, args ...any) {
	s.record(SpyLogRecord{Level: LevelError, Message: msg, Args: args})
}

// DebugContext implements lending.ContextualLogger.
func (s *LoggerSpy) DebugContext(ctx context.Context, msg string, args ...any) {
	s.record(SpyLogRecord{Level: LevelDebug, Message: msg, Args: args, Context: ctx})
}

// InfoContext implements lending.ContextualLogger.
func (s *LoggerSpy) InfoContext(ctx context.Context, msg string, args ...any) {
	s.record(SpyLogRecord{Level: LevelInfo, Message: msg, Args: args, Context: ctx})
}

// WarnContext implements lending.ContextualLogger.
func (s *LoggerSpy) WarnContext(ctx context.Context, msg string, args ...any) {
	s.record(SpyLogRecord{Level: LevelWarn, Message: msg, Args: args, Context: ctx})
}

// ErrorContext implements lending.ContextualLogger.
func (s *LoggerSpy) ErrorContext(ctx context.Context, msg string, args ...any) {
	s.record(SpyLogRecord{Level: LevelError, Message: msg, Args: args, Context: ctx})
}

// Reset clears all recorded log calls.
func (s *LoggerSpy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil
}

// Records returns a copy of all records of the given level, or of every level when level is "".
func (s *LoggerSpy) Records(level string) []SpyLogRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]SpyLogRecord, 0, len(s.records))
	for _, r := range s.records {
		if level == "" || r.Level == level {
			out = append(out, r)
		}
	}

	return out
}

// Find returns the first record with the given level and message.
func (s *LoggerSpy) Find(level, message string) (SpyLogRecord, bool) {
	for _, r := range s.Records(level) {
		if r.Message == message {
			return r, true
		}
	}

	return SpyLogRecord{}, false
}

// HasLog checks if a record with the given level and message exists.
func (s *LoggerSpy) HasLog(level, message string) bool {
	_, ok := s.Find(level, message)
	return ok
}

// Compile-time checks.
var (
	_ lending.Logger           = (*LoggerSpy)(nil)
	_ lending.ContextualLogger = (*LoggerSpy)(nil)
)
