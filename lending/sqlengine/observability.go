package sqlengine

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/librarydesk/lending-engine/lending"
	"github.com/librarydesk/lending-engine/lending/sqlengine/internal/adapters"
)

const (
	metricStatementDuration   = "sqlengine_statement_duration_seconds"
	metricTransactionDuration = "sqlengine_transaction_duration_seconds"
	metricTransactionsTotal   = "sqlengine_transactions_total"
	metricErrorsTotal         = "sqlengine_errors_total"

	labelAction    = "action"
	labelStatus    = "status"
	labelErrorKind = "error_kind"

	statusCommitted  = "committed"
	statusRolledBack = "rolled_back"
	statusError      = "error"
	statusSuccess    = "success"

	spanNameTransaction = "sqlengine.transaction"
	spanAttrDialect     = "db.system"
	spanAttrDurationMS  = "duration_ms"
	spanAttrErrorKind   = "error_kind"

	logMsgSQLExecuted     = "executed sql for: "
	logMsgBuildFailed     = "failed to build sql statement"
	logMsgQueryFailed     = "database query execution failed"
	logMsgExecFailed      = "database statement execution failed"
	logMsgScanFailed      = "failed to scan database row"
	logMsgCloseRowsFailed = "failed to close database rows"
	logMsgBeginFailed     = "failed to begin transaction"
	logMsgCommitFailed    = "failed to commit transaction"
	logMsgRollbackFailed  = "failed to roll back transaction"
	logMsgMigrated        = "schema migrated"

	logAttrError      = "error"
	logAttrQuery      = "query"
	logAttrDurationMS = "duration_ms"
	logAttrDialect    = "dialect"
	logAttrStatements = "statements"

	logActionQuery = "query"
	logActionExec  = "exec"
)

func (s *Store) logQueryWithDuration(ctx context.Context, sqlQuery, action string, duration time.Duration) {
	s.logDebug(ctx, logMsgSQLExecuted+action, logAttrDurationMS, toMilliseconds(duration), logAttrQuery, sqlQuery)
	s.recordDuration(ctx, metricStatementDuration, duration, map[string]string{labelAction: action})
}

// failed maps a driver error, logs it with the statement that caused it and counts it.
func (s *Store) failed(ctx context.Context, msg, sqlQuery string, err error) error {
	mapped := mapError(err)

	args := []any{logAttrError, err.Error()}
	if sqlQuery != "" {
		args = append(args, logAttrQuery, sqlQuery)
	}

	// Duplicate keys are an expected outcome of concurrent creates, not a database failure.
	if lending.KindOf(mapped) == lending.KindPersistenceFailure {
		s.logError(ctx, msg, args...)
	} else {
		s.logDebug(ctx, msg, args...)
	}

	s.incrementCounter(ctx, metricErrorsTotal, map[string]string{labelErrorKind: string(lending.KindOf(mapped))})

	return mapped
}

func (s *Store) closeRows(ctx context.Context, rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		s.logWarn(ctx, logMsgCloseRowsFailed, logAttrError, closeErr.Error())
	}
}

func (s *Store) recordTransaction(ctx context.Context, status string, duration time.Duration) {
	labels := map[string]string{labelStatus: status}
	s.recordDuration(ctx, metricTransactionDuration, duration, labels)
	s.incrementCounter(ctx, metricTransactionsTotal, labels)
}

func (s *Store) startSpan(ctx context.Context, name string) (context.Context, lending.SpanContext) {
	if s.tracingCollector == nil {
		return ctx, nil
	}

	return s.tracingCollector.StartSpan(ctx, name, map[string]string{spanAttrDialect: s.dialectName})
}

func (s *Store) finishSpan(span lending.SpanContext, err error, start time.Time) {
	if span == nil {
		return
	}

	attrs := map[string]string{
		spanAttrDurationMS: strconv.FormatFloat(toMilliseconds(time.Since(start)), 'f', 3, 64),
	}

	status := statusSuccess
	if err != nil {
		status = statusError
		attrs[spanAttrErrorKind] = string(lending.KindOf(err))
	}

	s.tracingCollector.FinishSpan(span, status, attrs)
}

func (s *Store) logDebug(ctx context.Context, msg string, args ...any) {
	if s.contextualLogger != nil {
		s.contextualLogger.DebugContext(ctx, msg, args...)
	} else if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *Store) logInfo(ctx context.Context, msg string, args ...any) {
	if s.contextualLogger != nil {
		s.contextualLogger.InfoContext(ctx, msg, args...)
	} else if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}

func (s *Store) logWarn(ctx context.Context, msg string, args ...any) {
	if s.contextualLogger != nil {
		s.contextualLogger.WarnContext(ctx, msg, args...)
	} else if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}

func (s *Store) logError(ctx context.Context, msg string, args ...any) {
	if s.contextualLogger != nil {
		s.contextualLogger.ErrorContext(ctx, msg, args...)
	} else if s.logger != nil {
		s.logger.Error(msg, args...)
	}
}

func (s *Store) recordDuration(ctx context.Context, metric string, d time.Duration, labels map[string]string) {
	if s.metricsCollector == nil {
		return
	}

	if contextual, ok := s.metricsCollector.(lending.ContextualMetricsCollector); ok {
		contextual.RecordDurationContext(ctx, metric, d, labels)
	} else {
		s.metricsCollector.RecordDuration(metric, d, labels)
	}
}

func (s *Store) incrementCounter(ctx context.Context, metric string, labels map[string]string) {
	if s.metricsCollector == nil {
		return
	}

	if contextual, ok := s.metricsCollector.(lending.ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(ctx, metric, labels)
	} else {
		s.metricsCollector.IncrementCounter(metric, labels)
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
