package engine

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/librarydesk/lending-engine/lending"
)

// Operation names, used in span names, metric labels and log records.
const (
	operationBorrow           = "borrow"
	operationReturn           = "return"
	operationAddBook          = "add_book"
	operationUpdateBook       = "update_book_details"
	operationAdjustCopies     = "adjust_copies"
	operationRetireBook       = "retire_book"
	operationRegisterMember   = "register_member"
	operationUpdateMember     = "update_member_details"
	operationRenewMembership  = "renew_membership"
	operationDeactivateMember = "deactivate_member"
)

const (
	// metricOperationDuration tracks lending operation duration (OpenTelemetry-compatible).
	metricOperationDuration = "lending_operation_duration_seconds"
	// metricOperationsTotal counts lending operations by operation and status.
	metricOperationsTotal = "lending_operations_total"
	// metricCommitFailures counts CommitErrors by operation, failed step and rollback state.
	metricCommitFailures = "lending_commit_failures_total"
	// metricFineAmount records the fine frozen by each return, in currency units.
	metricFineAmount = "lending_fine_amount"
	// metricTransactionRetries counts transaction retries after transient conflicts.
	metricTransactionRetries = "lending_transaction_retries_total"
	// metricRetryDelay tracks the backoff delay before each retry.
	metricRetryDelay = "lending_transaction_retry_delay_seconds"
	// metricRetriesExhausted counts operations that ran out of attempts.
	metricRetriesExhausted = "lending_transaction_retries_exhausted_total"

	labelOperation     = "operation"
	labelStatus        = "status"
	labelErrorKind     = "error_kind"
	labelFailedStep    = "failed_step"
	labelRolledBack    = "rolled_back"
	labelAttemptNumber = "attempt_number"

	// statusSuccess indicates the operation changed state as requested.
	statusSuccess = "success"
	// statusRejected indicates a business rule or input check refused the operation. Nothing was written.
	statusRejected = "rejected"
	// statusError indicates a persistence or infrastructure failure.
	statusError = "error"

	spanNamePrefix = "lending."

	spanAttrOperation  = "operation"
	spanAttrMemberID   = "member_id"
	spanAttrISBN       = "isbn"
	spanAttrRecordID   = "record_id"
	spanAttrErrorKind  = "error_kind"
	spanAttrDurationMS = "duration_ms"

	logMsgOperationCompleted = "lending operation completed"
	logMsgOperationRejected  = "lending operation rejected"
	logMsgOperationFailed    = "lending operation failed"
	logMsgCommitFailed       = "lending commit failed"
	logMsgRetrying           = "retrying lending transaction after transient conflict"
	logMsgStatsComputed      = "membership type stats computed"

	logAttrOperation  = "operation"
	logAttrStatus     = "status"
	logAttrDurationMS = "duration_ms"
	logAttrErrorKind  = "error_kind"
	logAttrError      = "error"
	logAttrRecordID   = "record_id"
	logAttrMemberID   = "member_id"
	logAttrISBN       = "isbn"
	logAttrCompleted  = "completed_steps"
	logAttrFailedStep = "failed_step"
	logAttrRolledBack = "rolled_back"
	logAttrAttempt    = "attempt"
	logAttrDelayMS    = "delay_ms"
	logAttrFine       = "fine"
	logAttrMembers    = "members"
)

// observation tracks one public engine operation from start to finish.
type observation struct {
	operation string
	start     time.Time
	span      lending.SpanContext
	keys      []any
}

// begin starts the span of an operation. keys are span attribute and log attribute pairs.
func (e *Engine) begin(ctx context.Context, operation string, keys ...string) (context.Context, *observation) {
	obs := &observation{operation: operation, start: time.Now()}

	attrs := map[string]string{spanAttrOperation: operation}
	for i := 0; i+1 < len(keys); i += 2 {
		attrs[keys[i]] = keys[i+1]
		obs.keys = append(obs.keys, keys[i], keys[i+1])
	}

	if e.tracingCollector != nil {
		ctx, obs.span = e.tracingCollector.StartSpan(ctx, spanNamePrefix+operation, attrs)
	}

	return ctx, obs
}

// end records metrics, finishes the span and logs the outcome of an operation.
func (e *Engine) end(ctx context.Context, obs *observation, err error, extra ...any) {
	duration := time.Since(obs.start)
	status := classify(err)
	kind := string(lending.KindOf(err))

	labels := map[string]string{labelOperation: obs.operation, labelStatus: status}
	if err != nil {
		labels[labelErrorKind] = kind
	}

	e.recordDuration(ctx, metricOperationDuration, duration, labels)
	e.incrementCounter(ctx, metricOperationsTotal, labels)

	if obs.span != nil {
		spanAttrs := map[string]string{spanAttrDurationMS: formatMilliseconds(duration)}
		if err != nil {
			spanAttrs[spanAttrErrorKind] = kind
		}
		e.tracingCollector.FinishSpan(obs.span, status, spanAttrs)
	}

	args := append([]any{logAttrOperation, obs.operation, logAttrStatus, status, logAttrDurationMS, toMilliseconds(duration)}, obs.keys...)
	args = append(args, extra...)

	switch status {
	case statusSuccess:
		e.logInfo(ctx, logMsgOperationCompleted, args...)
	case statusRejected:
		e.logInfo(ctx, logMsgOperationRejected, append(args, logAttrErrorKind, kind, logAttrError, err.Error())...)
	default:
		e.logError(ctx, logMsgOperationFailed, append(args, logAttrErrorKind, kind, logAttrError, err.Error())...)
		e.reportCommitError(ctx, err)
	}
}

func (e *Engine) reportCommitError(ctx context.Context, err error) {
	var commitErr *lending.CommitError
	if !errors.As(err, &commitErr) {
		return
	}

	completed := make([]string, 0, len(commitErr.Completed))
	for _, step := range commitErr.Completed {
		completed = append(completed, string(step))
	}

	e.incrementCounter(ctx, metricCommitFailures, map[string]string{
		labelOperation:  commitErr.Operation,
		labelFailedStep: string(commitErr.Failed),
		labelRolledBack: boolString(commitErr.RolledBack),
	})

	e.logError(ctx, logMsgCommitFailed,
		logAttrOperation, commitErr.Operation,
		logAttrRecordID, commitErr.RecordID,
		logAttrMemberID, commitErr.MemberID,
		logAttrISBN, commitErr.ISBN,
		logAttrCompleted, strings.Join(completed, ","),
		logAttrFailedStep, string(commitErr.Failed),
		logAttrRolledBack, commitErr.RolledBack,
		logAttrError, commitErr.Err.Error())
}

func classify(err error) string {
	switch lending.KindOf(err) {
	case lending.KindNone:
		return statusSuccess
	case lending.KindNotFound, lending.KindDuplicateKey, lending.KindMemberIneligible,
		lending.KindBookUnavailable, lending.KindAlreadyReturned, lending.KindInvalidInput:
		return statusRejected
	default:
		return statusError
	}
}

func (e *Engine) logDebug(ctx context.Context, msg string, args ...any) {
	if e.contextualLogger != nil {
		e.contextualLogger.DebugContext(ctx, msg, args...)
	} else if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}

func (e *Engine) logInfo(ctx context.Context, msg string, args ...any) {
	if e.contextualLogger != nil {
		e.contextualLogger.InfoContext(ctx, msg, args...)
	} else if e.logger != nil {
		e.logger.Info(msg, args...)
	}
}

func (e *Engine) logWarn(ctx context.Context, msg string, args ...any) {
	if e.contextualLogger != nil {
		e.contextualLogger.WarnContext(ctx, msg, args...)
	} else if e.logger != nil {
		e.logger.Warn(msg, args...)
	}
}

func (e *Engine) logError(ctx context.Context, msg string, args ...any) {
	if e.contextualLogger != nil {
		e.contextualLogger.ErrorContext(ctx, msg, args...)
	} else if e.logger != nil {
		e.logger.Error(msg, args...)
	}
}

func (e *Engine) recordDuration(ctx context.Context, metric string, d time.Duration, labels map[string]string) {
	if e.metricsCollector == nil {
		return
	}

	if contextual, ok := e.metricsCollector.(lending.ContextualMetricsCollector); ok {
		contextual.RecordDurationContext(ctx, metric, d, labels)
	} else {
		e.metricsCollector.RecordDuration(metric, d, labels)
	}
}

func (e *Engine) incrementCounter(ctx context.Context, metric string, labels map[string]string) {
	if e.metricsCollector == nil {
		return
	}

	if contextual, ok := e.metricsCollector.(lending.ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(ctx, metric, labels)
	} else {
		e.metricsCollector.IncrementCounter(metric, labels)
	}
}

func (e *Engine) recordValue(ctx context.Context, metric string, value float64, labels map[string]string) {
	if e.metricsCollector == nil {
		return
	}

	if contextual, ok := e.metricsCollector.(lending.ContextualMetricsCollector); ok {
		contextual.RecordValueContext(ctx, metric, value, labels)
	} else {
		e.metricsCollector.RecordValue(metric, value, labels)
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

func formatMilliseconds(d time.Duration) string {
	return strconv.FormatFloat(toMilliseconds(d), 'f', 3, 64)
}

func boolString(b bool) string {
	return strconv.FormatBool(b)
}
