package history

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"
)

const (
	logMsgModelTracked      = "history operation: model tracked"
	logMsgHookInstalled     = "history hook installed"
	logMsgRowsWritten       = "history operation: rows written"
	logMsgEventSuppressed   = "history event suppressed by audit condition"
	logMsgPersistFailed     = "persisting history rows failed"
	logMsgUserFuncFailed    = "resolving acting user failed"
	logMsgPayloadFailed     = "normalizing hook payload failed"
	logMsgDefineFailed      = "defining history model failed"
	logMsgUnscopedVersions  = "tracked model has no primary key, instance versions are not scoped"
	logMsgCoveredByInstance = "bulk event covered by per-instance hooks"
	logAttrError            = "error"
	logAttrModel            = "model"
	logAttrHistoryModel     = "history_model"
	logAttrHistoryTable     = "history_table"
	logAttrFieldCount       = "field_count"
	logAttrHook             = "hook"
	logAttrEventKind        = "event_kind"
	logAttrRowCount         = "row_count"
	logAttrDurationMS       = "duration_ms"
	logAttrTransaction      = "in_transaction"
)

const (
	metricRowsWritten      = "history_write_rows"
	metricWriteDuration    = "history_write_duration_seconds"
	metricEventsSuppressed = "history_events_suppressed_total"
	metricWriteErrors      = "history_write_errors_total"
	spanNameWrite          = "history.write"
	spanAttrModel          = "history.model"
	spanAttrHook           = "history.hook"
	spanAttrEventKind      = "history.event_kind"
	spanAttrRowCount       = "history.row_count"
	spanAttrDurationMS     = "history.duration_ms"
	spanAttrErrorType      = "error_type"
	labelModel             = "model"
	labelEventKind         = "event_kind"
	labelStatus            = "status"
	labelErrorType         = "error_type"
	statusSuccess          = "success"
	statusError            = "error"
	errorTypeUserFunc      = "user_func"
	errorTypePayload       = "payload"
	errorTypePersist       = "persist"
)

// logDebug logs at debug level, preferring the contextual logger.
func (t *Tracker) logDebug(ctx context.Context, msg string, args ...any) {
	switch {
	case t.config.contextualLogger != nil:
		t.config.contextualLogger.DebugContext(ctx, msg, args...)
	case t.config.logger != nil:
		t.config.logger.Debug(msg, args...)
	}
}

// logOperation logs operational information at info level.
func (t *Tracker) logOperation(ctx context.Context, msg string, args ...any) {
	switch {
	case t.config.contextualLogger != nil:
		t.config.contextualLogger.InfoContext(ctx, msg, args...)
	case t.config.logger != nil:
		t.config.logger.Info(msg, args...)
	}
}

// logWarn logs non-critical issues at warn level.
func (t *Tracker) logWarn(ctx context.Context, msg string, args ...any) {
	switch {
	case t.config.contextualLogger != nil:
		t.config.contextualLogger.WarnContext(ctx, msg, args...)
	case t.config.logger != nil:
		t.config.logger.Warn(msg, args...)
	}
}

// logError logs error information at the error level.
func (t *Tracker) logError(ctx context.Context, msg string, err error, args ...any) {
	allArgs := []any{logAttrError, err.Error()}
	allArgs = append(allArgs, args...)

	switch {
	case t.config.contextualLogger != nil:
		t.config.contextualLogger.ErrorContext(ctx, msg, allArgs...)
	case t.config.logger != nil:
		t.config.logger.Error(msg, allArgs...)
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

func (t *Tracker) metricLabels(kind EventKind, status string) map[string]string {
	return map[string]string{
		labelModel:     t.model.Name(),
		labelEventKind: kind.String(),
		labelStatus:    status,
	}
}

func (t *Tracker) incrementCounter(ctx context.Context, metric string, labels map[string]string) {
	if t.config.metricsCollector == nil {
		return
	}

	if contextual, ok := t.config.metricsCollector.(ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(ctx, metric, labels)
		return
	}

	t.config.metricsCollector.IncrementCounter(metric, labels)
}

func (t *Tracker) recordDuration(ctx context.Context, metric string, duration time.Duration, labels map[string]string) {
	if t.config.metricsCollector == nil {
		return
	}

	if contextual, ok := t.config.metricsCollector.(ContextualMetricsCollector); ok {
		contextual.RecordDurationContext(ctx, metric, duration, labels)
		return
	}

	t.config.metricsCollector.RecordDuration(metric, duration, labels)
}

func (t *Tracker) recordValue(ctx context.Context, metric string, value float64, labels map[string]string) {
	if t.config.metricsCollector == nil {
		return
	}

	if contextual, ok := t.config.metricsCollector.(ContextualMetricsCollector); ok {
		contextual.RecordValueContext(ctx, metric, value, labels)
		return
	}

	t.config.metricsCollector.RecordValue(metric, value, labels)
}

// recordSuppressed counts an event the audit condition rejected.
func (t *Tracker) recordSuppressed(ctx context.Context, kind EventKind) {
	t.incrementCounter(ctx, metricEventsSuppressed, t.metricLabels(kind, statusSuccess))
}

// recordWriteSuccess records the metrics of a completed history write.
func (t *Tracker) recordWriteSuccess(ctx context.Context, kind EventKind, rows int, duration time.Duration) {
	labels := t.metricLabels(kind, statusSuccess)
	t.recordDuration(ctx, metricWriteDuration, duration, labels)
	t.recordValue(ctx, metricRowsWritten, float64(rows), labels)
}

// recordWriteError records the metrics of a failed history write.
func (t *Tracker) recordWriteError(ctx context.Context, kind EventKind, errorType string, duration time.Duration) {
	labels := t.metricLabels(kind, statusError)
	if duration > 0 {
		t.recordDuration(ctx, metricWriteDuration, duration, labels)
	}

	labels[labelErrorType] = errorType
	t.incrementCounter(ctx, metricWriteErrors, labels)
}

// writeTracingObserver encapsulates the span lifecycle of one history write.
type writeTracingObserver struct {
	t    *Tracker
	span SpanContext
}

// startWriteTracing starts a span for a history write if the tracing collector is configured.
func (t *Tracker) startWriteTracing(ctx context.Context, hook Hook, kind EventKind) (*writeTracingObserver, context.Context) {
	if t.config.tracingCollector == nil {
		return &writeTracingObserver{t: t}, ctx
	}

	newCtx, span := t.config.tracingCollector.StartSpan(ctx, spanNameWrite, map[string]string{
		spanAttrModel:     t.model.Name(),
		spanAttrHook:      string(hook),
		spanAttrEventKind: kind.String(),
	})

	return &writeTracingObserver{t: t, span: span}, newCtx
}

// finishSuccess completes the span of a successful write.
func (wto *writeTracingObserver) finishSuccess(rows int, duration time.Duration) {
	if wto.span == nil {
		return
	}

	wto.span.SetStatus(statusSuccess)
	wto.span.AddAttribute(spanAttrRowCount, strconv.Itoa(rows))
	wto.span.AddAttribute(spanAttrDurationMS, fmt.Sprintf("%.2f", toMilliseconds(duration)))

	wto.t.config.tracingCollector.FinishSpan(wto.span, statusSuccess, map[string]string{
		spanAttrRowCount: strconv.Itoa(rows),
	})
}

// finishError completes the span of a failed write.
func (wto *writeTracingObserver) finishError(errorType string) {
	if wto.span == nil {
		return
	}

	wto.span.SetStatus(statusError)
	wto.span.AddAttribute(spanAttrErrorType, errorType)

	wto.t.config.tracingCollector.FinishSpan(wto.span, statusError, map[string]string{
		spanAttrErrorType: errorType,
	})
}
