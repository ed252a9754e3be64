package postgresengine

import (
	"context"
	"time"
)

// Metric names for store instrumentation.
const (
	metricLoadSnapshotDuration  = "librarystore_load_snapshot_duration_seconds"
	metricApplyTransferDuration = "librarystore_apply_transfer_duration_seconds"
	metricTransferConflicts     = "librarystore_transfer_conflicts_total"
	metricDatabaseErrors        = "librarystore_database_errors_total"
)

// Span names for store operations.
const (
	spanLoadSnapshot  = "librarystore.load_snapshot"
	spanApplyTransfer = "librarystore.apply_transfer"
	spanAddBooks      = "librarystore.add_books"
)

// Status label values shared by metrics and spans.
const (
	statusSuccess  = "success"
	statusError    = "error"
	statusConflict = "conflict"

	labelStatus = "status"
)

// toMilliseconds converts a duration to fractional milliseconds for logging.
func toMilliseconds(duration time.Duration) float64 {
	return float64(duration.Nanoseconds()) / 1e6
}

// logQueryWithDuration logs SQL queries at debug level with execution timing.
// The contextual logger wins when both are configured, so trace correlation
// is never lost by accident.
func (s Store) logQueryWithDuration(ctx context.Context, query string, action string, duration time.Duration) {
	switch {
	case s.contextualLogger != nil:
		s.contextualLogger.DebugContext(ctx, logMsgSQLExecuted+action,
			logAttrQuery, query,
			logAttrDurationMS, toMilliseconds(duration))

	case s.logger != nil:
		s.logger.Debug(logMsgSQLExecuted+action,
			logAttrQuery, query,
			logAttrDurationMS, toMilliseconds(duration))
	}
}

// logOperation logs operational events at info level.
func (s Store) logOperation(ctx context.Context, msg string, args ...any) {
	switch {
	case s.contextualLogger != nil:
		s.contextualLogger.InfoContext(ctx, logMsgOperation+msg, args...)

	case s.logger != nil:
		s.logger.Info(logMsgOperation+msg, args...)
	}
}

// logError logs failures at error level, appending the error itself to the
// supplied attributes.
func (s Store) logError(ctx context.Context, msg string, err error, args ...any) {
	args = append(args, logAttrError, err.Error())

	switch {
	case s.contextualLogger != nil:
		s.contextualLogger.ErrorContext(ctx, msg, args...)

	case s.logger != nil:
		s.logger.Error(msg, args...)
	}
}

// recordDuration records an operation duration with a status label.
// A context-aware collector wins, so durations correlate with active spans.
func (s Store) recordDuration(ctx context.Context, metric string, duration time.Duration, status string) {
	if s.metricsCollector == nil {
		return
	}

	labels := map[string]string{labelStatus: status}

	if contextual, ok := s.metricsCollector.(ContextualMetricsCollector); ok {
		contextual.RecordDurationContext(ctx, metric, duration, labels)
		return
	}

	s.metricsCollector.RecordDuration(metric, duration, labels)
}

// recordCounter increments an operation counter with a status label.
func (s Store) recordCounter(ctx context.Context, metric string, status string) {
	if s.metricsCollector == nil {
		return
	}

	labels := map[string]string{labelStatus: status}

	if contextual, ok := s.metricsCollector.(ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(ctx, metric, labels)
		return
	}

	s.metricsCollector.IncrementCounter(metric, labels)
}

// startSpan starts a tracing span when a tracing collector is configured.
// A nil SpanContext is safe to pass to finishSpan.
func (s Store) startSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, SpanContext) {
	if s.tracingCollector == nil {
		return ctx, nil
	}

	return s.tracingCollector.StartSpan(ctx, name, attrs)
}

// finishSpan finishes a tracing span with the given status.
func (s Store) finishSpan(span SpanContext, status string) {
	if s.tracingCollector == nil || span == nil {
		return
	}

	s.tracingCollector.FinishSpan(span, status, nil)
}
