package postgresengine

import (
	"github.com/shelfbalance/stock-rebalancer-go/rebalance"
)

// The store consumes the observability interfaces of the rebalance package,
// so one adapter implementation (e.g. rebalance/oteladapters) serves the
// planner, the executor, and this store alike. The aliases keep the store's
// option signatures readable without forking the interface types.
type (
	Logger                     = rebalance.Logger
	MetricsCollector           = rebalance.MetricsCollector
	ContextualMetricsCollector = rebalance.ContextualMetricsCollector
	SpanContext                = rebalance.SpanContext
	TracingCollector           = rebalance.TracingCollector
	ContextualLogger           = rebalance.ContextualLogger
)

// Option defines a functional option for configuring the Store.
type Option func(*Store) error

// WithTableName sets the table name for the Store.
func WithTableName(tableName string) Option {
	return func(s *Store) error {
		if tableName == "" {
			return rebalance.ErrEmptyTableNameSupplied
		}

		s.tableName = tableName

		return nil
	}
}

// WithLogger sets the logger for the Store.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: SQL queries with execution timing (development use)
// Info level: row counts, durations, transfer conflicts (production-safe)
// Warn level: non-critical issues like cleanup failures
// Error level: critical failures that cause operation failures.
func WithLogger(logger Logger) Option {
	return func(s *Store) error {
		s.logger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Store.
// The metrics collector will receive performance and operational metrics including
// read/write durations, row counts, transfer conflicts, and database errors.
func WithMetrics(collector MetricsCollector) Option {
	return func(s *Store) error {
		s.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the Store.
// The tracing collector will receive distributed tracing information including
// span creation for read/write operations, context propagation, and error tracking.
func WithTracing(collector TracingCollector) Option {
	return func(s *Store) error {
		s.tracingCollector = collector
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the Store.
// The contextual logger will receive log messages with context information including
// automatic trace/span correlation when tracing is enabled, enabling unified observability.
func WithContextualLogger(logger ContextualLogger) Option {
	return func(s *Store) error {
		s.contextualLogger = logger
		return nil
	}
}
