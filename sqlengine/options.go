package sqlengine

import (
	"github.com/AntonStoeckl/model-history-go/history"
)

// Dialect selects the SQL flavor statements are built for.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite3"
)

// Option defines a functional option for configuring an Engine.
type Option func(*Engine) error

// WithDialect sets the SQL dialect, postgres is the default.
func WithDialect(dialect Dialect) Option {
	return func(e *Engine) error {
		switch dialect {
		case DialectPostgres, DialectSQLite:
			e.dialect = dialect
			return nil
		default:
			return ErrUnsupportedDialect
		}
	}
}

// WithLogger sets the logger for the Engine.
//
// Debug level: SQL statements with execution timing (development use)
// Info level: operation counts and durations (production-safe)
// Warn level: non-critical issues like cleanup failures
// Error level: failures that cause operation failures.
func WithLogger(logger history.Logger) Option {
	return func(e *Engine) error {
		e.logger = logger
		return nil
	}
}

// WithContextualLogger sets a context-aware logger, it takes precedence over WithLogger.
func WithContextualLogger(logger history.ContextualLogger) Option {
	return func(e *Engine) error {
		e.contextualLogger = logger
		return nil
	}
}
