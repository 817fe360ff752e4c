package sqlengine

import (
	"context"
	"math"
	"time"

	"github.com/AntonStoeckl/model-history-go/sqlengine/internal/adapters"
)

const (
	logMsgModelDefined      = "sqlengine operation: model defined"
	logMsgTableSynced       = "sqlengine operation: table synced"
	logMsgTableDropped      = "sqlengine operation: table dropped"
	logMsgQueryCompleted    = "sqlengine operation: query completed"
	logMsgRowsWritten       = "sqlengine operation: rows written for: "
	logMsgSQLExecuted       = "executed sql for: "
	logMsgBuildSelectFailed = "failed to build select query"
	logMsgBuildInsertFailed = "failed to build insert query"
	logMsgBuildUpdateFailed = "failed to build update query"
	logMsgBuildDeleteFailed = "failed to build delete query"
	logMsgDBQueryFailed     = "database query execution failed"
	logMsgDBExecFailed      = "database statement execution failed"
	logMsgCloseRowsFailed   = "failed to close database rows"
	logMsgBeginFailed       = "failed to begin transaction"
	logMsgCommitFailed      = "failed to commit transaction"
	logMsgRollbackFailed    = "failed to roll back transaction"
	logMsgSyncFailed        = "failed to sync table"
	logAttrError            = "error"
	logAttrQuery            = "query"
	logAttrModel            = "model"
	logAttrTable            = "table"
	logAttrRowCount         = "row_count"
	logAttrDurationMS       = "duration_ms"
	logActionSelect         = "select"
	logActionCreate         = "create"
	logActionBulkCreate     = "bulk_create"
	logActionUpdate         = "update"
	logActionBulkUpdate     = "bulk_update"
	logActionDestroy        = "destroy"
	logActionDDL            = "ddl"
)

// logQueryWithDuration logs SQL statements with execution time at debug level if a logger is configured.
func (e *Engine) logQueryWithDuration(ctx context.Context, sqlQuery string, action string, duration time.Duration) {
	if e.contextualLogger != nil {
		e.contextualLogger.DebugContext(ctx, logMsgSQLExecuted+action,
			logAttrDurationMS, toMilliseconds(duration), logAttrQuery, sqlQuery)
		return
	}

	if e.logger != nil {
		e.logger.Debug(logMsgSQLExecuted+action, logAttrDurationMS, toMilliseconds(duration), logAttrQuery, sqlQuery)
	}
}

// logOperation logs operational information at info level if a logger is configured.
func (e *Engine) logOperation(ctx context.Context, message string, args ...any) {
	if e.contextualLogger != nil {
		e.contextualLogger.InfoContext(ctx, message, args...)
		return
	}

	if e.logger != nil {
		e.logger.Info(message, args...)
	}
}

// logWarn logs non-critical issues at warn level if a logger is configured.
func (e *Engine) logWarn(ctx context.Context, message string, args ...any) {
	if e.contextualLogger != nil {
		e.contextualLogger.WarnContext(ctx, message, args...)
		return
	}

	if e.logger != nil {
		e.logger.Warn(message, args...)
	}
}

// logError logs error information at the error level if a logger is configured.
func (e *Engine) logError(ctx context.Context, message string, err error, args ...any) {
	allArgs := []any{logAttrError, err.Error()}
	allArgs = append(allArgs, args...)

	if e.contextualLogger != nil {
		e.contextualLogger.ErrorContext(ctx, message, allArgs...)
		return
	}

	if e.logger != nil {
		e.logger.Error(message, allArgs...)
	}
}

// closeRows safely closes database rows and logs any errors.
func (e *Engine) closeRows(ctx context.Context, rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		e.logWarn(ctx, logMsgCloseRowsFailed, logAttrError, closeErr.Error())
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
