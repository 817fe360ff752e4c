package sqlengine

import (
	"errors"
)

var (
	// ErrNilDatabaseConnection is returned when an engine is created without a connection.
	ErrNilDatabaseConnection = errors.New("database connection must not be nil")

	// ErrUnsupportedDialect is returned for dialects other than postgres and sqlite3.
	ErrUnsupportedDialect = errors.New("unsupported sql dialect")

	// ErrInvalidModelDefinition is returned when a model definition lacks a name or fields.
	ErrInvalidModelDefinition = errors.New("invalid model definition")

	// ErrDuplicateModel is returned when a model name is defined twice on one engine.
	ErrDuplicateModel = errors.New("model already defined")

	// ErrSchemaUnsupported is returned when a schema is requested on a dialect without schemas.
	ErrSchemaUnsupported = errors.New("schemas are not supported by this dialect")

	// ErrUnknownModel is returned when a model name is not defined on the engine.
	ErrUnknownModel = errors.New("unknown model")

	// ErrUnknownField is returned when a filter or record names a field the model does not have.
	ErrUnknownField = errors.New("unknown field")

	// ErrUnknownScope is returned when a query names a scope the model does not have.
	ErrUnknownScope = errors.New("unknown scope")

	// ErrValidationFailed is returned when a field validator rejects a value.
	ErrValidationFailed = errors.New("field validation failed")

	// ErrMissingPrimaryKey is returned when a single-row operation gets no primary key value.
	ErrMissingPrimaryKey = errors.New("primary key value missing")

	// ErrCompositePrimaryKey is returned by FindByPK on models with more than one key field.
	ErrCompositePrimaryKey = errors.New("model has a composite primary key")

	// ErrNotFound is returned when a single-row operation matches no row.
	ErrNotFound = errors.New("record not found")

	// ErrForeignTransaction is returned when a transaction of another engine is passed in.
	ErrForeignTransaction = errors.New("transaction belongs to another session")

	// ErrTransactionDone is returned when a committed or rolled back transaction is used.
	ErrTransactionDone = errors.New("transaction has already been committed or rolled back")

	// ErrBuildingQueryFailed is returned when goqu refuses to build a statement.
	ErrBuildingQueryFailed = errors.New("building sql statement failed")

	// ErrQueryingFailed is returned when a select statement fails.
	ErrQueryingFailed = errors.New("querying records failed")

	// ErrWritingFailed is returned when an insert, update or delete statement fails.
	ErrWritingFailed = errors.New("writing records failed")

	// ErrScanningRowFailed is returned when a result row cannot be read.
	ErrScanningRowFailed = errors.New("scanning database row failed")

	// ErrEncodingValueFailed is returned when a field value cannot be converted for storage.
	ErrEncodingValueFailed = errors.New("encoding field value failed")

	// ErrDecodingValueFailed is returned when a stored value cannot be converted for a field.
	ErrDecodingValueFailed = errors.New("decoding field value failed")

	// ErrSyncFailed is returned when creating schemas or tables fails.
	ErrSyncFailed = errors.New("synchronizing tables failed")
)
