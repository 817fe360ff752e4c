package adapters

import (
	"context"
	"database/sql"
	"errors"
)

// ErrLastInsertIDUnsupported is returned by drivers that only report generated keys through RETURNING.
var ErrLastInsertIDUnsupported = errors.New("last insert id is not supported by this driver")

// Querier runs statements with bind arguments.
type Querier interface {
	Query(ctx context.Context, query string, args ...any) (DBRows, error)
	Exec(ctx context.Context, query string, args ...any) (DBResult, error)
}

// DBAdapter defines the interface for database operations needed by the engine.
type DBAdapter interface {
	Querier
	Begin(ctx context.Context) (DBTx, error)
}

// DBTx is an open database transaction.
type DBTx interface {
	Querier
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// DBRows defines the interface for query result rows.
type DBRows interface {
	Next() bool
	Columns() []string
	Values() ([]any, error)
	Err() error
	Close() error
}

// DBResult defines the interface for execution results.
type DBResult interface {
	RowsAffected() (int64, error)
	LastInsertId() (int64, error)
}

// stdRows wraps standard library sql.Rows to implement DBRows interface.
type stdRows struct {
	rows    *sql.Rows
	columns []string
}

func newStdRows(rows *sql.Rows) (*stdRows, error) {
	columns, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		return nil, err
	}

	return &stdRows{rows: rows, columns: columns}, nil
}

// Next advances to the next row.
func (s *stdRows) Next() bool {
	return s.rows.Next()
}

// Columns returns the column names of the result set.
func (s *stdRows) Columns() []string {
	return s.columns
}

// Values scans the current row into driver values.
func (s *stdRows) Values() ([]any, error) {
	values := make([]any, len(s.columns))
	dest := make([]any, len(s.columns))
	for i := range values {
		dest[i] = &values[i]
	}

	if err := s.rows.Scan(dest...); err != nil {
		return nil, err
	}

	return values, nil
}

// Err returns the error that ended the iteration, if any.
func (s *stdRows) Err() error {
	return s.rows.Err()
}

// Close closes the rows iterator.
func (s *stdRows) Close() error {
	return s.rows.Close()
}

// stdResult wraps standard library sql.Result to implement DBResult interface.
type stdResult struct {
	result sql.Result
}

// RowsAffected returns the number of rows affected by the command.
func (s *stdResult) RowsAffected() (int64, error) {
	return s.result.RowsAffected()
}

// LastInsertId returns the rowid of the last inserted row.
func (s *stdResult) LastInsertId() (int64, error) {
	return s.result.LastInsertId()
}
