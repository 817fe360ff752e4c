package adapters

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// SQLXAdapter implements DBAdapter for sqlx.DB.
type SQLXAdapter struct {
	db *sqlx.DB
}

// NewSQLXAdapter creates a new SQLX adapter.
func NewSQLXAdapter(db *sqlx.DB) *SQLXAdapter {
	return &SQLXAdapter{db: db}
}

// Query executes a query using the sqlx.DB and returns wrapped rows.
func (s *SQLXAdapter) Query(ctx context.Context, query string, args ...any) (DBRows, error) {
	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	return newSQLXRows(rows)
}

// Exec executes a statement using the sqlx.DB and returns wrapped result.
func (s *SQLXAdapter) Exec(ctx context.Context, query string, args ...any) (DBResult, error) {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	return &stdResult{result: result}, nil
}

// Begin starts a transaction.
func (s *SQLXAdapter) Begin(ctx context.Context) (DBTx, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}

	return &sqlxTx{tx: tx}, nil
}

// sqlxTx wraps sqlx.Tx to implement the DBTx interface.
type sqlxTx struct {
	tx *sqlx.Tx
}

func (s *sqlxTx) Query(ctx context.Context, query string, args ...any) (DBRows, error) {
	rows, err := s.tx.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	return newSQLXRows(rows)
}

func (s *sqlxTx) Exec(ctx context.Context, query string, args ...any) (DBResult, error) {
	result, err := s.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	return &stdResult{result: result}, nil
}

func (s *sqlxTx) Commit(_ context.Context) error {
	return s.tx.Commit()
}

func (s *sqlxTx) Rollback(_ context.Context) error {
	return s.tx.Rollback()
}

// sqlxRows wraps sqlx.Rows to implement the DBRows interface.
type sqlxRows struct {
	rows    *sqlx.Rows
	columns []string
}

func newSQLXRows(rows *sqlx.Rows) (*sqlxRows, error) {
	columns, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		return nil, err
	}

	return &sqlxRows{rows: rows, columns: columns}, nil
}

// Next advances to the next row.
func (s *sqlxRows) Next() bool {
	return s.rows.Next()
}

// Columns returns the column names of the result set.
func (s *sqlxRows) Columns() []string {
	return s.columns
}

// Values scans the current row into a slice.
func (s *sqlxRows) Values() ([]any, error) {
	return s.rows.SliceScan()
}

// Err returns the error that ended the iteration, if any.
func (s *sqlxRows) Err() error {
	return s.rows.Err()
}

// Close closes the rows iterator.
func (s *sqlxRows) Close() error {
	return s.rows.Close()
}
