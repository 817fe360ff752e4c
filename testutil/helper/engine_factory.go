package helper

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // sqlite driver
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/model-history-go/config"
	"github.com/AntonStoeckl/model-history-go/sqlengine"
)

// PostgresDSNEnv names the environment variable that enables tests against a real PostgreSQL database.
const PostgresDSNEnv = "HISTORY_TEST_POSTGRES_DSN"

// SQLiteDSN returns the DSN of a fresh sqlite database file inside the test's temp dir.
func SQLiteDSN(t testing.TB, name string) string {
	return filepath.Join(t.TempDir(), name+".db") + "?_journal_mode=WAL&_busy_timeout=5000"
}

// CreateSQLiteDB opens a fresh sqlite database that is closed when the test ends.
func CreateSQLiteDB(t testing.TB, name string) *sql.DB {
	db, err := sql.Open("sqlite3", SQLiteDSN(t, name))
	require.NoError(t, err, "error in arranging test data")

	t.Cleanup(func() { _ = db.Close() })

	return db
}

// CreateSQLiteEngine returns an engine over a fresh sqlite database, using the database/sql adapter.
func CreateSQLiteEngine(t testing.TB, options ...sqlengine.Option) *sqlengine.Engine {
	options = append([]sqlengine.Option{sqlengine.WithDialect(sqlengine.DialectSQLite)}, options...)

	engine, err := sqlengine.NewEngineFromSQLDB(CreateSQLiteDB(t, "engine"), options...)
	require.NoError(t, err, "error in arranging test data")

	return engine
}

// CreateSQLiteEngineWithSQLX returns an engine over a fresh sqlite database, using the sqlx adapter.
func CreateSQLiteEngineWithSQLX(t testing.TB, options ...sqlengine.Option) *sqlengine.Engine {
	options = append([]sqlengine.Option{sqlengine.WithDialect(sqlengine.DialectSQLite)}, options...)

	engine, err := sqlengine.NewEngineFromSQLX(sqlx.NewDb(CreateSQLiteDB(t, "engine_sqlx"), "sqlite3"), options...)
	require.NoError(t, err, "error in arranging test data")

	return engine
}

// CreatePostgresEngine returns an engine over the pgx pool configured by HISTORY_TEST_POSTGRES_DSN.
// The test is skipped when the variable is not set.
func CreatePostgresEngine(t testing.TB, options ...sqlengine.Option) *sqlengine.Engine {
	dsn := os.Getenv(PostgresDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", PostgresDSNEnv)
	}

	db := config.Database{Driver: config.DriverPGX, DSN: dsn}

	pool, err := config.OpenPGXPool(context.Background(), db)
	require.NoError(t, err, "error in arranging test data")
	t.Cleanup(pool.Close)

	engine, err := sqlengine.NewEngineFromPGXPool(pool, options...)
	require.NoError(t, err, "error in arranging test data")

	return engine
}
