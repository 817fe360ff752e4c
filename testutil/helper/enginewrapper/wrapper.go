package enginewrapper

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // sqlite driver
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/model-history-go/config"
	"github.com/AntonStoeckl/model-history-go/sqlengine"
)

// AdapterTypeEnv selects the adapter the generic tests run against.
const AdapterTypeEnv = "ADAPTER_TYPE"

// PostgresDSNEnv enables the pgxpool adapter.
const PostgresDSNEnv = "HISTORY_TEST_POSTGRES_DSN"

// Adapter type constants
const (
	typeSQLDB   = "sqldb"
	typeSQLX    = "sqlx"
	typePGXPool = "pgxpool"
)

// Wrapper abstracts over the connection types an engine can be built from.
type Wrapper interface {
	GetEngine() *sqlengine.Engine
	Count(t testing.TB, table string) int
	Close()
}

// SQLDBWrapper wraps a database/sql sqlite connection.
type SQLDBWrapper struct {
	db     *sql.DB
	engine *sqlengine.Engine
}

func (w *SQLDBWrapper) GetEngine() *sqlengine.Engine {
	return w.engine
}

func (w *SQLDBWrapper) Count(t testing.TB, table string) int {
	var cnt int
	err := w.db.QueryRow(fmt.Sprintf(`SELECT count(*) FROM %q`, table)).Scan(&cnt)
	require.NoError(t, err, "error counting rows")

	return cnt
}

func (w *SQLDBWrapper) Close() {
	_ = w.db.Close() // ignore error
}

// SQLXWrapper wraps a sqlx sqlite connection.
type SQLXWrapper struct {
	db     *sqlx.DB
	engine *sqlengine.Engine
}

func (w *SQLXWrapper) GetEngine() *sqlengine.Engine {
	return w.engine
}

func (w *SQLXWrapper) Count(t testing.TB, table string) int {
	var cnt int
	err := w.db.Get(&cnt, fmt.Sprintf(`SELECT count(*) FROM %q`, table))
	require.NoError(t, err, "error counting rows")

	return cnt
}

func (w *SQLXWrapper) Close() {
	_ = w.db.Close() // ignore error
}

// PGXPoolWrapper wraps a pgx pool connected to the database named by HISTORY_TEST_POSTGRES_DSN.
type PGXPoolWrapper struct {
	pool   *pgxpool.Pool
	engine *sqlengine.Engine
}

func (w *PGXPoolWrapper) GetEngine() *sqlengine.Engine {
	return w.engine
}

func (w *PGXPoolWrapper) Count(t testing.TB, table string) int {
	var cnt int
	err := w.pool.QueryRow(context.Background(), fmt.Sprintf(`SELECT count(*) FROM %q`, table)).Scan(&cnt)
	require.NoError(t, err, "error counting rows")

	return cnt
}

func (w *PGXPoolWrapper) Close() {
	w.pool.Close()
}

// CreateWrapperWithTestConfig creates the wrapper selected by ADAPTER_TYPE, sqldb by default.
// The wrapper is closed when the test ends.
func CreateWrapperWithTestConfig(t testing.TB, options ...sqlengine.Option) Wrapper {
	adapterTypeFromEnv := strings.ToLower(os.Getenv(AdapterTypeEnv))

	var wrapper Wrapper

	switch adapterTypeFromEnv {
	case typeSQLDB, "":
		db := openSQLite(t)
		engine, err := sqlengine.NewEngineFromSQLDB(db, sqliteOptions(options)...)
		require.NoError(t, err, "error creating engine in test setup")

		wrapper = &SQLDBWrapper{db: db, engine: engine}

	case typeSQLX:
		db := sqlx.NewDb(openSQLite(t), "sqlite3")
		engine, err := sqlengine.NewEngineFromSQLX(db, sqliteOptions(options)...)
		require.NoError(t, err, "error creating engine in test setup")

		wrapper = &SQLXWrapper{db: db, engine: engine}

	case typePGXPool:
		dsn := os.Getenv(PostgresDSNEnv)
		if dsn == "" {
			t.Skipf("%s not set", PostgresDSNEnv)
		}

		pool, err := config.OpenPGXPool(context.Background(), config.Database{Driver: config.DriverPGX, DSN: dsn})
		require.NoError(t, err, "error connecting to DB pool in test setup")

		engine, err := sqlengine.NewEngineFromPGXPool(pool, options...)
		require.NoError(t, err, "error creating engine in test setup")

		wrapper = &PGXPoolWrapper{pool: pool, engine: engine}

	default: // neither one of the known types nor empty
		panic(fmt.Sprintf("unsupported wrapper type from env: %s", adapterTypeFromEnv))
	}

	t.Cleanup(wrapper.Close)

	return wrapper
}

// CleanUp drops the tables of every model defined on the wrapper's engine.
func CleanUp(t testing.TB, wrapper Wrapper) {
	err := wrapper.GetEngine().Drop(context.Background())
	require.NoError(t, err, "error cleaning up tables")
}

func openSQLite(t testing.TB) *sql.DB {
	dsn := filepath.Join(t.TempDir(), "wrapper.db") + "?_journal_mode=WAL&_busy_timeout=5000"

	db, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err, "error opening sqlite in test setup")

	return db
}

func sqliteOptions(options []sqlengine.Option) []sqlengine.Option {
	return append([]sqlengine.Option{sqlengine.WithDialect(sqlengine.DialectSQLite)}, options...)
}
