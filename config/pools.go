package config

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"           // postgres driver
	_ "github.com/mattn/go-sqlite3" // sqlite driver

	"github.com/AntonStoeckl/model-history-go/sqlengine"
)

// PGXPoolConfig creates a pgxpool.Config from the database configuration.
func PGXPoolConfig(d Database) (*pgxpool.Config, error) {
	dbConfig, err := pgxpool.ParseConfig(d.ConnectionDSN())
	if err != nil {
		return nil, fmt.Errorf("parse pgx pool config: %w", err)
	}

	if d.MaxConns > 0 {
		dbConfig.MaxConns = d.MaxConns
	}
	if d.MinConns > 0 {
		dbConfig.MinConns = d.MinConns
	}
	if d.MaxConnLifetime > 0 {
		dbConfig.MaxConnLifetime = d.MaxConnLifetime
	}
	if d.MaxConnIdleTime > 0 {
		dbConfig.MaxConnIdleTime = d.MaxConnIdleTime
	}
	if d.ConnectTimeout > 0 {
		dbConfig.ConnConfig.ConnectTimeout = d.ConnectTimeout
	}

	return dbConfig, nil
}

// OpenPGXPool creates and pings a pgx pool.
func OpenPGXPool(ctx context.Context, d Database) (*pgxpool.Pool, error) {
	dbConfig, err := PGXPoolConfig(d)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	if pingErr := pool.Ping(ctx); pingErr != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", pingErr)
	}

	return pool, nil
}

// OpenSQLDB opens and pings a *sql.DB, with lib/pq for postgres and go-sqlite3 for sqlite.
func OpenSQLDB(ctx context.Context, d Database) (*sql.DB, error) {
	driverName := DriverPostgres
	if d.Driver == DriverSQLite {
		driverName = DriverSQLite
	}

	db, err := sql.Open(driverName, d.ConnectionDSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	configureSQLPool(db, d)

	if pingErr := db.PingContext(ctx); pingErr != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", pingErr)
	}

	return db, nil
}

// OpenSQLX opens and pings a *sqlx.DB over lib/pq.
func OpenSQLX(ctx context.Context, d Database) (*sqlx.DB, error) {
	db, err := sqlx.Open(DriverPostgres, d.ConnectionDSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	configureSQLPool(db.DB, d)

	if pingErr := db.PingContext(ctx); pingErr != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", pingErr)
	}

	return db, nil
}

func configureSQLPool(db *sql.DB, d Database) {
	if d.MaxConns > 0 {
		db.SetMaxOpenConns(int(d.MaxConns))
	}
	if d.MinConns > 0 {
		db.SetMaxIdleConns(int(d.MinConns))
	}
	if d.MaxConnLifetime > 0 {
		db.SetConnMaxLifetime(d.MaxConnLifetime)
	}
	if d.MaxConnIdleTime > 0 {
		db.SetConnMaxIdleTime(d.MaxConnIdleTime)
	}
}

// OpenEngine connects with the configured driver and returns an engine on top of it.
// The returned close function releases the connection pool.
func OpenEngine(ctx context.Context, d Database, options ...sqlengine.Option) (*sqlengine.Engine, func(), error) {
	switch d.Driver {
	case DriverPGX, "":
		pool, err := OpenPGXPool(ctx, d)
		if err != nil {
			return nil, nil, err
		}

		engine, err := sqlengine.NewEngineFromPGXPool(pool, options...)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}

		return engine, pool.Close, nil

	case DriverPostgres, DriverSQLite:
		db, err := OpenSQLDB(ctx, d)
		if err != nil {
			return nil, nil, err
		}

		if d.Driver == DriverSQLite {
			options = append([]sqlengine.Option{sqlengine.WithDialect(sqlengine.DialectSQLite)}, options...)
		}

		engine, err := sqlengine.NewEngineFromSQLDB(db, options...)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}

		return engine, func() { _ = db.Close() }, nil

	case DriverSQLX:
		db, err := OpenSQLX(ctx, d)
		if err != nil {
			return nil, nil, err
		}

		engine, err := sqlengine.NewEngineFromSQLX(db, options...)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}

		return engine, func() { _ = db.Close() }, nil

	default:
		return nil, nil, errors.Join(ErrUnsupportedDriver, fmt.Errorf("driver %q", d.Driver))
	}
}
