// Package adapters provide database adapter implementations for the SQL engine.
//
// This package implements the adapter pattern to support multiple database libraries:
// pgxpool.Pool, sql.DB (lib/pq, mattn/go-sqlite3) and sqlx.DB. All adapters provide
// equivalent functionality through a common DBAdapter interface, allowing the engine to
// work with any supported connection type, both outside and inside transactions.
package adapters
