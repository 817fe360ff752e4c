// Package config loads database and tracking configuration from YAML files, dotenv files and
// HISTORY_ prefixed environment variables, and opens connection pools for the supported adapters
// (pgx.Pool, sql.DB, sqlx.DB).
package config
