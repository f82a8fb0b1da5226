// Package sqldb provides SQL implementations of the storage interfaces
// defined in the internal/store package. It runs on PostgreSQL through the
// pgx stdlib driver and on SQLite through the pure Go modernc driver, using
// sqlx to bind one set of '?' queries to either placeholder style.
// It also owns the embedded goose migrations for both dialects.
package sqldb
