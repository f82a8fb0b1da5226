package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// Supported values for Options.Driver.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Options describes how to open a database.
type Options struct {
	Driver          string
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	PingTimeout     time.Duration
}

// sqlitePragmas are appended to SQLite DSNs that do not set them already.
var sqlitePragmas = []string{
	"_pragma=foreign_keys(1)",
	"_pragma=busy_timeout(5000)",
	"_pragma=journal_mode(WAL)",
	"_time_format=sqlite",
	"_txlock=immediate",
}

// Open establishes a connection pool for the configured driver, applies the
// pool settings and verifies connectivity with a ping.
func Open(ctx context.Context, opts Options) (*sqlx.DB, error) {
	var (
		sqlDriver string
		bindName  string
		dsn       = opts.URL
	)

	switch opts.Driver {
	case DriverPostgres:
		sqlDriver, bindName = "pgx", "pgx"
	case DriverSQLite:
		sqlDriver, bindName = "sqlite", "sqlite3"
		dsn = sqliteDSN(opts.URL)
	default:
		return nil, fmt.Errorf("unsupported database driver %q (expected %s or %s)",
			opts.Driver, DriverPostgres, DriverSQLite)
	}

	if dsn == "" {
		return nil, fmt.Errorf("database URL is empty: check your configuration")
	}

	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	maxOpen := opts.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 10
	}
	maxIdle := opts.MaxIdleConns
	if maxIdle <= 0 || maxIdle > maxOpen {
		maxIdle = maxOpen / 2
	}
	lifetime := opts.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = 5 * time.Minute
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(lifetime)

	pingTimeout := opts.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("database ping timed out after %s: %w", pingTimeout, err)
		}
		var netErr net.Error
		if errors.As(err, &netErr) {
			return nil, fmt.Errorf("network error connecting to database: %w", err)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return sqlx.NewDb(db, bindName), nil
}

// Dialect returns the goose dialect name for an open database.
func Dialect(db *sqlx.DB) string {
	if db.DriverName() == "sqlite3" {
		return "sqlite3"
	}
	return "postgres"
}

func sqliteDSN(url string) string {
	if url == "" {
		return ""
	}
	dsn := url
	for _, pragma := range sqlitePragmas {
		key := pragma[:strings.IndexByte(pragma, '=')+1]
		if strings.HasPrefix(pragma, "_pragma=") {
			key = pragma[:strings.IndexByte(pragma, '(')]
		}
		if strings.Contains(dsn, key) {
			continue
		}
		if strings.Contains(dsn, "?") {
			dsn += "&" + pragma
		} else {
			dsn += "?" + pragma
		}
	}
	return dsn
}
