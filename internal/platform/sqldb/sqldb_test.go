package sqldb_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lingolab/vocab-srs/internal/platform/sqldb"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

// openTestDB opens a migrated SQLite database in a per-test directory.
func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	ctx := context.Background()
	db, err := sqldb.Open(ctx, sqldb.Options{
		Driver: sqldb.DriverSQLite,
		URL:    filepath.Join(t.TempDir(), "srs.db"),
	})
	require.NoError(t, err, "Failed to open test database")
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, sqldb.Migrate(ctx, db, sqldb.MigrateUp, nil), "Failed to migrate test database")
	return db
}

// registerLists inserts vocabulary list ids the records under test refer to.
func registerLists(t *testing.T, db *sqlx.DB, ids ...int64) {
	t.Helper()
	lists := sqldb.NewListStore(db, nil)
	for _, id := range ids {
		require.NoError(t, lists.Register(context.Background(), id, "list"))
	}
}
