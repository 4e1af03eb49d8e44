// Package dbtest opens migrated throwaway databases for tests.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/stepwise-app/stepwise/internal/db"
)

// Open returns a fresh SQLite database under t.TempDir with all migrations applied.
// The database is closed when the test finishes.
func Open(t testing.TB) *sqlx.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	conn, err := db.Init("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	require.NoError(t, err)

	require.NoError(t, db.RunMigrations(context.Background(), conn.DB, "sqlite"))

	t.Cleanup(func() { _ = conn.Close() })
	return conn
}
