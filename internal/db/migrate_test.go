package db_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepwise-app/stepwise/internal/db"
	"github.com/stepwise-app/stepwise/internal/db/dbtest"
)

func TestMigrationsUpAndDown(t *testing.T) {
	conn := dbtest.Open(t)
	ctx := context.Background()

	version, err := db.Version(ctx, conn.DB, "sqlite")
	require.NoError(t, err)
	assert.EqualValues(t, 4, version)

	var tables []string
	require.NoError(t, conn.Select(&tables, `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'goose%' AND name NOT LIKE 'sqlite%' ORDER BY name`))
	assert.Equal(t, []string{"check_ins", "files", "goals", "steps", "subscriptions", "user_stats", "users"}, tables)

	require.NoError(t, db.MigrateDown(ctx, conn.DB, "sqlite"))
	version, err = db.Version(ctx, conn.DB, "sqlite")
	require.NoError(t, err)
	assert.EqualValues(t, 3, version)
}
