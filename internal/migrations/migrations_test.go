// SPDX-License-Identifier: Apache-2.0

package migrations_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/erans/pgsqlite-sub001/internal/migrations"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestApplyRunsMigrationsInOrder(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	reg := migrations.NewRegistry(30,
		migrations.Migration{Version: 1, Name: "create widgets", Checksum: "a",
			Up: []string{"CREATE TABLE widgets (id INTEGER PRIMARY KEY)"}},
		migrations.Migration{Version: 2, Name: "add name column", Checksum: "b",
			Up: []string{"ALTER TABLE widgets ADD COLUMN name TEXT"}},
	)

	require.NoError(t, reg.Apply(ctx, db))

	_, err := db.ExecContext(ctx, "INSERT INTO widgets (name) VALUES (?)", "sprocket")
	assert.NoError(t, err)
}

func TestApplyIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	reg := migrations.NewRegistry(30,
		migrations.Migration{Version: 1, Name: "create widgets", Checksum: "a",
			Up: []string{"CREATE TABLE widgets (id INTEGER PRIMARY KEY)"}},
	)

	require.NoError(t, reg.Apply(ctx, db))
	require.NoError(t, reg.Apply(ctx, db), "re-applying should no-op on the already-completed version")
}

func TestApplyRejectsGapInVersions(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	reg := migrations.NewRegistry(30,
		migrations.Migration{Version: 1, Name: "first", Checksum: "a", Up: []string{"SELECT 1"}},
		migrations.Migration{Version: 3, Name: "skips two", Checksum: "b", Up: []string{"SELECT 1"}},
	)

	err := reg.Apply(ctx, db)
	assert.Error(t, err)
}

func TestApplyFailedMigrationLeavesNoTrace(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	reg := migrations.NewRegistry(30,
		migrations.Migration{Version: 1, Name: "bad sql", Checksum: "a",
			Up: []string{"THIS IS NOT VALID SQL"}},
	)

	err := reg.Apply(ctx, db)
	require.Error(t, err)

	row := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM __pgsqlite_migrations WHERE status = 'completed'")
	var count int
	require.NoError(t, row.Scan(&count))
	assert.Equal(t, 0, count)
}

func TestCheckCompatibilityNotInitialized(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	compat, err := migrations.CheckCompatibility(ctx, db, "v1.2.0")
	require.NoError(t, err)
	assert.Equal(t, migrations.CompatNotInitialized, compat)
}

func TestCheckCompatibilityDetectsNewerSchema(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, migrations.RecordVersion(ctx, db, "2.0.0"))
	compat, err := migrations.CheckCompatibility(ctx, db, "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, migrations.CompatSchemaNewer, compat)
}
