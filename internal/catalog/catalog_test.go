// SPDX-License-Identifier: Apache-2.0

package catalog_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/erans/pgsqlite-sub001/internal/catalog"
)

func TestTableOIDIsStableAndAboveSystemCeiling(t *testing.T) {
	a := catalog.TableOID("widgets")
	b := catalog.TableOID("widgets")
	assert.Equal(t, a, b)
	assert.GreaterOrEqual(t, a, uint32(16384))
}

func TestTableOIDDiffersAcrossNames(t *testing.T) {
	assert.NotEqual(t, catalog.TableOID("widgets"), catalog.TableOID("gadgets"))
}

func TestClassifyRecognizesScalarFunctions(t *testing.T) {
	c := catalog.Classify("SELECT version()")
	assert.Equal(t, catalog.ScalarVersion, c.Scalar)

	c = catalog.Classify("select current_database()")
	assert.Equal(t, catalog.ScalarCurrentDatabase, c.Scalar)
}

func TestClassifyRecognizesShow(t *testing.T) {
	c := catalog.Classify("SHOW server_version;")
	assert.Equal(t, "server_version", c.ShowParameter)
}

func TestClassifyRecognizesSystemRelations(t *testing.T) {
	c := catalog.Classify("SELECT * FROM pg_catalog.pg_class WHERE relname = 'widgets'")
	assert.True(t, c.IsSystemQuery)
}

func TestClassifyPassesThroughOrdinaryQueries(t *testing.T) {
	c := catalog.Classify("SELECT id, name FROM widgets")
	assert.Equal(t, catalog.ScalarNone, c.Scalar)
	assert.False(t, c.IsSystemQuery)
	assert.Empty(t, c.ShowParameter)
}

func TestViewDDLInstallsAndQueriesCleanly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, createSchemaTable(ctx, db))

	_, err = db.ExecContext(ctx, "CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT)")
	require.NoError(t, err)
	require.NoError(t, catalog.RegisterTableOID(ctx, db, "widgets"))

	for _, stmt := range catalog.ViewDDL() {
		_, err := db.ExecContext(ctx, stmt)
		require.NoError(t, err, stmt)
	}

	row := db.QueryRowContext(ctx, "SELECT relname, oid FROM pg_class WHERE relname = 'widgets'")
	var name string
	var oid int64
	require.NoError(t, row.Scan(&name, &oid))
	assert.Equal(t, "widgets", name)
	assert.Equal(t, int64(catalog.TableOID("widgets")), oid)
}

func createSchemaTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE __pgsqlite_schema (
		"table" TEXT, column TEXT, pg_type TEXT, sqlite_type TEXT,
		type_modifier INTEGER, datetime_format TEXT, timezone_offset TEXT,
		fts_enabled INTEGER DEFAULT 0, PRIMARY KEY ("table", column))`)
	return err
}
