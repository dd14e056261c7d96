// SPDX-License-Identifier: Apache-2.0

package engine_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erans/pgsqlite-sub001/internal/engine"
)

var assertErr = errors.New("boom")

func openTestDB(t *testing.T) *engine.RDB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := engine.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestExecAndQueryRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, "CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT)")
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, "INSERT INTO widgets (name) VALUES (?)", "sprocket")
	require.NoError(t, err)

	rows, err := db.QueryContext(ctx, "SELECT name FROM widgets WHERE id = ?", 1)
	require.NoError(t, err)
	defer rows.Close()

	var name string
	require.NoError(t, engine.ScanFirstValue(rows, &name))
	assert.Equal(t, "sprocket", name)
}

func TestWithRetryableTransactionCommitsOnSuccess(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, "CREATE TABLE counters (n INTEGER)")
	require.NoError(t, err)

	err = db.WithRetryableTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_, execErr := tx.ExecContext(ctx, "INSERT INTO counters (n) VALUES (1)")
		return execErr
	})
	require.NoError(t, err)

	rows, err := db.QueryContext(ctx, "SELECT COUNT(*) FROM counters")
	require.NoError(t, err)
	defer rows.Close()
	var count int
	require.NoError(t, engine.ScanFirstValue(rows, &count))
	assert.Equal(t, 1, count)
}

func TestWithRetryableTransactionRollsBackOnError(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, "CREATE TABLE counters (n INTEGER)")
	require.NoError(t, err)

	err = db.WithRetryableTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, execErr := tx.ExecContext(ctx, "INSERT INTO counters (n) VALUES (1)"); execErr != nil {
			return execErr
		}
		return assertErr
	})
	assert.ErrorIs(t, err, assertErr)

	rows, err := db.QueryContext(ctx, "SELECT COUNT(*) FROM counters")
	require.NoError(t, err)
	defer rows.Close()
	var count int
	require.NoError(t, engine.ScanFirstValue(rows, &count))
	assert.Equal(t, 0, count, "failed transaction must leave no trace")
}

func TestRouterRoutesReadsToWriterWithoutReaders(t *testing.T) {
	writer := openTestDB(t)
	router := engine.NewRouter(writer)
	r := router.For(context.Background(), "SELECT 1", false)
	assert.Same(t, writer, r)
}

func TestIsReadOnlyClassification(t *testing.T) {
	assert.True(t, engine.IsReadOnly("  select * from widgets"))
	assert.False(t, engine.IsReadOnly("insert into widgets values (1)"))
	assert.True(t, engine.IsReadOnly("WITH cte AS (SELECT 1) SELECT * FROM cte"))
	assert.False(t, engine.IsReadOnly("WITH cte AS (SELECT 1) INSERT INTO widgets SELECT * FROM cte"))
}
