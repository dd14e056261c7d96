// SPDX-License-Identifier: Apache-2.0

package testutils_test

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erans/pgsqlite-sub001/internal/testutils"
)

func TestWithGatewayServesRealPostgresClient(t *testing.T) {
	testutils.WithGateway(t, func(db *sql.DB) {
		_, err := db.Exec("CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT NOT NULL)")
		require.NoError(t, err)

		_, err = db.Exec("INSERT INTO widgets (name) VALUES ($1)", "sprocket")
		require.NoError(t, err)

		var name string
		require.NoError(t, db.QueryRow("SELECT name FROM widgets WHERE id = $1", 1).Scan(&name))
		assert.Equal(t, "sprocket", name)
	})
}

func TestWithGatewayRecognizesScalarFunctions(t *testing.T) {
	testutils.WithGateway(t, func(db *sql.DB) {
		var database string
		require.NoError(t, db.QueryRow("SELECT current_database()").Scan(&database))
		assert.Equal(t, "tester", database)
	})
}
