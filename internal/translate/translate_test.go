// SPDX-License-Identifier: Apache-2.0

package translate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erans/pgsqlite-sub001/internal/translate"
)

func TestIsFastPathEligibleAcceptsPlainSelect(t *testing.T) {
	assert.True(t, translate.IsFastPathEligible("SELECT id, name FROM widgets WHERE id = $1"))
}

func TestIsFastPathEligibleRejectsCasts(t *testing.T) {
	assert.False(t, translate.IsFastPathEligible("SELECT id::text FROM widgets"))
}

func TestIsFastPathEligibleRejectsReturning(t *testing.T) {
	assert.False(t, translate.IsFastPathEligible("INSERT INTO widgets (name) VALUES ($1) RETURNING id"))
}

func TestIsFastPathEligibleRejectsDDL(t *testing.T) {
	assert.False(t, translate.IsFastPathEligible("CREATE TABLE widgets (id INTEGER)"))
}

func TestTranslateCreateTableBasic(t *testing.T) {
	res, err := translate.Translate("CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT NOT NULL, price NUMERIC(10,2))")
	require.NoError(t, err)
	require.NotNil(t, res.CreateTable)
	assert.Equal(t, "widgets", res.CreateTable.TableName)
	assert.Len(t, res.CreateTable.Columns, 3)

	var nameCol *translate.ColumnSchema
	for i := range res.CreateTable.Columns {
		if res.CreateTable.Columns[i].Column == "name" {
			nameCol = &res.CreateTable.Columns[i]
		}
	}
	require.NotNil(t, nameCol)
	assert.True(t, nameCol.NotNull)
	assert.Equal(t, "TEXT", nameCol.SQLiteType)
}

func TestTranslateInsertReturningStripsClauseAndReportsColumns(t *testing.T) {
	res, err := translate.Translate("INSERT INTO widgets (name) VALUES ('sprocket') RETURNING id, name")
	require.NoError(t, err)
	assert.True(t, res.HasReturning)
	assert.True(t, res.IsInsert)
	assert.Equal(t, []string{"id", "name"}, res.ReturningCols)
	assert.NotContains(t, res.SQL, "RETURNING")
}

func TestTranslateDeleteWithoutReturning(t *testing.T) {
	res, err := translate.Translate("DELETE FROM widgets WHERE id = 1")
	require.NoError(t, err)
	assert.False(t, res.HasReturning)
}

func TestTranslateUpdateReturningCapturesTableAndWhere(t *testing.T) {
	res, err := translate.Translate("UPDATE widgets SET price = 9 WHERE id = 3 RETURNING id, price")
	require.NoError(t, err)
	assert.True(t, res.HasReturning)
	assert.True(t, res.IsUpdate)
	assert.Equal(t, "widgets", res.TableName)
	assert.NotEmpty(t, res.WhereSQL)
}

func TestTranslateDeleteReturningCapturesTableAndWhere(t *testing.T) {
	res, err := translate.Translate("DELETE FROM widgets WHERE id = 3 RETURNING id")
	require.NoError(t, err)
	assert.True(t, res.HasReturning)
	assert.True(t, res.IsDelete)
	assert.Equal(t, "widgets", res.TableName)
	assert.NotEmpty(t, res.WhereSQL)
}

func TestTranslateRewritesArrayAgg(t *testing.T) {
	res, err := translate.Translate("SELECT array_agg(name) FROM widgets")
	require.NoError(t, err)
	assert.Contains(t, res.SQL, "json_group_array(")
}
