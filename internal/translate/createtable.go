// SPDX-License-Identifier: Apache-2.0

package translate

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
	pgq "github.com/pganalyze/pg_query_go/v6"

	"github.com/erans/pgsqlite-sub001/internal/errkind"
)

// ColumnSchema is one column's metadata destined for
// __pgsqlite_schema, the authoritative column-type map spec §3 names.
type ColumnSchema struct {
	Table      string
	Column     string
	PGType     string
	SQLiteType string
	NotNull    bool
	PrimaryKey bool
	IsArray    bool
}

// CreateTableResult is a translated CREATE TABLE: the SQLite DDL to
// execute plus the per-column metadata to persist.
type CreateTableResult struct {
	TableName string
	DDL       string
	Columns   []ColumnSchema
}

// TranslateCreateTable rewrites a parsed CREATE TABLE statement into
// SQLite DDL, walking the ColumnDef list the way pgroll's
// convertCreateStmt/convertColumnDef do, but emitting a runnable
// SQLite CREATE TABLE instead of a migration operation.
func TranslateCreateTable(stmt *pgq.CreateStmt) (*CreateTableResult, error) {
	tableName := stmt.GetRelation().GetRelname()
	if tableName == "" {
		return nil, errkind.New(errkind.Parse, "CREATE TABLE missing a table name")
	}

	var colDefs []string
	var columns []ColumnSchema

	for _, elt := range stmt.GetTableElts() {
		colNode, ok := elt.Node.(*pgq.Node_ColumnDef)
		if !ok {
			continue // table-level constraints are skipped and do not appear in the SQLite DDL
		}
		col := colNode.ColumnDef
		info := convertTypeName(col.GetTypeName())

		notNull, pk := false, false
		for _, c := range col.GetConstraints() {
			switch c.GetConstraint().GetContype() {
			case pgq.ConstrType_CONSTR_NOTNULL:
				notNull = true
			case pgq.ConstrType_CONSTR_PRIMARY:
				pk = true
				notNull = true
			}
		}

		sqliteType := sqliteStorageClass(info.Name)
		if info.IsArray {
			sqliteType = "TEXT" // arrays stored as JSON text, spec §4.2 "Arrays"
		}

		colDef := fmt.Sprintf("%s %s", quoteIdent(col.GetColname()), sqliteType)
		if pk {
			colDef += " PRIMARY KEY"
		}
		if notNull && !pk {
			colDef += " NOT NULL"
		}
		colDefs = append(colDefs, colDef)

		columns = append(columns, ColumnSchema{
			Table:      tableName,
			Column:     col.GetColname(),
			PGType:     renderPGType(info),
			SQLiteType: sqliteType,
			NotNull:    notNull,
			PrimaryKey: pk,
			IsArray:    info.IsArray,
		})
	}

	ddl := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(tableName), strings.Join(colDefs, ", "))
	return &CreateTableResult{TableName: tableName, DDL: ddl, Columns: columns}, nil
}

func renderPGType(info typeNameInfo) string {
	name := info.Name
	if len(info.Mods) > 0 {
		mods := make([]string, len(info.Mods))
		for i, m := range info.Mods {
			mods[i] = fmt.Sprintf("%d", m)
		}
		name += "(" + strings.Join(mods, ",") + ")"
	}
	if info.IsArray {
		name += "[]"
	}
	return name
}

func quoteIdent(name string) string {
	return pq.QuoteIdentifier(name)
}
