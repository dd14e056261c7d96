// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"database/sql"

	"github.com/erans/pgsqlite-sub001/internal/errkind"
)

// sqlTableOIDs backs table OID lookups for the compatibility views:
// SQLite has no hook for calling a Go function mid-query the way a
// Postgres extension function would, so TableOID's hash is computed
// once in Go and persisted here whenever a table is created, and the
// views below simply join against it.
const sqlTableOIDs = `
CREATE TABLE IF NOT EXISTS __pgsqlite_table_oids (
	table_name TEXT PRIMARY KEY,
	oid        INTEGER NOT NULL
);
`

// RegisterTableOID records the deterministic OID for a table the
// Translator has just created (or renamed), so the compatibility
// views can resolve it without recomputing the hash in SQL. Grounded
// on pgroll's read_schema join shape, which assumes pg_class.oid is
// already a stable, queryable column rather than computed on read.
func RegisterTableOID(ctx context.Context, db *sql.DB, tableName string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO __pgsqlite_table_oids (table_name, oid) VALUES (?, ?)
		 ON CONFLICT(table_name) DO UPDATE SET oid = excluded.oid`,
		tableName, TableOID(tableName))
	if err != nil {
		return errkind.Wrap(errkind.Storage, "registering table oid", err)
	}
	return nil
}

// ViewDDL returns the CREATE TABLE/VIEW statements for the
// __pgsqlite_table_oids side table and the PostgreSQL compatibility
// views, projected from sqlite_master joined with __pgsqlite_schema
// and __pgsqlite_table_oids. The join shape (table -> columns ->
// types) mirrors the pg_class/pg_attribute/pg_namespace joins in
// pgroll's read_schema SQL function, rebuilt against SQLite's catalog
// instead of a real Postgres one.
func ViewDDL() []string {
	return []string{
		sqlTableOIDs,

		`CREATE VIEW IF NOT EXISTS pg_namespace AS
		 SELECT 2200 AS oid, 'public' AS nspname, 10 AS nspowner, NULL AS nspacl`,

		`CREATE VIEW IF NOT EXISTS pg_class AS
		 SELECT
		   COALESCE(o.oid, 0) AS oid,
		   m.name AS relname,
		   2200 AS relnamespace,
		   0 AS reltype,
		   0 AS relowner,
		   CASE m.type WHEN 'table' THEN 'r' WHEN 'view' THEN 'v' ELSE 'i' END AS relkind,
		   (SELECT COUNT(*) FROM pragma_table_info(m.name)) AS relnatts,
		   0 AS relhasindex,
		   0 AS relhasrules,
		   0 AS relhastriggers
		 FROM sqlite_master m
		 LEFT JOIN __pgsqlite_table_oids o ON o.table_name = m.name
		 WHERE m.type IN ('table', 'view') AND m.name NOT LIKE '__pgsqlite_%' AND m.name NOT LIKE 'sqlite_%'`,

		`CREATE VIEW IF NOT EXISTS pg_attribute AS
		 SELECT
		   COALESCE(o.oid, 0) AS attrelid,
		   ti.name AS attname,
		   COALESCE(s.pg_type, 'text') AS atttypid,
		   ti."notnull" AS attnotnull,
		   ti.cid + 1 AS attnum,
		   CASE WHEN s.type_modifier IS NOT NULL THEN s.type_modifier ELSE -1 END AS atttypmod,
		   0 AS attisdropped
		 FROM sqlite_master m
		 JOIN pragma_table_info(m.name) ti
		 LEFT JOIN __pgsqlite_schema s ON s."table" = m.name AND s.column = ti.name
		 LEFT JOIN __pgsqlite_table_oids o ON o.table_name = m.name
		 WHERE m.type = 'table' AND m.name NOT LIKE '__pgsqlite_%' AND m.name NOT LIKE 'sqlite_%'`,

		`CREATE VIEW IF NOT EXISTS pg_type AS
		 SELECT column1 AS oid, column2 AS typname, column3 AS typlen, column4 AS typtype, column5 AS typcategory FROM (VALUES
		   (16, 'bool', 1, 'b', 'B'), (20, 'int8', 8, 'b', 'N'),
		   (21, 'int2', 2, 'b', 'N'), (23, 'int4', 4, 'b', 'N'),
		   (25, 'text', -1, 'b', 'S'), (700, 'float4', 4, 'b', 'N'),
		   (701, 'float8', 8, 'b', 'N'), (1700, 'numeric', -1, 'b', 'N'),
		   (1082, 'date', 4, 'b', 'D'), (1114, 'timestamp', 8, 'b', 'D'),
		   (1184, 'timestamptz', 8, 'b', 'D'), (2950, 'uuid', 16, 'b', 'U'),
		   (114, 'json', -1, 'b', 'U'), (3802, 'jsonb', -1, 'b', 'U')
		 )`,

		`CREATE VIEW IF NOT EXISTS information_schema_tables AS
		 SELECT 'main' AS table_catalog, 'public' AS table_schema, m.name AS table_name,
		   CASE m.type WHEN 'table' THEN 'BASE TABLE' ELSE 'VIEW' END AS table_type
		 FROM sqlite_master m
		 WHERE m.type IN ('table', 'view') AND m.name NOT LIKE '__pgsqlite_%' AND m.name NOT LIKE 'sqlite_%'`,

		`CREATE VIEW IF NOT EXISTS information_schema_columns AS
		 SELECT 'main' AS table_catalog, 'public' AS table_schema, m.name AS table_name,
		   ti.name AS column_name, ti.cid + 1 AS ordinal_position,
		   COALESCE(s.pg_type, 'text') AS data_type,
		   CASE WHEN ti."notnull" = 1 THEN 'NO' ELSE 'YES' END AS is_nullable
		 FROM sqlite_master m
		 JOIN pragma_table_info(m.name) ti
		 LEFT JOIN __pgsqlite_schema s ON s."table" = m.name AND s.column = ti.name
		 WHERE m.type = 'table' AND m.name NOT LIKE '__pgsqlite_%' AND m.name NOT LIKE 'sqlite_%'`,

		`CREATE VIEW IF NOT EXISTS pg_roles AS
		 SELECT 10 AS oid, 'pgsqlite' AS rolname, 1 AS rolsuper, 1 AS rolcreaterole, 1 AS rolcreatedb, 1 AS rolcanlogin`,

		`CREATE VIEW IF NOT EXISTS pg_user AS
		 SELECT 'pgsqlite' AS usename, 10 AS usesysid, 1 AS usesuper`,
	}
}
