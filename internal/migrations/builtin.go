// SPDX-License-Identifier: Apache-2.0

package migrations

import "github.com/erans/pgsqlite-sub001/internal/catalog"

// BuiltinMigrations returns the gateway's own ordered schema versions:
// the metadata catalog's sidecar tables (version 1) and the
// pg_catalog/information_schema compatibility views (version 2).
// These install the same objects the original implementation's
// migration registry built up incrementally (register_v1_initial_schema
// onward) rather than a single unconditional bootstrap script, so a
// partially-applied database is recoverable and CheckCompatibility has
// a real version ledger to compare against.
func BuiltinMigrations() []Migration {
	return []Migration{
		{
			Version:  1,
			Name:     "metadata_catalog",
			Checksum: "builtin-v1",
			Up: []string{
				`CREATE TABLE IF NOT EXISTS __pgsqlite_schema (
					"table"            TEXT NOT NULL,
					column             TEXT NOT NULL,
					pg_type            TEXT NOT NULL,
					sqlite_type        TEXT NOT NULL,
					type_modifier      INTEGER,
					datetime_format    TEXT,
					timezone_offset    TEXT,
					fts_enabled        INTEGER NOT NULL DEFAULT 0,
					PRIMARY KEY ("table", column)
				)`,
				`CREATE TABLE IF NOT EXISTS __pgsqlite_enum_types (
					oid       INTEGER PRIMARY KEY,
					name      TEXT NOT NULL UNIQUE,
					namespace TEXT NOT NULL DEFAULT 'public'
				)`,
				`CREATE TABLE IF NOT EXISTS __pgsqlite_enum_values (
					oid        INTEGER PRIMARY KEY AUTOINCREMENT,
					type_oid   INTEGER NOT NULL REFERENCES __pgsqlite_enum_types(oid),
					label      TEXT NOT NULL,
					sort_order INTEGER NOT NULL
				)`,
				`CREATE TABLE IF NOT EXISTS __pgsqlite_string_constraints (
					"table"    TEXT NOT NULL,
					column     TEXT NOT NULL,
					max_length INTEGER,
					is_char    INTEGER NOT NULL DEFAULT 0,
					PRIMARY KEY ("table", column)
				)`,
				`CREATE TABLE IF NOT EXISTS __pgsqlite_numeric_constraints (
					"table"   TEXT NOT NULL,
					column    TEXT NOT NULL,
					precision INTEGER,
					scale     INTEGER,
					PRIMARY KEY ("table", column)
				)`,
				`CREATE TABLE IF NOT EXISTS __pgsqlite_array_types (
					"table"      TEXT NOT NULL,
					column       TEXT NOT NULL,
					element_type TEXT NOT NULL,
					dims         INTEGER NOT NULL DEFAULT 1,
					PRIMARY KEY ("table", column)
				)`,
				`CREATE TABLE IF NOT EXISTS __pgsqlite_fts_metadata (
					"table"      TEXT NOT NULL,
					column       TEXT NOT NULL,
					fts_table    TEXT NOT NULL,
					PRIMARY KEY ("table", column)
				)`,
				`CREATE TABLE IF NOT EXISTS __pgsqlite_comments (
					object_type TEXT NOT NULL,
					object_name TEXT NOT NULL,
					comment     TEXT NOT NULL,
					PRIMARY KEY (object_type, object_name)
				)`,
			},
		},
		{
			Version:  2,
			Name:     "compatibility_views",
			Checksum: "builtin-v2",
			Up:       catalog.ViewDDL(),
		},
	}
}
