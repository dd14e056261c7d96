// SPDX-License-Identifier: Apache-2.0

// Package catalog is the Catalog Emulator (CE): recognizes queries
// against PostgreSQL's system catalogs and information_schema,
// answering them from the metadata tables the Migration Registry
// installs, or rewriting them to run against compatibility views.
// Grounded on pgroll's pkg/state.State.read_schema SQL function, whose
// pg_attribute/pg_class/pg_namespace join shape is carried over here
// reading sqlite_master and __pgsqlite_schema in place of real
// PostgreSQL catalogs.
package catalog

import "hash/fnv"

// systemOIDCeiling is the offset spec §4.4 "Why JOINs matter" adds to
// every synthesized table OID, keeping it clear of real PostgreSQL
// system OIDs (which run below 16384).
const systemOIDCeiling = 16384

// TableOID computes the deterministic, stable-across-sessions OID for
// a user table name, per spec §3 "table OIDs are a deterministic hash
// of the table name".
func TableOID(tableName string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(tableName))
	return systemOIDCeiling + (h.Sum32() % (1<<31 - systemOIDCeiling))
}
