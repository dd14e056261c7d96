// SPDX-License-Identifier: Apache-2.0

package translate

import (
	"strings"

	pgq "github.com/pganalyze/pg_query_go/v6"
)

// ignoredTypeNameParts are schema qualifiers stripped when rendering a
// TypeName node to a plain type string, mirroring pgroll's
// sql2pgroll.convertTypeName.
var ignoredTypeNameParts = map[string]bool{
	"pg_catalog": true,
}

// typeNameInfo is the result of walking a TypeName AST node: its bare
// name, any declared modifiers (precision/scale/length), and whether
// it is an array type.
type typeNameInfo struct {
	Name     string
	Mods     []int32
	IsArray  bool
	ArrayLen int32
}

// convertTypeName extracts the type name, modifiers, and array-ness
// from a TypeName node, the same walk pgroll's convertTypeName
// performs, generalized here to keep numeric modifiers as ints instead
// of immediately rendering to a SQL fragment.
func convertTypeName(tn *pgq.TypeName) typeNameInfo {
	var parts []string
	for _, node := range tn.GetNames() {
		part := node.GetString_().GetSval()
		if ignoredTypeNameParts[part] {
			continue
		}
		parts = append(parts, part)
	}

	var mods []int32
	for _, node := range tn.GetTypmods() {
		if v, ok := node.GetAConst().Val.(*pgq.A_Const_Ival); ok {
			mods = append(mods, v.Ival.GetIval())
		}
	}

	info := typeNameInfo{Name: strings.ToLower(strings.Join(parts, ".")), Mods: mods}
	if bounds := tn.GetArrayBounds(); len(bounds) > 0 {
		info.IsArray = true
		info.ArrayLen = bounds[0].GetInteger().GetIval()
	}
	return info
}

// sqliteStorageClass maps a PostgreSQL type name to the SQLite storage
// class column definitions should declare, per spec §4.2's per-type
// "SQLite ..." notes.
func sqliteStorageClass(pgType string) string {
	switch pgType {
	case "int2", "smallint", "int4", "integer", "int", "int8", "bigint",
		"bool", "boolean", "date", "time", "timetz", "timestamp", "timestamptz",
		"money":
		return "INTEGER"
	case "float4", "real", "float8", "double precision":
		return "REAL"
	case "bytea":
		return "BLOB"
	default:
		return "TEXT"
	}
}
