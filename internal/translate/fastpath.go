// SPDX-License-Identifier: Apache-2.0

// Package translate is the Translator (TR): rewrites PostgreSQL SQL
// text into SQLite-executable SQL, using github.com/pganalyze/pg_query_go/v6
// to parse into the same AST pgroll's sql2pgroll package walks, adapted here
// from "SQL statement -> pgroll operation" to "SQL statement -> SQLite SQL
// plus the RETURNING/CREATE TABLE details a Result carries".
package translate

import "strings"

// fastPathDisqualifiers are substrings whose presence disqualifies a
// query from the byte-level fast path, per spec §4.5 "Fast-path gate":
// casts, catalog references, array/JSON operators, regex operators,
// and any RETURNING clause.
var fastPathDisqualifiers = []string{
	"::",       // type cast
	"pg_",      // catalog reference
	"->", "->>", // JSON operators
	"@>", "<@", // array/range containment operators
	"~", "~*", "!~", "!~*", // regex operators
	"RETURNING",
	"information_schema",
	"CAST(",
}

// IsFastPathEligible reports whether sqlText needs no AST-level
// translation and can execute with parameters bound directly to the
// underlying prepared statement, per spec §4.5.
func IsFastPathEligible(sqlText string) bool {
	upper := strings.ToUpper(sqlText)
	verb := firstWord(upper)
	switch verb {
	case "SELECT", "INSERT", "UPDATE", "DELETE":
	default:
		return false
	}
	for _, marker := range fastPathDisqualifiers {
		if strings.Contains(upper, strings.ToUpper(marker)) {
			return false
		}
	}
	return true
}

func firstWord(s string) string {
	s = strings.TrimSpace(s)
	for i, r := range s {
		if r == ' ' || r == '\t' || r == '\n' {
			return s[:i]
		}
	}
	return s
}
