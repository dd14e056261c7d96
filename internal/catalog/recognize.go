// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"regexp"
	"strings"
)

// systemRelations are the catalogs and information_schema views spec
// §4.4 names as recognized patterns; a query referencing any of them
// is classified IsSystemQuery. The query text is not rewritten: a
// pg_* name reaches the same-named compatibility view M installs where
// one exists, and a dotted information_schema.* name is not mapped to
// the information_schema_* views.
var systemRelations = []string{
	"pg_class", "pg_attribute", "pg_namespace", "pg_type", "pg_proc",
	"pg_description", "pg_depend", "pg_roles", "pg_user",
	"pg_stat_activity", "pg_stat_user_tables", "pg_stat_user_indexes",
	"information_schema.tables", "information_schema.columns",
	"information_schema.views", "information_schema.routines",
	"information_schema.triggers", "information_schema.key_column_usage",
	"information_schema.table_constraints",
	"information_schema.referential_constraints",
	"information_schema.schemata",
}

var showRE = regexp.MustCompile(`(?is)^\s*SHOW\s+([A-Za-z_][A-Za-z0-9_.]*)\s*;?\s*$`)

// ScalarFunction identifies one of the zero-argument introspection
// functions spec §4.4 recognizes directly: version(), current_database(),
// current_user, pg_backend_pid().
type ScalarFunction int

const (
	ScalarNone ScalarFunction = iota
	ScalarVersion
	ScalarCurrentDatabase
	ScalarCurrentUser
	ScalarBackendPID
)

// Classification reports how CE should handle a query: a recognized
// scalar function (synthesize directly), a SHOW command (resolve from
// session parameters), a system-relation reference (IsSystemQuery; the
// query still runs unchanged, see systemRelations), or none of the
// above (pass through to the Translator untouched).
type Classification struct {
	Scalar        ScalarFunction
	ShowParameter string
	IsSystemQuery bool
}

// Classify recognizes the catalog-query patterns spec §4.4 lists.
func Classify(sql string) Classification {
	trimmed := strings.TrimSpace(sql)
	upper := strings.ToUpper(trimmed)
	lower := strings.ToLower(trimmed)

	if m := showRE.FindStringSubmatch(trimmed); m != nil {
		return Classification{ShowParameter: strings.ToLower(m[1])}
	}

	switch {
	case strings.Contains(upper, "VERSION()"):
		return Classification{Scalar: ScalarVersion}
	case strings.Contains(upper, "CURRENT_DATABASE()"):
		return Classification{Scalar: ScalarCurrentDatabase}
	case strings.Contains(upper, "CURRENT_USER") && !strings.Contains(lower, "information_schema"):
		return Classification{Scalar: ScalarCurrentUser}
	case strings.Contains(upper, "PG_BACKEND_PID()"):
		return Classification{Scalar: ScalarBackendPID}
	}

	for _, rel := range systemRelations {
		if strings.Contains(lower, rel) {
			return Classification{IsSystemQuery: true}
		}
	}
	return Classification{}
}

// SynthesizeScalar returns the single-row, single-column result for a
// recognized scalar function, per spec §4.4.
func SynthesizeScalar(fn ScalarFunction, database, user string, pid uint32, serverVersion string) (column string, value any) {
	switch fn {
	case ScalarVersion:
		return "version", serverVersion
	case ScalarCurrentDatabase:
		return "current_database", database
	case ScalarCurrentUser:
		return "current_user", user
	case ScalarBackendPID:
		return "pg_backend_pid", int64(pid)
	default:
		return "", nil
	}
}

// ResolveShowParameter looks up a runtime parameter the way a real
// server's SHOW command would, falling back to a small set of fixed
// values for parameters the gateway doesn't track per-session.
func ResolveShowParameter(name string, sessionParams map[string]string) (string, bool) {
	if v, ok := sessionParams[name]; ok {
		return v, true
	}
	switch strings.ToLower(name) {
	case "server_version":
		return sessionParams["server_version"], sessionParams["server_version"] != ""
	case "transaction_isolation":
		return "read committed", true
	case "timezone":
		return "UTC", true
	}
	return "", false
}
