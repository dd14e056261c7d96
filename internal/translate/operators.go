// SPDX-License-Identifier: Apache-2.0

package translate

import (
	"regexp"
	"strings"
)

// aggregateRewrites maps PostgreSQL aggregate functions to the SQLite
// built-in aggregates that produce equivalent results. No SQLite user
// functions are registered, and unnest is not rewritten.
var aggregateRewrites = []struct {
	pg  *regexp.Regexp
	lite string
}{
	{regexp.MustCompile(`(?i)\barray_agg\s*\(`), "json_group_array("},
	{regexp.MustCompile(`(?i)\bjson_agg\s*\(`), "json_group_array("},
	{regexp.MustCompile(`(?i)\bjsonb_agg\s*\(`), "json_group_array("},
	{regexp.MustCompile(`(?i)\bstring_agg\s*\(`), "group_concat("},
}

var extractRE = regexp.MustCompile(`(?is)EXTRACT\s*\(\s*(\w+)\s+FROM\s+([^)]+)\)`)

// extractFieldFormats maps an EXTRACT field name to the strftime
// format string that reads it off the microsecond-since-epoch integer
// storage T's datetime converters use, per spec §4.5 "Translate
// datetime functions ... to SQLite equivalents that operate on the
// microsecond-integer encoding."
var extractFieldFormats = map[string]string{
	"year":    "%Y",
	"month":   "%m",
	"day":     "%d",
	"hour":    "%H",
	"minute":  "%M",
	"second":  "%S",
	"dow":     "%w",
	"doy":     "%j",
}

// applyOperatorRewrites performs the text-level substitutions spec
// §4.5 names for aggregates and EXTRACT, applied after AST-level
// rewrites (RETURNING stripping, CREATE TABLE translation) have
// already run. SQLite's own `->`/`->>` JSON operators and datetime()
// functions are close enough to PostgreSQL's semantics on TEXT/JSON
// columns that no rewrite is needed there.
func applyOperatorRewrites(sqlText string) (string, error) {
	result := sqlText
	for _, rw := range aggregateRewrites {
		result = rw.pg.ReplaceAllString(result, rw.lite)
	}
	result = extractRE.ReplaceAllStringFunc(result, func(match string) string {
		groups := extractRE.FindStringSubmatch(match)
		field := strings.ToLower(groups[1])
		expr := strings.TrimSpace(groups[2])
		format, ok := extractFieldFormats[field]
		if !ok {
			return match
		}
		return "CAST(strftime('" + format + "', " + expr + " / 1000000, 'unixepoch') AS INTEGER)"
	})
	return result, nil
}
