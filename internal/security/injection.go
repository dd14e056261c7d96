// SPDX-License-Identifier: Apache-2.0

package security

import (
	"regexp"
	"strings"

	pgq "github.com/pganalyze/pg_query_go/v6"
)

// InjectionConfig bounds structural complexity and names the function
// calls/patterns the analyzer treats as dangerous, per spec §4.7.
type InjectionConfig struct {
	MaxStatements int
	MaxUnions     int
	MaxNesting    int
	DangerousFns  []string
}

func DefaultInjectionConfig() InjectionConfig {
	return InjectionConfig{
		MaxStatements: 1,
		MaxUnions:     4,
		MaxNesting:    8,
		DangerousFns: []string{
			"exec", "xp_cmdshell", "load_extension", "pg_sleep",
			"pg_read_file", "pg_ls_dir", "lo_import", "lo_export",
			"copy",
		},
	}
}

var tautologyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b1\s*=\s*1\b`),
	regexp.MustCompile(`(?i)'[^']*'\s*=\s*'[^']*'`),
	regexp.MustCompile(`(?i)\bor\s+true\b`),
	regexp.MustCompile(`(?i)\bor\s+1\s*=\s*1\b`),
}

// Finding is one reason Analyze rejected or flagged a query.
type Finding struct {
	Rule    string
	Detail  string
	Blocked bool
}

// Analysis is the result of running the injection analyzer over a query.
type Analysis struct {
	Findings []Finding
	ParsedOK bool
}

func (a Analysis) Rejected() bool {
	for _, f := range a.Findings {
		if f.Blocked {
			return true
		}
	}
	return false
}

// Analyzer parses each non-fast-path query with the PostgreSQL dialect
// parser TR also uses, and rejects queries exceeding configured
// structural limits or matching known-dangerous patterns. On parse
// failure it falls back to the conservative pattern matcher, per spec
// §4.7: "On parse failure, falls back to a conservative pattern
// matcher."
type Analyzer struct {
	cfg InjectionConfig
}

func NewAnalyzer(cfg InjectionConfig) *Analyzer {
	return &Analyzer{cfg: cfg}
}

func (an *Analyzer) Analyze(sqlText string) Analysis {
	tree, err := pgq.Parse(sqlText)
	if err != nil {
		return an.patternFallback(sqlText, true)
	}

	var findings []Finding

	stmts := tree.GetStmts()
	if len(stmts) > an.cfg.MaxStatements {
		findings = append(findings, Finding{
			Rule:    "statement_count",
			Detail:  "too many statements in a single query",
			Blocked: true,
		})
	}

	unions := 0
	maxDepth := 0
	hasDDLAmongMultiple := false
	for _, raw := range stmts {
		node := raw.GetStmt().GetNode()
		switch node.(type) {
		case *pgq.Node_CreateStmt, *pgq.Node_DropStmt, *pgq.Node_AlterTableStmt:
			if len(stmts) > 1 {
				hasDDLAmongMultiple = true
			}
		}
		if sel, ok := node.(*pgq.Node_SelectStmt); ok {
			u, d := countUnionsAndDepth(sel.SelectStmt, 0)
			unions += u
			if d > maxDepth {
				maxDepth = d
			}
		}
	}
	if unions > an.cfg.MaxUnions {
		findings = append(findings, Finding{
			Rule:    "union_count",
			Detail:  "too many UNION branches",
			Blocked: true,
		})
	}
	if maxDepth > an.cfg.MaxNesting {
		findings = append(findings, Finding{
			Rule:    "nesting_depth",
			Detail:  "subselect nesting exceeds limit",
			Blocked: true,
		})
	}
	if hasDDLAmongMultiple {
		findings = append(findings, Finding{
			Rule:    "ddl_in_compound",
			Detail:  "DDL statement combined with other statements",
			Blocked: true,
		})
	}

	findings = append(findings, scanPatterns(sqlText, an.cfg.DangerousFns)...)

	return Analysis{Findings: findings, ParsedOK: true}
}

// countUnionsAndDepth walks a SelectStmt tree counting SETOP_UNION
// nodes and measuring the maximum nesting depth across its left/right
// branches and WHERE-clause subselects is intentionally not attempted
// here (that would require a full expression walk); UNION recursion is
// the structurally cheap, high-signal part of the tree to check.
func countUnionsAndDepth(sel *pgq.SelectStmt, depth int) (unions, maxDepth int) {
	if sel == nil {
		return 0, depth
	}
	maxDepth = depth
	if sel.GetOp() == pgq.SetOperation_SETOP_UNION {
		unions++
	}
	if l := sel.GetLarg(); l != nil {
		u, d := countUnionsAndDepth(l, depth+1)
		unions += u
		if d > maxDepth {
			maxDepth = d
		}
	}
	if r := sel.GetRarg(); r != nil {
		u, d := countUnionsAndDepth(r, depth+1)
		unions += u
		if d > maxDepth {
			maxDepth = d
		}
	}
	return unions, maxDepth
}

func scanPatterns(sqlText string, dangerousFns []string) []Finding {
	var findings []Finding
	for _, re := range tautologyPatterns {
		if re.MatchString(sqlText) {
			findings = append(findings, Finding{
				Rule:    "tautology",
				Detail:  "always-true condition detected",
				Blocked: true,
			})
			break
		}
	}
	lower := strings.ToLower(sqlText)
	for _, fn := range dangerousFns {
		if strings.Contains(lower, strings.ToLower(fn)+"(") {
			findings = append(findings, Finding{
				Rule:    "dangerous_function",
				Detail:  "call to " + fn,
				Blocked: true,
			})
		}
	}
	return findings
}

// patternFallback is the conservative matcher used when the query fails
// to parse at all: a query the dialect parser cannot even read is
// treated as suspicious unless the pattern scan turns up nothing.
func (an *Analyzer) patternFallback(sqlText string, parseFailed bool) Analysis {
	findings := scanPatterns(sqlText, an.cfg.DangerousFns)
	if parseFailed {
		findings = append(findings, Finding{
			Rule:    "unparseable",
			Detail:  "query could not be parsed; evaluated with pattern matcher only",
			Blocked: false,
		})
	}
	return Analysis{Findings: findings, ParsedOK: false}
}
