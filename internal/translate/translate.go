// SPDX-License-Identifier: Apache-2.0

package translate

import (
	"fmt"

	pgq "github.com/pganalyze/pg_query_go/v6"

	"github.com/erans/pgsqlite-sub001/internal/errkind"
)

// Result is what TR hands back to the Connection Handler: the SQL to
// actually run against SQLite, plus enough metadata to drive
// RETURNING emulation and schema bookkeeping.
type Result struct {
	SQL           string
	CreateTable   *CreateTableResult // non-nil only for CREATE TABLE
	HasReturning  bool
	ReturningCols []string
	IsInsert      bool
	IsUpdate      bool
	IsDelete      bool
	TableName     string
	// WhereSQL is the deparsed WHERE clause (without the "WHERE" keyword),
	// empty if the statement had none. The Connection Handler uses it to
	// capture target rowids before an UPDATE/DELETE that has RETURNING,
	// per spec §4.5's "capture target rowids before the update" rule.
	WhereSQL string
}

// Translate parses sqlText and rewrites it into SQLite-executable
// SQL, per spec §4.5. Queries the fast-path gate has already cleared
// should not reach here; Translate is for the AST-walking slow path.
func Translate(sqlText string) (*Result, error) {
	tree, err := pgq.Parse(sqlText)
	if err != nil {
		return nil, errkind.Wrap(errkind.Parse, "parsing query", err)
	}
	stmts := tree.GetStmts()
	if len(stmts) != 1 {
		return nil, errkind.New(errkind.NotSupported, fmt.Sprintf("expected exactly one statement, got %d", len(stmts)))
	}
	node := stmts[0].GetStmt().GetNode()

	switch n := node.(type) {
	case *pgq.Node_CreateStmt:
		ct, err := TranslateCreateTable(n.CreateStmt)
		if err != nil {
			return nil, err
		}
		return &Result{SQL: ct.DDL, CreateTable: ct}, nil

	case *pgq.Node_InsertStmt:
		r, err := translateReturning(tree, n.InsertStmt.GetReturningList(), func() {
			n.InsertStmt.ReturningList = nil
		})
		if err != nil {
			return nil, err
		}
		r.IsInsert = true
		r.TableName = n.InsertStmt.GetRelation().GetRelname()
		return r, nil

	case *pgq.Node_UpdateStmt:
		r, err := translateReturning(tree, n.UpdateStmt.GetReturningList(), func() {
			n.UpdateStmt.ReturningList = nil
		})
		if err != nil {
			return nil, err
		}
		r.IsUpdate = true
		r.TableName = n.UpdateStmt.GetRelation().GetRelname()
		r.WhereSQL = deparseWhere(n.UpdateStmt.GetWhereClause())
		return r, nil

	case *pgq.Node_DeleteStmt:
		r, err := translateReturning(tree, n.DeleteStmt.GetReturningList(), func() {
			n.DeleteStmt.ReturningList = nil
		})
		if err != nil {
			return nil, err
		}
		r.IsDelete = true
		r.TableName = n.DeleteStmt.GetRelation().GetRelname()
		r.WhereSQL = deparseWhere(n.DeleteStmt.GetWhereClause())
		return r, nil

	default:
		rewritten, err := applyOperatorRewrites(sqlText)
		if err != nil {
			return nil, err
		}
		return &Result{SQL: rewritten}, nil
	}
}

func translateReturning(tree *pgq.ParseResult, returning []*pgq.Node, strip func()) (*Result, error) {
	cols := returningColumnNames(returning)
	hasReturning := len(returning) > 0
	if hasReturning {
		strip()
	}

	sqlText, err := pgq.Deparse(tree)
	if err != nil {
		return nil, errkind.Wrap(errkind.Parse, "deparsing rewritten statement", err)
	}
	sqlText, err = applyOperatorRewrites(sqlText)
	if err != nil {
		return nil, err
	}

	return &Result{
		SQL:           sqlText,
		HasReturning:  hasReturning,
		ReturningCols: cols,
	}, nil
}

// deparseWhere renders a WHERE clause expression back to SQL text, or
// "" if the statement has none (an unqualified UPDATE/DELETE).
func deparseWhere(expr *pgq.Node) string {
	if expr == nil {
		return ""
	}
	s, err := pgq.DeparseExpr(expr)
	if err != nil {
		return ""
	}
	return s
}

func returningColumnNames(list []*pgq.Node) []string {
	var names []string
	for _, n := range list {
		target := n.GetResTarget()
		if target == nil {
			continue
		}
		if target.GetName() != "" {
			names = append(names, target.GetName())
			continue
		}
		if col := target.GetVal().GetColumnRef(); col != nil {
			for _, f := range col.GetFields() {
				if s := f.GetString_(); s != nil {
					names = append(names, s.GetSval())
				}
			}
		}
	}
	return names
}
