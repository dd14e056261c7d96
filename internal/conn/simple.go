// SPDX-License-Identifier: Apache-2.0

package conn

import (
	"context"

	pgq "github.com/pganalyze/pg_query_go/v6"
	"github.com/jackc/pgx/v5/pgproto3"

	"github.com/erans/pgsqlite-sub001/internal/errkind"
	"github.com/erans/pgsqlite-sub001/internal/session"
	"github.com/erans/pgsqlite-sub001/internal/wire"
)

// handleSimpleQuery implements 'Q': split a (possibly multi-statement)
// query string on real statement boundaries, run each through the
// Execution Pipeline with an ephemeral unnamed statement/portal pair,
// and terminate the batch with ReadyForQuery. A failure skips the
// remaining statements in the batch and, when a transaction is open,
// marks the session's transaction Failed, per spec §4.9.
func (h *Handler) handleSimpleQuery(ctx context.Context, m *pgproto3.Query) error {
	if len(m.String) == 0 {
		h.codec.Send(&pgproto3.EmptyQueryResponse{})
		h.codec.Send(wire.ReadyForQuery(byte(h.sess.TransactionStatus())))
		return h.codec.Flush()
	}

	stmts, err := splitStatements(m.String)
	if err != nil {
		// Fall back to treating the whole string as one statement; the
		// Execution Pipeline will itself produce a Parse-classified error.
		stmts = []string{m.String}
	}
	if len(stmts) == 0 {
		h.codec.Send(&pgproto3.EmptyQueryResponse{})
		h.codec.Send(wire.ReadyForQuery(byte(h.sess.TransactionStatus())))
		return h.codec.Flush()
	}

	for _, raw := range stmts {
		if h.sess.TransactionStatus() == session.TxFailed {
			break // remaining statements in the batch are skipped until Sync
		}

		stmt := &session.PreparedStatement{RawSQL: raw}
		portal := &session.Portal{Query: raw}
		if err := h.runPipeline(ctx, stmt, portal, 0); err != nil {
			classified := errkind.Classify(err)
			_ = h.codec.SendError(classified)
			if h.sess.TransactionStatus() != session.TxIdle {
				h.sess.SetTransactionStatus(session.TxFailed)
			}
			break
		}
	}

	h.codec.Send(wire.ReadyForQuery(byte(h.sess.TransactionStatus())))
	return h.codec.Flush()
}

// splitStatements breaks a Simple Query string into its constituent
// statements using the same dialect parser TR uses, slicing the
// original text by each RawStmt's location/length rather than
// re-deparsing so that whitespace and comments are preserved.
func splitStatements(sqlText string) ([]string, error) {
	tree, err := pgq.Parse(sqlText)
	if err != nil {
		return nil, err
	}
	stmts := tree.GetStmts()
	out := make([]string, 0, len(stmts))
	for _, raw := range stmts {
		loc := int(raw.GetStmtLocation())
		length := int(raw.GetStmtLen())
		if length == 0 {
			length = len(sqlText) - loc
		}
		end := loc + length
		if end > len(sqlText) {
			end = len(sqlText)
		}
		if loc < 0 || loc >= len(sqlText) {
			continue
		}
		text := trimStatement(sqlText[loc:end])
		if text != "" {
			out = append(out, text)
		}
	}
	return out, nil
}

func trimStatement(s string) string {
	start, end := 0, len(s)
	for start < end && isSQLSpace(s[start]) {
		start++
	}
	for end > start && (isSQLSpace(s[end-1]) || s[end-1] == ';') {
		end--
	}
	return s[start:end]
}

func isSQLSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == ';'
}
