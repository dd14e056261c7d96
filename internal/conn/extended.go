// SPDX-License-Identifier: Apache-2.0

package conn

import (
	"context"

	"github.com/jackc/pgx/v5/pgproto3"

	"github.com/erans/pgsqlite-sub001/internal/errkind"
	"github.com/erans/pgsqlite-sub001/internal/session"
	"github.com/erans/pgsqlite-sub001/internal/types"
	"github.com/erans/pgsqlite-sub001/internal/wire"
)

// handleParse implements 'P': store a (possibly unnamed) prepared
// statement, resolving any parameter type OIDs the client didn't
// supply, per spec §4.9.
func (h *Handler) handleParse(ctx context.Context, m *pgproto3.Parse) error {
	oids := resolveParamOIDs(m.ParameterOIDs, countPlaceholders(m.Query, len(m.ParameterOIDs)))

	h.sess.StoreStatement(&session.PreparedStatement{
		Name:      m.Name,
		RawSQL:    m.Query,
		ParamOIDs: oids,
	})
	h.codec.Send(&pgproto3.ParseComplete{})
	return nil
}

// countPlaceholders reports how many $N parameters to expect, trusting
// the client-declared count when given (len(hints) > 0) and otherwise
// falling back to the highest $N literal found in the query text.
func countPlaceholders(sqlText string, hintCount int) int {
	if hintCount > 0 {
		return hintCount
	}
	max := 0
	n := 0
	inParam := false
	for _, r := range sqlText {
		if r == '$' {
			n = 0
			inParam = true
			continue
		}
		if inParam && r >= '0' && r <= '9' {
			n = n*10 + int(r-'0')
			if n > max {
				max = n
			}
			continue
		}
		inParam = false
	}
	return max
}

// handleBind implements 'B': assemble a Portal bound to an existing
// prepared statement, validating the value count, per spec §4.9.
func (h *Handler) handleBind(ctx context.Context, m *pgproto3.Bind) error {
	stmt, err := h.sess.LookupStatement(m.PreparedStatement)
	if err != nil {
		return err
	}
	if len(m.Parameters) != len(stmt.ParamOIDs) {
		return errkind.New(errkind.Protocol, "bind parameter count does not match prepared statement")
	}

	resultFormats := make([]int16, len(m.ResultFormatCodes))
	copy(resultFormats, m.ResultFormatCodes)

	if err := h.sess.StorePortal(&session.Portal{
		Name:          m.DestinationPortal,
		StatementName: m.PreparedStatement,
		Query:         stmt.RawSQL,
		ParamValues:   m.Parameters,
		ParamFormats:  m.ParameterFormatCodes,
		ResultFormats: resultFormats,
	}); err != nil {
		return err
	}
	h.codec.Send(&pgproto3.BindComplete{})
	return nil
}

// handleDescribe implements 'D': report parameter types and, when the
// statement's Fields are populated, the result row shape. Mirrors
// kqlite's writePreparedRowDescription. Nothing in the Execution
// Pipeline populates Fields (SQLite offers no pre-execution column
// metadata), so the row shape is always reported as NoData.
func (h *Handler) handleDescribe(ctx context.Context, m *pgproto3.Describe) error {
	switch m.ObjectType {
	case 'S':
		stmt, err := h.sess.LookupStatement(m.Name)
		if err != nil {
			return err
		}
		h.codec.Send(&pgproto3.ParameterDescription{ParameterOIDs: stmt.ParamOIDs})
		h.sendFieldsOrNoData(stmt.FieldsDescribed, stmt.Fields, nil)
		return nil

	case 'P':
		portal, err := h.sess.LookupPortal(m.Name)
		if err != nil {
			return err
		}
		stmt, err := h.sess.LookupStatement(portal.StatementName)
		if err != nil {
			return err
		}
		h.sendFieldsOrNoData(stmt.FieldsDescribed, stmt.Fields, portal.ResultFormats)
		return nil

	default:
		return errkind.New(errkind.Protocol, "invalid Describe object type")
	}
}

func (h *Handler) sendFieldsOrNoData(known bool, fields []session.FieldInfo, resultFormats []int16) {
	if !known {
		h.codec.Send(&pgproto3.NoData{})
		return
	}
	cols := make([]wire.Column, len(fields))
	for i, f := range fields {
		conv, _ := h.cfg.Types.ByOID(types.OID(f.TypeOID))
		cols[i] = wire.Column{
			Name:      f.Name,
			ColNumber: int16(i + 1),
			Converter: conv,
			Format:    wire.FormatCode(formatForParam(resultFormats, i)),
		}
	}
	h.codec.Send(wire.RowDescription(cols))
}

// handleExecute implements 'E': run the Execution Pipeline against the
// named portal, honoring MaxRows by emitting PortalSuspended instead
// of CommandComplete when exceeded.
func (h *Handler) handleExecute(ctx context.Context, m *pgproto3.Execute) error {
	portal, err := h.sess.LookupPortal(m.Portal)
	if err != nil {
		return err
	}
	stmt, err := h.sess.LookupStatement(portal.StatementName)
	if err != nil {
		return err
	}
	return h.runPipeline(ctx, stmt, portal, int(m.MaxRows))
}
