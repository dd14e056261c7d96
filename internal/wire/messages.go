// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgproto3"

	"github.com/erans/pgsqlite-sub001/internal/errkind"
	"github.com/erans/pgsqlite-sub001/internal/types"
)

// FormatCode mirrors the wire's 0 (text) / 1 (binary) column format.
type FormatCode int16

const (
	FormatText   FormatCode = 0
	FormatBinary FormatCode = 1
)

// Column describes one result column, enough to build both a
// RowDescription field and to encode the values beneath it.
type Column struct {
	Name      string
	TableOID  uint32
	ColNumber int16
	Converter *types.Converter
	Format    FormatCode
}

// RowDescription builds the RowDescription message for a result set,
// per spec.md §4.1 Execution Pipeline step 6.
func RowDescription(cols []Column) *pgproto3.RowDescription {
	fields := make([]pgproto3.FieldDescription, len(cols))
	for i, col := range cols {
		typeLen := int16(-1)
		if col.Converter != nil {
			typeLen = fixedWidth(col.Converter)
		}
		oid := uint32(types.OIDUnknown)
		if col.Converter != nil {
			oid = uint32(col.Converter.OID)
		}
		fields[i] = pgproto3.FieldDescription{
			Name:                 []byte(col.Name),
			TableOID:             col.TableOID,
			TableAttributeNumber: uint16(col.ColNumber),
			DataTypeOID:          oid,
			DataTypeSize:         typeLen,
			TypeModifier:         -1,
			Format:               int16(col.Format),
		}
	}
	return &pgproto3.RowDescription{Fields: fields}
}

// fixedWidth reports the wire-level typlen PostgreSQL advertises for a
// type, or -1 for variable-length types.
func fixedWidth(c *types.Converter) int16 {
	switch c.OID {
	case types.OIDBool, types.OIDChar:
		return 1
	case types.OIDInt2:
		return 2
	case types.OIDInt4, types.OIDFloat4, types.OIDDate:
		return 4
	case types.OIDInt8, types.OIDFloat8, types.OIDMoney, types.OIDTimestamp, types.OIDTimestampTZ, types.OIDTime:
		return 8
	case types.OIDUUID:
		return 16
	case types.OIDInterval:
		return 16
	case types.OIDTimeTZ:
		return 12
	default:
		return -1
	}
}

// EncodeRow converts one row's values into the wire DataRow message,
// honoring each column's negotiated format.
func EncodeRow(cols []Column, values []any) (*pgproto3.DataRow, error) {
	vals := make([][]byte, len(cols))
	for i, col := range cols {
		v := values[i]
		if v == nil {
			vals[i] = nil
			continue
		}
		conv := col.Converter
		if conv == nil {
			vals[i] = []byte(fmt.Sprintf("%v", v))
			continue
		}
		var (
			b   []byte
			err error
		)
		if col.Format == FormatBinary {
			b, err = conv.BinaryEncode(v)
		} else {
			var s string
			s, err = conv.TextEncode(v)
			b = []byte(s)
		}
		if err != nil {
			return nil, errkind.Wrap(errkind.TypeConversion, "encoding column "+col.Name, err)
		}
		vals[i] = b
	}
	return &pgproto3.DataRow{Values: vals}, nil
}

// CommandTag builds the CommandComplete tag text spec.md §4.1 step 7
// requires: "INSERT 0 <n>" for inserts, "<VERB> <n>" otherwise.
func CommandTag(verb string, rowsAffected int64) string {
	if verb == "INSERT" {
		return fmt.Sprintf("INSERT 0 %d", rowsAffected)
	}
	return fmt.Sprintf("%s %d", verb, rowsAffected)
}

// CommandComplete builds the wire message carrying a command tag.
func CommandComplete(verb string, rowsAffected int64) *pgproto3.CommandComplete {
	return &pgproto3.CommandComplete{CommandTag: []byte(CommandTag(verb, rowsAffected))}
}

// ErrorResponseFor maps a classified gateway error onto the wire's
// ErrorResponse fields (Severity/Code/Message), per spec.md §7.
func ErrorResponseFor(err *errkind.Error) *pgproto3.ErrorResponse {
	code := err.SQLSTATE
	if code == "" {
		code = pgerrcode.InternalError
	}
	return &pgproto3.ErrorResponse{
		Severity: "ERROR",
		Code:     code,
		Message:  err.Message,
	}
}

// NoticeFor builds a NoticeResponse for non-fatal, informational
// conditions (e.g. IF NOT EXISTS no-ops), kept separate from
// ErrorResponse so the Connection Handler never confuses the two.
func NoticeFor(severity, message string) *pgproto3.NoticeResponse {
	return &pgproto3.NoticeResponse{
		Severity: severity,
		Message:  message,
	}
}
