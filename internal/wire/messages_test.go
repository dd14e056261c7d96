// SPDX-License-Identifier: Apache-2.0

package wire_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erans/pgsqlite-sub001/internal/errkind"
	"github.com/erans/pgsqlite-sub001/internal/types"
	"github.com/erans/pgsqlite-sub001/internal/wire"
)

func TestRowDescriptionUsesConverterOID(t *testing.T) {
	reg := types.NewRegistry()
	conv, ok := reg.ByOID(types.OIDInt4)
	require.True(t, ok)

	desc := wire.RowDescription([]wire.Column{
		{Name: "id", Converter: conv, Format: wire.FormatBinary},
	})
	require.Len(t, desc.Fields, 1)
	assert.Equal(t, "id", string(desc.Fields[0].Name))
	assert.Equal(t, uint32(types.OIDInt4), desc.Fields[0].DataTypeOID)
	assert.Equal(t, int16(4), desc.Fields[0].DataTypeSize)
}

func TestEncodeRowNullPassesThrough(t *testing.T) {
	reg := types.NewRegistry()
	conv, ok := reg.ByOID(types.OIDText)
	require.True(t, ok)

	cols := []wire.Column{{Name: "name", Converter: conv, Format: wire.FormatText}}
	row, err := wire.EncodeRow(cols, []any{nil})
	require.NoError(t, err)
	assert.Nil(t, row.Values[0])
}

func TestEncodeRowTextFormat(t *testing.T) {
	reg := types.NewRegistry()
	conv, ok := reg.ByOID(types.OIDInt4)
	require.True(t, ok)

	cols := []wire.Column{{Name: "n", Converter: conv, Format: wire.FormatText}}
	row, err := wire.EncodeRow(cols, []any{int64(42)})
	require.NoError(t, err)
	assert.Equal(t, "42", string(row.Values[0]))
}

func TestCommandTagInsertAlwaysZero(t *testing.T) {
	assert.Equal(t, "INSERT 0 3", wire.CommandTag("INSERT", 3))
	assert.Equal(t, "UPDATE 5", wire.CommandTag("UPDATE", 5))
	assert.Equal(t, "DELETE 0", wire.CommandTag("DELETE", 0))
}

func TestErrorResponseForUsesClassifiedSQLSTATE(t *testing.T) {
	err := errkind.New(errkind.Protocol, "boom")
	resp := wire.ErrorResponseFor(err)
	assert.Equal(t, err.SQLSTATE, resp.Code)
	assert.Equal(t, "boom", resp.Message)
}
