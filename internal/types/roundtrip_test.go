// SPDX-License-Identifier: Apache-2.0

package types_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erans/pgsqlite-sub001/internal/types"
)

// TestBinaryRoundTrip checks the round-trip law from spec §8: "Encode-then-
// decode in binary format is identity" for the scalar types.
func TestBinaryRoundTrip(t *testing.T) {
	t.Parallel()

	reg := types.NewRegistry()

	cases := []struct {
		oid types.OID
		val any
	}{
		{types.OIDBool, int64(1)},
		{types.OIDBool, int64(0)},
		{types.OIDInt2, int64(-1234)},
		{types.OIDInt4, int64(42)},
		{types.OIDInt8, int64(-9000000000)},
		{types.OIDUUID, "550e8400-e29b-41d4-a716-446655440000"},
		{types.OIDBytea, []byte{0xDE, 0xAD, 0xBE, 0xEF}},
		{types.OIDJSON, `{"a":1}`},
	}

	for _, c := range cases {
		conv, ok := reg.ByOID(c.oid)
		require.True(t, ok, "oid %d", c.oid)

		encoded, err := conv.BinaryEncode(c.val)
		require.NoError(t, err)

		decoded, err := conv.BinaryDecode(encoded)
		require.NoError(t, err)

		assert.Equal(t, c.val, decoded, "oid %d", c.oid)
	}
}

func TestInt4BinaryLengthAndEndianness(t *testing.T) {
	t.Parallel()

	reg := types.NewRegistry()
	conv, ok := reg.ByOID(types.OIDInt4)
	require.True(t, ok)

	b, err := conv.BinaryEncode(int64(1))
	require.NoError(t, err)
	require.Len(t, b, 4)
	assert.Equal(t, []byte{0, 0, 0, 1}, b)
}

func TestDateRoundTrip(t *testing.T) {
	t.Parallel()

	reg := types.NewRegistry()
	conv, ok := reg.ByOID(types.OIDDate)
	require.True(t, ok)

	// 2024-01-01 is 19723 days after the Unix epoch.
	unixDays := int64(19723)
	b, err := conv.BinaryEncode(unixDays)
	require.NoError(t, err)
	require.Len(t, b, 4)

	decoded, err := conv.BinaryDecode(b)
	require.NoError(t, err)
	assert.Equal(t, unixDays, decoded)
}

func TestTimestampRoundTrip(t *testing.T) {
	t.Parallel()

	reg := types.NewRegistry()
	conv, ok := reg.ByOID(types.OIDTimestamp)
	require.True(t, ok)

	unixMicros := int64(1_700_000_000_000_000)
	b, err := conv.BinaryEncode(unixMicros)
	require.NoError(t, err)

	decoded, err := conv.BinaryDecode(b)
	require.NoError(t, err)
	assert.Equal(t, unixMicros, decoded)
}

func TestFallbackConverterForUnknownOID(t *testing.T) {
	t.Parallel()

	reg := types.NewRegistry()
	conv, ok := reg.ByOID(types.OID(999999))
	assert.False(t, ok)
	require.NotNil(t, conv)

	encoded, err := conv.BinaryEncode("hello")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), encoded)
}
