// SPDX-License-Identifier: Apache-2.0

package types_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erans/pgsqlite-sub001/internal/types"
)

func TestNumericEncodeMatchesSpecScenarioS3(t *testing.T) {
	t.Parallel()

	reg := types.NewRegistry()
	conv, ok := reg.ByOID(types.OIDNumeric)
	require.True(t, ok)

	b, err := conv.BinaryEncode("-999.123")
	require.NoError(t, err)

	require.Len(t, b, 12) // 8-byte header + 2 groups
	ndigits := uint16(b[0])<<8 | uint16(b[1])
	weight := int16(uint16(b[2])<<8 | uint16(b[3]))
	sign := uint16(b[4])<<8 | uint16(b[5])
	dscale := uint16(b[6])<<8 | uint16(b[7])
	digit1 := uint16(b[8])<<8 | uint16(b[9])
	digit2 := uint16(b[10])<<8 | uint16(b[11])

	assert.Equal(t, uint16(2), ndigits)
	assert.Equal(t, int16(0), weight)
	assert.Equal(t, uint16(0x4000), sign)
	assert.Equal(t, uint16(3), dscale)
	assert.Equal(t, uint16(999), digit1)
	assert.Equal(t, uint16(1230), digit2)
}

func TestNumericRoundTrip(t *testing.T) {
	t.Parallel()

	reg := types.NewRegistry()
	conv, ok := reg.ByOID(types.OIDNumeric)
	require.True(t, ok)

	cases := []string{"0", "1", "-1", "999.123", "-999.123", "123456789.0001", "0.5", "100", "-100.00"}
	for _, c := range cases {
		b, err := conv.BinaryEncode(c)
		require.NoError(t, err, c)
		decoded, err := conv.BinaryDecode(b)
		require.NoError(t, err, c)
		assert.Equal(t, c, decoded, "round trip for %s", c)
	}
}

func TestNumericZeroEncoding(t *testing.T) {
	t.Parallel()

	reg := types.NewRegistry()
	conv, ok := reg.ByOID(types.OIDNumeric)
	require.True(t, ok)

	b, err := conv.BinaryEncode("0")
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 0}, b)
}
