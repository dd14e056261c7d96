// SPDX-License-Identifier: Apache-2.0

package conn

import (
	"github.com/erans/pgsqlite-sub001/internal/errkind"
	"github.com/erans/pgsqlite-sub001/internal/types"
)

// resolveParamOIDs fills in any OIDUnknown entries a Parse message
// left unspecified. Full inference from the query's WHERE/INSERT
// column references (spec §4.9 "'P': ... T attempts inference from
// the query's WHERE/INSERT column references") is out of scope here;
// unspecified parameters default to text, the same assumption libpq
// itself falls back to when a driver doesn't pre-declare types.
func resolveParamOIDs(hints []uint32, count int) []uint32 {
	oids := make([]uint32, count)
	for i := 0; i < count; i++ {
		if i < len(hints) && hints[i] != 0 {
			oids[i] = hints[i]
			continue
		}
		oids[i] = uint32(types.OIDText)
	}
	return oids
}

// formatForParam resolves the wire format code for parameter i, per
// the Bind message's format-code rules: zero codes means all text,
// one code applies to every parameter, otherwise codes are
// positional.
func formatForParam(formats []int16, i int) int16 {
	switch len(formats) {
	case 0:
		return 0
	case 1:
		return formats[0]
	default:
		if i < len(formats) {
			return formats[i]
		}
		return 0
	}
}

// decodeParams converts a Bind message's raw parameter bytes into Go
// values ready to pass as database/sql args, using each parameter's
// declared OID and format code to pick the right converter.
func decodeParams(reg *types.Registry, oids []uint32, formats []int16, values [][]byte) ([]any, error) {
	args := make([]any, len(values))
	for i, raw := range values {
		if raw == nil {
			args[i] = nil
			continue
		}
		conv, _ := reg.ByOID(types.OID(oidAt(oids, i)))
		format := formatForParam(formats, i)

		var (
			v   any
			err error
		)
		if format == 1 {
			v, err = conv.BinaryDecode(raw)
		} else {
			v, err = conv.TextDecode(string(raw))
		}
		if err != nil {
			return nil, errkind.Wrap(errkind.TypeConversion, "decoding bound parameter", err)
		}
		args[i] = v
	}
	return args, nil
}

func oidAt(oids []uint32, i int) uint32 {
	if i < len(oids) {
		return oids[i]
	}
	return uint32(types.OIDText)
}
