// SPDX-License-Identifier: Apache-2.0

package types

import "encoding/hex"

// fallbackConverter textualizes INTEGER/REAL/TEXT values and hex-encodes
// BLOBs for any OID the registry doesn't otherwise recognize, per spec
// §4.2 "A fallback converter exists for unknown OIDs".
func fallbackConverter() *Converter {
	return &Converter{
		OID:      OIDUnknown,
		Names:    []string{"unknown"},
		Class:    ClassText,
		Category: CategoryUnknown,
		TextEncode: func(v any) (string, error) {
			switch t := v.(type) {
			case []byte:
				return "\\x" + hex.EncodeToString(t), nil
			default:
				return asString(OIDUnknown, v)
			}
		},
		TextDecode: func(s string) (any, error) { return s, nil },
		BinaryEncode: func(v any) ([]byte, error) {
			switch t := v.(type) {
			case []byte:
				return t, nil
			default:
				s, err := asString(OIDUnknown, v)
				if err != nil {
					return nil, err
				}
				return []byte(s), nil
			}
		},
		BinaryDecode: func(b []byte) (any, error) { return string(b), nil },
	}
}
