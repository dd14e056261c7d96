// SPDX-License-Identifier: Apache-2.0

package types

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// byteaConverter: text "\x" + hex; binary raw bytes; SQLite BLOB.
func byteaConverter() *Converter {
	return &Converter{
		OID:      OIDBytea,
		Names:    []string{"bytea"},
		Class:    ClassBlob,
		Category: CategoryUserType,
		TextEncode: func(v any) (string, error) {
			b, err := asBytes(OIDBytea, v)
			if err != nil {
				return "", err
			}
			return "\\x" + hex.EncodeToString(b), nil
		},
		TextDecode: func(s string) (any, error) {
			if !strings.HasPrefix(s, "\\x") {
				return nil, &ConversionError{OID: OIDBytea, Direction: DirDecode, Value: s, Reason: "missing \\x prefix"}
			}
			b, err := hex.DecodeString(s[2:])
			if err != nil {
				return nil, &ConversionError{OID: OIDBytea, Direction: DirDecode, Value: s, Reason: err.Error()}
			}
			return b, nil
		},
		BinaryEncode: func(v any) ([]byte, error) {
			return asBytes(OIDBytea, v)
		},
		BinaryDecode: func(b []byte) (any, error) {
			return append([]byte(nil), b...), nil
		},
	}
}

func asBytes(oid OID, v any) ([]byte, error) {
	switch t := v.(type) {
	case []byte:
		return t, nil
	case string:
		return []byte(t), nil
	default:
		return nil, &ConversionError{OID: oid, Direction: DirEncode, Value: v, Reason: "not coercible to bytes"}
	}
}

// jsonConverter: text passthrough; SQLite TEXT.
func jsonConverter() *Converter {
	return &Converter{
		OID:      OIDJSON,
		Names:    []string{"json"},
		Class:    ClassText,
		Category: CategoryUserType,
		TextEncode: func(v any) (string, error) { return asString(OIDJSON, v) },
		TextDecode: func(s string) (any, error) { return s, nil },
		BinaryEncode: func(v any) ([]byte, error) {
			s, err := asString(OIDJSON, v)
			if err != nil {
				return nil, err
			}
			return []byte(s), nil
		},
		BinaryDecode: func(b []byte) (any, error) { return string(b), nil },
	}
}

// jsonbConverter: binary format is 1-byte version (0x01) + UTF-8 JSON;
// SQLite TEXT storage of the raw JSON text.
func jsonbConverter() *Converter {
	return &Converter{
		OID:      OIDJSONB,
		Names:    []string{"jsonb"},
		Class:    ClassText,
		Category: CategoryUserType,
		TextEncode: func(v any) (string, error) { return asString(OIDJSONB, v) },
		TextDecode: func(s string) (any, error) { return s, nil },
		BinaryEncode: func(v any) ([]byte, error) {
			s, err := asString(OIDJSONB, v)
			if err != nil {
				return nil, err
			}
			buf := make([]byte, 1+len(s))
			buf[0] = 0x01
			copy(buf[1:], s)
			return buf, nil
		},
		BinaryDecode: func(b []byte) (any, error) {
			if len(b) < 1 {
				return nil, &ConversionError{OID: OIDJSONB, Direction: DirDecode, Value: b, Reason: "missing version byte"}
			}
			if b[0] != 0x01 {
				return nil, &ConversionError{OID: OIDJSONB, Direction: DirDecode, Value: b, Reason: fmt.Sprintf("unsupported jsonb version %d", b[0])}
			}
			return string(b[1:]), nil
		},
	}
}

// uuidConverter: text canonical 8-4-4-4-12; binary 16 bytes; SQLite TEXT.
func uuidConverter() *Converter {
	return &Converter{
		OID:      OIDUUID,
		Names:    []string{"uuid"},
		Class:    ClassText,
		Category: CategoryUserType,
		TextEncode: func(v any) (string, error) {
			s, err := asString(OIDUUID, v)
			if err != nil {
				return "", err
			}
			id, err := uuid.Parse(s)
			if err != nil {
				return "", &ConversionError{OID: OIDUUID, Direction: DirEncode, Value: v, Reason: err.Error()}
			}
			return id.String(), nil
		},
		TextDecode: func(s string) (any, error) {
			id, err := uuid.Parse(s)
			if err != nil {
				return nil, &ConversionError{OID: OIDUUID, Direction: DirDecode, Value: s, Reason: err.Error()}
			}
			return id.String(), nil
		},
		BinaryEncode: func(v any) ([]byte, error) {
			s, err := asString(OIDUUID, v)
			if err != nil {
				return nil, err
			}
			id, err := uuid.Parse(s)
			if err != nil {
				return nil, &ConversionError{OID: OIDUUID, Direction: DirEncode, Value: v, Reason: err.Error()}
			}
			b := id
			return b[:], nil
		},
		BinaryDecode: func(b []byte) (any, error) {
			if len(b) != 16 {
				return nil, &ConversionError{OID: OIDUUID, Direction: DirDecode, Value: b, Reason: "expected 16 bytes"}
			}
			id, err := uuid.FromBytes(b)
			if err != nil {
				return nil, &ConversionError{OID: OIDUUID, Direction: DirDecode, Value: b, Reason: err.Error()}
			}
			return id.String(), nil
		},
	}
}
