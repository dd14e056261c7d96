// SPDX-License-Identifier: Apache-2.0

package types

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
)

func boolConverter() *Converter {
	return &Converter{
		OID:      OIDBool,
		Names:    []string{"bool", "boolean"},
		Class:    ClassInteger,
		Category: CategoryBoolean,
		TextEncode: func(v any) (string, error) {
			b, err := asBool(v)
			if err != nil {
				return "", err
			}
			if b {
				return "t", nil
			}
			return "f", nil
		},
		TextDecode: func(s string) (any, error) {
			switch s {
			case "t", "true", "TRUE", "1":
				return int64(1), nil
			case "f", "false", "FALSE", "0":
				return int64(0), nil
			default:
				return nil, &ConversionError{OID: OIDBool, Direction: DirDecode, Value: s, Reason: "not a boolean literal"}
			}
		},
		BinaryEncode: func(v any) ([]byte, error) {
			b, err := asBool(v)
			if err != nil {
				return nil, err
			}
			if b {
				return []byte{1}, nil
			}
			return []byte{0}, nil
		},
		BinaryDecode: func(b []byte) (any, error) {
			if len(b) != 1 {
				return nil, &ConversionError{OID: OIDBool, Direction: DirDecode, Value: b, Reason: "expected 1 byte"}
			}
			if b[0] != 0 {
				return int64(1), nil
			}
			return int64(0), nil
		},
	}
}

func asBool(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case int64:
		return t != 0, nil
	case int:
		return t != 0, nil
	case string:
		return t == "t" || t == "true" || t == "1", nil
	default:
		return false, &ConversionError{OID: OIDBool, Direction: DirEncode, Value: v, Reason: "not coercible to bool"}
	}
}

// intConverter builds the converter for INT2/INT4/INT8: big-endian fixed
// width in binary, decimal string in text, SQLite INTEGER storage.
func intConverter(oid OID, names []string, width int) *Converter {
	return &Converter{
		OID:      oid,
		Names:    names,
		Class:    ClassInteger,
		Category: CategoryNumeric,
		TextEncode: func(v any) (string, error) {
			i, err := asInt64(oid, v)
			if err != nil {
				return "", err
			}
			return strconv.FormatInt(i, 10), nil
		},
		TextDecode: func(s string) (any, error) {
			i, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, &ConversionError{OID: oid, Direction: DirDecode, Value: s, Reason: err.Error()}
			}
			return i, nil
		},
		BinaryEncode: func(v any) ([]byte, error) {
			i, err := asInt64(oid, v)
			if err != nil {
				return nil, err
			}
			buf := make([]byte, width)
			switch width {
			case 2:
				binary.BigEndian.PutUint16(buf, uint16(int16(i)))
			case 4:
				binary.BigEndian.PutUint32(buf, uint32(int32(i)))
			case 8:
				binary.BigEndian.PutUint64(buf, uint64(i))
			}
			return buf, nil
		},
		BinaryDecode: func(b []byte) (any, error) {
			if len(b) != width {
				return nil, &ConversionError{OID: oid, Direction: DirDecode, Value: b, Reason: fmt.Sprintf("expected %d bytes", width)}
			}
			switch width {
			case 2:
				return int64(int16(binary.BigEndian.Uint16(b))), nil
			case 4:
				return int64(int32(binary.BigEndian.Uint32(b))), nil
			case 8:
				return int64(binary.BigEndian.Uint64(b)), nil
			}
			return nil, &ConversionError{OID: oid, Direction: DirDecode, Value: b, Reason: "unsupported width"}
		},
	}
}

func asInt64(oid OID, v any) (int64, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case int:
		return int64(t), nil
	case float64:
		return int64(t), nil
	case string:
		i, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return 0, &ConversionError{OID: oid, Direction: DirEncode, Value: v, Reason: err.Error()}
		}
		return i, nil
	default:
		return 0, &ConversionError{OID: oid, Direction: DirEncode, Value: v, Reason: "not coercible to integer"}
	}
}

// floatConverter builds the converter for FLOAT4/FLOAT8: IEEE-754
// big-endian binary, SQLite REAL storage.
func floatConverter(oid OID, names []string, width int) *Converter {
	return &Converter{
		OID:      oid,
		Names:    names,
		Class:    ClassReal,
		Category: CategoryNumeric,
		TextEncode: func(v any) (string, error) {
			f, err := asFloat64(oid, v)
			if err != nil {
				return "", err
			}
			bitSize := 64
			if width == 4 {
				bitSize = 32
			}
			return strconv.FormatFloat(f, 'g', -1, bitSize), nil
		},
		TextDecode: func(s string) (any, error) {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, &ConversionError{OID: oid, Direction: DirDecode, Value: s, Reason: err.Error()}
			}
			return f, nil
		},
		BinaryEncode: func(v any) ([]byte, error) {
			f, err := asFloat64(oid, v)
			if err != nil {
				return nil, err
			}
			buf := make([]byte, width)
			if width == 4 {
				binary.BigEndian.PutUint32(buf, math.Float32bits(float32(f)))
			} else {
				binary.BigEndian.PutUint64(buf, math.Float64bits(f))
			}
			return buf, nil
		},
		BinaryDecode: func(b []byte) (any, error) {
			if len(b) != width {
				return nil, &ConversionError{OID: oid, Direction: DirDecode, Value: b, Reason: fmt.Sprintf("expected %d bytes", width)}
			}
			if width == 4 {
				return float64(math.Float32frombits(binary.BigEndian.Uint32(b))), nil
			}
			return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
		},
	}
}

func asFloat64(oid OID, v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int64:
		return float64(t), nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, &ConversionError{OID: oid, Direction: DirEncode, Value: v, Reason: err.Error()}
		}
		return f, nil
	default:
		return 0, &ConversionError{OID: oid, Direction: DirEncode, Value: v, Reason: "not coercible to float"}
	}
}

func textLikeConverter(oid OID, names []string, category string) *Converter {
	return &Converter{
		OID:      oid,
		Names:    names,
		Class:    ClassText,
		Category: category,
		TextEncode: func(v any) (string, error) {
			return asString(oid, v)
		},
		TextDecode: func(s string) (any, error) {
			return s, nil
		},
		BinaryEncode: func(v any) ([]byte, error) {
			s, err := asString(oid, v)
			if err != nil {
				return nil, err
			}
			return []byte(s), nil
		},
		BinaryDecode: func(b []byte) (any, error) {
			return string(b), nil
		},
	}
}

func asString(oid OID, v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case []byte:
		return string(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64), nil
	case nil:
		return "", &ConversionError{OID: oid, Direction: DirEncode, Value: v, Reason: "unexpected NULL"}
	default:
		return "", &ConversionError{OID: oid, Direction: DirEncode, Value: v, Reason: "not coercible to text"}
	}
}
