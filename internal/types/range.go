// SPDX-License-Identifier: Apache-2.0

package types

import "encoding/binary"

// Range bound flags, per spec §4.2 "Ranges".
const (
	RangeEmpty  byte = 1
	RangeLBInc  byte = 2
	RangeUBInc  byte = 4
	RangeLBInf  byte = 8
	RangeUBInf  byte = 16
)

// rangeConverter implements the flags-byte + length-prefixed-bounds
// encoding of spec §4.2 "Ranges". SQLite storage is the text form
// PostgreSQL itself uses for range literals (e.g. "[1,10)"), since SQLite
// has no native range type; elemConv supplies the per-bound binary codec.
func rangeConverter(oid OID, name string, elemOID OID, elemConv *Converter) *Converter {
	return &Converter{
		OID:      oid,
		Names:    []string{name},
		Class:    ClassText,
		Category: CategoryRange,
		ElemOID:  elemOID,
		TextEncode: func(v any) (string, error) { return asString(oid, v) },
		TextDecode: func(s string) (any, error) { return s, nil },
		BinaryEncode: func(v any) ([]byte, error) {
			s, err := asString(oid, v)
			if err != nil {
				return nil, err
			}
			return encodeRangeText(s, elemConv)
		},
		BinaryDecode: func(b []byte) (any, error) {
			return decodeRangeBinary(b, elemConv)
		},
	}
}

func encodeRangeText(s string, elemConv *Converter) ([]byte, error) {
	if s == "empty" {
		return []byte{RangeEmpty}, nil
	}
	if len(s) < 2 {
		return nil, &ConversionError{OID: elemConv.OID, Direction: DirEncode, Value: s, Reason: "range literal too short"}
	}

	var flags byte
	if s[0] == '[' {
		flags |= RangeLBInc
	}
	if s[len(s)-1] == ']' {
		flags |= RangeUBInc
	}

	inner := s[1 : len(s)-1]
	lower, upper := splitRangeBounds(inner)

	buf := []byte{}
	if lower == "" {
		flags |= RangeLBInf
	} else {
		b, err := elemConv.BinaryEncode(lower)
		if err != nil {
			return nil, err
		}
		buf = appendLengthPrefixed(buf, b)
	}
	if upper == "" {
		flags |= RangeUBInf
	} else {
		b, err := elemConv.BinaryEncode(upper)
		if err != nil {
			return nil, err
		}
		buf = appendLengthPrefixed(buf, b)
	}

	return append([]byte{flags}, buf...), nil
}

func appendLengthPrefixed(dst []byte, payload []byte) []byte {
	lenBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(lenBuf, uint32(len(payload)))
	dst = append(dst, lenBuf...)
	dst = append(dst, payload...)
	return dst
}

func splitRangeBounds(inner string) (lower, upper string) {
	depth := 0
	for i := 0; i < len(inner); i++ {
		switch inner[i] {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case ',':
			if depth == 0 {
				return inner[:i], inner[i+1:]
			}
		}
	}
	return inner, ""
}

func decodeRangeBinary(b []byte, elemConv *Converter) (string, error) {
	if len(b) == 0 {
		return "", &ConversionError{OID: elemConv.OID, Direction: DirDecode, Value: b, Reason: "empty range payload"}
	}
	flags := b[0]
	if flags&RangeEmpty != 0 {
		return "empty", nil
	}
	pos := 1

	var lower, upper string
	if flags&RangeLBInf == 0 {
		v, n, err := readLengthPrefixed(b, pos)
		if err != nil {
			return "", err
		}
		pos = n
		dec, err := elemConv.BinaryDecode(v)
		if err != nil {
			return "", err
		}
		lower = toText(dec)
	}
	if flags&RangeUBInf == 0 {
		v, n, err := readLengthPrefixed(b, pos)
		if err != nil {
			return "", err
		}
		pos = n
		dec, err := elemConv.BinaryDecode(v)
		if err != nil {
			return "", err
		}
		upper = toText(dec)
	}
	_ = pos

	lb := "("
	if flags&RangeLBInc != 0 {
		lb = "["
	}
	ub := ")"
	if flags&RangeUBInc != 0 {
		ub = "]"
	}
	return lb + lower + "," + upper + ub, nil
}

func readLengthPrefixed(b []byte, pos int) ([]byte, int, error) {
	if pos+4 > len(b) {
		return nil, pos, &ConversionError{OID: OIDUnknown, Direction: DirDecode, Value: b, Reason: "truncated range bound length"}
	}
	n := int(binary.BigEndian.Uint32(b[pos : pos+4]))
	pos += 4
	if pos+n > len(b) {
		return nil, pos, &ConversionError{OID: OIDUnknown, Direction: DirDecode, Value: b, Reason: "truncated range bound value"}
	}
	return b[pos : pos+n], pos + n, nil
}

func toText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	default:
		s, err := asString(OIDUnknown, v)
		if err != nil {
			return ""
		}
		return s
	}
}
