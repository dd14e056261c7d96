// SPDX-License-Identifier: Apache-2.0

package types

import (
	"encoding/json"
	"fmt"
)

// arrayConverter: arrays are stored as JSON arrays in SQLite TEXT (spec
// §4.2 "Arrays"). The text codec renders the stored JSON as a PostgreSQL
// curly-brace array literal and parses curly-brace literals back into
// JSON; the binary codec passes the JSON text through unchanged, with no
// PostgreSQL binary array encoding. No __pgsqlite_array_types record is
// written for array columns.
func arrayConverter(oid OID, name string, elemOID OID) *Converter {
	return &Converter{
		OID:      oid,
		Names:    []string{name},
		Class:    ClassText,
		Category: CategoryArray,
		ElemOID:  elemOID,
		IsArray:  true,
		TextEncode: func(v any) (string, error) {
			s, err := asString(oid, v)
			if err != nil {
				return "", err
			}
			if !json.Valid([]byte(s)) {
				return "", &ConversionError{OID: oid, Direction: DirEncode, Value: v, Reason: "not valid JSON array storage"}
			}
			return jsonArrayToPGText(s)
		},
		TextDecode: func(s string) (any, error) {
			return pgArrayTextToJSON(s)
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

// jsonArrayToPGText renders a JSON array string as PostgreSQL's curly-brace
// array literal syntax, e.g. `[1,2,3]` -> `{1,2,3}`.
func jsonArrayToPGText(jsonText string) (string, error) {
	var elems []any
	if err := json.Unmarshal([]byte(jsonText), &elems); err != nil {
		return "", &ConversionError{OID: OIDUnknown, Direction: DirEncode, Value: jsonText, Reason: err.Error()}
	}
	parts := make([]string, len(elems))
	for i, e := range elems {
		switch t := e.(type) {
		case nil:
			parts[i] = "NULL"
		case string:
			parts[i] = fmt.Sprintf("%q", t)
		default:
			b, _ := json.Marshal(t)
			parts[i] = string(b)
		}
	}
	out := "{"
	for i, p := range parts {
		if i > 0 {
			out += ","
		}
		out += p
	}
	out += "}"
	return out, nil
}

// pgArrayTextToJSON parses a PostgreSQL curly-brace array literal into the
// gateway's JSON-array storage representation.
func pgArrayTextToJSON(pgText string) (string, error) {
	if len(pgText) < 2 || pgText[0] != '{' || pgText[len(pgText)-1] != '}' {
		return "", &ConversionError{OID: OIDUnknown, Direction: DirDecode, Value: pgText, Reason: "not a PostgreSQL array literal"}
	}
	inner := pgText[1 : len(pgText)-1]
	elems := splitArrayElements(inner)
	out := make([]json.RawMessage, 0, len(elems))
	for _, e := range elems {
		if e == "" {
			continue
		}
		if e == "NULL" {
			out = append(out, json.RawMessage("null"))
			continue
		}
		if len(e) >= 2 && e[0] == '"' && e[len(e)-1] == '"' {
			out = append(out, json.RawMessage(e))
			continue
		}
		out = append(out, json.RawMessage(e))
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", &ConversionError{OID: OIDUnknown, Direction: DirDecode, Value: pgText, Reason: err.Error()}
	}
	return string(b), nil
}

// splitArrayElements splits a PostgreSQL array literal body on top-level
// commas, respecting double-quoted elements.
func splitArrayElements(s string) []string {
	if s == "" {
		return nil
	}
	var elems []string
	depth := 0
	inQuote := false
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			if i == 0 || s[i-1] != '\\' {
				inQuote = !inQuote
			}
		case '{':
			if !inQuote {
				depth++
			}
		case '}':
			if !inQuote {
				depth--
			}
		case ',':
			if !inQuote && depth == 0 {
				elems = append(elems, s[start:i])
				start = i + 1
			}
		}
	}
	elems = append(elems, s[start:])
	return elems
}
