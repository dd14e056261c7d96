// SPDX-License-Identifier: Apache-2.0

package types

// EnumConverter builds a converter for a single ENUM type from a
// caller-supplied oid and label list. It is not among the builtins, and
// nothing in this repository calls it: the Translator does not handle
// CREATE TYPE ... AS ENUM, and no converter is built from the
// __pgsqlite_enum_types/__pgsqlite_enum_values tables.
func EnumConverter(oid OID, typeName string, labels []string) *Converter {
	labelSet := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		labelSet[l] = struct{}{}
	}

	return &Converter{
		OID:      oid,
		Names:    []string{typeName},
		Class:    ClassText,
		Category: CategoryEnum,
		TextEncode: func(v any) (string, error) {
			s, err := asString(oid, v)
			if err != nil {
				return "", err
			}
			if _, ok := labelSet[s]; !ok {
				return "", &ConversionError{OID: oid, Direction: DirEncode, Value: v, Reason: "not a valid " + typeName + " label"}
			}
			return s, nil
		},
		TextDecode: func(s string) (any, error) {
			if _, ok := labelSet[s]; !ok {
				return nil, &ConversionError{OID: oid, Direction: DirDecode, Value: s, Reason: "not a valid " + typeName + " label"}
			}
			return s, nil
		},
		BinaryEncode: func(v any) ([]byte, error) {
			s, err := asString(oid, v)
			if err != nil {
				return nil, err
			}
			if _, ok := labelSet[s]; !ok {
				return nil, &ConversionError{OID: oid, Direction: DirEncode, Value: v, Reason: "not a valid " + typeName + " label"}
			}
			return []byte(s), nil
		},
		BinaryDecode: func(b []byte) (any, error) {
			s := string(b)
			if _, ok := labelSet[s]; !ok {
				return nil, &ConversionError{OID: oid, Direction: DirDecode, Value: b, Reason: "not a valid " + typeName + " label"}
			}
			return s, nil
		},
	}
}
