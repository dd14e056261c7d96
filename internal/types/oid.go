// SPDX-License-Identifier: Apache-2.0

// Package types is the Type Registry & Converters (T) component: it maps
// PostgreSQL type OIDs and names to SQLite storage classes and to text/
// binary wire codecs, per spec.md §4.2.
package types

// OID is a PostgreSQL type identifier. Values below match the real
// PostgreSQL pg_type.oid assignments so that catalog emulation (CE) can
// hand these straight to clients without translation.
type OID uint32

const (
	OIDBool        OID = 16
	OIDBytea       OID = 17
	OIDChar        OID = 18
	OIDName        OID = 19
	OIDInt8        OID = 20
	OIDInt2        OID = 21
	OIDInt4        OID = 23
	OIDText        OID = 25
	OIDOID         OID = 26
	OIDJSON        OID = 114
	OIDJSONArray   OID = 199
	OIDFloat4      OID = 700
	OIDFloat8      OID = 701
	OIDMoney       OID = 790
	OIDMacaddr     OID = 829
	OIDInet        OID = 869
	OIDCidr        OID = 650
	OIDBpchar      OID = 1042
	OIDVarchar     OID = 1043
	OIDDate        OID = 1082
	OIDTime        OID = 1083
	OIDTimestamp   OID = 1114
	OIDTimestampTZ OID = 1184
	OIDInterval    OID = 1186
	OIDBit         OID = 1560
	OIDVarbit      OID = 1562
	OIDNumeric     OID = 1700
	OIDUUID        OID = 2950
	OIDJSONB       OID = 3802
	OIDMacaddr8    OID = 774
	OIDTimeTZ      OID = 1266
	OIDInt4Range   OID = 3904
	OIDInt8Range   OID = 3926
	OIDNumRange    OID = 3906
	OIDTSRange     OID = 3908
	OIDTSTZRange   OID = 3910
	OIDDateRange   OID = 3912

	// Array OIDs, offset from their element type per Postgres convention.
	OIDBoolArray      OID = 1000
	OIDInt2Array      OID = 1005
	OIDInt4Array      OID = 1007
	OIDTextArray      OID = 1009
	OIDInt8Array      OID = 1016
	OIDFloat4Array    OID = 1021
	OIDFloat8Array    OID = 1022
	OIDVarcharArray   OID = 1015
	OIDNumericArray   OID = 1231
	OIDTimestampArray OID = 1115
	OIDJSONBArray     OID = 3807

	OIDUnknown OID = 705
)

// Category letters, per pg_type.typcategory, needed for catalog-compatible
// introspection responses (e.g. psql's \d output).
const (
	CategoryBoolean    = "B"
	CategoryComposite  = "C"
	CategoryDateTime   = "D"
	CategoryEnum       = "E"
	CategoryGeometric  = "G"
	CategoryNetwork    = "I"
	CategoryNumeric    = "N"
	CategoryPseudo     = "P"
	CategoryRange      = "R"
	CategoryString     = "S"
	CategoryTimespan   = "T"
	CategoryUserType   = "U"
	CategoryBitString  = "V"
	CategoryUnknown    = "X"
	CategoryArray      = "A"
)

// baseOIDForArray maps an array OID back to its element OID, used when
// CE/TR need to describe an array column's element type.
var baseOIDForArray = map[OID]OID{
	OIDBoolArray:      OIDBool,
	OIDInt2Array:      OIDInt2,
	OIDInt4Array:      OIDInt4,
	OIDInt8Array:      OIDInt8,
	OIDTextArray:      OIDText,
	OIDVarcharArray:   OIDVarchar,
	OIDFloat4Array:    OIDFloat4,
	OIDFloat8Array:    OIDFloat8,
	OIDNumericArray:   OIDNumeric,
	OIDTimestampArray: OIDTimestamp,
	OIDJSONBArray:     OIDJSONB,
}

// ElementOID returns the element type OID for an array OID, and ok=false
// if oid is not a recognized array type.
func ElementOID(oid OID) (OID, bool) {
	el, ok := baseOIDForArray[oid]
	return el, ok
}
