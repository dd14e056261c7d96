// SPDX-License-Identifier: Apache-2.0

package types

// builtinConverters returns every statically-known PostgreSQL type
// converter spec §4.2 enumerates. ENUM converters are excluded here, and
// none is registered elsewhere by default (see EnumConverter).
func builtinConverters() []*Converter {
	cs := []*Converter{
		boolConverter(),
		intConverter(OIDInt2, []string{"int2", "smallint"}, 2),
		intConverter(OIDInt4, []string{"int4", "integer", "int"}, 4),
		intConverter(OIDInt8, []string{"int8", "bigint"}, 8),
		floatConverter(OIDFloat4, []string{"float4", "real"}, 4),
		floatConverter(OIDFloat8, []string{"float8", "double precision"}, 8),
		numericConverter(),
		dateConverter(),
		timeConverter(false),
		timeConverter(true),
		timestampConverter(false),
		timestampConverter(true),
		intervalConverter(),
		byteaConverter(),
		textLikeConverter(OIDText, []string{"text"}, CategoryString),
		textLikeConverter(OIDVarchar, []string{"varchar", "character varying"}, CategoryString),
		textLikeConverter(OIDBpchar, []string{"bpchar", "char", "character"}, CategoryString),
		textLikeConverter(OIDName, []string{"name"}, CategoryString),
		jsonConverter(),
		jsonbConverter(),
		uuidConverter(),
		inetConverter(OIDInet, "inet", false),
		inetConverter(OIDCidr, "cidr", true),
		macaddrConverter(OIDMacaddr, "macaddr", 6),
		macaddrConverter(OIDMacaddr8, "macaddr8", 8),
		bitConverter(OIDBit, "bit"),
		bitConverter(OIDVarbit, "varbit"),
		moneyConverter(),
	}

	// Arrays, keyed by element converter.
	cs = append(cs,
		arrayConverter(OIDBoolArray, "_bool", OIDBool),
		arrayConverter(OIDInt2Array, "_int2", OIDInt2),
		arrayConverter(OIDInt4Array, "_int4", OIDInt4),
		arrayConverter(OIDInt8Array, "_int8", OIDInt8),
		arrayConverter(OIDTextArray, "_text", OIDText),
		arrayConverter(OIDVarcharArray, "_varchar", OIDVarchar),
		arrayConverter(OIDFloat4Array, "_float4", OIDFloat4),
		arrayConverter(OIDFloat8Array, "_float8", OIDFloat8),
		arrayConverter(OIDNumericArray, "_numeric", OIDNumeric),
		arrayConverter(OIDTimestampArray, "_timestamp", OIDTimestamp),
		arrayConverter(OIDJSONBArray, "_jsonb", OIDJSONB),
	)

	// Ranges: each needs its element converter already built above, so
	// build a throwaway lookup first.
	byOID := make(map[OID]*Converter, len(cs))
	for _, c := range cs {
		byOID[c.OID] = c
	}
	cs = append(cs,
		rangeConverter(OIDInt4Range, "int4range", OIDInt4, byOID[OIDInt4]),
		rangeConverter(OIDInt8Range, "int8range", OIDInt8, byOID[OIDInt8]),
		rangeConverter(OIDNumRange, "numrange", OIDNumeric, byOID[OIDNumeric]),
		rangeConverter(OIDTSRange, "tsrange", OIDTimestamp, byOID[OIDTimestamp]),
		rangeConverter(OIDTSTZRange, "tstzrange", OIDTimestampTZ, byOID[OIDTimestampTZ]),
		rangeConverter(OIDDateRange, "daterange", OIDDate, byOID[OIDDate]),
	)

	return cs
}
