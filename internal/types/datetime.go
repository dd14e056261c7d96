// SPDX-License-Identifier: Apache-2.0

package types

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// pgEpochDays is the number of days between the Unix epoch (1970-01-01)
// and the PostgreSQL epoch (2000-01-01), per spec §4.2 DATE.
const pgEpochDays int64 = 10957

// pgEpochMicros is the same offset in microseconds, used by TIMESTAMP and
// TIMESTAMPTZ (946,684,800,000,000 per spec §4.2).
const pgEpochMicros int64 = 946_684_800_000_000

// dateConverter: wire binary i32 days since 2000-01-01; SQLite storage
// INTEGER days since 1970-01-01.
func dateConverter() *Converter {
	return &Converter{
		OID:      OIDDate,
		Names:    []string{"date"},
		Class:    ClassInteger,
		Category: CategoryDateTime,
		TextEncode: func(v any) (string, error) {
			days, err := asInt64(OIDDate, v)
			if err != nil {
				return "", err
			}
			t := time.Unix(days*86400, 0).UTC()
			return t.Format("2006-01-02"), nil
		},
		TextDecode: func(s string) (any, error) {
			t, err := time.Parse("2006-01-02", s)
			if err != nil {
				return nil, &ConversionError{OID: OIDDate, Direction: DirDecode, Value: s, Reason: err.Error()}
			}
			return t.Unix() / 86400, nil
		},
		BinaryEncode: func(v any) ([]byte, error) {
			daysUnix, err := asInt64(OIDDate, v)
			if err != nil {
				return nil, err
			}
			buf := make([]byte, 4)
			binary.BigEndian.PutUint32(buf, uint32(int32(daysUnix-pgEpochDays)))
			return buf, nil
		},
		BinaryDecode: func(b []byte) (any, error) {
			if len(b) != 4 {
				return nil, &ConversionError{OID: OIDDate, Direction: DirDecode, Value: b, Reason: "expected 4 bytes"}
			}
			daysSincePg := int64(int32(binary.BigEndian.Uint32(b)))
			return daysSincePg + pgEpochDays, nil
		},
	}
}

// timeConverter: wire binary i64 microseconds since midnight; SQLite
// storage INTEGER microseconds. withTZ selects TIME vs TIMETZ encoding;
// TIMETZ appends a 4-byte zone offset in seconds west of UTC (Postgres
// wire layout), which this gateway always emits as 0 (UTC) per spec's
// open question (a): offsets are accepted on decode as a fixed numeric
// suffix and otherwise treated as UTC.
func timeConverter(withTZ bool) *Converter {
	oid := OIDTime
	if withTZ {
		oid = OIDTimeTZ
	}
	return &Converter{
		OID:      oid,
		Names:    []string{map[bool]string{false: "time", true: "timetz"}[withTZ]},
		Class:    ClassInteger,
		Category: CategoryDateTime,
		TextEncode: func(v any) (string, error) {
			micros, err := asInt64(oid, v)
			if err != nil {
				return "", err
			}
			return formatTimeOfDay(micros, withTZ), nil
		},
		TextDecode: func(s string) (any, error) {
			micros, err := parseTimeOfDay(s)
			if err != nil {
				return nil, &ConversionError{OID: oid, Direction: DirDecode, Value: s, Reason: err.Error()}
			}
			return micros, nil
		},
		BinaryEncode: func(v any) ([]byte, error) {
			micros, err := asInt64(oid, v)
			if err != nil {
				return nil, err
			}
			buf := make([]byte, 8)
			binary.BigEndian.PutUint64(buf, uint64(micros))
			if withTZ {
				buf = append(buf, 0, 0, 0, 0) // UTC offset
			}
			return buf, nil
		},
		BinaryDecode: func(b []byte) (any, error) {
			if len(b) < 8 {
				return nil, &ConversionError{OID: oid, Direction: DirDecode, Value: b, Reason: "expected at least 8 bytes"}
			}
			return int64(binary.BigEndian.Uint64(b[:8])), nil
		},
	}
}

func formatTimeOfDay(micros int64, withTZ bool) string {
	totalSeconds := micros / 1_000_000
	micro := micros % 1_000_000
	h := totalSeconds / 3600
	m := (totalSeconds % 3600) / 60
	sec := totalSeconds % 60
	base := fmt.Sprintf("%02d:%02d:%02d.%06d", h, m, sec, micro)
	if withTZ {
		base += "+00"
	}
	return base
}

func parseTimeOfDay(s string) (int64, error) {
	s = strings.TrimSpace(s)
	// Strip a trailing numeric zone offset, e.g. "+00" or "+05:30"; per
	// the open question in spec §9(a), only numeric offsets are parsed
	// (no zone-abbreviation table).
	if idx := strings.IndexAny(s, "+-"); idx > 0 {
		s = s[:idx]
	}
	parts := strings.SplitN(s, ":", 3)
	if len(parts) < 2 {
		return 0, fmt.Errorf("invalid time literal %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, err
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, err
	}
	var sec float64
	if len(parts) == 3 {
		sec, err = strconv.ParseFloat(parts[2], 64)
		if err != nil {
			return 0, err
		}
	}
	total := float64(h*3600+m*60) + sec
	return int64(total * 1_000_000), nil
}

// timestampConverter: wire binary i64 microseconds since 2000-01-01;
// SQLite storage INTEGER microseconds since 1970-01-01.
func timestampConverter(withTZ bool) *Converter {
	oid := OIDTimestamp
	if withTZ {
		oid = OIDTimestampTZ
	}
	layout := "2006-01-02 15:04:05.999999"
	return &Converter{
		OID:      oid,
		Names:    []string{map[bool]string{false: "timestamp", true: "timestamptz"}[withTZ]},
		Class:    ClassInteger,
		Category: CategoryDateTime,
		TextEncode: func(v any) (string, error) {
			micros, err := asInt64(oid, v)
			if err != nil {
				return "", err
			}
			t := microsToTime(micros)
			s := t.Format(layout)
			if withTZ {
				s += "+00"
			}
			return s, nil
		},
		TextDecode: func(s string) (any, error) {
			trimmed := s
			if idx := strings.IndexAny(s, "+-"); idx > 10 { // skip the date's own '-'
				trimmed = s[:idx]
			}
			t, err := time.Parse(layout, trimmed)
			if err != nil {
				t, err = time.Parse("2006-01-02 15:04:05", trimmed)
				if err != nil {
					return nil, &ConversionError{OID: oid, Direction: DirDecode, Value: s, Reason: err.Error()}
				}
			}
			return timeToMicros(t), nil
		},
		BinaryEncode: func(v any) ([]byte, error) {
			micros, err := asInt64(oid, v)
			if err != nil {
				return nil, err
			}
			buf := make([]byte, 8)
			binary.BigEndian.PutUint64(buf, uint64(micros-pgEpochMicros))
			return buf, nil
		},
		BinaryDecode: func(b []byte) (any, error) {
			if len(b) != 8 {
				return nil, &ConversionError{OID: oid, Direction: DirDecode, Value: b, Reason: "expected 8 bytes"}
			}
			pgMicros := int64(binary.BigEndian.Uint64(b))
			return pgMicros + pgEpochMicros, nil
		},
	}
}

func microsToTime(unixMicros int64) time.Time {
	sec := unixMicros / 1_000_000
	nsec := (unixMicros % 1_000_000) * 1000
	return time.Unix(sec, nsec).UTC()
}

func timeToMicros(t time.Time) int64 {
	return t.Unix()*1_000_000 + int64(t.Nanosecond()/1000)
}

// intervalConverter: 16 bytes (i64 microseconds + i32 days + i32 months),
// per spec §4.2. SQLite storage TEXT in PostgreSQL's own interval
// text syntax, since an interval has no single canonical scalar.
func intervalConverter() *Converter {
	return &Converter{
		OID:      OIDInterval,
		Names:    []string{"interval"},
		Class:    ClassText,
		Category: CategoryTimespan,
		TextEncode: func(v any) (string, error) {
			return asString(OIDInterval, v)
		},
		TextDecode: func(s string) (any, error) {
			return s, nil
		},
		BinaryEncode: func(v any) ([]byte, error) {
			s, err := asString(OIDInterval, v)
			if err != nil {
				return nil, err
			}
			micros, days, months, perr := parseIntervalText(s)
			if perr != nil {
				return nil, &ConversionError{OID: OIDInterval, Direction: DirEncode, Value: v, Reason: perr.Error()}
			}
			buf := make([]byte, 16)
			binary.BigEndian.PutUint64(buf[0:8], uint64(micros))
			binary.BigEndian.PutUint32(buf[8:12], uint32(days))
			binary.BigEndian.PutUint32(buf[12:16], uint32(months))
			return buf, nil
		},
		BinaryDecode: func(b []byte) (any, error) {
			if len(b) != 16 {
				return nil, &ConversionError{OID: OIDInterval, Direction: DirDecode, Value: b, Reason: "expected 16 bytes"}
			}
			micros := int64(binary.BigEndian.Uint64(b[0:8]))
			days := int32(binary.BigEndian.Uint32(b[8:12]))
			months := int32(binary.BigEndian.Uint32(b[12:16]))
			return formatIntervalText(micros, days, months), nil
		},
	}
}

// parseIntervalText accepts the simple "N months N days HH:MM:SS" form
// pgroll-adjacent tooling emits; a full ISO-8601 interval grammar is out
// of scope (spec §1 non-goals: no bit-exact backend reproduction).
func parseIntervalText(s string) (micros int64, days int32, months int32, err error) {
	fields := strings.Fields(s)
	i := 0
	for i < len(fields) {
		if i+1 < len(fields) {
			n, e := strconv.Atoi(fields[i])
			if e == nil {
				unit := strings.TrimSuffix(strings.ToLower(fields[i+1]), "s")
				switch unit {
				case "year":
					months += int32(n) * 12
					i += 2
					continue
				case "mon", "month":
					months += int32(n)
					i += 2
					continue
				case "day":
					days += int32(n)
					i += 2
					continue
				}
			}
		}
		if strings.Contains(fields[i], ":") {
			m, perr := parseTimeOfDay(fields[i])
			if perr != nil {
				return 0, 0, 0, perr
			}
			micros += m
		}
		i++
	}
	return micros, days, months, nil
}

func formatIntervalText(micros int64, days, months int32) string {
	var parts []string
	years := months / 12
	mons := months % 12
	if years != 0 {
		parts = append(parts, fmt.Sprintf("%d years", years))
	}
	if mons != 0 {
		parts = append(parts, fmt.Sprintf("%d mons", mons))
	}
	if days != 0 {
		parts = append(parts, fmt.Sprintf("%d days", days))
	}
	if micros != 0 || len(parts) == 0 {
		neg := micros < 0
		if neg {
			micros = -micros
		}
		h := micros / 3_600_000_000
		rem := micros % 3_600_000_000
		m := rem / 60_000_000
		rem = rem % 60_000_000
		sec := float64(rem) / 1_000_000
		sign := ""
		if neg {
			sign = "-"
		}
		parts = append(parts, fmt.Sprintf("%s%02d:%02d:%09.6f", sign, h, m, sec))
	}
	return strings.Join(parts, " ")
}
